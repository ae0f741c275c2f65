package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// ConstantImputer は欠損値（NaN）を定数で埋める
// pandasの fillna(value) と同じ挙動
type ConstantImputer struct {
	// FillValue は欠損値を置き換える値
	FillValue float64
}

// NewZeroImputer は欠損値を0で埋めるConstantImputerを作成する
func NewZeroImputer() *ConstantImputer {
	return &ConstantImputer{FillValue: 0}
}

// Transform はXのNaNをFillValueで置き換えた新しい行列と、置き換えた件数を返す
// 1件以上置き換えた場合は DataConversionWarning を発生させる
func (c *ConstantImputer) Transform(X mat.Matrix) (*mat.Dense, int) {
	rows, cols := X.Dims()
	out := mat.DenseCopyOf(X)
	filled := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, c.FillValue)
				filled++
			}
		}
	}
	if filled > 0 {
		errors.Warn(errors.NewDataConversionWarning("NaN", "constant", "missing values imputed"))
	}
	return out, filled
}
