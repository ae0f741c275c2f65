// Package preprocessing は学習前のデータ変換（ラベルエンコード・欠損値補完）を提供する
package preprocessing

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// ラベルを昇順に並べ、0からn_classes-1までの整数に変換する
//
// 使用例:
//
//	enc := preprocessing.NewLabelEncoder[string]()
//	codes, err := enc.FitTransform([]string{"b", "a", "b"}) // [1 0 1]
//	labels, err := enc.InverseTransform(codes)              // [b a b]
type LabelEncoder[T cmp.Ordered] struct {
	// Classes は学習したラベル（昇順）
	Classes []T

	index map[T]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder[T cmp.Ordered]() *LabelEncoder[T] {
	return &LabelEncoder[T]{}
}

// Fit はラベルの一覧を学習する
func (e *LabelEncoder[T]) Fit(y []T) error {
	if len(y) == 0 {
		return errors.NewValueError("LabelEncoder.Fit", "empty labels")
	}
	classes := slices.Clone(y)
	slices.Sort(classes)
	e.Classes = slices.Compact(classes)

	e.index = make(map[T]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
	return nil
}

// Transform はラベルを整数コードに変換する。未知のラベルはエラー
func (e *LabelEncoder[T]) Transform(y []T) ([]float64, error) {
	if e.index == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]float64, len(y))
	for i, v := range y {
		code, ok := e.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("unseen label %v", v))
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform はFitとTransformを続けて行う
func (e *LabelEncoder[T]) FitTransform(y []T) ([]float64, error) {
	if err := e.Fit(y); err != nil {
		return nil, err
	}
	return e.Transform(y)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder[T]) InverseTransform(codes []float64) ([]T, error) {
	if e.index == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]T, len(codes))
	for i, c := range codes {
		code := int(c)
		if float64(code) != c || code < 0 || code >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("invalid code %v", c))
		}
		out[i] = e.Classes[code]
	}
	return out, nil
}
