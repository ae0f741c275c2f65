// Package model_selection はデータ分割のユーティリティを提供する
package model_selection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// TrainTestSplit はn件の行インデックスを訓練用とテスト用にランダム分割する
//
// テスト件数は ceil(testSize * n)、残りが訓練件数になる（scikit-learnと同じ丸め）。
// 同じseedなら常に同じ分割を返す。どちらかが空になる場合はエラー。
//
//	train, test, err := model_selection.TrainTestSplit(100, 0.2, 42)
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if n <= 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "no samples to split")
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"with n_samples and test_size the resulting train set will be empty")
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	return train, test, nil
}

// Take はidxの順にdataの要素を取り出す
func Take[T any](data []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

// SelectRows はidxの順にXの行を取り出した行列を返す
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	row := make([]float64, cols)
	for i, j := range idx {
		mat.Row(row, j, X)
		out.SetRow(i, row)
	}
	return out
}
