package metrics

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

// AccuracyScore は正解率（予測ラベルが一致した割合）を計算する
func AccuracyScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は混同行列を計算する
//
// ラベルは yTrue と yPred に現れた値の和集合を昇順に並べたもの。
// 行 i が真のラベル labels[i]、列 j が予測ラベル labels[j] に対応する。
func ConfusionMatrix(yTrue, yPred *mat.VecDense) (*mat.Dense, []float64, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}

	labels := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		labels = append(labels, yTrue.AtVec(i), yPred.AtVec(i))
	}
	slices.Sort(labels)
	labels = slices.Compact(labels)

	index := make(map[float64]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, c := index[yTrue.AtVec(i)], index[yPred.AtVec(i)]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}
