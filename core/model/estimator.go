package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n_samples x 1）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測の両方を行うモデル
type Estimator interface {
	Fitter
	Predictor
	IsFitted() bool
}

// Classifier は確率を出力できる分類モデル
type Classifier interface {
	Estimator
	// PredictProba はクラスごとの確率を返す（n_samples x n_classes）
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	// Classes は学習時に観測したクラスラベル（エンコード済み）を昇順で返す
	Classes() []float64
}
