package ensemble

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		0, 0, 0, 1, 1, 0, 1, 1,
		5, 5, 5, 6, 6, 5, 6, 6,
		10, 0, 10, 1, 11, 0, 11, 1,
	})
	y := mat.NewDense(12, 1, []float64{
		0, 0, 0, 0,
		1, 1, 1, 1,
		2, 2, 2, 2,
	})
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := blobs()

	rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(42))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pred, err := rf.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 12; i++ {
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), pred.At(i, 0))
		}
	}

	proba, err := rf.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := proba.Dims()
	if rows != 12 || cols != 3 {
		t.Fatalf("Expected probas shape (12, 3), got (%d, %d)", rows, cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Probabilities for sample %d sum to %v", i, sum)
		}
	}

	if got := rf.Classes(); len(got) != 3 || got[2] != 2 {
		t.Errorf("Classes() = %v", got)
	}
	imp := rf.GetFeatureImportances()
	if len(imp) != 2 || math.Abs(imp[0]+imp[1]-1) > 1e-9 {
		t.Errorf("importances = %v, want normalised pair", imp)
	}

	var _ model.Classifier = rf
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	X, y := blobs()
	fit := func() mat.Matrix {
		rf := NewRandomForestClassifier(WithNEstimators(10), WithRandomState(42))
		if err := rf.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		proba, err := rf.PredictProba(mat.NewDense(2, 2, []float64{3, 3, 8, 2}))
		if err != nil {
			t.Fatal(err)
		}
		return proba
	}
	if !mat.Equal(fit(), fit()) {
		t.Error("forests with the same random state should agree")
	}
}

func TestRandomForestClassifier_Errors(t *testing.T) {
	X, y := blobs()

	rf := NewRandomForestClassifier()
	if _, err := rf.Predict(X); err == nil {
		t.Error("expected NotFittedError")
	}

	if err := NewRandomForestClassifier(WithNEstimators(0)).Fit(X, y); !errors.IsInvalidInput(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := NewRandomForestClassifier(WithMaxFeatures("half")).Fit(X, y); !errors.IsInvalidInput(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	if err := rf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := rf.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected dimension error")
	}
}

func TestRandomForestRegressor_FitPredict(t *testing.T) {
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / 4
		X.Set(i, 0, x)
		y.Set(i, 0, 2*x+1)
	}

	rf := NewRandomForestRegressor(WithNEstimators(30), WithRandomState(42))
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	pred, err := rf.Predict(mat.NewDense(2, 1, []float64{2, 7}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred.At(0, 0)-5) > 1 || math.Abs(pred.At(1, 0)-15) > 1 {
		t.Errorf("predictions too far from target: %v, %v", pred.At(0, 0), pred.At(1, 0))
	}
	if rf.NEstimators() != 30 {
		t.Errorf("NEstimators() = %d", rf.NEstimators())
	}

	var _ model.Estimator = rf
}

func TestRandomForest_GobBehindInterface(t *testing.T) {
	X, y := blobs()
	clf := NewRandomForestClassifier(WithNEstimators(5), WithRandomState(1))
	if err := clf.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	reg := NewRandomForestRegressor(WithNEstimators(5), WithRandomState(1))
	if err := reg.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	type bundle struct {
		Models []model.Estimator
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bundle{Models: []model.Estimator{clf, reg}}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out bundle
	if err := gob.NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	gotClf, ok := out.Models[0].(*RandomForestClassifier)
	if !ok || !gotClf.IsFitted() || gotClf.NEstimators() != 5 {
		t.Fatalf("unexpected classifier after decode: %T", out.Models[0])
	}
	want, _ := clf.PredictProba(X)
	got, err := gotClf.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("decoded classifier predicts differently")
	}

	gotReg, ok := out.Models[1].(*RandomForestRegressor)
	if !ok {
		t.Fatalf("unexpected regressor after decode: %T", out.Models[1])
	}
	wantR, _ := reg.Predict(X)
	gotR, err := gotReg.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(wantR, gotR) {
		t.Error("decoded regressor predicts differently")
	}
}
