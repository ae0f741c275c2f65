// Package ml trains random forests on registered datasets, keeps the fitted
// models in a registry backed by gob files and serves predictions.
package ml

import (
	"slices"
	"time"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// TaskType selects the estimator family.
type TaskType string

const (
	Classification TaskType = "classification"
	Regression     TaskType = "regression"
)

// ParseTaskType validates a model_type value. An empty value means
// classification.
func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case "", Classification:
		return Classification, nil
	case Regression:
		return Regression, nil
	default:
		return "", errors.MarkInvalidInput(errors.New("Unsupported model type"))
	}
}

// Metrics are computed on the held-out rows. Classification fills
// Accuracy, ConfusionMatrix and Labels; regression fills MSE and R2Score.
// Undefined values are NaN.
type Metrics struct {
	Accuracy        float64
	ConfusionMatrix [][]int
	// Labels are the encoded class labels in confusion matrix order.
	Labels  []float64
	MSE     float64
	R2Score float64
}

// Record is a trained model and what is needed to serve it. Records are
// immutable once saved.
type Record struct {
	ID           string
	DatasetID    string
	TaskType     TaskType
	TargetColumn string
	TargetDType  dataframe.DType
	// Features fixes the column order given to the estimator.
	Features []string
	// Classes holds numeric class labels, ClassNames string labels; both
	// are indexed by encoded class.
	Classes      []float64
	ClassNames   []string
	Metrics      Metrics
	Estimator    model.Estimator
	NEstimators  int
	TrainSamples int
	TestSamples  int
	CreatedAt    time.Time
}

// label returns the original label of an encoded class, typed after the
// target column.
func (r *Record) label(code float64) any {
	i := int(code)
	if r.TargetDType == dataframe.Object {
		if i >= 0 && i < len(r.ClassNames) {
			return r.ClassNames[i]
		}
		return nil
	}
	if i < 0 || i >= len(r.Classes) {
		return nil
	}
	return coerceLabel(r.Classes[i], r.TargetDType)
}

// coerceLabel converts an encoded class back to the target's dtype. Bool
// targets yield 0 or 1.
func coerceLabel(v float64, dtype dataframe.DType) any {
	switch dtype {
	case dataframe.Int64, dataframe.Bool:
		return int64(v)
	default:
		return v
	}
}

// Labels returns every class label known to the model.
func (r *Record) Labels() []any {
	if r.TaskType != Classification {
		return nil
	}
	n := max(len(r.Classes), len(r.ClassNames))
	out := make([]any, n)
	for i := range n {
		out[i] = r.label(float64(i))
	}
	return out
}

// MetricsJSON renders the metrics of the record's task type.
func (r *Record) MetricsJSON() map[string]any {
	m := r.Metrics
	if r.TaskType == Regression {
		return map[string]any{
			"mse":      errors.Finite(m.MSE),
			"r2_score": errors.Finite(m.R2Score),
		}
	}
	labels := make([]any, len(m.Labels))
	for i, code := range m.Labels {
		labels[i] = r.label(code)
	}
	return map[string]any{
		"accuracy":         errors.Finite(m.Accuracy),
		"confusion_matrix": m.ConfusionMatrix,
		"labels":           labels,
	}
}

// ModelInfo is the metadata view of a Record.
type ModelInfo struct {
	ID           string         `json:"model_id"`
	DatasetID    string         `json:"dataset_id"`
	TaskType     TaskType       `json:"model_type"`
	TargetColumn string         `json:"target_column"`
	Features     []string       `json:"feature_columns"`
	Classes      []any          `json:"classes,omitempty"`
	Metrics      map[string]any `json:"metrics"`
	NEstimators  int            `json:"n_estimators"`
	TrainSamples int            `json:"train_samples"`
	TestSamples  int            `json:"test_samples"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Info describes the record without its estimator.
func (r *Record) Info() ModelInfo {
	return ModelInfo{
		ID:           r.ID,
		DatasetID:    r.DatasetID,
		TaskType:     r.TaskType,
		TargetColumn: r.TargetColumn,
		Features:     slices.Clone(r.Features),
		Classes:      r.Labels(),
		Metrics:      r.MetricsJSON(),
		NEstimators:  r.NEstimators,
		TrainSamples: r.TrainSamples,
		TestSamples:  r.TestSamples,
		CreatedAt:    r.CreatedAt,
	}
}

// TrainRequest is the body of a training call.
type TrainRequest struct {
	TargetColumn   string   `json:"target_column" binding:"required"`
	FeatureColumns []string `json:"feature_columns" binding:"required"`
	ModelType      string   `json:"model_type"`
	// TestSize defaults to DefaultTestSize when nil.
	TestSize *float64 `json:"test_size"`
}

// DefaultTestSize is the held-out fraction used when none is given.
const DefaultTestSize = 0.2

// TrainResult is returned by a successful training call.
type TrainResult struct {
	ModelID string         `json:"model_id"`
	Metrics map[string]any `json:"metrics"`
}

// PredictRequest is the body of a prediction call.
type PredictRequest struct {
	Features map[string]any `json:"features" binding:"required"`
}

// Prediction is the result of a prediction call. Probability is set for
// classifiers only.
type Prediction struct {
	Prediction  any      `json:"prediction"`
	Probability *float64 `json:"probability,omitempty"`
}
