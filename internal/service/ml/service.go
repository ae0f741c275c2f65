package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/internal/service/dataset"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// DatasetSource resolves dataset identifiers.
type DatasetSource interface {
	Get(ctx context.Context, id string) (*dataset.Dataset, error)
}

// Service validates requests and coordinates the Trainer and Registry.
type Service struct {
	datasets DatasetSource
	trainer  *Trainer
	registry *Registry
	metrics  *telemetry.Metrics
	logger   log.Logger
}

// NewService creates a Service. metrics may be nil.
func NewService(datasets DatasetSource, trainer *Trainer, registry *Registry, metrics *telemetry.Metrics) *Service {
	return &Service{
		datasets: datasets,
		trainer:  trainer,
		registry: registry,
		metrics:  metrics,
		logger:   log.GetLoggerWithName("ml"),
	}
}

// Train fits a model on a registered dataset and saves it.
func (s *Service) Train(ctx context.Context, datasetID string, req TrainRequest) (*TrainResult, error) {
	ds, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	frame := ds.Frame

	if _, ok := frame.Column(req.TargetColumn); !ok {
		return nil, errors.MarkInvalidInput(errors.Newf("Target column %s not found", req.TargetColumn))
	}
	for _, name := range req.FeatureColumns {
		if _, ok := frame.Column(name); !ok {
			return nil, errors.MarkInvalidInput(errors.Newf("Feature column %s not found", name))
		}
	}
	if len(req.FeatureColumns) == 0 {
		return nil, errors.NewValidationError("feature_columns", "at least one feature is required", nil)
	}
	task, err := ParseTaskType(req.ModelType)
	if err != nil {
		return nil, err
	}
	testSize := DefaultTestSize
	if req.TestSize != nil {
		testSize = *req.TestSize
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	start := time.Now()
	rec, err := s.trainer.Train(frame, req.TargetColumn, req.FeatureColumns, task, testSize)
	s.metrics.RecordTraining(string(task), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	rec.DatasetID = datasetID

	saved, err := s.registry.Save(ctx, *rec)
	if err != nil {
		return nil, err
	}
	return &TrainResult{ModelID: saved.ID, Metrics: saved.MetricsJSON()}, nil
}

// Predict scores a single row. Features the model declares but the request
// omits, or sets to null, are 0; unknown keys are ignored.
func (s *Service) Predict(ctx context.Context, modelID string, features map[string]any) (p *Prediction, err error) {
	rec, err := s.registry.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	defer func() { s.metrics.RecordPrediction(string(rec.TaskType), err) }()

	row := make([]float64, len(rec.Features))
	for i, name := range rec.Features {
		if row[i], err = featureValue(name, features[name]); err != nil {
			return nil, err
		}
	}
	X := mat.NewDense(1, len(row), row)

	pred, err := rec.Estimator.Predict(X)
	if err != nil {
		return nil, err
	}
	value := pred.At(0, 0)
	if rec.TaskType == Regression {
		return &Prediction{Prediction: value}, nil
	}

	out := &Prediction{Prediction: rec.label(value)}
	if clf, ok := rec.Estimator.(model.Classifier); ok {
		proba, err := clf.PredictProba(X)
		if err != nil {
			return nil, err
		}
		best := floats.Max(mat.Row(nil, 0, proba))
		out.Probability = &best
	}
	s.logger.Debug("Prediction served",
		log.OperationKey, log.OperationPredict,
		log.ModelIDKey, modelID,
	)
	return out, nil
}

// ListModels describes every model in memory.
func (s *Service) ListModels(ctx context.Context) []ModelInfo {
	recs := s.registry.List(ctx)
	out := make([]ModelInfo, len(recs))
	for i, rec := range recs {
		out[i] = rec.Info()
	}
	return out
}

// GetModel describes one model.
func (s *Service) GetModel(ctx context.Context, id string) (*ModelInfo, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := rec.Info()
	return &info, nil
}

// featureValue converts a decoded JSON value to a feature value.
func featureValue(name string, v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return finiteFeature(name, x)
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, invalidFeature(name, v)
		}
		return finiteFeature(name, f)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, invalidFeature(name, v)
		}
		return finiteFeature(name, f)
	default:
		return 0, invalidFeature(name, v)
	}
}

func finiteFeature(name string, v float64) (float64, error) {
	if math.IsNaN(v) {
		return 0, nil
	}
	if math.IsInf(v, 0) {
		return 0, invalidFeature(name, v)
	}
	return v, nil
}

func invalidFeature(name string, v any) error {
	return errors.NewValidationError("feature "+name, "expected a number", fmt.Sprint(v))
}
