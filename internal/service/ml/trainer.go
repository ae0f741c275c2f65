package ml

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/metrics"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
	"github.com/YuminosukeSato/mlapi/preprocessing"
	"github.com/YuminosukeSato/mlapi/sklearn/ensemble"
	"github.com/YuminosukeSato/mlapi/sklearn/model_selection"
)

// Trainer fits random forests on dataset columns.
type Trainer struct {
	nEstimators int
	randomState int64
	maxDepth    int
	logger      log.Logger
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithNEstimators sets the number of trees per forest.
func WithNEstimators(n int) TrainerOption {
	return func(t *Trainer) { t.nEstimators = n }
}

// WithRandomState seeds both the train/test split and the forest.
func WithRandomState(seed int64) TrainerOption {
	return func(t *Trainer) { t.randomState = seed }
}

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(depth int) TrainerOption {
	return func(t *Trainer) { t.maxDepth = depth }
}

// NewTrainer returns a Trainer with 100 trees and seed 42.
func NewTrainer(opts ...TrainerOption) *Trainer {
	t := &Trainer{
		nEstimators: 100,
		randomState: 42,
		logger:      log.GetLoggerWithName("ml.trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// target is an encoded target column.
type target struct {
	y          []float64
	classes    []float64
	classNames []string
}

// Train splits the frame, fits a forest on the training rows and evaluates
// it on the held-out rows. The returned record has no ID yet. Missing
// feature values are filled with 0.
func (t *Trainer) Train(f *dataframe.Frame, targetColumn string, features []string, task TaskType, testSize float64) (rec *Record, err error) {
	defer errors.Recover(&err, "Trainer.Train")
	start := time.Now()

	X, err := featureMatrix(f, features)
	if err != nil {
		return nil, err
	}
	tgt, err := encodeTarget(f, targetColumn, task)
	if err != nil {
		return nil, err
	}

	train, test, err := model_selection.TrainTestSplit(f.NRows(), testSize, t.randomState)
	if err != nil {
		return nil, err
	}
	XTrain := model_selection.SelectRows(X, train)
	XTest := model_selection.SelectRows(X, test)
	yTrain := mat.NewVecDense(len(train), model_selection.Take(tgt.y, train))
	yTest := mat.NewVecDense(len(test), model_selection.Take(tgt.y, test))

	opts := []ensemble.Option{
		ensemble.WithNEstimators(t.nEstimators),
		ensemble.WithMaxDepth(t.maxDepth),
		ensemble.WithRandomState(t.randomState),
	}
	var est model.Estimator
	switch task {
	case Classification:
		est = ensemble.NewRandomForestClassifier(opts...)
	case Regression:
		est = ensemble.NewRandomForestRegressor(opts...)
	default:
		return nil, errors.MarkInvalidInput(errors.New("Unsupported model type"))
	}
	if err := est.Fit(XTrain, yTrain); err != nil {
		return nil, errors.NewModelError("Trainer.Train", "fit", err)
	}

	pred, err := est.Predict(XTest)
	if err != nil {
		return nil, errors.NewModelError("Trainer.Train", "predict", err)
	}
	yPred := mat.NewVecDense(len(test), mat.Col(nil, 0, pred))

	rec = &Record{
		TaskType:     task,
		TargetColumn: targetColumn,
		Features:     slices.Clone(features),
		Classes:      tgt.classes,
		ClassNames:   tgt.classNames,
		Estimator:    est,
		NEstimators:  t.nEstimators,
		TrainSamples: len(train),
		TestSamples:  len(test),
		CreatedAt:    time.Now().UTC(),
	}
	col, _ := f.Column(targetColumn)
	rec.TargetDType = col.DType

	if rec.Metrics, err = evaluate(task, yTest, yPred); err != nil {
		return nil, err
	}

	logger := t.logger.With(
		log.OperationKey, log.OperationFit,
		log.TaskTypeKey, string(task),
		log.SamplesKey, len(train),
		log.FeaturesKey, len(features),
		log.EstimatorsKey, t.nEstimators,
		log.RandomSeedKey, t.randomState,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	if task == Classification {
		logger.Info("Training completed", log.AccuracyKey, rec.Metrics.Accuracy)
	} else {
		logger.Info("Training completed",
			log.MSEKey, rec.Metrics.MSE,
			log.R2ScoreKey, rec.Metrics.R2Score,
		)
	}
	return rec, nil
}

func evaluate(task TaskType, yTrue, yPred *mat.VecDense) (Metrics, error) {
	var m Metrics
	if task == Classification {
		acc, err := metrics.AccuracyScore(yTrue, yPred)
		if err != nil {
			return m, err
		}
		cm, labels, err := metrics.ConfusionMatrix(yTrue, yPred)
		if err != nil {
			return m, err
		}
		m.Accuracy = acc
		m.Labels = labels
		m.ConfusionMatrix = make([][]int, len(labels))
		for i := range labels {
			m.ConfusionMatrix[i] = make([]int, len(labels))
			for j := range labels {
				m.ConfusionMatrix[i][j] = int(cm.At(i, j))
			}
		}
		return m, nil
	}

	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		return m, err
	}
	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		return m, err
	}
	m.MSE = mse
	m.R2Score = r2
	return m, nil
}

// featureMatrix builds the n x len(features) design matrix. Bool columns
// become 0/1 and missing values become 0.
func featureMatrix(f *dataframe.Frame, features []string) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, errors.NewValidationError("feature_columns", "at least one feature is required", nil)
	}
	if f.NRows() == 0 {
		return nil, errors.NewValueError("Trainer.Train", "dataset has no rows")
	}
	X := mat.NewDense(f.NRows(), len(features), nil)
	for j, name := range features {
		col, ok := f.Column(name)
		if !ok {
			return nil, errors.MarkInvalidInput(errors.Newf("Feature column %s not found", name))
		}
		if !col.DType.IsNumeric() {
			return nil, errors.MarkInvalidInput(errors.Newf("Feature column %s is not numeric", name))
		}
		X.SetCol(j, col.Floats)
	}
	filled, _ := preprocessing.NewZeroImputer().Transform(X)
	return filled, nil
}

// encodeTarget label-encodes classification targets and checks regression
// targets are numeric.
func encodeTarget(f *dataframe.Frame, name string, task TaskType) (target, error) {
	col, ok := f.Column(name)
	if !ok {
		return target{}, errors.MarkInvalidInput(errors.Newf("Target column %s not found", name))
	}
	if n := col.MissingCount(); n > 0 {
		return target{}, errors.MarkInvalidInput(errors.Newf(
			"Target column %s contains %d missing values", name, n))
	}

	if task == Regression {
		if !col.DType.IsNumeric() {
			return target{}, errors.MarkInvalidInput(errors.Newf(
				"Target column %s must be numeric for regression", name))
		}
		return target{y: slices.Clone(col.Floats)}, nil
	}

	if col.DType == dataframe.Object {
		enc := preprocessing.NewLabelEncoder[string]()
		y, err := enc.FitTransform(col.Strings)
		if err != nil {
			return target{}, err
		}
		return target{y: y, classNames: enc.Classes}, nil
	}
	if col.DType == dataframe.Float64 {
		for _, v := range col.Floats {
			if v != math.Trunc(v) {
				return target{}, errors.MarkInvalidInput(errors.Newf(
					"Unknown label type: continuous values in target column %s", name))
			}
		}
	}
	enc := preprocessing.NewLabelEncoder[float64]()
	y, err := enc.FitTransform(col.Floats)
	if err != nil {
		return target{}, err
	}
	return target{y: y, classes: enc.Classes}, nil
}
