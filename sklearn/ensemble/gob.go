package ensemble

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/sklearn/tree"
)

func init() {
	// Registered so forests can travel behind the model.Estimator interface.
	gob.Register(&RandomForestClassifier{})
	gob.Register(&RandomForestRegressor{})
}

// forestState is the gob representation of a fitted forest.
type forestState struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64

	Classifiers []*tree.DecisionTreeClassifier
	Regressors  []*tree.DecisionTreeRegressor
	Classes     []float64
	Importances []float64
	State       *model.StateManager
}

func (p *forestParams) toState() forestState {
	return forestState{
		NEstimators:     p.nEstimators,
		Criterion:       p.criterion,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: p.minSamplesSplit,
		MinSamplesLeaf:  p.minSamplesLeaf,
		MaxFeatures:     p.maxFeatures,
		Bootstrap:       p.bootstrap,
		RandomState:     p.randomState,
	}
}

func (s *forestState) params() forestParams {
	return forestParams{
		nEstimators:     s.NEstimators,
		criterion:       s.Criterion,
		maxDepth:        s.MaxDepth,
		minSamplesSplit: s.MinSamplesSplit,
		minSamplesLeaf:  s.MinSamplesLeaf,
		maxFeatures:     s.MaxFeatures,
		bootstrap:       s.Bootstrap,
		randomState:     s.RandomState,
	}
}

func encodeForest(s forestState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(err, "failed to encode forest")
	}
	return buf.Bytes(), nil
}

func decodeForest(data []byte) (forestState, error) {
	var s forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return s, errors.Wrap(err, "failed to decode forest")
	}
	if s.State == nil {
		s.State = model.NewStateManager()
	}
	return s, nil
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestClassifier) GobEncode() ([]byte, error) {
	s := f.toState()
	s.Classifiers = f.estimators_
	s.Classes = f.classes_
	s.Importances = f.featureImportances_
	s.State = f.state
	return encodeForest(s)
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestClassifier) GobDecode(data []byte) error {
	s, err := decodeForest(data)
	if err != nil {
		return err
	}
	if s.State.IsFitted() && len(s.Classifiers) != s.NEstimators {
		return errors.NewModelError("RandomForestClassifier.GobDecode", "tree count mismatch", nil)
	}
	f.forestParams = s.params()
	f.estimators_ = s.Classifiers
	f.classes_ = s.Classes
	f.featureImportances_ = s.Importances
	f.state = s.State
	return nil
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestRegressor) GobEncode() ([]byte, error) {
	s := f.toState()
	s.Regressors = f.estimators_
	s.Importances = f.featureImportances_
	s.State = f.state
	return encodeForest(s)
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestRegressor) GobDecode(data []byte) error {
	s, err := decodeForest(data)
	if err != nil {
		return err
	}
	if s.State.IsFitted() && len(s.Regressors) != s.NEstimators {
		return errors.NewModelError("RandomForestRegressor.GobDecode", "tree count mismatch", nil)
	}
	f.forestParams = s.params()
	f.estimators_ = s.Regressors
	f.featureImportances_ = s.Importances
	f.state = s.State
	return nil
}
