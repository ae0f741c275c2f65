package tree

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// treeState is the gob representation of a fitted tree.
type treeState struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     int64

	Nodes       []Node
	Classes     []float64
	Importances []float64
	Depth       int
	State       *model.StateManager
}

func (p *treeParams) toState() treeState {
	return treeState{
		Criterion:       p.criterion,
		MaxDepth:        p.maxDepth,
		MinSamplesSplit: p.minSamplesSplit,
		MinSamplesLeaf:  p.minSamplesLeaf,
		MaxFeatures:     p.maxFeatures,
		RandomState:     p.randomState,
	}
}

func (s *treeState) params() treeParams {
	return treeParams{
		criterion:       s.Criterion,
		maxDepth:        s.MaxDepth,
		minSamplesSplit: s.MinSamplesSplit,
		minSamplesLeaf:  s.MinSamplesLeaf,
		maxFeatures:     s.MaxFeatures,
		randomState:     s.RandomState,
	}
}

func encodeState(s treeState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, errors.Wrap(err, "failed to encode tree")
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (treeState, error) {
	var s treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return s, errors.Wrap(err, "failed to decode tree")
	}
	if s.State == nil {
		s.State = model.NewStateManager()
	}
	return s, nil
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	s := dt.toState()
	s.Nodes = dt.nodes
	s.Classes = dt.classes_
	s.Importances = dt.featureImportances_
	s.Depth = dt.depth_
	s.State = dt.state
	return encodeState(s)
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	dt.treeParams = s.params()
	dt.nodes = s.Nodes
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.featureImportances_ = s.Importances
	dt.depth_ = s.Depth
	dt.state = s.State
	return nil
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	s := dt.toState()
	s.Nodes = dt.nodes
	s.Importances = dt.featureImportances_
	s.Depth = dt.depth_
	s.State = dt.state
	return encodeState(s)
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeRegressor) GobDecode(data []byte) error {
	s, err := decodeState(data)
	if err != nil {
		return err
	}
	dt.treeParams = s.params()
	dt.nodes = s.Nodes
	dt.featureImportances_ = s.Importances
	dt.depth_ = s.Depth
	dt.state = s.State
	return nil
}
