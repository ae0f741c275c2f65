package tree

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// DecisionTreeRegressor is a CART regression tree using the squared error
// criterion. Leaves predict the mean target of their samples.
type DecisionTreeRegressor struct {
	treeParams
	state *model.StateManager

	nodes               []Node
	featureImportances_ []float64
	depth_              int
}

// NewDecisionTreeRegressor creates a regressor with the same defaults as
// NewDecisionTreeClassifier and the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		treeParams: defaultParams(CriterionSquaredError),
		state:      model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.treeParams)
	}
	return dt
}

// Fit builds the tree from X (n_samples x n_features) and y (n_samples x 1).
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	data, err := NewDataset(X, y)
	if err != nil {
		return err
	}
	return dt.FitDataset(data, data.AllIndices())
}

// FitDataset builds the tree from the rows of data listed in indices.
func (dt *DecisionTreeRegressor) FitDataset(data *Dataset, indices []int) error {
	if err := dt.validate(CriterionSquaredError); err != nil {
		return err
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "no training samples")
	}

	b := newBuilder(dt.treeParams, data, &varianceAccumulator{y: data.Target()})
	b.build(indices)

	dt.state.Reset()
	dt.nodes = b.nodes
	dt.featureImportances_ = b.importances
	dt.depth_ = b.depth
	dt.state.SetDimensions(data.NFeatures(), len(indices))
	dt.state.SetFitted()
	return nil
}

// Predict returns the predicted target of each row (n_samples x 1).
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, dt.LeafValue(row)[0])
	}
	return out, nil
}

// LeafValue returns the value of the leaf reached by row: a one-element
// slice holding the mean target. The slice must not be modified.
func (dt *DecisionTreeRegressor) LeafValue(row []float64) []float64 {
	return apply(dt.nodes, row).Value
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.state.IsFitted() }

// GetFeatureImportances returns the normalised total variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return slices.Clone(dt.featureImportances_)
}

// GetDepth returns the depth of the deepest leaf.
func (dt *DecisionTreeRegressor) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeRegressor) GetNLeaves() int { return countLeaves(dt.nodes) }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} { return dt.getParams() }

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}
