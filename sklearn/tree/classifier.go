package tree

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// DecisionTreeClassifier is a CART classification tree.
type DecisionTreeClassifier struct {
	treeParams
	state *model.StateManager

	nodes               []Node
	classes_            []float64
	nClasses_           int
	featureImportances_ []float64
	depth_              int
}

// NewDecisionTreeClassifier creates a classifier with the gini criterion,
// unlimited depth, min_samples_split=2 and min_samples_leaf=1 unless
// overridden by opts.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		treeParams: defaultParams(CriterionGini),
		state:      model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&dt.treeParams)
	}
	return dt
}

// Fit builds the tree from X (n_samples x n_features) and y (n_samples x 1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	data, err := NewDataset(X, y)
	if err != nil {
		return err
	}
	return dt.FitDataset(data, data.AllIndices(), UniqueSorted(data.Target()))
}

// FitDataset builds the tree from the rows of data listed in indices.
// indices may repeat rows (bootstrap samples). classes must be sorted and
// contain every target value of data; it fixes the column order of
// PredictProba even when some classes are absent from indices.
func (dt *DecisionTreeClassifier) FitDataset(data *Dataset, indices []int, classes []float64) error {
	if err := dt.validate(CriterionGini, CriterionEntropy); err != nil {
		return err
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "no training samples")
	}
	if len(classes) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "no classes")
	}

	classIndex := make(map[float64]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	yIdx := make([]int, data.NSamples())
	for i, v := range data.Target() {
		c, ok := classIndex[v]
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.Fit", "target contains a value missing from classes")
		}
		yIdx[i] = c
	}

	b := newBuilder(dt.treeParams, data, newClassAccumulator(yIdx, len(classes), dt.criterion))
	b.build(indices)

	dt.state.Reset()
	dt.nodes = b.nodes
	dt.classes_ = slices.Clone(classes)
	dt.nClasses_ = len(classes)
	dt.featureImportances_ = b.importances
	dt.depth_ = b.depth
	dt.state.SetDimensions(data.NFeatures(), len(indices))
	dt.state.SetFitted()
	return nil
}

// Predict returns the most probable class of each row (n_samples x 1).
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, dt.classes_[Argmax(proba.(*mat.Dense).RawRowView(i))])
	}
	return out, nil
}

// PredictProba returns the class probabilities of each row
// (n_samples x n_classes), columns ordered as Classes().
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := dt.state.CheckFeatures("DecisionTreeClassifier.PredictProba", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, dt.nClasses_, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, apply(dt.nodes, row).Value)
	}
	return out, nil
}

// LeafValue returns the class probabilities of the leaf reached by row.
// The slice is owned by the tree and must not be modified.
func (dt *DecisionTreeClassifier) LeafValue(row []float64) []float64 {
	return apply(dt.nodes, row).Value
}

// Score returns the mean accuracy on X and y, or 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	rows, _ := pred.Dims()
	if rows == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool { return dt.state.IsFitted() }

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 { return slices.Clone(dt.classes_) }

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return slices.Clone(dt.featureImportances_)
}

// GetDepth returns the depth of the deepest leaf; a single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return countLeaves(dt.nodes) }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} { return dt.getParams() }

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

// UniqueSorted returns the distinct values of v in ascending order.
func UniqueSorted(v []float64) []float64 {
	out := slices.Clone(v)
	slices.Sort(out)
	return slices.Compact(out)
}

// Argmax returns the index of the first maximum of v.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
