package ensemble

import (
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/core/model"
	"github.com/YuminosukeSato/mlapi/core/parallel"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/sklearn/tree"
)

// RandomForestRegressor averages the predictions of bagged regression trees.
type RandomForestRegressor struct {
	forestParams
	state *model.StateManager

	estimators_         []*tree.DecisionTreeRegressor
	featureImportances_ []float64
}

// NewRandomForestRegressor creates a forest of 100 squared error trees with
// bootstrap sampling that consider every feature at each split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		forestParams: forestParams{
			nEstimators:     100,
			criterion:       tree.CriterionSquaredError,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			maxFeatures:     MaxFeaturesAll,
			bootstrap:       true,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&f.forestParams)
	}
	return f
}

// Fit grows the trees concurrently.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if err := f.validate(); err != nil {
		return err
	}
	data, err := tree.NewDataset(X, y)
	if err != nil {
		return err
	}
	seeds := f.treeSeeds()
	budget := f.featureBudget(data.NFeatures())
	n := data.NSamples()

	estimators := make([]*tree.DecisionTreeRegressor, f.nEstimators)
	err = parallel.Parallelize(f.nEstimators, func(start, end int) error {
		for i := start; i < end; i++ {
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := sampleIndices(rng, n, f.bootstrap)
			t := tree.NewDecisionTreeRegressor(
				tree.WithCriterion(f.criterion),
				tree.WithMaxDepth(f.maxDepth),
				tree.WithMinSamplesSplit(f.minSamplesSplit),
				tree.WithMinSamplesLeaf(f.minSamplesLeaf),
				tree.WithMaxFeatures(budget),
				tree.WithRandomState(rng.Int63()),
			)
			if err := t.FitDataset(data, idx); err != nil {
				return err
			}
			estimators[i] = t
		}
		return nil
	})
	if err != nil {
		return err
	}

	perTree := make([][]float64, len(estimators))
	for i, t := range estimators {
		perTree[i] = t.GetFeatureImportances()
	}

	f.state.Reset()
	f.estimators_ = estimators
	f.featureImportances_ = averageImportances(perTree, data.NFeatures())
	f.state.SetDimensions(data.NFeatures(), n)
	f.state.SetFitted()
	return nil
}

// Predict returns the mean tree prediction of each row (n_samples x 1).
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.state.CheckFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		sum := 0.0
		for _, t := range f.estimators_ {
			sum += t.LeafValue(row)[0]
		}
		out.Set(i, 0, sum/float64(len(f.estimators_)))
	}
	return out, nil
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestRegressor) IsFitted() bool { return f.state.IsFitted() }

// NEstimators returns the number of trees.
func (f *RandomForestRegressor) NEstimators() int { return f.nEstimators }

// GetFeatureImportances returns the mean normalised importance per feature.
func (f *RandomForestRegressor) GetFeatureImportances() []float64 {
	return slices.Clone(f.featureImportances_)
}
