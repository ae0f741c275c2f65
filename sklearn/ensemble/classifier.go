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

// RandomForestClassifier averages the class probabilities of bagged
// decision trees.
type RandomForestClassifier struct {
	forestParams
	state *model.StateManager

	estimators_         []*tree.DecisionTreeClassifier
	classes_            []float64
	featureImportances_ []float64
}

// NewRandomForestClassifier creates a forest of 100 gini trees with
// bootstrap sampling and sqrt(n_features) features per split.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	f := &RandomForestClassifier{
		forestParams: forestParams{
			nEstimators:     100,
			criterion:       tree.CriterionGini,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			maxFeatures:     MaxFeaturesSqrt,
			bootstrap:       true,
		},
		state: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(&f.forestParams)
	}
	return f
}

// Fit grows the trees concurrently. y holds numeric class labels.
func (f *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if err := f.validate(); err != nil {
		return err
	}
	data, err := tree.NewDataset(X, y)
	if err != nil {
		return err
	}
	classes := tree.UniqueSorted(data.Target())
	seeds := f.treeSeeds()
	budget := f.featureBudget(data.NFeatures())
	n := data.NSamples()

	estimators := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	err = parallel.Parallelize(f.nEstimators, func(start, end int) error {
		for i := start; i < end; i++ {
			rng := rand.New(rand.NewSource(seeds[i]))
			idx := sampleIndices(rng, n, f.bootstrap)
			t := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(f.criterion),
				tree.WithMaxDepth(f.maxDepth),
				tree.WithMinSamplesSplit(f.minSamplesSplit),
				tree.WithMinSamplesLeaf(f.minSamplesLeaf),
				tree.WithMaxFeatures(budget),
				tree.WithRandomState(rng.Int63()),
			)
			if err := t.FitDataset(data, idx, classes); err != nil {
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
	f.classes_ = classes
	f.featureImportances_ = averageImportances(perTree, data.NFeatures())
	f.state.SetDimensions(data.NFeatures(), n)
	f.state.SetFitted()
	return nil
}

// PredictProba returns the mean class probabilities over all trees
// (n_samples x n_classes), columns ordered as Classes().
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.state.CheckFeatures("RandomForestClassifier.PredictProba", cols); err != nil {
		return nil, err
	}

	nClasses := len(f.classes_)
	out := mat.NewDense(rows, nClasses, nil)
	row := make([]float64, cols)
	scale := 1 / float64(len(f.estimators_))
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		acc := out.RawRowView(i)
		for _, t := range f.estimators_ {
			for c, p := range t.LeafValue(row) {
				acc[c] += p
			}
		}
		for c := range acc {
			acc[c] *= scale
		}
	}
	return out, nil
}

// Predict returns the class with the highest mean probability (n_samples x 1).
func (f *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	dense := proba.(*mat.Dense)
	rows, _ := dense.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, f.classes_[tree.Argmax(dense.RawRowView(i))])
	}
	return out, nil
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestClassifier) IsFitted() bool { return f.state.IsFitted() }

// Classes returns the sorted class labels seen during Fit.
func (f *RandomForestClassifier) Classes() []float64 { return slices.Clone(f.classes_) }

// NEstimators returns the number of trees.
func (f *RandomForestClassifier) NEstimators() int { return f.nEstimators }

// GetFeatureImportances returns the mean normalised importance per feature.
func (f *RandomForestClassifier) GetFeatureImportances() []float64 {
	return slices.Clone(f.featureImportances_)
}
