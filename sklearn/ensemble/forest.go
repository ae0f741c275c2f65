// Package ensemble implements bagged random forests on top of sklearn/tree.
package ensemble

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// MaxFeatures values.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

type forestParams struct {
	nEstimators     int
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
}

// Option configures a random forest.
type Option func(*forestParams)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(p *forestParams) { p.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(criterion string) Option {
	return func(p *forestParams) { p.criterion = criterion }
}

// WithMaxDepth limits the depth of every tree. 0 disables the limit.
func WithMaxDepth(depth int) Option {
	return func(p *forestParams) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *forestParams) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *forestParams) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature budget: "sqrt", "log2" or "all".
func WithMaxFeatures(mode string) Option {
	return func(p *forestParams) { p.maxFeatures = mode }
}

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(enabled bool) Option {
	return func(p *forestParams) { p.bootstrap = enabled }
}

// WithRandomState seeds bootstrap sampling and feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *forestParams) { p.randomState = seed }
}

func (p *forestParams) validate() error {
	if p.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", p.nEstimators)
	}
	switch p.maxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll:
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or all", p.maxFeatures)
	}
	return nil
}

// featureBudget resolves maxFeatures for nFeatures columns.
func (p *forestParams) featureBudget(nFeatures int) int {
	switch p.maxFeatures {
	case MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(nFeatures))))
	case MaxFeaturesLog2:
		return max(1, int(math.Log2(float64(nFeatures))))
	default:
		return nFeatures
	}
}

// treeSeeds derives one seed per tree from the forest seed so that results
// do not depend on goroutine scheduling.
func (p *forestParams) treeSeeds() []int64 {
	master := rand.New(rand.NewSource(p.randomState))
	seeds := make([]int64, p.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}
	return seeds
}

// sampleIndices draws n row indices with replacement, or returns 0..n-1
// when bootstrap is disabled.
func sampleIndices(rng *rand.Rand, n int, bootstrap bool) []int {
	idx := make([]int, n)
	for i := range idx {
		if bootstrap {
			idx[i] = rng.Intn(n)
		} else {
			idx[i] = i
		}
	}
	return idx
}

// averageImportances averages per-tree importances and renormalises them.
func averageImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
