// Package tree implements CART decision trees for classification and
// regression. Trees are stored as flat node slices so they can be encoded
// with encoding/gob and shared read-only between goroutines after Fit.
package tree

import (
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// featureThreshold is the smallest gap between two consecutive feature
// values that is treated as a split point.
const featureThreshold = 1e-7

// Node is one node of a fitted tree. Leaves have Feature == -1.
// Samples with X[Feature] <= Threshold go to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value holds class probabilities for classifiers and the mean target
	// for regressors.
	Value    []float64
	NSamples int
	Impurity float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

type treeParams struct {
	criterion       string
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     int64
}

// Option configures a decision tree.
type Option func(*treeParams)

// WithCriterion sets the split quality measure: "gini" or "entropy" for
// classifiers, "squared_error" for regressors.
func WithCriterion(criterion string) Option {
	return func(p *treeParams) { p.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 disables the limit.
func WithMaxDepth(depth int) Option {
	return func(p *treeParams) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *treeParams) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(p *treeParams) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split. 0 uses all.
func WithMaxFeatures(n int) Option {
	return func(p *treeParams) { p.maxFeatures = n }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *treeParams) { p.randomState = seed }
}

func defaultParams(criterion string) treeParams {
	return treeParams{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
}

func (p *treeParams) validate(criteria ...string) error {
	if !slices.Contains(criteria, p.criterion) {
		return errors.NewValidationError("criterion", "unsupported criterion", p.criterion)
	}
	if p.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", p.maxDepth)
	}
	if p.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.minSamplesSplit)
	}
	if p.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.minSamplesLeaf)
	}
	if p.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", p.maxFeatures)
	}
	return nil
}

func (p *treeParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *treeParams) setParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf", "max_features":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				p.maxDepth = v
			case "min_samples_split":
				p.minSamplesSplit = v
			case "min_samples_leaf":
				p.minSamplesLeaf = v
			default:
				p.maxFeatures = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				p.randomState = int64(v)
			case int64:
				p.randomState = v
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

// Dataset is a column-major copy of a training matrix. A forest builds it
// once and shares it read-only between its trees.
type Dataset struct {
	columns [][]float64
	y       []float64
}

// NewDataset copies X (n_samples x n_features) and y (n_samples x 1).
// X must not contain NaN or Inf.
func NewDataset(X, y mat.Matrix) (*Dataset, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.NewValueError("NewDataset", "empty input")
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return nil, errors.NewDimensionError("NewDataset", rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError("NewDataset", 1, yCols, 1)
	}

	d := &Dataset{
		columns: make([][]float64, cols),
		y:       make([]float64, rows),
	}
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, j)
		}
		if err := errors.CheckNumericalStability("NewDataset", col); err != nil {
			return nil, errors.MarkInvalidInput(err)
		}
		d.columns[j] = col
	}
	for i := 0; i < rows; i++ {
		d.y[i] = y.At(i, 0)
	}
	if err := errors.CheckNumericalStability("NewDataset", d.y); err != nil {
		return nil, errors.MarkInvalidInput(err)
	}
	return d, nil
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int { return len(d.y) }

// NFeatures returns the number of columns.
func (d *Dataset) NFeatures() int { return len(d.columns) }

// Target returns the target values. The slice must not be modified.
func (d *Dataset) Target() []float64 { return d.y }

// AllIndices returns 0..n-1.
func (d *Dataset) AllIndices() []int {
	idx := make([]int, d.NSamples())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// builder grows a tree depth first.
type builder struct {
	params treeParams
	data   *Dataset
	acc    accumulator
	rng    *rand.Rand

	nodes       []Node
	importances []float64
	depth       int

	order []int // scratch for sorting samples by feature value
}

func newBuilder(params treeParams, data *Dataset, acc accumulator) *builder {
	b := &builder{
		params:      params,
		data:        data,
		acc:         acc,
		importances: make([]float64, data.NFeatures()),
	}
	if params.maxFeatures > 0 && params.maxFeatures < data.NFeatures() {
		b.rng = rand.New(rand.NewSource(params.randomState))
	}
	return b
}

// build grows the tree over the samples in idx and normalises the feature
// importances.
func (b *builder) build(idx []int) {
	b.order = make([]int, len(idx))
	b.grow(idx, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
}

func (b *builder) grow(idx []int, depth int) int {
	impurity, value := b.acc.node(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  -1,
		Value:    value,
		NSamples: len(idx),
		Impurity: impurity,
	})
	b.depth = max(b.depth, depth)

	n := len(idx)
	if (b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		n < b.params.minSamplesSplit ||
		n < 2*b.params.minSamplesLeaf ||
		impurity <= 1e-12 {
		return id
	}

	s, ok := b.bestSplit(idx, impurity)
	if !ok {
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, n-s.nLeft)
	col := b.data.columns[s.feature]
	for _, i := range idx {
		if col[i] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[s.feature] += s.decrease

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	node := &b.nodes[id]
	node.Feature = s.feature
	node.Threshold = s.threshold
	node.Left = l
	node.Right = r
	return id
}

type split struct {
	feature   int
	threshold float64
	nLeft     int
	gain      float64
	decrease  float64 // weighted impurity decrease, n * gain
}

// bestSplit searches up to maxFeatures non-constant features, visited in
// random order when feature sampling is enabled. More features are visited
// when the sampled ones are all constant within the node.
func (b *builder) bestSplit(idx []int, impurity float64) (split, bool) {
	nFeatures := b.data.NFeatures()
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	budget := nFeatures
	if b.rng != nil {
		b.rng.Shuffle(nFeatures, func(i, j int) { features[i], features[j] = features[j], features[i] })
		budget = b.params.maxFeatures
	}

	n := len(idx)
	minLeaf := b.params.minSamplesLeaf
	best := split{gain: math.Inf(-1)}
	found := false
	visited := 0

	order := b.order[:n]
	for _, f := range features {
		if visited >= budget {
			break
		}
		col := b.data.columns[f]
		copy(order, idx)
		slices.SortFunc(order, func(a, c int) int {
			switch {
			case col[a] < col[c]:
				return -1
			case col[a] > col[c]:
				return 1
			}
			return 0
		})
		if col[order[n-1]] <= col[order[0]]+featureThreshold {
			continue
		}
		visited++

		b.acc.reset(order)
		for i := 0; i < n-1; i++ {
			b.acc.move(order[i])
			lo, hi := col[order[i]], col[order[i+1]]
			if hi <= lo+featureThreshold {
				continue
			}
			nLeft := i + 1
			if nLeft < minLeaf || n-nLeft < minLeaf {
				continue
			}
			impL, impR := b.acc.impurities()
			weighted := (float64(nLeft)*impL + float64(n-nLeft)*impR) / float64(n)
			gain := impurity - weighted
			if gain > best.gain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{
					feature:   f,
					threshold: threshold,
					nLeft:     nLeft,
					gain:      gain,
					decrease:  float64(n) * gain,
				}
				found = true
			}
		}
	}
	// Zero-gain splits are accepted, as in scikit-learn.
	if !found || best.gain < -1e-12 {
		return split{}, false
	}
	best.decrease = max(best.decrease, 0)
	return best, true
}

// apply returns the leaf reached by row.
func apply(nodes []Node, row []float64) *Node {
	node := &nodes[0]
	for !node.IsLeaf() {
		if row[node.Feature] <= node.Threshold {
			node = &nodes[node.Left]
		} else {
			node = &nodes[node.Right]
		}
	}
	return node
}

func countLeaves(nodes []Node) int {
	n := 0
	for i := range nodes {
		if nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}
