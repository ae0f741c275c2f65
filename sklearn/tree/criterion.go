package tree

import "math"

// Criterion names.
const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

// accumulator tracks the target statistics of the left and right children
// while the split search moves samples from right to left in feature order.
type accumulator interface {
	// reset puts every sample of idx in the right child.
	reset(idx []int)
	// move shifts sample i from the right to the left child.
	move(i int)
	// impurities returns the impurity of the left and right children.
	impurities() (left, right float64)
	// node returns the impurity and leaf value of the samples in idx.
	node(idx []int) (impurity float64, value []float64)
}

// classAccumulator works on class indices in [0, nClasses).
type classAccumulator struct {
	yIdx     []int
	nClasses int
	impurity func(counts []float64, total float64) float64

	left, right   []float64
	nLeft, nRight float64
}

func newClassAccumulator(yIdx []int, nClasses int, criterion string) *classAccumulator {
	fn := gini
	if criterion == CriterionEntropy {
		fn = entropy
	}
	return &classAccumulator{
		yIdx:     yIdx,
		nClasses: nClasses,
		impurity: fn,
		left:     make([]float64, nClasses),
		right:    make([]float64, nClasses),
	}
}

func (a *classAccumulator) reset(idx []int) {
	clear(a.left)
	clear(a.right)
	for _, i := range idx {
		a.right[a.yIdx[i]]++
	}
	a.nLeft, a.nRight = 0, float64(len(idx))
}

func (a *classAccumulator) move(i int) {
	c := a.yIdx[i]
	a.left[c]++
	a.right[c]--
	a.nLeft++
	a.nRight--
}

func (a *classAccumulator) impurities() (float64, float64) {
	return a.impurity(a.left, a.nLeft), a.impurity(a.right, a.nRight)
}

func (a *classAccumulator) node(idx []int) (float64, []float64) {
	counts := make([]float64, a.nClasses)
	for _, i := range idx {
		counts[a.yIdx[i]]++
	}
	imp := a.impurity(counts, float64(len(idx)))
	for c := range counts {
		counts[c] /= float64(len(idx))
	}
	return imp, counts
}

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

// varianceAccumulator implements the squared error criterion.
type varianceAccumulator struct {
	y []float64

	sumL, sqL, nL float64
	sumR, sqR, nR float64
}

func (a *varianceAccumulator) reset(idx []int) {
	a.sumL, a.sqL, a.nL = 0, 0, 0
	a.sumR, a.sqR, a.nR = 0, 0, 0
	for _, i := range idx {
		v := a.y[i]
		a.sumR += v
		a.sqR += v * v
		a.nR++
	}
}

func (a *varianceAccumulator) move(i int) {
	v := a.y[i]
	a.sumL += v
	a.sqL += v * v
	a.nL++
	a.sumR -= v
	a.sqR -= v * v
	a.nR--
}

func (a *varianceAccumulator) impurities() (float64, float64) {
	return variance(a.sumL, a.sqL, a.nL), variance(a.sumR, a.sqR, a.nR)
}

func (a *varianceAccumulator) node(idx []int) (float64, []float64) {
	var sum, sq float64
	for _, i := range idx {
		v := a.y[i]
		sum += v
		sq += v * v
	}
	n := float64(len(idx))
	return variance(sum, sq, n), []float64{sum / n}
}

func variance(sum, sq, n float64) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / n
	return max(sq/n-mean*mean, 0)
}
