package analysis

import (
	"image/color"
	"io"
	"math"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// maxBins caps the automatic bin count. Wide ranges with a small
// interquartile range would otherwise ask for billions of bins.
const maxBins = 10000

// HistogramData holds bin edges and counts; len(Bins) == len(Counts)+1.
type HistogramData struct {
	Type   string    `json:"type"`
	Column string    `json:"column"`
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// Histogram bins the non-missing values of a numeric column. The bin count
// follows numpy's "auto" estimator.
func Histogram(f *dataframe.Frame, column string) (*HistogramData, error) {
	col, ok := f.Column(column)
	if !ok {
		return nil, errors.MarkInvalidInput(errors.Newf("Column %s not found", column))
	}
	if !col.DType.IsNumeric() {
		return nil, errors.MarkInvalidInput(errors.Newf("Column %s is not numeric", column))
	}

	values := col.NonMissing()
	h := &HistogramData{Type: "histogram", Column: column}
	if len(values) == 0 {
		h.Bins = []float64{0, 1}
		h.Counts = []int{0}
		return h, nil
	}
	for _, v := range values {
		if math.IsInf(v, 0) {
			return nil, errors.MarkInvalidInput(errors.Newf(
				"autodetected range of column %s is not finite", column))
		}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if math.IsInf(hi-lo, 0) {
		return nil, errors.MarkInvalidInput(errors.Newf(
			"range of column %s is too large to bin", column))
	}
	if lo == hi {
		h.Bins = []float64{lo - 0.5, hi + 0.5}
		h.Counts = []int{len(values)}
		return h, nil
	}

	hist, err := plotter.NewHist(plotter.Values(values), autoBins(sorted))
	if err != nil {
		return nil, errors.Wrap(err, "failed to bin values")
	}
	h.Bins = make([]float64, 0, len(hist.Bins)+1)
	h.Counts = make([]int, 0, len(hist.Bins))
	for _, b := range hist.Bins {
		h.Bins = append(h.Bins, b.Min)
		h.Counts = append(h.Counts, int(b.Weight))
	}
	h.Bins = append(h.Bins, hi)
	return h, nil
}

// autoBins picks the smaller of the Sturges and Freedman-Diaconis bin
// widths, falling back to Sturges when the interquartile range is zero.
// The result is clamped to [1, maxBins].
func autoBins(sorted []float64) int {
	n := float64(len(sorted))
	ptp := sorted[len(sorted)-1] - sorted[0]
	if ptp == 0 {
		return 1
	}
	width := ptp / (math.Log2(n) + 1)
	iqr := percentile(sorted, 75) - percentile(sorted, 25)
	if fd := 2 * iqr * math.Pow(n, -1.0/3.0); fd > 0 {
		width = min(width, fd)
	}
	bins := math.Ceil(ptp / width)
	if !(bins <= maxBins) {
		return maxBins
	}
	return max(1, int(bins))
}

// Plot dimensions of a rendered histogram.
const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// RenderHistogram draws h as a bar chart and writes it to w as PNG.
func RenderHistogram(h *HistogramData, w io.Writer) error {
	if len(h.Bins) != len(h.Counts)+1 {
		return errors.NewValidationError("bins", "expected one more edge than counts", len(h.Bins))
	}

	p := plot.New()
	p.Title.Text = h.Column
	p.X.Label.Text = h.Column
	p.Y.Label.Text = "count"

	bars := &plotter.Histogram{
		Bins:      make([]plotter.HistogramBin, len(h.Counts)),
		Width:     h.Bins[1] - h.Bins[0],
		FillColor: color.Gray{Y: 128},
		LineStyle: plotter.DefaultLineStyle,
	}
	for i, c := range h.Counts {
		bars.Bins[i] = plotter.HistogramBin{Min: h.Bins[i], Max: h.Bins[i+1], Weight: float64(c)}
	}
	p.Add(bars)

	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return errors.Wrap(err, "failed to create canvas")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write png")
	}
	return nil
}
