package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

const exampleCSV = "a,b,target\n1,2,0\n3,4,1\n5,6,0\n7,8,1\n"

func frame(t *testing.T, text string) *dataframe.Frame {
	t.Helper()
	f, err := dataframe.ReadCSV(strings.NewReader(text))
	require.NoError(t, err)
	return f
}

func TestAnalyze_Example(t *testing.T) {
	s := Analyze(frame(t, exampleCSV))

	assert.Equal(t, 4, s.Info.Rows)
	assert.Equal(t, 3, s.Info.Columns)
	assert.Equal(t, int64(indexBytesForTest+3*32), s.Info.MemoryUsage)
	assert.Equal(t, 0, s.Info.MissingCells)
	assert.Equal(t, 0.0, s.Info.MissingCellsPct)

	require.Len(t, s.Columns, 3)
	a := s.Columns[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, dataframe.Int64, a.DType)
	assert.Equal(t, 4, a.Unique)
	require.NotNil(t, a.NumericStats)
	assert.InDelta(t, 4.0, *a.Mean, 1e-12)
	assert.InDelta(t, 2.581988897471611, *a.Std, 1e-12)
	assert.Equal(t, 1.0, *a.Min)
	assert.Equal(t, 7.0, *a.Max)
	assert.Equal(t, 4.0, *a.Median)

	require.NotNil(t, s.Correlation)
	assert.Equal(t, []string{"a", "b", "target"}, s.Correlation.Columns)
	for _, name := range s.Correlation.Columns {
		v, ok := s.Correlation.Get(name, name)
		require.True(t, ok)
		assert.Equal(t, 1.0, v)
	}
	ab, _ := s.Correlation.Get("a", "b")
	assert.Equal(t, 1.0, ab)
	at, _ := s.Correlation.Get("a", "target")
	ta, _ := s.Correlation.Get("target", "a")
	assert.Equal(t, 0.45, at)
	assert.Equal(t, at, ta)
}

const indexBytesForTest = 132

func TestAnalyze_MissingAndObjects(t *testing.T) {
	s := Analyze(frame(t, "x,y,s\n1,,a\n2,3,\n3,5,c\n"))

	assert.Equal(t, 2, s.Info.MissingCells)
	assert.InDelta(t, 200.0/9.0, s.Info.MissingCellsPct, 1e-9)

	total := 0
	for _, c := range s.Columns {
		total += c.Missing
	}
	assert.Equal(t, s.Info.MissingCells, total)

	f := frame(t, "x,y,s\n1,,a\n2,3,\n3,5,c\n")
	for i, col := range f.Columns() {
		present := 0
		for r := range col.Len() {
			if col.Value(r) != nil {
				present++
			}
		}
		assert.Equal(t, s.Info.Rows, s.Columns[i].Missing+present, col.Name)
	}

	y := s.Columns[1]
	assert.Equal(t, dataframe.Float64, y.DType)
	assert.Equal(t, 1, y.Missing)
	assert.InDelta(t, 4.0, *y.Mean, 1e-12)

	obj := s.Columns[2]
	assert.Equal(t, dataframe.Object, obj.DType)
	assert.Nil(t, obj.NumericStats)
	assert.Equal(t, 2, obj.Unique)

	// x and y both numeric; the correlation uses the two complete rows
	xy, ok := s.Correlation.Get("x", "y")
	require.True(t, ok)
	assert.Equal(t, 1.0, xy)
}

func TestAnalyze_JSON(t *testing.T) {
	s := Analyze(frame(t, "n,s\n1,a\n"))
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	cols := decoded["columns"].([]any)

	n := cols[0].(map[string]any)
	assert.Contains(t, n, "std")
	assert.Nil(t, n["std"])
	assert.Equal(t, 1.0, n["mean"])

	obj := cols[1].(map[string]any)
	assert.NotContains(t, obj, "mean")
	assert.Nil(t, decoded["correlation"])
}

func TestCorrelation_MarshalKeepsOrder(t *testing.T) {
	c := &Correlation{
		Columns: []string{"z", "a"},
		Values:  [][]float64{{1, 0.5}, {0.5, 1}},
	}
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z":{"z":1,"a":0.5},"a":{"z":0.5,"a":1}}`, string(raw))
	assert.True(t, strings.HasPrefix(string(raw), `{"z":`))

	constant := Analyze(frame(t, "a,b\n1,5\n2,5\n"))
	raw, err = json.Marshal(constant.Correlation)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"a":1,"b":null},"b":{"a":null,"b":null}}`, string(raw))
}

func TestHistogram(t *testing.T) {
	h, err := Histogram(frame(t, exampleCSV), "a")
	require.NoError(t, err)
	assert.Equal(t, "histogram", h.Type)
	assert.Equal(t, "a", h.Column)
	assert.Equal(t, []float64{1, 3, 5, 7}, h.Bins)
	assert.Equal(t, []int{1, 1, 2}, h.Counts)
}

func TestHistogram_EdgeCases(t *testing.T) {
	f := frame(t, "c,e,s,m\n2,,x,1\n2,,y,\n2,,z,3\n")

	h, err := Histogram(f, "c")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, h.Bins)
	assert.Equal(t, []int{3}, h.Counts)

	h, err = Histogram(f, "e")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, h.Bins)
	assert.Equal(t, []int{0}, h.Counts)

	h, err = Histogram(f, "m")
	require.NoError(t, err)
	assert.Len(t, h.Bins, len(h.Counts)+1)
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	assert.Equal(t, 2, total)

	_, err = Histogram(f, "s")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
	assert.Equal(t, "Column s is not numeric", err.Error())

	_, err = Histogram(f, "nope")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
	assert.Equal(t, "Column nope not found", err.Error())
}

// wideColumn holds 1000 values in [0, 1) and a single far outlier, so the
// Freedman-Diaconis width is tiny compared to the range.
func wideColumn() string {
	var b strings.Builder
	b.WriteString("v\n")
	for i := range 1000 {
		fmt.Fprintf(&b, "%g\n", float64(i)/1000)
	}
	b.WriteString("1e9\n")
	return b.String()
}

func TestHistogram_WideRangeIsCapped(t *testing.T) {
	h, err := Histogram(frame(t, wideColumn()), "v")
	require.NoError(t, err)
	require.Len(t, h.Counts, maxBins)
	require.Len(t, h.Bins, maxBins+1)
	assert.Equal(t, 0.0, h.Bins[0])
	assert.Equal(t, 1e9, h.Bins[maxBins])
	assert.Equal(t, 1000, h.Counts[0])
	assert.Equal(t, 1, h.Counts[maxBins-1])

	total := 0
	for _, c := range h.Counts {
		total += c
	}
	assert.Equal(t, 1001, total)
}

func TestHistogram_OverflowingRange(t *testing.T) {
	_, err := Histogram(frame(t, "v\n-1e308\n1e308\n"), "v")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestAutoBins(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		want   int
	}{
		{"constant", []float64{3, 3, 3}, 1},
		{"sturges wins", []float64{1, 3, 5, 7}, 3},
		{"zero iqr falls back to sturges", []float64{0, 5, 5, 5, 5, 5, 5, 10}, 4},
		{"fd wins", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 100}, 15},
		{"capped", []float64{0, 0.25, 0.5, 0.5, 0.5, 0.75, 1, 1e12}, maxBins},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, autoBins(tt.sorted))
		})
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.75, percentile(sorted, 25))
	assert.Equal(t, 2.5, percentile(sorted, 50))
	assert.Equal(t, 4.0, percentile(sorted, 100))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestRenderHistogram(t *testing.T) {
	h, err := Histogram(frame(t, exampleCSV), "b")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderHistogram(h, &buf))
	_, err = png.Decode(&buf)
	assert.NoError(t, err)

	assert.Error(t, RenderHistogram(&HistogramData{Bins: []float64{0}, Counts: []int{1}}, &buf))
}
