// Package analysis computes descriptive statistics and histograms over
// uploaded datasets.
package analysis

import (
	"bytes"
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlapi/internal/dataframe"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// Summary is the exploratory analysis of a dataset.
type Summary struct {
	Info        Info            `json:"info"`
	Columns     []ColumnSummary `json:"columns"`
	Correlation *Correlation    `json:"correlation"`
}

// Info holds frame level counts.
type Info struct {
	Rows            int     `json:"rows"`
	Columns         int     `json:"columns"`
	MemoryUsage     int64   `json:"memory_usage"`
	MissingCells    int     `json:"missing_cells"`
	MissingCellsPct float64 `json:"missing_cells_pct"`
}

// ColumnSummary describes one column. Numeric columns also carry
// NumericStats; undefined statistics encode as null.
type ColumnSummary struct {
	Name    string          `json:"name"`
	DType   dataframe.DType `json:"dtype"`
	Missing int             `json:"missing"`
	Unique  int             `json:"unique"`
	*NumericStats
}

// NumericStats are computed over the non-missing values of a column.
type NumericStats struct {
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Median *float64 `json:"median"`
}

// Correlation is a square matrix keyed by column name. It marshals as a
// nested JSON object that keeps column order.
type Correlation struct {
	Columns []string
	Values  [][]float64
}

// Get returns the coefficient for columns a and b.
func (c *Correlation) Get(a, b string) (float64, bool) {
	i, j := indexOf(c.Columns, a), indexOf(c.Columns, b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return c.Values[i][j], true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// MarshalJSON writes {column: {column: value}}; NaN becomes null.
func (c *Correlation) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, outer := range c.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, outer); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, inner := range c.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, inner); err != nil {
				return nil, err
			}
			v, err := json.Marshal(errors.Finite(c.Values[j][i]))
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// Analyze summarizes a frame. Correlation is computed over int64 and float64
// columns when there are at least two of them.
func Analyze(f *dataframe.Frame) *Summary {
	missing := f.MissingCells()
	cells := f.NRows() * f.NCols()

	s := &Summary{
		Info: Info{
			Rows:         f.NRows(),
			Columns:      f.NCols(),
			MemoryUsage:  f.MemoryUsage(),
			MissingCells: missing,
		},
		Columns: make([]ColumnSummary, 0, f.NCols()),
	}
	if cells > 0 {
		s.Info.MissingCellsPct = float64(missing) / float64(cells) * 100
	}

	for _, c := range f.Columns() {
		cs := ColumnSummary{
			Name:    c.Name,
			DType:   c.DType,
			Missing: c.MissingCount(),
			Unique:  c.Unique(),
		}
		if c.DType.IsNumeric() {
			cs.NumericStats = describe(c.NonMissing())
		}
		s.Columns = append(s.Columns, cs)
	}

	var numeric []*dataframe.Column
	for _, c := range f.Columns() {
		if c.DType == dataframe.Int64 || c.DType == dataframe.Float64 {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) > 1 {
		s.Correlation = correlate(numeric)
	}
	return s
}

func describe(values []float64) *NumericStats {
	st := &NumericStats{
		Mean:   errors.Finite(stat.Mean(values, nil)),
		Std:    errors.Finite(stat.StdDev(values, nil)),
		Median: errors.Finite(median(values)),
	}
	if len(values) > 0 {
		st.Min = errors.Finite(floats.Min(values))
		st.Max = errors.Finite(floats.Max(values))
	}
	return st
}

// correlate computes pairwise Pearson coefficients over rows where both
// columns are present, rounded to two decimals.
func correlate(cols []*dataframe.Column) *Correlation {
	n := len(cols)
	c := &Correlation{Columns: make([]string, n), Values: make([][]float64, n)}
	for i := range cols {
		c.Columns[i] = cols[i].Name
		c.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := round2(pearson(cols[i].Floats, cols[j].Floats))
			c.Values[i][j] = r
			c.Values[j][i] = r
		}
	}
	return c
}

func pearson(a, b []float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	return math.Max(-1, math.Min(1, r))
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.RoundToEven(v*100) / 100
}
