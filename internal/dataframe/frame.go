// Package dataframe holds parsed tabular datasets: ordered, typed columns
// with explicit missing values.
package dataframe

import (
	"math"
)

// DType is the inferred type of a column. Names follow pandas so that API
// clients see the same strings.
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	Bool    DType = "bool"
	Object  DType = "object"
)

// IsNumeric reports whether values of the dtype are stored as float64.
func (d DType) IsNumeric() bool {
	return d == Int64 || d == Float64 || d == Bool
}

// Column is a named, typed column. Numeric and bool columns keep their
// values in Floats (bools as 0/1, missing as NaN); object columns keep them
// in Strings with a parallel Missing mask.
type Column struct {
	Name    string
	DType   DType
	Floats  []float64
	Strings []string
	Missing []bool
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.DType.IsNumeric() {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.DType.IsNumeric() {
		return math.IsNaN(c.Floats[i])
	}
	return c.Missing[i]
}

// MissingCount returns the number of missing rows.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// NonMissing returns the non-missing values of a numeric column.
func (c *Column) NonMissing() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Unique returns the number of distinct non-missing values.
func (c *Column) Unique() int {
	if c.DType.IsNumeric() {
		seen := make(map[float64]struct{})
		for _, v := range c.Floats {
			if !math.IsNaN(v) {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for i, v := range c.Strings {
		if !c.Missing[i] {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Value returns row i as its natural Go type: int64, float64, bool or
// string, or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.DType {
	case Int64:
		return int64(c.Floats[i])
	case Float64:
		return c.Floats[i]
	case Bool:
		return c.Floats[i] != 0
	default:
		return c.Strings[i]
	}
}

// Frame is an immutable table of equally long columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a Frame from columns of equal length with unique names.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, errorf("duplicate column name %q", c.Name)
		}
		f.index[c.Name] = i
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
	}
	return f, nil
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.rows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Columns returns the columns in file order.
func (f *Frame) Columns() []*Column { return f.columns }

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Names returns the column names in file order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// MissingCells returns the number of missing cells in the frame.
func (f *Frame) MissingCells() int {
	n := 0
	for _, c := range f.columns {
		n += c.MissingCount()
	}
	return n
}

// Memory usage estimate, modelled on pandas memory_usage(deep=True).
const (
	indexBytes      = 132
	pointerBytes    = 8
	stringOverhead  = 49
	missingObjBytes = 24
)

// MemoryUsage estimates the in-memory size in bytes the way pandas reports
// it with deep=True: index, 8 bytes per numeric cell, 1 per bool, and for
// object cells a pointer plus the size of the boxed string.
func (f *Frame) MemoryUsage() int64 {
	total := int64(indexBytes)
	for _, c := range f.columns {
		switch c.DType {
		case Int64, Float64:
			total += int64(8 * c.Len())
		case Bool:
			total += int64(c.Len())
		default:
			for i, s := range c.Strings {
				total += pointerBytes
				if c.Missing[i] {
					total += missingObjBytes
				} else {
					total += int64(stringOverhead + len(s))
				}
			}
		}
	}
	return total
}
