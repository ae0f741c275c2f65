package dataframe

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// naValues are the strings read as missing, the pandas read_csv defaults.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var boolValues = map[string]bool{
	"True": true, "TRUE": true, "true": true,
	"False": false, "FALSE": false, "false": false,
}

func errorf(format string, args ...any) error {
	return errors.Newf(format, args...)
}

// ReadCSV parses comma separated UTF-8 text whose first row is the header.
// A leading byte order mark is dropped. Column types are inferred as
// described on DType: int64 when every cell is an integer, float64 when
// every non-missing cell is a number, bool for True/False columns without
// gaps, object otherwise.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("no columns to parse from file")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	names := mangleNames(header)

	raw := make([][]string, len(names))
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse CSV")
		}
		line++
		if len(record) > len(names) {
			return nil, errorf("error tokenizing data. Expected %d fields in line %d, saw %d",
				len(names), line, len(record))
		}
		for j := range names {
			cell := ""
			if j < len(record) {
				cell = record[j]
			}
			raw[j] = append(raw[j], cell)
		}
	}

	columns := make([]*Column, len(names))
	for j, name := range names {
		columns[j] = inferColumn(name, raw[j])
	}
	return New(columns...)
}

// mangleNames renames empty headers to "Unnamed: i" and duplicates to
// name.1, name.2, ...
func mangleNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for {
			n, dup := seen[name]
			if !dup {
				break
			}
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", h, n+1)
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

func isMissing(s string) bool {
	_, ok := naValues[s]
	return ok
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out-of-range values parse to ±Inf with ErrRange, as in pandas
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func inferColumn(name string, cells []string) *Column {
	missing := 0
	allInt, allFloat, allBool := true, true, true
	for _, s := range cells {
		if isMissing(s) {
			missing++
			continue
		}
		if allInt {
			if _, ok := parseInt(s); !ok {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, ok := parseFloat(s); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := boolValues[strings.TrimSpace(s)]; !ok {
				allBool = false
			}
		}
	}
	present := len(cells) - missing

	switch {
	case len(cells) == 0:
		return objectColumn(name, cells)
	case present == 0:
		return numericColumn(name, Float64, cells)
	case allInt && missing == 0:
		return numericColumn(name, Int64, cells)
	case allInt || allFloat:
		return numericColumn(name, Float64, cells)
	case allBool && missing == 0:
		col := &Column{Name: name, DType: Bool, Floats: make([]float64, len(cells))}
		for i, s := range cells {
			if boolValues[strings.TrimSpace(s)] {
				col.Floats[i] = 1
			}
		}
		return col
	default:
		return objectColumn(name, cells)
	}
}

func numericColumn(name string, dtype DType, cells []string) *Column {
	col := &Column{Name: name, DType: dtype, Floats: make([]float64, len(cells))}
	for i, s := range cells {
		if isMissing(s) {
			col.Floats[i] = math.NaN()
			continue
		}
		if v, ok := parseInt(s); ok {
			col.Floats[i] = float64(v)
			continue
		}
		v, _ := parseFloat(s)
		col.Floats[i] = v
	}
	return col
}

func objectColumn(name string, cells []string) *Column {
	col := &Column{
		Name:    name,
		DType:   Object,
		Strings: make([]string, len(cells)),
		Missing: make([]bool, len(cells)),
	}
	for i, s := range cells {
		if isMissing(s) {
			col.Missing[i] = true
			continue
		}
		col.Strings[i] = s
	}
	return col
}
