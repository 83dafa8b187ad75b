// Package transition holds the land-cover transition matrix: for every (baseline, target) pair of land-cover
// types, the degradation class the change represents.
package transition

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

var (
	ErrShape       = errors.New("transition matrix is not square")
	ErrCellValue   = errors.New("transition matrix cell must be -1, 0 or 1")
	ErrUnknownType = errors.New("unknown land cover type")
)

// DefaultTypes are the land-cover types recognised by default; type code i+1 is DefaultTypes[i].
var DefaultTypes = []string{"Forest", "Grassland", "Cropland", "Wetland", "Artificial area", "Bare land", "Water body"}

// Matrix is square and indexed [baseline][target] by zero based type index.
type Matrix struct {
	Types []string
	Cells [][]int8
}

// Default returns the UNCCD default matrix over DefaultTypes.
func Default() Matrix {
	return Matrix{
		Types: append([]string(nil), DefaultTypes...),
		Cells: [][]int8{
			//  For Gra Cro Wet Art Bar Wat
			{0, -1, -1, -1, -1, -1, 0},  // Forest
			{1, 0, 1, -1, -1, -1, 0},    // Grassland
			{1, 1, 0, -1, -1, -1, 0},    // Cropland
			{-1, -1, -1, 0, -1, -1, 0},  // Wetland
			{1, 1, 1, 1, 0, 1, 0},       // Artificial area
			{1, 1, 1, 1, -1, 0, 0},      // Bare land
			{-1, -1, -1, -1, -1, -1, 0}, // Water body
		},
	}
}

func (m Matrix) Size() int {
	return len(m.Cells)
}

func (m Matrix) Validate() error {
	n := len(m.Cells)
	if n == 0 {
		return fmt.Errorf("%w: empty", ErrShape)
	}
	if len(m.Types) != 0 && len(m.Types) != n {
		return fmt.Errorf("%w: %d type names for %d rows", ErrShape, len(m.Types), n)
	}
	for i, row := range m.Cells {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrShape, i, len(row), n)
		}
		for j, v := range row {
			if v < -1 || v > 1 {
				return fmt.Errorf("%w: cell (%d,%d) = %d", ErrCellValue, i, j, v)
			}
		}
	}
	return nil
}

// Lookup returns the class for a change from baseline to target, both 1-based type codes.
// ok is false when either code is outside the matrix.
func (m Matrix) Lookup(baseline, target int) (class int8, ok bool) {
	n := len(m.Cells)
	if baseline < 1 || baseline > n || target < 1 || target > n {
		return 0, false
	}
	return m.Cells[baseline-1][target-1], true
}

// Set changes one cell, codes are 1-based.
func (m Matrix) Set(baseline, target int, class int8) error {
	if _, ok := m.Lookup(baseline, target); !ok {
		return fmt.Errorf("%w: (%d, %d)", ErrUnknownType, baseline, target)
	}
	if class < -1 || class > 1 {
		return fmt.Errorf("%w: %d", ErrCellValue, class)
	}
	m.Cells[baseline-1][target-1] = class
	return nil
}

// Row is one cell of the long-form CSV representation.
type Row struct {
	Baseline string `csv:"baseline"`
	Target   string `csv:"target"`
	Class    int8   `csv:"class"`
}

// Rows flattens the matrix in baseline-major order.
func (m Matrix) Rows() []*Row {
	rows := make([]*Row, 0, len(m.Cells)*len(m.Cells))
	for i, line := range m.Cells {
		for j, v := range line {
			rows = append(rows, &Row{Baseline: m.typeName(i), Target: m.typeName(j), Class: v})
		}
	}
	return rows
}

// WriteCSV writes the matrix as baseline,target,class rows.
func (m Matrix) WriteCSV(w io.Writer) error {
	return gocsv.Marshal(m.Rows(), w)
}

// ReadCSV builds a matrix over types from baseline,target,class rows. Cells absent from the CSV
// keep the value of the default matrix when types are the default ones, 0 otherwise.
func ReadCSV(r io.Reader, types []string) (Matrix, error) {
	if len(types) == 0 {
		types = DefaultTypes
	}
	var m Matrix
	if sameTypes(types, DefaultTypes) {
		m = Default()
	} else {
		m = Matrix{Types: append([]string(nil), types...), Cells: make([][]int8, len(types))}
		for i := range m.Cells {
			m.Cells[i] = make([]int8, len(types))
		}
	}
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return Matrix{}, fmt.Errorf("failed to read transition matrix: %w", err)
	}
	for _, row := range rows {
		b := m.index(row.Baseline)
		t := m.index(row.Target)
		if b < 0 || t < 0 {
			return Matrix{}, fmt.Errorf("%w: %q -> %q", ErrUnknownType, row.Baseline, row.Target)
		}
		if err := m.Set(b+1, t+1, row.Class); err != nil {
			return Matrix{}, err
		}
	}
	return m, m.Validate()
}

func (m Matrix) typeName(i int) string {
	if i < len(m.Types) {
		return m.Types[i]
	}
	return fmt.Sprintf("type_%d", i+1)
}

func (m Matrix) index(name string) int {
	for i := range m.Cells {
		if strings.EqualFold(strings.TrimSpace(name), m.typeName(i)) {
			return i
		}
	}
	return -1
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
