// Package linalg provides the small dense matrix primitives used by the
// curve-fitting engine: transpose, products and a closed-form 2x2 inverse.
//
// Matrices are row-major [][]float64. Every operation returns a freshly
// allocated result and never writes to its operands.
package linalg

import (
	"fmt"
	"math"
	"strings"
)

// Matrix is a row-major dense matrix.
type Matrix [][]float64

// Vector is a dense column vector.
type Vector []float64

// Dims returns the number of rows and the length of the first row.
func (m Matrix) Dims() (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	rows, cols := m.Dims()
	return build(rows, cols, func(i, j int) float64 { return m[i][j] })
}

// String renders the matrix one row per line.
func (m Matrix) String() string {
	var b strings.Builder
	for i, row := range m {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fmt.Sprint([]float64(row)))
	}
	return b.String()
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Identity returns the n×n identity matrix.
func Identity(n int) Matrix {
	return build(n, n, func(i, j int) float64 {
		if i == j {
			return 1
		}
		return 0
	})
}

// ApproxEqual reports whether a and b have the same shape and every pair of
// elements differs by at most tol. NaN never compares equal.
func ApproxEqual(a, b Matrix, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if !(math.Abs(a[i][j]-b[i][j]) <= tol) {
				return false
			}
		}
	}
	return true
}

// shape validates that m is non-empty and rectangular.
func shape(m Matrix) (rows, cols int, err error) {
	rows, cols = m.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, ErrEmpty
	}
	for i := 1; i < rows; i++ {
		if len(m[i]) != cols {
			return 0, 0, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(m[i]), cols, ErrRagged)
		}
	}
	return rows, cols, nil
}

// build allocates a rows×cols matrix whose (i, j) element is f(i, j).
func build(rows, cols int, f func(i, j int) float64) Matrix {
	out := make(Matrix, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = f(i, j)
		}
		out[i] = row
	}
	return out
}
