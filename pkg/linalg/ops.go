package linalg

import "fmt"

// Transpose returns mᵀ.
func Transpose(m Matrix) (Matrix, error) {
	rows, cols, err := shape(m)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}
	return build(cols, rows, func(i, j int) float64 { return m[j][i] }), nil
}

// Multiply returns a·b. cols(a) must equal rows(b).
func Multiply(a, b Matrix) (Matrix, error) {
	ar, ac, err := shape(a)
	if err != nil {
		return nil, fmt.Errorf("multiply lhs: %w", err)
	}
	br, bc, err := shape(b)
	if err != nil {
		return nil, fmt.Errorf("multiply rhs: %w", err)
	}
	if ac != br {
		return nil, fmt.Errorf("multiply %dx%d by %dx%d: %w", ar, ac, br, bc, ErrDimensionMismatch)
	}
	return build(ar, bc, func(i, j int) float64 {
		sum := 0.0
		for k := 0; k < ac; k++ {
			sum += a[i][k] * b[k][j]
		}
		return sum
	}), nil
}

// MultiplyVector returns m·v. cols(m) must equal len(v).
func MultiplyVector(m Matrix, v Vector) (Vector, error) {
	rows, cols, err := shape(m)
	if err != nil {
		return nil, fmt.Errorf("multiply vector: %w", err)
	}
	if cols != len(v) {
		return nil, fmt.Errorf("multiply %dx%d by vector of %d: %w", rows, cols, len(v), ErrDimensionMismatch)
	}
	out := make(Vector, rows)
	for i := range out {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += m[i][j] * v[j]
		}
		out[i] = sum
	}
	return out, nil
}

// Det2x2 returns a00·a11 − a01·a10.
func Det2x2(a Matrix) (float64, error) {
	if err := check2x2(a); err != nil {
		return 0, err
	}
	return a[0][0]*a[1][1] - a[0][1]*a[1][0], nil
}

// Invert2x2 returns the inverse of a 2x2 matrix by the determinant formula.
//
// A singular input is not reported: dividing by a zero determinant yields
// ±Inf or NaN elements and those values are returned as-is. Callers that need
// to reject singular systems check Det2x2 first.
func Invert2x2(a Matrix) (Matrix, error) {
	det, err := Det2x2(a)
	if err != nil {
		return nil, fmt.Errorf("invert: %w", err)
	}
	return Matrix{
		{a[1][1] / det, -a[0][1] / det},
		{-a[1][0] / det, a[0][0] / det},
	}, nil
}

func check2x2(a Matrix) error {
	if len(a) != 2 || len(a[0]) != 2 || len(a[1]) != 2 {
		return fmt.Errorf("got %d rows: %w", len(a), ErrNotSquare2x2)
	}
	return nil
}
