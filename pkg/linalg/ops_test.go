package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspose(t *testing.T) {
	t.Run("rectangular", func(t *testing.T) {
		m := Matrix{{1, 2, 3}, {4, 5, 6}}
		got, err := Transpose(m)
		require.NoError(t, err)
		require.Equal(t, Matrix{{1, 4}, {2, 5}, {3, 6}}, got)
	})

	t.Run("involution", func(t *testing.T) {
		for _, m := range []Matrix{
			{{7}},
			{{1, 2}, {3, 4}},
			{{1, 1}, {1, 2}, {1, 3}, {1, 4}},
			{{0.5, -2, 1e9, 3}},
		} {
			once, err := Transpose(m)
			require.NoError(t, err)
			twice, err := Transpose(once)
			require.NoError(t, err)
			require.Equal(t, m, twice)
		}
	})

	t.Run("does not alias input", func(t *testing.T) {
		m := Matrix{{1, 2}, {3, 4}}
		got, err := Transpose(m)
		require.NoError(t, err)
		got[0][0] = 99
		require.Equal(t, 1.0, m[0][0])
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Transpose(nil)
		require.ErrorIs(t, err, ErrEmpty)
		_, err = Transpose(Matrix{{}})
		require.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := Transpose(Matrix{{1, 2}, {3}})
		require.ErrorIs(t, err, ErrRagged)
	})
}

func TestMultiply(t *testing.T) {
	a := Matrix{{1, 2}, {3, 4}, {5, 6}}
	b := Matrix{{7, 8, 9}, {10, 11, 12}}

	got, err := Multiply(a, b)
	require.NoError(t, err)
	require.Equal(t, Matrix{
		{27, 30, 33},
		{61, 68, 75},
		{95, 106, 117},
	}, got)

	t.Run("identity", func(t *testing.T) {
		got, err := Multiply(Identity(3), a)
		require.NoError(t, err)
		require.Equal(t, a, got)
	})

	t.Run("mismatch", func(t *testing.T) {
		_, err := Multiply(a, a)
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ragged operand", func(t *testing.T) {
		_, err := Multiply(a, Matrix{{1, 2}, {3}})
		require.ErrorIs(t, err, ErrRagged)
	})
}

func TestMultiplyVector(t *testing.T) {
	m := Matrix{{1, 1}, {1, 2}, {1, 3}}
	got, err := MultiplyVector(m, Vector{5, 2})
	require.NoError(t, err)
	require.Equal(t, Vector{7, 9, 11}, got)

	_, err = MultiplyVector(m, Vector{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInvert2x2(t *testing.T) {
	cases := []Matrix{
		{{4, 7}, {2, 6}},
		{{4, 10}, {10, 30}},
		{{1e-3, 2}, {3, -4.5}},
		{{-2, 1}, {1.5, -0.5}},
	}
	for _, a := range cases {
		inv, err := Invert2x2(a)
		require.NoError(t, err)

		prod, err := Multiply(a, inv)
		require.NoError(t, err)
		assert.True(t, ApproxEqual(prod, Identity(2), 1e-9), "A·A⁻¹ = %v", prod)

		prod, err = Multiply(inv, a)
		require.NoError(t, err)
		assert.True(t, ApproxEqual(prod, Identity(2), 1e-9), "A⁻¹·A = %v", prod)
	}

	t.Run("singular propagates non-finite values", func(t *testing.T) {
		inv, err := Invert2x2(Matrix{{3, 9}, {9, 27}})
		require.NoError(t, err)
		for _, row := range inv {
			for _, v := range row {
				assert.True(t, math.IsInf(v, 0) || math.IsNaN(v), "got %v", v)
			}
		}
	})

	t.Run("zero matrix is all NaN", func(t *testing.T) {
		inv, err := Invert2x2(Matrix{{0, 0}, {0, 0}})
		require.NoError(t, err)
		for _, row := range inv {
			for _, v := range row {
				assert.True(t, math.IsNaN(v))
			}
		}
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := Invert2x2(Matrix{{1, 2, 3}, {4, 5, 6}})
		require.ErrorIs(t, err, ErrNotSquare2x2)
		_, err = Invert2x2(Matrix{{1}})
		require.ErrorIs(t, err, ErrNotSquare2x2)
	})
}

func TestDet2x2(t *testing.T) {
	det, err := Det2x2(Matrix{{4, 7}, {2, 6}})
	require.NoError(t, err)
	require.Equal(t, 10.0, det)
}

func TestApproxEqual(t *testing.T) {
	require.True(t, ApproxEqual(Matrix{{1, 2}}, Matrix{{1 + 1e-12, 2}}, 1e-9))
	require.False(t, ApproxEqual(Matrix{{1, 2}}, Matrix{{1, 2}, {3, 4}}, 1e-9))
	require.False(t, ApproxEqual(Matrix{{math.NaN()}}, Matrix{{math.NaN()}}, 1))
}

func TestCloneIsDeep(t *testing.T) {
	m := Matrix{{1, 2}, {3, 4}}
	c := m.Clone()
	c[1][1] = 0
	require.Equal(t, 4.0, m[1][1])

	v := Vector{1, 2}
	vc := v.Clone()
	vc[0] = 9
	require.Equal(t, 1.0, v[0])
}
