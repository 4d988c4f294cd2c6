package linalg

import "errors"

// Every message is prefixed with "linalg:" so it can be grepped in logs.
// Callers match with errors.Is; wrapping with fmt.Errorf("...: %w") is fine.
var (
	// ErrEmpty is returned for a matrix with no rows or a row with no columns.
	ErrEmpty = errors.New("linalg: empty matrix")

	// ErrRagged is returned when rows of a matrix have different lengths.
	ErrRagged = errors.New("linalg: ragged matrix")

	// ErrDimensionMismatch indicates incompatible operand shapes,
	// e.g. Multiply with cols(A) != rows(B).
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrNotSquare2x2 is returned by the 2x2 routines for any other shape.
	ErrNotSquare2x2 = errors.New("linalg: matrix is not 2x2")
)
