package curvefit

import (
	"errors"
	"fmt"
	"math"

	"FinFit/pkg/linalg"

	"gonum.org/v1/gonum/mat"
)

// QR solves the same two-column least-squares problem through a Householder
// QR factorisation instead of forming XᵗX. It is a drop-in Solver for inputs
// where the normal matrix is badly conditioned.
type QR struct {
	cfg solverConfig
}

// NewQR creates a QR-backed solver. Only the singular policy option applies.
func NewQR(opts ...SolverOption) *QR {
	return &QR{cfg: newSolverConfig(opts)}
}

// Solve implements Solver.
func (s *QR) Solve(x linalg.Matrix, y linalg.Vector) (Weights, error) {
	if err := checkDesign(x, y); err != nil {
		return Weights{}, err
	}
	// QR needs at least as many rows as columns.
	if len(x) < 2 {
		return s.singular(fmt.Errorf("%d observation: %w", len(x), ErrSingularMatrix))
	}

	data := make([]float64, 0, len(x)*2)
	for _, row := range x {
		data = append(data, row[0], row[1])
	}
	a := mat.NewDense(len(x), 2, data)
	b := mat.NewVecDense(len(y), y.Clone())

	var qr mat.QR
	qr.Factorize(a)

	var w mat.Dense
	if err := qr.SolveTo(&w, false, b); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return s.singular(fmt.Errorf("condition %g: %w", float64(cond), ErrSingularMatrix))
		}
		return Weights{}, fmt.Errorf("qr solve: %w", err)
	}
	return Weights{Intercept: w.At(0, 0), Slope: w.At(1, 0)}, nil
}

func (s *QR) singular(err error) (Weights, error) {
	if s.cfg.singular == Reject {
		return Weights{}, err
	}
	return Weights{Intercept: math.NaN(), Slope: math.NaN()}, nil
}

// NewSolver returns the solver registered under name ("normal" or "qr").
func NewSolver(name string, opts ...SolverOption) (Solver, error) {
	switch name {
	case "", "normal":
		return NewNormalEquations(opts...), nil
	case "qr":
		return NewQR(opts...), nil
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}

var _ Solver = (*QR)(nil)
