package curvefit

import (
	"fmt"
	"math"

	"FinFit/pkg/linalg"
)

// Weights is the coefficient pair of a two-parameter linear model
// y ≈ Intercept·x0 + Slope·x1, in the model's transformed space.
type Weights struct {
	Intercept float64 // w0
	Slope     float64 // w1
}

// Finite reports whether both coefficients are finite numbers.
func (w Weights) Finite() bool {
	return isFinite(w.Intercept) && isFinite(w.Slope)
}

// Solver computes ordinary least-squares weights for a two-column design.
// Implementations must not modify x or y.
type Solver interface {
	Solve(x linalg.Matrix, y linalg.Vector) (Weights, error)
}

// Policy selects how numerically undefined fits are handled.
type Policy int

const (
	// Propagate lets NaN and ±Inf flow into the coefficients and forecast.
	Propagate Policy = iota
	// Reject returns a sentinel error instead.
	Reject
)

// String returns the config name of the policy.
func (p Policy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy maps "propagate" and "reject" to a Policy. Empty means Propagate.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "propagate":
		return Propagate, nil
	case "reject":
		return Reject, nil
	default:
		return Propagate, fmt.Errorf("unknown policy %q", s)
	}
}

// SolverOption configures a solver.
type SolverOption func(*solverConfig)

type solverConfig struct {
	singular Policy
	eps      float64
}

// WithSingularPolicy sets the behaviour for a singular normal matrix.
func WithSingularPolicy(p Policy) SolverOption {
	return func(c *solverConfig) {
		c.singular = p
	}
}

// WithSingularEpsilon sets the |det| threshold at or below which the normal
// matrix counts as singular under the Reject policy. Default 0.
func WithSingularEpsilon(eps float64) SolverOption {
	return func(c *solverConfig) {
		if eps >= 0 {
			c.eps = eps
		}
	}
}

func newSolverConfig(opts []SolverOption) solverConfig {
	cfg := solverConfig{singular: Propagate}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NormalEquations is the closed-form solver w = (XᵗX)⁻¹ Xᵗ Y specialised to
// two columns through the 2x2 inverse.
type NormalEquations struct {
	cfg solverConfig
}

// NewNormalEquations creates the default solver.
func NewNormalEquations(opts ...SolverOption) *NormalEquations {
	return &NormalEquations{cfg: newSolverConfig(opts)}
}

// Solve implements Solver.
func (s *NormalEquations) Solve(x linalg.Matrix, y linalg.Vector) (Weights, error) {
	if err := checkDesign(x, y); err != nil {
		return Weights{}, err
	}

	xt, err := linalg.Transpose(x)
	if err != nil {
		return Weights{}, fmt.Errorf("normal equations: %w", err)
	}
	xtx, err := linalg.Multiply(xt, x)
	if err != nil {
		return Weights{}, fmt.Errorf("normal equations: %w", err)
	}
	if s.cfg.singular == Reject {
		det, _ := linalg.Det2x2(xtx)
		if !isFinite(det) || math.Abs(det) <= s.cfg.eps {
			return Weights{}, fmt.Errorf("det(XᵗX) = %g: %w", det, ErrSingularMatrix)
		}
	}
	inv, err := linalg.Invert2x2(xtx)
	if err != nil {
		return Weights{}, fmt.Errorf("normal equations: %w", err)
	}
	proj, err := linalg.Multiply(inv, xt)
	if err != nil {
		return Weights{}, fmt.Errorf("normal equations: %w", err)
	}
	w, err := linalg.MultiplyVector(proj, y)
	if err != nil {
		return Weights{}, fmt.Errorf("normal equations: %w", err)
	}
	return Weights{Intercept: w[0], Slope: w[1]}, nil
}

var defaultSolver = NewNormalEquations()

// SolveWeights fits y ≈ w0·X[:,0] + w1·X[:,1] with the default normal-equations
// solver. A singular system yields NaN/Inf weights, not an error.
func SolveWeights(x linalg.Matrix, y linalg.Vector) (Weights, error) {
	return defaultSolver.Solve(x, y)
}

// checkDesign enforces len(X) == len(Y) > 0 and exactly two columns per row.
func checkDesign(x linalg.Matrix, y linalg.Vector) error {
	if len(x) == 0 || len(y) == 0 {
		return ErrEmpty
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d rows, %d observations: %w", len(x), len(y), ErrDimensionMismatch)
	}
	for i, row := range x {
		if len(row) != 2 {
			return fmt.Errorf("row %d has %d columns: %w", i, len(row), ErrColumns)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var _ Solver = (*NormalEquations)(nil)
