package curvefit

import (
	"fmt"
	"math"

	"FinFit/pkg/linalg"
)

// Result is one fitted curve and its one-step-ahead forecast.
type Result struct {
	Kind     Kind
	Weights  Weights
	Forecast float64 // prediction for period Periods+1
	Periods  int     // number of observed periods N
}

// Strategy fits one curve family to a series through a Solver.
type Strategy interface {
	Kind() Kind
	Fit(x linalg.Matrix, y linalg.Vector) (Result, error)
}

// StrategyOption configures a strategy.
type StrategyOption func(*strategyConfig)

type strategyConfig struct {
	logDomain Policy
}

// WithLogDomainPolicy sets the behaviour when a logarithm of a non-positive
// observation or predictor is needed.
func WithLogDomainPolicy(p Policy) StrategyOption {
	return func(c *strategyConfig) {
		c.logDomain = p
	}
}

// curve is the shared shape of the four strategies: optionally take the log
// of the predictor column and/or a copy of the observations, solve, then map
// the weights back through the model's forward formula at t = N+1.
type curve struct {
	kind     Kind
	logX     bool
	logY     bool
	forecast func(w Weights, next float64) float64
	solver   Solver
	cfg      strategyConfig
}

// NewStrategy builds the strategy for kind on top of solver.
func NewStrategy(kind Kind, solver Solver, opts ...StrategyOption) (Strategy, error) {
	if solver == nil {
		solver = defaultSolver
	}
	cfg := strategyConfig{logDomain: Propagate}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &curve{kind: kind, solver: solver, cfg: cfg}
	switch kind {
	case KindLinear:
		c.forecast = func(w Weights, next float64) float64 {
			return w.Intercept + next*w.Slope
		}
	case KindLogarithmic:
		c.logX = true
		c.forecast = func(w Weights, next float64) float64 {
			return w.Intercept + math.Log(next)*w.Slope
		}
	case KindExponential:
		c.logY = true
		c.forecast = func(w Weights, next float64) float64 {
			return math.Exp(w.Intercept) * math.Exp(next*w.Slope)
		}
	case KindPower:
		c.logX = true
		c.logY = true
		c.forecast = func(w Weights, next float64) float64 {
			return math.Exp(w.Intercept) * math.Pow(next, w.Slope)
		}
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownKind)
	}
	return c, nil
}

// NewLinear returns the linear strategy.
func NewLinear(solver Solver, opts ...StrategyOption) Strategy { return mustStrategy(KindLinear, solver, opts) }

// NewLogarithmic returns the logarithmic strategy.
func NewLogarithmic(solver Solver, opts ...StrategyOption) Strategy {
	return mustStrategy(KindLogarithmic, solver, opts)
}

// NewExponential returns the exponential strategy.
func NewExponential(solver Solver, opts ...StrategyOption) Strategy {
	return mustStrategy(KindExponential, solver, opts)
}

// NewPower returns the power-curve strategy.
func NewPower(solver Solver, opts ...StrategyOption) Strategy { return mustStrategy(KindPower, solver, opts) }

func mustStrategy(kind Kind, solver Solver, opts []StrategyOption) Strategy {
	s, err := NewStrategy(kind, solver, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (c *curve) Kind() Kind { return c.kind }

// Fit implements Strategy. Neither x nor y is modified.
func (c *curve) Fit(x linalg.Matrix, y linalg.Vector) (Result, error) {
	if err := checkDesign(x, y); err != nil {
		return Result{}, fmt.Errorf("%s: %w", c.kind, err)
	}

	design := x
	if c.logX {
		var err error
		if design, err = c.logPredictor(x); err != nil {
			return Result{}, fmt.Errorf("%s: %w", c.kind, err)
		}
	}
	obs := y
	if c.logY {
		var err error
		if obs, err = c.logObservations(y); err != nil {
			return Result{}, fmt.Errorf("%s: %w", c.kind, err)
		}
	}

	w, err := c.solver.Solve(design, obs)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", c.kind, err)
	}

	n := len(x)
	return Result{
		Kind:     c.kind,
		Weights:  w,
		Forecast: c.forecast(w, float64(n+1)),
		Periods:  n,
	}, nil
}

// logPredictor returns a new design with rows (1, ln(x[i][1])).
func (c *curve) logPredictor(x linalg.Matrix) (linalg.Matrix, error) {
	out := make(linalg.Matrix, len(x))
	for i, row := range x {
		if c.cfg.logDomain == Reject && !(row[1] > 0) {
			return nil, fmt.Errorf("predictor %g at row %d: %w", row[1], i, ErrInvalidLogDomain)
		}
		out[i] = []float64{1, math.Log(row[1])}
	}
	return out, nil
}

// logObservations returns ln(y) as a copy; y itself is left untouched.
func (c *curve) logObservations(y linalg.Vector) (linalg.Vector, error) {
	out := make(linalg.Vector, len(y))
	for i, v := range y {
		if c.cfg.logDomain == Reject && !(v > 0) {
			return nil, fmt.Errorf("observation %g at period %d: %w", v, i+1, ErrInvalidLogDomain)
		}
		out[i] = math.Log(v)
	}
	return out, nil
}
