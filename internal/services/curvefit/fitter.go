package curvefit

import (
	"errors"
	"fmt"

	"FinFit/pkg/linalg"
)

// Fitter runs a fixed set of strategies over one series.
type Fitter struct {
	strategies []Strategy
}

// NewFitter builds one strategy per kind, all sharing solver. An empty kinds
// list selects AllKinds.
func NewFitter(solver Solver, kinds []Kind, opts ...StrategyOption) (*Fitter, error) {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}
	f := &Fitter{strategies: make([]Strategy, 0, len(kinds))}
	for _, k := range kinds {
		s, err := NewStrategy(k, solver, opts...)
		if err != nil {
			return nil, err
		}
		f.strategies = append(f.strategies, s)
	}
	return f, nil
}

// NewFitterFromStrategies wraps already constructed strategies.
func NewFitterFromStrategies(strategies ...Strategy) *Fitter {
	return &Fitter{strategies: strategies}
}

// Kinds lists the configured kinds in run order.
func (f *Fitter) Kinds() []Kind {
	out := make([]Kind, len(f.strategies))
	for i, s := range f.strategies {
		out[i] = s.Kind()
	}
	return out
}

// Only returns a Fitter restricted to kinds, keeping the configured order
// of those that are present.
func (f *Fitter) Only(kinds []Kind) *Fitter {
	if len(kinds) == 0 {
		return f
	}
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	out := &Fitter{}
	for _, s := range f.strategies {
		if want[s.Kind()] {
			out.strategies = append(out.strategies, s)
		}
	}
	return out
}

// FitAll fits every strategy against the same x and y.
//
// A shape problem shared by all strategies (empty input, row mismatch,
// column count) returns no results. Otherwise each strategy runs
// independently: results of the strategies that succeeded are returned in
// order and per-strategy failures are joined into the error.
func (f *Fitter) FitAll(x linalg.Matrix, y linalg.Vector) ([]Result, error) {
	if err := checkDesign(x, y); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(f.strategies))
	var errs []error
	for _, s := range f.strategies {
		r, err := s.Fit(x, y)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("fit: %w", errors.Join(errs...))
	}
	return results, nil
}

// FitKinds is FitAll restricted to kinds. An empty list fits every
// configured strategy.
func (f *Fitter) FitKinds(x linalg.Matrix, y linalg.Vector, kinds []Kind) ([]Result, error) {
	return f.Only(kinds).FitAll(x, y)
}
