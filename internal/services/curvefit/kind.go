package curvefit

import (
	"fmt"
	"strings"
)

// Kind identifies a curve family.
type Kind string

const (
	// KindLinear is y = w0 + w1·t.
	KindLinear Kind = "linear"
	// KindLogarithmic is y = w0 + w1·ln(t).
	KindLogarithmic Kind = "logarithmic"
	// KindExponential is y = e^w0 · e^(w1·t).
	KindExponential Kind = "exponential"
	// KindPower is y = e^w0 · t^w1.
	KindPower Kind = "power"
)

var allKinds = []Kind{KindLinear, KindLogarithmic, KindExponential, KindPower}

var kindLabels = map[Kind]string{
	KindLinear:      "Linear",
	KindLogarithmic: "Logarithmic",
	KindExponential: "Exponential",
	KindPower:       "Power Curve",
}

var kindFormulas = map[Kind]string{
	KindLinear:      "y = w0 + w1*t",
	KindLogarithmic: "y = w0 + w1*ln(t)",
	KindExponential: "y = exp(w0) * exp(w1*t)",
	KindPower:       "y = exp(w0) * t^w1",
}

// AllKinds returns every supported kind in report order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }

// Label is the human-readable name used in reports.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// Formula describes the fitted model in terms of the period index t.
func (k Kind) Formula() string { return kindFormulas[k] }

// ParseKind parses a case-insensitive kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindLabels[k]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// ParseKinds parses names in order. An empty list means AllKinds.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return AllKinds(), nil
	}
	out := make([]Kind, 0, len(names))
	seen := make(map[Kind]bool, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}
