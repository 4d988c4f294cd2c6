package curvefit

import "errors"

var (
	// ErrEmpty is returned when a fit is requested with no observations.
	ErrEmpty = errors.New("curvefit: no observations")

	// ErrDimensionMismatch is returned when rows(X) != len(Y).
	ErrDimensionMismatch = errors.New("curvefit: design rows do not match observations")

	// ErrColumns is returned when the design matrix does not have exactly two columns.
	ErrColumns = errors.New("curvefit: design matrix must have exactly two columns")

	// ErrSingularMatrix is returned under the Reject policy when XᵗX cannot be inverted.
	ErrSingularMatrix = errors.New("curvefit: singular normal matrix")

	// ErrInvalidLogDomain is returned under the Reject policy when a model
	// needs the logarithm of a non-positive value.
	ErrInvalidLogDomain = errors.New("curvefit: logarithm of non-positive value")

	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("curvefit: unknown model kind")
)
