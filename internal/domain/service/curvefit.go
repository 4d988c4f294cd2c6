package service

import (
	"FinFit/internal/services/curvefit"
	"FinFit/pkg/linalg"
)

// CurveFitter fits every configured curve family to one series.
type CurveFitter interface {
	FitAll(x linalg.Matrix, y linalg.Vector) ([]curvefit.Result, error)
	FitKinds(x linalg.Matrix, y linalg.Vector, kinds []curvefit.Kind) ([]curvefit.Result, error)
	Kinds() []curvefit.Kind
}

var _ CurveFitter = (*curvefit.Fitter)(nil)
