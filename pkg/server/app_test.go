package server

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	internalrepo "FinFit/internal/repository"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/usecase"
	"FinFit/pkg/config"
	xhttp "FinFit/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T) *usecase.ForecastRunner {
	t.Helper()
	fitter, err := curvefit.NewFitter(nil, []curvefit.Kind{curvefit.KindLinear})
	require.NoError(t, err)
	return usecase.NewForecastRunner(internalrepo.NewCSVSeriesSource(nil, nil, nil), fitter, nil, nil, nil, 1)
}

func testConfig(t *testing.T, datasets ...config.Dataset) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	cfg.Datasets = datasets
	cfg.Report.Output = filepath.Join(t.TempDir(), "log.txt")
	return cfg
}

func TestRunWritesReportAndReturns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dividends.csv")
	require.NoError(t, os.WriteFile(path, []byte("A,10,20,30,40\n"), 0o644))

	cfg := testConfig(t, config.Dataset{Name: "Dividends", Path: path})
	app := New(Deps{Config: cfg, Runner: newRunner(t)})
	require.False(t, app.Serving())
	require.NoError(t, app.Run(context.Background()))

	b, err := os.ReadFile(cfg.Report.Output)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Dividends\n")
	assert.Contains(t, string(b), "Company: A\n")
	assert.Contains(t, string(b), "Linear prediction for next quarter = 50")
}

func TestRunReportsMissingDataset(t *testing.T) {
	cfg := testConfig(t, config.Dataset{Name: "Revenues", Path: filepath.Join(t.TempDir(), "missing.csv")})
	app := New(Deps{Config: cfg, Runner: newRunner(t)})
	err := app.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(200, "pong") })
}

func TestRunServesUntilSignal(t *testing.T) {
	cfg := testConfig(t)
	srv := xhttp.NewServer(pingHandler{}, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetrics(false, ""))
	app := New(Deps{Config: cfg, Runner: newRunner(t), HTTP: srv})
	app.signals = make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	app.signals <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
