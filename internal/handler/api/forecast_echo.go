package api

import (
	"errors"
	"net/http"
	"time"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
	apimetrics "FinFit/internal/service/metrics"
	"FinFit/internal/service/ratelimit"
	"FinFit/internal/services/curvefit"
	"FinFit/internal/usecase"
	xhttp "FinFit/pkg/http"
	xlogger "FinFit/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler serves on-demand fits and stored forecasts.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	svc     *usecase.ForecastService
	store   domrepo.ForecastStore
	limiter *ratelimit.Limiter
}

// NewForecastEchoHandler wires the handler. store and limiter may be nil.
func NewForecastEchoHandler(logger *xlogger.Logger, svc *usecase.ForecastService, store domrepo.ForecastStore, limiter *ratelimit.Limiter) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, svc: svc, store: store, limiter: limiter}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(h.limiter.Middleware())
	}
	g.POST("/forecast", h.Forecast)
	g.GET("/models", h.Models)
	g.GET("/forecasts", h.Forecasts)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	defer func() {
		apimetrics.APILatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
	}()

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		apimetrics.APIErrors.WithLabelValues("forecast").Inc()
		return xhttp.AppErrorResponse(c, verr)
	}

	res, err := h.svc.Forecast(c.Request().Context(), req)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("forecast").Inc()
		switch {
		case errors.Is(err, curvefit.ErrUnknownKind):
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
		case errors.Is(err, usecase.ErrNoForecast):
			return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(err.Error()).WithError(err))
		}
		h.logger.Error("forecast usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Models(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
	return xhttp.SuccessResponse(c, h.svc.Models())
}

func (h *ForecastEchoHandler) Forecasts(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("forecast store is not configured"))
	}
	start := time.Now()
	defer func() {
		apimetrics.APILatency.WithLabelValues("forecasts").Observe(time.Since(start).Seconds())
	}()

	q := &models.ForecastQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, q); verr != nil {
		apimetrics.APIErrors.WithLabelValues("forecasts").Inc()
		return xhttp.AppErrorResponse(c, verr)
	}
	to := xhttp.ParseTimeDefault(q.To, time.Now().UTC())
	from := xhttp.ParseTimeDefault(q.From, to.Add(-30*24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to").WithParam("from", q.From).WithParam("to", q.To))
	}

	rows, err := h.store.Query(c.Request().Context(), q.Symbol, from, to, q.Limit)
	if err != nil {
		apimetrics.APIErrors.WithLabelValues("forecasts").Inc()
		h.logger.Error("forecast query error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("query failed").WithError(err))
	}
	if rows == nil {
		rows = []*models.Forecast{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			h.logger.Warn("health check failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("store unavailable").WithError(err))
		}
	}
	return xhttp.DataResponse(c, http.StatusOK, map[string]string{"status": "ok"})
}
