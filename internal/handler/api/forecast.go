// Package api exposes forecasting and model comparison over HTTP.
package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"GrowthOpt/internal/dl"
	"GrowthOpt/internal/domain/models"
	"GrowthOpt/internal/domain/repository"
	"GrowthOpt/internal/usecase"
	xhttp "GrowthOpt/pkg/http"
	xlogger "GrowthOpt/pkg/logger"
)

// ForecastHandler serves forecast, model invalidation and sequential test
// requests.
type ForecastHandler struct {
	log        *xlogger.Logger
	forecaster *usecase.Forecaster
	seq        *usecase.SeqTester
	quotes     repository.Quotes
}

func NewForecastHandler(log *xlogger.Logger, forecaster *usecase.Forecaster, seq *usecase.SeqTester, quotes repository.Quotes) *ForecastHandler {
	return &ForecastHandler{
		log:        log.With("api"),
		forecaster: forecaster,
		seq:        seq,
		quotes:     quotes,
	}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/forecast", h.Forecast)
	g.DELETE("/forecast", h.Invalidate)
	g.POST("/seqtest", h.SeqTest)

	e.GET("/healthz", h.Health)
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	req := &models.ForecastHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	result, err := h.forecaster.Forecast(c.Request().Context(), usecase.ForecastRequest{
		Tickers:   req.Tickers,
		Date:      date,
		Phenotype: req.Phenotype,
	})
	if err != nil {
		// Model failures are a property of the requested configuration,
		// not of the service.
		if errors.Is(err, dl.ErrModel) {
			return xhttp.UnprocessableResponse(c, err.Error())
		}

		h.log.Error("forecast failed", xlogger.Error(err))

		return xhttp.InternalServerErrorResponse(c)
	}

	return xhttp.SuccessResponse(c, &models.ForecastHTTPResponse{
		Tickers:   result.Forecast.Tickers,
		Date:      result.Forecast.Date.Format(time.DateOnly),
		Mean:      result.Forecast.Mean,
		Std:       result.Forecast.Std,
		Weights:   result.Weights,
		LLH:       result.LLH,
		IR:        result.IR,
		ModelKey:  result.ModelKey,
		Retrained: result.Retrained,
	})
}

func (h *ForecastHandler) Invalidate(c echo.Context) error {
	req := &models.ForecastHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	key, err := h.forecaster.InvalidateModel(c.Request().Context(), usecase.ForecastRequest{
		Tickers:   req.Tickers,
		Date:      date,
		Phenotype: req.Phenotype,
	})
	if err != nil {
		h.log.Error("invalidate failed", xlogger.Error(err))

		return xhttp.InternalServerErrorResponse(c)
	}

	return xhttp.SuccessResponse(c, map[string]string{"model_key": key})
}

func (h *ForecastHandler) SeqTest(c echo.Context) error {
	req := &models.SeqTestHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.seq.Test(req.Sample, req.PValue)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	return xhttp.SuccessResponse(c, result)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	if err := h.quotes.Health(c.Request().Context()); err != nil {
		h.log.Error("health check failed", xlogger.Error(err))

		return xhttp.InternalServerErrorResponse(c)
	}

	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
