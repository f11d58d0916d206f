package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/renewal"
	xhttp "CarbonPulse/pkg/http"
	xlogger "CarbonPulse/pkg/logger"
)

// RenewalsHandler exposes renewal execution and status.
type RenewalsHandler struct {
	logger  *xlogger.Logger
	engine  *renewal.Engine
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
}

func NewRenewalsHandler(logger *xlogger.Logger, engine *renewal.Engine, events domrepo.EventPublisher, metrics domrepo.Metrics) *RenewalsHandler {
	return &RenewalsHandler{logger: logger, engine: engine, events: events, metrics: metrics}
}

func (h *RenewalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/renewals", h.Execute)
	g.GET("/renewals", h.Status)
}

func (h *RenewalsHandler) Execute(c echo.Context) error {
	req := &models.ExecuteRenewalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sector := domrepo.NormalizeSector(req.Sector)

	res, err := h.engine.Execute(req.Entity, sector)
	if err != nil {
		h.logger.Error("execute renewal error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	if res.Ticks > 0 {
		h.metrics.RecordRenewal(req.Entity, sector)
		temp, carbon := res.TemperatureReduction, res.CarbonReduction
		e := &models.Event{
			Type:                 models.EventRenewalCompleted,
			Entity:               req.Entity,
			Sector:               sector,
			Timestamp:            time.Now().Unix(),
			Ticks:                res.Ticks,
			TemperatureReduction: &temp,
			CarbonReduction:      &carbon,
		}
		if h.events != nil {
			if err := h.events.Publish(c.Request().Context(), e); err != nil {
				h.logger.Error("renewal event publish error", xlogger.Error(err))
			} else {
				h.metrics.RecordEvent(string(models.EventRenewalCompleted))
			}
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RenewalsHandler) Status(c echo.Context) error {
	req := &models.RenewalStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	count, cumulative, last, err := h.engine.Status(req.Entity, domrepo.NormalizeSector(req.Sector))
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"entity":               req.Entity,
		"sector":               domrepo.NormalizeSector(req.Sector),
		"renewal_count":        count,
		"cumulative_reduction": cumulative,
		"last_renewal":         last,
	})
}
