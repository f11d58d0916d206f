package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	icache "CarbonPulse/internal/service/cache"
	"CarbonPulse/internal/service/metrics"
	"CarbonPulse/internal/service/ratelimit"
	"CarbonPulse/internal/usecase"
	xhttp "CarbonPulse/pkg/http"
	xlogger "CarbonPulse/pkg/logger"
)

// ReportsHandler exposes the emissions summary endpoints. Reports walk
// every entity, so they are rate limited and cached.
type ReportsHandler struct {
	logger   *xlogger.Logger
	reporter *usecase.Reporter
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
}

func NewReportsHandler(logger *xlogger.Logger, reporter *usecase.Reporter) *ReportsHandler {
	metrics.Register()
	return &ReportsHandler{logger: logger, reporter: reporter, rl: ratelimit.New()}
}

// SetCache enables report caching.
func (h *ReportsHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/reports")
	g.GET("/emissions", h.Emissions)
	g.GET("/emissions/:entity", h.EntityEmissions)
}

func (h *ReportsHandler) Emissions(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("report_emissions").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":reports", 3, 1) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	if h.cache != nil {
		if b, ok, _ := h.cache.GetBytes("report:emissions"); ok {
			return c.JSONBlob(http.StatusOK, b)
		}
	}
	rep, err := h.reporter.EmissionsReport()
	if err != nil {
		metrics.QueryErrors.WithLabelValues("report_emissions").Inc()
		h.logger.Error("emissions report error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(rep); err == nil {
			_ = h.cache.SetBytes("report:emissions", b, 30*time.Second)
		}
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ReportsHandler) EntityEmissions(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("report_entity").Observe(time.Since(start).Seconds()) }()

	entity := c.Param("entity")
	if entity == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("entity required"))
	}
	rep, err := h.reporter.EntityReport(entity)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("report_entity").Inc()
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rep)
}
