package api

import (
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"

	models "CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/ledger"
	"CarbonPulse/internal/renewal"
	icache "CarbonPulse/internal/service/cache"
	"CarbonPulse/internal/service/metrics"
	"CarbonPulse/internal/usecase"
	"CarbonPulse/pkg/fixed"
	xhttp "CarbonPulse/pkg/http"
	xlogger "CarbonPulse/pkg/logger"
)

// MeasurementsHandler exposes the ledger: sector activation, ingest,
// stats, health and gap queries.
type MeasurementsHandler struct {
	logger    *xlogger.Logger
	store     *ledger.Store
	processor *usecase.MeasurementProcessor
	renewals  *renewal.Engine
	archive   domrepo.Archive
	cache     icache.BytesCache
}

func NewMeasurementsHandler(logger *xlogger.Logger, store *ledger.Store, processor *usecase.MeasurementProcessor, renewals *renewal.Engine) *MeasurementsHandler {
	metrics.Register()
	return &MeasurementsHandler{logger: logger, store: store, processor: processor, renewals: renewals}
}

// SetCache enables read-path caching.
func (h *MeasurementsHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetArchive enables the raw-measurement history endpoint.
func (h *MeasurementsHandler) SetArchive(a domrepo.Archive) { h.archive = a }

func (h *MeasurementsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/sectors", h.ActivateSector)
	g.POST("/measurements", h.Record)
	g.POST("/measurements/batch", h.RecordBatch)
	g.GET("/measurements/history", h.History)
	g.GET("/stats", h.Stats)
	g.GET("/health", h.Health)
	g.GET("/gap", h.Gap)
	g.POST("/gap", h.SetGap)
}

func (h *MeasurementsHandler) ActivateSector(c echo.Context) error {
	req := &models.ActivateSectorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	baseline, err := fixed.Parse(req.Baseline)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid baseline: %v", err))
	}
	sector := domrepo.NormalizeSector(req.Sector)
	if err := h.store.Activate(req.Entity, models.EntityKind(req.Kind), sector, baseline); err != nil {
		h.logger.Error("activate sector error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{"entity": req.Entity, "sector": sector})
}

func (h *MeasurementsHandler) Record(c echo.Context) error {
	req := &models.RecordMeasurementRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, err := toMeasurement(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid value: %v", err))
	}
	hs, err := h.processor.Process(c.Request().Context(), m)
	if err != nil {
		h.logger.Error("record measurement error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, hs)
}

func (h *MeasurementsHandler) RecordBatch(c echo.Context) error {
	req := &models.RecordBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ms := make([]*models.Measurement, 0, len(req.Records))
	for i := range req.Records {
		m, err := toMeasurement(&req.Records[i])
		if err != nil {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("record %d: invalid value: %v", i, err))
		}
		ms = append(ms, m)
	}
	// Batch semantics are per-record; the first failure is reported after
	// the rest of the batch has been applied.
	if err := h.processor.ProcessBatch(c.Request().Context(), ms); err != nil {
		h.logger.Error("record batch error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]int{"accepted": len(ms)})
}

// History serves raw measurements from the archive. Defaults cover the
// last 24 hours, capped at 1000 rows.
func (h *MeasurementsHandler) History(c echo.Context) error {
	if h.archive == nil {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundError("history not available"))
	}
	entity := c.QueryParam("entity")
	sector := domrepo.NormalizeSector(c.QueryParam("sector"))
	if entity == "" || sector == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("entity and sector required"))
	}
	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 1000)

	ms, err := h.archive.Query(c.Request().Context(), entity, sector, from, to, limit)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("history").Inc()
		h.logger.Error("history query error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"entity":       entity,
		"sector":       sector,
		"measurements": ms,
	})
}

func (h *MeasurementsHandler) Stats(c echo.Context) error {
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sector := domrepo.NormalizeSector(req.Sector)

	cacheKey := "stats:" + req.Entity + ":" + sector
	if h.cache != nil {
		if b, ok, _ := h.cache.GetBytes(cacheKey); ok {
			return c.JSONBlob(200, b)
		}
	}
	st, err := h.store.Stats(req.Entity, sector)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	if h.cache != nil {
		if b, err := json.Marshal(st); err == nil {
			_ = h.cache.SetBytes(cacheKey, b, 5*time.Second)
		}
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *MeasurementsHandler) Health(c echo.Context) error {
	req := &models.HealthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	hs, err := h.store.Health(req.Entity)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, hs)
}

func (h *MeasurementsHandler) Gap(c echo.Context) error {
	req := &models.GapRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.renewals.Quote(c.Request().Context(), req.Entity)
	if err != nil {
		h.logger.Error("gap quote error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, q)
}

func (h *MeasurementsHandler) SetGap(c echo.Context) error {
	req := &models.SetGapRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	gap, err := toGapState(req)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid gap value: %v", err))
	}
	if err := h.store.SetGap(req.Entity, gap); err != nil {
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, gap)
}

func toMeasurement(req *models.RecordMeasurementRequest) (*models.Measurement, error) {
	value, err := fixed.Parse(req.Value)
	if err != nil {
		return nil, err
	}
	ts := req.Timestamp
	if ts > 1e11 { // ms
		ts /= 1000
	}
	return &models.Measurement{
		Entity:    req.Entity,
		Sector:    domrepo.NormalizeSector(req.Sector),
		Timestamp: ts,
		Value:     value,
	}, nil
}

func toGapState(req *models.SetGapRequest) (models.GapState, error) {
	var gap models.GapState
	var err error
	if gap.CurrentTemperature, err = fixed.Parse(req.CurrentTemperature); err != nil {
		return gap, err
	}
	if gap.TargetTemperature, err = fixed.Parse(req.TargetTemperature); err != nil {
		return gap, err
	}
	if gap.CarbonLevel, err = fixed.Parse(req.CarbonLevel); err != nil {
		return gap, err
	}
	if gap.TargetCarbonLevel, err = fixed.Parse(req.TargetCarbonLevel); err != nil {
		return gap, err
	}
	if gap.AnnualEmissionReduction, err = fixed.Parse(req.AnnualEmissionReduction); err != nil {
		return gap, err
	}
	gap.LastUpdate = time.Now().Unix()
	return gap, nil
}
