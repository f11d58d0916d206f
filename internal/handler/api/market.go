package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
	"CarbonPulse/internal/market"
	"CarbonPulse/pkg/fixed"
	xhttp "CarbonPulse/pkg/http"
	xlogger "CarbonPulse/pkg/logger"
)

// MarketHandler exposes the credit market: intents, settlement, positions
// and the pause control.
type MarketHandler struct {
	logger  *xlogger.Logger
	market  *market.Market
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
}

func NewMarketHandler(logger *xlogger.Logger, m *market.Market, events domrepo.EventPublisher, metrics domrepo.Metrics) *MarketHandler {
	return &MarketHandler{logger: logger, market: m, events: events, metrics: metrics}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/market")
	g.POST("/buy", h.DeclareBuy)
	g.POST("/sell", h.DeclareSell)
	g.POST("/trades", h.Trade)
	g.GET("/positions", h.Positions)
	g.GET("/positions/:participant", h.Position)
	g.POST("/pause", h.Pause)
	g.POST("/resume", h.Resume)
}

func (h *MarketHandler) DeclareBuy(c echo.Context) error {
	req := &models.IntentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.market.DeclareBuy(c.Request().Context(), req.Participant); err != nil {
		h.logger.Error("declare buy error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"participant": req.Participant, "intent": "buy"})
}

func (h *MarketHandler) DeclareSell(c echo.Context) error {
	req := &models.IntentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.market.DeclareSell(c.Request().Context(), req.Participant); err != nil {
		h.logger.Error("declare sell error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"participant": req.Participant, "intent": "sell"})
}

func (h *MarketHandler) Trade(c echo.Context) error {
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	credits, err := fixed.Parse(req.CreditAmount)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid credit_amount: %v", err))
	}
	usd, err := fixed.Parse(req.USDAmount)
	if err != nil {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("invalid usd_amount: %v", err))
	}
	t := models.Trade{
		Buyer:        req.Buyer,
		Seller:       req.Seller,
		CreditAmount: credits,
		USDAmount:    usd,
		Entity:       req.Entity,
		Sector:       domrepo.NormalizeSector(req.Sector),
	}
	if err := h.market.Trade(c.Request().Context(), t); err != nil {
		h.logger.Error("trade error", xlogger.Error(err))
		return DomainErrorResponse(c, err)
	}

	h.metrics.RecordTrade(t.Entity, t.Sector)
	if h.events != nil {
		ca, ua := t.CreditAmount, t.USDAmount
		e := &models.Event{
			Type:         models.EventTradeSettled,
			Entity:       t.Entity,
			Sector:       t.Sector,
			Timestamp:    time.Now().Unix(),
			Buyer:        t.Buyer,
			Seller:       t.Seller,
			CreditAmount: &ca,
			USDAmount:    &ua,
		}
		if err := h.events.Publish(c.Request().Context(), e); err != nil {
			h.logger.Error("trade event publish error", xlogger.Error(err))
		} else {
			h.metrics.RecordEvent(string(models.EventTradeSettled))
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "settled"})
}

func (h *MarketHandler) Positions(c echo.Context) error {
	positions, buyers, sellers := h.market.Positions()
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"positions":       positions,
		"pending_buyers":  buyers,
		"pending_sellers": sellers,
		"paused":          h.market.Paused(),
	})
}

func (h *MarketHandler) Position(c echo.Context) error {
	participant := c.Param("participant")
	if participant == "" {
		return xhttp.BadRequestResponse(c, xhttp.BadRequestError("participant required"))
	}
	p, ok := h.market.Position(participant)
	if !ok {
		return xhttp.NotFoundResponse(c, xhttp.NotFoundErrorf("no position for %s", participant))
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *MarketHandler) Pause(c echo.Context) error {
	h.market.Pause()
	return xhttp.SuccessResponse(c, map[string]bool{"paused": true})
}

func (h *MarketHandler) Resume(c echo.Context) error {
	h.market.Resume()
	return xhttp.SuccessResponse(c, map[string]bool{"paused": false})
}
