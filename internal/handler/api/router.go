package api

import (
	"github.com/labstack/echo/v4"

	xhttp "CarbonPulse/pkg/http"
)

// Router bundles the API handlers behind a single route registrar.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(measurements *MeasurementsHandler, renewals *RenewalsHandler, market *MarketHandler, reports *ReportsHandler) *Router {
	return &Router{handlers: []xhttp.Handler{measurements, renewals, market, reports}}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}
