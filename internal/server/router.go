// Package server exposes country lookups over HTTP.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peerwatch/geoipdb/internal/lookup"
)

// NewRouter builds the HTTP handler. Metrics are registered with reg and
// served from it at /metrics.
func NewRouter(src lookup.CountryLookup, reg *prometheus.Registry, logger *slog.Logger) *gin.Engine {
	m := newMetrics(reg)

	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(m.instrument())
	router.Use(gin.Recovery())

	h := &handler{lookup: src, metrics: m}
	router.GET("/health", h.health)
	router.GET("/ready", h.ready)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	api := router.Group("/api/v1")
	{
		api.GET("/country/:ip", h.country)
		api.POST("/check", h.check)
		api.GET("/metadata", h.metadata)
	}
	return router
}
