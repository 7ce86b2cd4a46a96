package server

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultFound    = "found"
	resultNotFound = "not_found"
	resultInvalid  = "invalid"
	resultError    = "error"
)

type metrics struct {
	lookups         *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		lookups: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "geoipd_lookups_total",
			Help: "Total number of country lookups, by result.",
		}, []string{"result"}),
		requestDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoipd_request_duration_seconds",
			Help:    "Time spent serving HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"method", "route", "status"}),
	}
}

func (m *metrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// requestLogger logs each request with slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		statusCode := c.Writer.Status()
		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}

		switch {
		case len(c.Errors) > 0:
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		case statusCode >= 500:
			logger.Error("request completed", attrs...)
		case statusCode >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Debug("request completed", attrs...)
		}
	}
}
