package server

import (
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerwatch/geoipdb/internal/lookup"
)

// CountryResponse is returned by GET /api/v1/country/:ip.
type CountryResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Found   bool   `json:"found"`
	Error   string `json:"error,omitempty"`
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	IP               string   `json:"ip" binding:"required"`
	AllowedCountries []string `json:"allowed_countries" binding:"required,min=1"`
}

// CheckResponse is returned by POST /api/v1/check.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Country string `json:"country"`
	Error   string `json:"error,omitempty"`
}

// MetadataResponse is returned by GET /api/v1/metadata.
type MetadataResponse struct {
	DatabaseType             string            `json:"database_type"`
	Description              map[string]string `json:"description,omitempty"`
	Languages                []string          `json:"languages,omitempty"`
	BinaryFormatMajorVersion uint              `json:"binary_format_major_version"`
	BinaryFormatMinorVersion uint              `json:"binary_format_minor_version"`
	IPVersion                uint              `json:"ip_version"`
	RecordSize               uint              `json:"record_size"`
	NodeCount                uint              `json:"node_count"`
	BuildTime                time.Time         `json:"build_time"`
}

type handler struct {
	lookup  lookup.CountryLookup
	metrics *metrics
}

// health reports liveness.
func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready reports whether a database is loaded.
func (h *handler) ready(c *gin.Context) {
	if err := h.lookup.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// resolve parses raw and looks it up. On failure it returns the HTTP status
// and message to report.
func (h *handler) resolve(raw string) (country string, found bool, status int, msg string) {
	addr, err := netip.ParseAddr(raw)
	if err != nil || addr.Zone() != "" {
		h.metrics.lookups.WithLabelValues(resultInvalid).Inc()
		return "", false, http.StatusBadRequest, "invalid IP address"
	}
	country, found, err = h.lookup.LookupCountry(addr)
	switch {
	case errors.Is(err, lookup.ErrNotLoaded):
		h.metrics.lookups.WithLabelValues(resultError).Inc()
		return "", false, http.StatusServiceUnavailable, "database not loaded"
	case err != nil:
		slog.Error("country lookup failed", "ip", raw, "error", err)
		h.metrics.lookups.WithLabelValues(resultError).Inc()
		return "", false, http.StatusInternalServerError, "lookup failed"
	case !found:
		h.metrics.lookups.WithLabelValues(resultNotFound).Inc()
	default:
		h.metrics.lookups.WithLabelValues(resultFound).Inc()
	}
	return country, found, http.StatusOK, ""
}

// country handles GET /api/v1/country/:ip.
func (h *handler) country(c *gin.Context) {
	ip := c.Param("ip")
	country, found, status, msg := h.resolve(ip)
	if msg != "" {
		c.JSON(status, CountryResponse{IP: ip, Error: msg})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, CountryResponse{IP: ip})
		return
	}
	c.JSON(http.StatusOK, CountryResponse{IP: ip, Country: country, Found: true})
}

// check handles POST /api/v1/check. Addresses that are not in the database
// or have no country are never allowed.
func (h *handler) check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid request: " + err.Error(),
		})
		return
	}

	slog.Debug("check request received", "ip", req.IP, "allowed_countries", req.AllowedCountries)

	country, _, status, msg := h.resolve(req.IP)
	if msg != "" {
		c.JSON(status, CheckResponse{Error: msg})
		return
	}

	allowed := false
	if country != "" {
		for _, ac := range req.AllowedCountries {
			if strings.EqualFold(ac, country) {
				allowed = true
				break
			}
		}
	}
	c.JSON(http.StatusOK, CheckResponse{Allowed: allowed, Country: country})
}

// metadata handles GET /api/v1/metadata.
func (h *handler) metadata(c *gin.Context) {
	md, err := h.lookup.Metadata()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, MetadataResponse{
		DatabaseType:             md.DatabaseType,
		Description:              md.Description,
		Languages:                md.Languages,
		BinaryFormatMajorVersion: md.BinaryFormatMajorVersion,
		BinaryFormatMinorVersion: md.BinaryFormatMinorVersion,
		IPVersion:                md.IPVersion,
		RecordSize:               md.RecordSize,
		NodeCount:                md.NodeCount,
		BuildTime:                time.Unix(int64(md.BuildEpoch), 0).UTC(),
	})
}
