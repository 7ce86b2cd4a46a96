package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/peerwatch/geoipdb"
)

// Opener opens the database file at path.
type Opener func(path string) (*geoipdb.Database, error)

type metrics struct {
	reloads     *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

func newMetrics(r prometheus.Registerer, holder *Holder) *metrics {
	promauto.With(r).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "geoipd_database_cached_countries",
		Help: "Number of records whose country is memoized.",
	}, func() float64 { return float64(holder.CachedCountries()) })

	return &metrics{
		reloads: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "geoipd_database_reloads_total",
			Help: "Total number of database reloads, by result.",
		}, []string{"result"}),
		lastSuccess: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "geoipd_database_last_reload_success_timestamp_seconds",
			Help: "Time of the last successful database load.",
		}),
	}
}

// Watcher reloads a database into a Holder whenever its file changes. A
// reload that fails leaves the previous database in place.
//
// New files must be moved into place with a rename. Truncating or rewriting
// a file that is memory-mapped corrupts the database still in use.
type Watcher struct {
	path     string
	holder   *Holder
	open     Opener
	debounce time.Duration
	logger   *slog.Logger
	metrics  *metrics
}

// NewWatcher returns a Watcher for the database file at path. Changes are
// coalesced until the file has been quiet for debounce.
func NewWatcher(path string, holder *Holder, open Opener, debounce time.Duration, logger *slog.Logger, reg prometheus.Registerer) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		open:     open,
		debounce: debounce,
		logger:   logger,
		metrics:  newMetrics(reg, holder),
	}
}

// Load opens the file and installs it, replacing the current database.
func (w *Watcher) Load() error {
	db, err := w.open(w.path)
	if err != nil {
		w.metrics.reloads.WithLabelValues("failure").Inc()
		return fmt.Errorf("loading database: %w", err)
	}
	if err := w.holder.Replace(db); err != nil {
		w.logger.Warn("closing replaced database failed", "path", w.path, "error", err)
	}
	w.metrics.reloads.WithLabelValues("success").Inc()
	w.metrics.lastSuccess.SetToCurrentTime()
	w.logger.Info("database loaded",
		"path", w.path,
		"type", db.Type(),
		"build_time", db.BuildEpoch(),
		"node_count", db.NodeCount(),
	)
	return nil
}

// Run watches the file until ctx is done. The directory is watched rather
// than the file so that replacing the file by rename is seen as well.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", w.path, err)
	}
	w.logger.Info("watching database for changes", "path", w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			w.logger.Debug("database file changed", "path", w.path, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "path", w.path, "error", err)
		case <-fire:
			fire = nil
			if err := w.Load(); err != nil {
				w.logger.Error("database reload failed, keeping previous database", "path", w.path, "error", err)
			}
		}
	}
}
