// Package observability owns the Prometheus registry and the collector
// sets served through the /metrics endpoint.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ForService("observability")
	})
	return serviceLogger
}

// Metrics bundles every collector set on one private registry.
type Metrics struct {
	registry  *prometheus.Registry
	Visits    *metrics.VisitsMetrics
	Datastore *metrics.DatastoreMetrics
	HTTP      *metrics.HTTPMetrics
	Errors    *metrics.ErrorMetrics
}

// NewMetrics builds a fresh registry with every collector set
// registered on it.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	visitsMetrics, err := metrics.NewVisitsMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("creating visits metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("creating datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("creating http metrics: %w", err)
	}

	errorMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("creating error metrics: %w", err)
	}

	m := &Metrics{
		registry:  registry,
		Visits:    visitsMetrics,
		Datastore: datastoreMetrics,
		HTTP:      httpMetrics,
		Errors:    errorMetrics,
	}

	initializeErrorTracking(errorMetrics)

	return m, nil
}

// RegisterHandlers mounts the metrics endpoint on mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}

// Handler returns the HTTP handler serving the metrics registry. The web
// server mounts this on its own router.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(getLogger().Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// errorHookOnce ensures the error hook is registered only once even when
// multiple Metrics instances are created. The first instance wins.
var errorHookOnce sync.Once

// initializeErrorTracking registers a hook that counts every error built
// through the errors package, labelled by component and category.
func initializeErrorTracking(errorMetrics *metrics.ErrorMetrics) {
	errorHookOnce.Do(func() {
		errors.AddErrorHook(func(ee *errors.EnhancedError) {
			errorMetrics.RecordError(ee.GetComponent(), string(ee.GetCategory()))
		})
	})
}
