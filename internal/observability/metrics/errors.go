package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMetrics counts application errors. Errors built through the
// errors package report here via its metrics hook, so every component
// feeds the same counter without importing this package.
type ErrorMetrics struct {
	errorsTotal *prometheus.CounterVec
}

// NewErrorMetrics builds and registers the error counter.
func NewErrorMetrics(registry *prometheus.Registry) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "application_errors_total",
			Help: "Total number of application errors by component and category",
		}, []string{"component", "category"}),
	}

	if err := registerAll(registry, m.errorsTotal); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordError counts one application error.
func (m *ErrorMetrics) RecordError(component, category string) {
	m.errorsTotal.WithLabelValues(component, category).Inc()
}
