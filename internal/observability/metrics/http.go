package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics observes the API server at two levels: raw requests per
// route, and the logical handler operations behind them. Path labels are
// always the route pattern (e.g. /api/v1/visits), never the raw URL, to
// keep cardinality bounded.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	responseSize    *prometheus.HistogramVec

	handlerOps      *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec
}

// NewHTTPMetrics builds and registers the HTTP collectors.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		// error_type is the error category when known, else client/server
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP request errors",
		}, []string{"method", "path", "error_type"}),

		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6), // 100B to ~100MB, CSV exports sit at the top
		}, []string{"method", "path"}),

		// handler: visits, report; status: hit, miss, success, error
		handlerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_handler_operations_total",
			Help: "Total number of handler operations",
		}, []string{"handler", "operation", "status"}),

		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_handler_operation_duration_seconds",
			Help:    "Time taken for handler operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"handler", "operation"}),

		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_handler_operation_errors_total",
			Help: "Total number of handler operation errors",
		}, []string{"handler", "operation", "error_type"}),
	}

	err := registerAll(registry,
		m.requestsTotal, m.requestDuration, m.requestErrors, m.responseSize,
		m.handlerOps, m.handlerDuration, m.handlerErrors)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest counts one request and observes its duration.
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordHTTPRequestError counts one failed request by error class.
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	m.requestErrors.WithLabelValues(method, path, errorType).Inc()
}

// RecordHTTPResponseSize observes the bytes written for one response.
func (m *HTTPMetrics) RecordHTTPResponseSize(method, path string, sizeBytes int64) {
	m.responseSize.WithLabelValues(method, path).Observe(float64(sizeBytes))
}

// RecordHandlerOperation counts one logical operation outcome.
func (m *HTTPMetrics) RecordHandlerOperation(handler, operation, status string) {
	m.handlerOps.WithLabelValues(handler, operation, status).Inc()
}

// RecordHandlerOperationDuration observes how long an operation took.
func (m *HTTPMetrics) RecordHandlerOperationDuration(handler, operation string, duration float64) {
	m.handlerDuration.WithLabelValues(handler, operation).Observe(duration)
}

// RecordHandlerOperationError counts one failed operation by error class.
func (m *HTTPMetrics) RecordHandlerOperationError(handler, operation, errorType string) {
	m.handlerErrors.WithLabelValues(handler, operation, errorType).Inc()
}
