package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics tracks database work at two levels. The store methods
// count logical operations and their row counts; the query logger times
// individual statements, so one logical operation can contribute several
// duration samples.
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	resultRows        *prometheus.HistogramVec

	connActive prometheus.Gauge
	connIdle   prometheus.Gauge
	connMax    prometheus.Gauge

	slowQueries *prometheus.CounterVec
}

// NewDatastoreMetrics builds and registers the datastore collectors.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		}, []string{"operation", "table", "status"}),

		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		}, []string{"operation", "table"}),

		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		}, []string{"operation", "table", "error_type"}),

		resultRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datastore_db_query_result_size",
			Help:    "Number of rows returned by database queries",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}, []string{"operation", "table"}),

		connActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datastore_db_connections_active",
			Help: "Current number of active database connections",
		}),
		connIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datastore_db_connections_idle",
			Help: "Current number of idle database connections",
		}),
		connMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "datastore_db_connections_max",
			Help: "Maximum number of database connections",
		}),

		slowQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datastore_slow_queries_total",
			Help: "Total number of queries exceeding the slow query threshold",
		}, []string{"operation"}),
	}

	err := registerAll(registry,
		m.operationsTotal, m.operationDuration, m.operationErrors, m.resultRows,
		m.connActive, m.connIdle, m.connMax, m.slowQueries)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDbOperation counts one logical operation with its outcome.
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.operationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration observes how long a statement ran, in seconds.
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.operationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError counts one failed operation by error class.
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.operationErrors.WithLabelValues(operation, table, errorType).Inc()
}

// RecordQueryResultSize observes how many rows a query returned.
func (m *DatastoreMetrics) RecordQueryResultSize(operation, table string, resultSize int) {
	m.resultRows.WithLabelValues(operation, table).Observe(float64(resultSize))
}

// RecordSlowQuery counts a query that exceeded the slow query threshold.
func (m *DatastoreMetrics) RecordSlowQuery(operation string) {
	m.slowQueries.WithLabelValues(operation).Inc()
}

// UpdateConnectionMetrics publishes the connection pool state.
func (m *DatastoreMetrics) UpdateConnectionMetrics(active, idle, maxConn int) {
	m.connActive.Set(float64(active))
	m.connIdle.Set(float64(idle))
	m.connMax.Set(float64(maxConn))
}
