package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VisitsMetrics tracks the visit aggregation engine: query outcomes,
// how much paging each query needed, and what the queries produced.
type VisitsMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queryPages    prometheus.Histogram

	visitsGenerated     prometheus.Counter
	recordingsProcessed prometheus.Counter
	incompleteRemoved   prometheus.Counter
	visitSize           prometheus.Histogram

	audioBaitMatches *prometheus.CounterVec
}

// NewVisitsMetrics builds and registers the visit engine collectors.
func NewVisitsMetrics(registry *prometheus.Registry) (*VisitsMetrics, error) {
	m := &VisitsMetrics{
		// status: completed, limited, cancelled, error
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visits_queries_total",
			Help: "Total number of visit queries",
		}, []string{"status"}),

		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visits_query_duration_seconds",
			Help:    "Time taken for visit queries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}, []string{"status"}),

		queryPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "visits_query_pages",
			Help:    "Number of recording pages fetched per visit query",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		visitsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visits_generated_total",
			Help: "Total number of visits generated",
		}),
		recordingsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visits_recordings_processed_total",
			Help: "Total number of recordings consumed while building visits",
		}),
		incompleteRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "visits_incomplete_removed_total",
			Help: "Total number of incomplete trailing visits removed from query results",
		}),

		visitSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "visits_recordings_per_visit",
			Help:    "Number of recordings stitched into a single visit",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		// match_type: during, before
		audioBaitMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visits_audio_bait_matches_total",
			Help: "Total number of audio bait events matched to visits",
		}, []string{"match_type"}),
	}

	err := registerAll(registry,
		m.queriesTotal, m.queryDuration, m.queryPages,
		m.visitsGenerated, m.recordingsProcessed, m.incompleteRemoved,
		m.visitSize, m.audioBaitMatches)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery counts one finished visit query by its final status.
func (m *VisitsMetrics) RecordQuery(status string) {
	m.queriesTotal.WithLabelValues(status).Inc()
}

// RecordQueryDuration observes how long a visit query ran, in seconds.
func (m *VisitsMetrics) RecordQueryDuration(status string, duration float64) {
	m.queryDuration.WithLabelValues(status).Observe(duration)
}

// RecordQueryPages observes how many recording pages a query fetched.
func (m *VisitsMetrics) RecordQueryPages(pages int) {
	m.queryPages.Observe(float64(pages))
}

// RecordVisitsGenerated adds the number of visits a query produced.
func (m *VisitsMetrics) RecordVisitsGenerated(count int) {
	m.visitsGenerated.Add(float64(count))
}

// RecordRecordingsProcessed adds the number of recordings consumed.
func (m *VisitsMetrics) RecordRecordingsProcessed(count int) {
	m.recordingsProcessed.Add(float64(count))
}

// RecordIncompleteRemoved adds trailing visits dropped for being incomplete.
func (m *VisitsMetrics) RecordIncompleteRemoved(count int) {
	m.incompleteRemoved.Add(float64(count))
}

// RecordVisitSize observes the number of recordings in a finished visit.
func (m *VisitsMetrics) RecordVisitSize(recordings int) {
	m.visitSize.Observe(float64(recordings))
}

// RecordAudioBaitMatch counts an audio bait event matched to a visit.
func (m *VisitsMetrics) RecordAudioBaitMatch(matchType string) {
	m.audioBaitMatches.WithLabelValues(matchType).Inc()
}
