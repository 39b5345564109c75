// engine.go: the windowed fetch loop turning stored recordings into visits
package visits

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

var (
	serviceLogger *slog.Logger
	loggerOnce    sync.Once
)

func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logging.ForService("visits")
	})
	return serviceLogger
}

// Defaults bounding a single engine invocation.
const (
	// DefaultMaxVisits caps how many complete visits one query returns.
	DefaultMaxVisits = 5000
	// DefaultQueryMax caps how many recordings one page may fetch.
	DefaultQueryMax = 10000
)

// Query statuses recorded against the visits metrics.
const (
	statusCompleted = "completed"
	statusLimited   = "limited"
	statusCancelled = "cancelled"
	statusError     = "error"
)

// Policy carries the injected time thresholds driving visit stitching.
type Policy struct {
	// VisitInterval is the maximum gap between consecutive recordings
	// within one visit.
	VisitInterval time.Duration
	// AudioBaitWindow is how far before a visit's start a bait playback can
	// still be credited with attracting the animal.
	AudioBaitWindow time.Duration
}

// PolicyFromSettings reads the stitching thresholds from configuration.
func PolicyFromSettings(settings *conf.Settings) Policy {
	return Policy{
		VisitInterval:   settings.Visits.Interval,
		AudioBaitWindow: settings.Visits.AudioBaitWindow,
	}
}

// RecordingFilterFunc adjusts a recording's visible fields before it
// reaches the visit builders, e.g. stripping tags the requesting user may
// not see. The engine applies it to every fetched recording.
type RecordingFilterFunc func(*datastore.Recording)

// Params bounds one engine invocation.
type Params struct {
	// Filter restricts which recordings are scanned.
	Filter datastore.RecordingFilter
	// FilterRecording, when non-nil, scrubs each recording after the fetch
	// and before visit building.
	FilterRecording RecordingFilterFunc
	// RequestVisits caps how many complete visits to return. Zero or
	// negative falls back to the engine's configured maximum.
	RequestVisits int
	// Offset is the absolute stream index to resume from, usually the
	// QueryOffset of a previous Result.
	Offset int
	// Limit overrides the first page size when positive. Later pages size
	// themselves from the remaining visit demand.
	Limit int
	// RequestingUserID breaks tag ties in favor of this user's own tags.
	RequestingUserID uint
}

// Result is the outcome of one engine invocation.
type Result struct {
	Visits  []*Visit       `json:"visits"`
	Summary *DeviceSummary `json:"summary"`
	// HasMoreVisits reports whether unscanned recordings remain past
	// QueryOffset.
	HasMoreVisits bool `json:"hasMoreVisits"`
	// QueryOffset is where a follow-up query should resume.
	QueryOffset int `json:"queryOffset"`
	// TotalRecordings is the source's count of recordings matching the
	// filter; NumRecordings is how many this invocation consumed.
	TotalRecordings int `json:"totalRecordings"`
	NumRecordings   int `json:"numRecordings"`
	NumVisits       int `json:"numVisits"`
}

// Engine drives the windowed fetch loop. It holds no per-invocation state,
// so one engine may serve concurrent queries.
type Engine struct {
	ds        datastore.Interface
	policy    Policy
	maxVisits int
	queryMax  int
	debug     bool
	metrics   *metrics.VisitsMetrics
}

// New creates an engine reading from ds, configured from settings. The
// metrics collector may be nil.
func New(settings *conf.Settings, ds datastore.Interface, visitsMetrics *metrics.VisitsMetrics) *Engine {
	maxVisits := settings.Visits.MaxVisits
	if maxVisits <= 0 {
		maxVisits = DefaultMaxVisits
	}
	queryMax := settings.Visits.QueryMax
	if queryMax <= 0 {
		queryMax = DefaultQueryMax
	}
	return &Engine{
		ds:        ds,
		policy:    PolicyFromSettings(settings),
		maxVisits: maxVisits,
		queryMax:  queryMax,
		debug:     settings.Visits.Debug,
		metrics:   visitsMetrics,
	}
}

// Run executes one visit query. It grows the fetch window until enough
// complete visits exist or the source is exhausted, then matches audio bait
// playbacks into the returned visits. Cancelling ctx between iterations
// stops early with the visits gathered so far and a usable resumption
// offset; a failed fetch aborts the whole invocation instead, since partial
// data from a failed scan would corrupt the resumption offset.
func (e *Engine) Run(ctx context.Context, params Params) (*Result, error) {
	start := time.Now()
	log := getLogger().With("query_id", uuid.New().String())

	requestVisits := params.RequestVisits
	if requestVisits <= 0 {
		requestVisits = e.maxVisits
	}

	summary := NewDeviceSummary(e.policy)
	offset := params.Offset
	lastOffset := params.Offset - 1
	remaining := requestVisits
	totalRecordings := 0
	numRecordings := 0
	pages := 0
	gotAllRecordings := false
	cancelled := false
	wantCount := true

	log.Info("Starting visit query",
		"request_visits", requestVisits,
		"offset", params.Offset,
		"devices", len(params.Filter.DeviceIDs),
		"groups", len(params.Filter.GroupIDs),
		"stations", len(params.Filter.StationIDs))

	for remaining > 0 && !gotAllRecordings {
		if ctx.Err() != nil {
			cancelled = true
			log.Info("Visit query cancelled, keeping visits gathered so far", "pages", pages)
			break
		}

		// Ask for twice the remaining demand: devices whose visits span many
		// recordings need deeper pages, while a nearly met target should not
		// over-fetch.
		limit := remaining * 2
		if pages == 0 && params.Limit > 0 {
			limit = params.Limit
		}
		if limit > e.queryMax {
			limit = e.queryMax
		}

		recordings, total, err := e.ds.QueryRecordings(ctx, params.Filter, offset, limit, wantCount)
		if err != nil {
			e.recordQuery(statusError, time.Since(start), pages)
			log.Error("Recording fetch failed", "offset", offset, "limit", limit, "error", err)
			return nil, err
		}
		pages++
		if wantCount {
			totalRecordings = total
			wantCount = false
		}

		if len(recordings) == 0 {
			// The source is out of rows regardless of what the count said.
			gotAllRecordings = true
			summary.MarkCompleted()
			break
		}

		if params.FilterRecording != nil {
			for i := range recordings {
				params.FilterRecording(&recordings[i])
			}
		}

		gotAllRecordings = offset+len(recordings) >= totalRecordings
		summary.GenerateVisits(recordings, offset, gotAllRecordings, params.RequestingUserID)
		numRecordings += len(recordings)
		lastOffset = offset + len(recordings) - 1
		offset += len(recordings)

		if !gotAllRecordings {
			summary.CheckForCompleteVisits()
		}
		remaining = requestVisits - summary.CompleteVisitsCount()

		if e.debug {
			log.Debug("Visit query iteration",
				"page", pages,
				"rows", len(recordings),
				"next_offset", offset,
				"complete_visits", requestVisits-remaining,
				"remaining_visits", remaining)
		}
	}

	removed := 0
	if !gotAllRecordings {
		removed = summary.RemoveIncompleteVisits()
	}
	visits := summary.CompleteVisits()

	if !cancelled {
		if err := e.matchAudioBait(ctx, summary, visits); err != nil {
			e.recordQuery(statusError, time.Since(start), pages)
			log.Error("Audio bait matching failed", "error", err)
			return nil, err
		}
	}
	summary.finalize()

	queryOffset := summary.EarliestIncompleteOffset()
	if queryOffset < 0 {
		// Nothing was discarded, so resume one past the deepest consumed
		// recording.
		queryOffset = lastOffset + 1
	}

	result := &Result{
		Visits:          visits,
		Summary:         summary,
		HasMoreVisits:   !gotAllRecordings,
		QueryOffset:     queryOffset,
		TotalRecordings: totalRecordings,
		NumRecordings:   numRecordings,
		NumVisits:       len(visits),
	}

	status := statusCompleted
	switch {
	case cancelled:
		status = statusCancelled
	case !gotAllRecordings:
		status = statusLimited
	}
	e.recordQuery(status, time.Since(start), pages)
	e.recordVisitStats(visits, numRecordings, removed)

	log.Info("Visit query finished",
		"status", status,
		"visits", len(visits),
		"recordings", numRecordings,
		"pages", pages,
		"has_more", result.HasMoreVisits,
		"query_offset", result.QueryOffset,
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (e *Engine) recordQuery(status string, elapsed time.Duration, pages int) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordQuery(status)
	e.metrics.RecordQueryDuration(status, elapsed.Seconds())
	if pages > 0 {
		e.metrics.RecordQueryPages(pages)
	}
}

func (e *Engine) recordVisitStats(visits []*Visit, numRecordings, removed int) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordVisitsGenerated(len(visits))
	e.metrics.RecordRecordingsProcessed(numRecordings)
	if removed > 0 {
		e.metrics.RecordIncompleteRemoved(removed)
	}
	for _, v := range visits {
		e.metrics.RecordVisitSize(v.recordings)
	}
}

func (e *Engine) recordBaitMatches(during, before int) {
	if e.metrics == nil {
		return
	}
	for range during {
		e.metrics.RecordAudioBaitMatch(matchDuring)
	}
	for range before {
		e.metrics.RecordAudioBaitMatch(matchBefore)
	}
}
