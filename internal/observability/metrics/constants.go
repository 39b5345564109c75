package metrics

import "time"

// Logical operation names shared between the datastore and handler
// collectors, so a query shows up under the same label at both layers.
const (
	OpQueryRecordings = "query_recordings"
	OpCountRecordings = "count_recordings"
	OpAudioBaitEvents = "audio_bait_events"
	OpLookupFiles     = "lookup_files"
	OpGenerateVisits  = "generate_visits"
	OpRenderReport    = "render_report"
)

// Status label values. Hit and miss are used by the handler cache, the
// other two by anything with a success or failure outcome.
const (
	LabelSuccess = "success"
	LabelError   = "error"
	LabelHit     = "hit"
	LabelMiss    = "miss"
)

// ShutdownTimeout bounds how long the metrics server waits for inflight
// scrapes when shutting down.
const ShutdownTimeout = 5 * time.Second
