package datastore

import (
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

// Metrics aliases the observability collector so store code does not
// repeat the long package path on every reference.
type Metrics = metrics.DatastoreMetrics
