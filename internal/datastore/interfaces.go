// interfaces.go: store contract and the shared GORM-backed base type
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the visit engine, the report surface, and the API consume.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error
	// QueryRecordings returns one page of recordings ordered by device id
	// ascending, recording time descending, id descending. The total count of
	// matching rows is computed only when wantCount is set.
	QueryRecordings(ctx context.Context, filter RecordingFilter, offset, limit int, wantCount bool) ([]Recording, int, error)
	// AudioBaitEvents returns audio bait playback events for the given devices
	// within [from, until], newest first per device.
	AudioBaitEvents(ctx context.Context, deviceIDs []uint, from, until time.Time) ([]Event, error)
	// LookupFiles resolves file ids in one bulk query. Missing ids are simply
	// absent from the result map.
	LookupFiles(ctx context.Context, ids []uint) (map[uint]File, error)
	SaveRecording(recording *Recording) error
	GetRecording(id uint) (Recording, error)
	DeleteRecording(id uint) error
	SaveEvent(event *Event) error
	SaveFile(file *File) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *Metrics
}

// New creates a store instance based on the configured output database.
func New(settings *conf.Settings, metrics *Metrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{metrics: metrics},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{metrics: metrics},
			Settings:  settings,
		}
	default:
		// conf.ValidateSettings guards against this; callers still check
		return nil
	}
}

// Close releases the underlying SQL connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityLow)
	}
	return sqlDB.Close()
}

// Ping verifies the database connection and refreshes the connection pool
// gauges while it is at it.
func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return validationError("database connection is not initialized", "db", nil)
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "ping", errors.PriorityHigh)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", errors.PriorityHigh)
	}
	if ds.metrics != nil {
		stats := sqlDB.Stats()
		ds.metrics.UpdateConnectionMetrics(stats.InUse, stats.Idle, stats.MaxOpenConnections)
	}
	return nil
}
