// logger.go: file-backed query logging behind GORM's logger interface
package datastore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
)

// Per-statement output goes to its own file so query noise stays out of
// the service log. The default sits alongside the other component logs.
const defaultQueryLogPath = "logs/datastore.log"

var (
	queryLog      *slog.Logger
	queryLogClose func() error
	queryLogOnce  sync.Once
)

// OpenQueryLog prepares the query log file. The first call wins; later
// calls return nil without touching the path. An empty path selects the
// default. When the file cannot be opened queries keep running against
// a discard logger and the returned error says why.
func OpenQueryLog(path string) error {
	var openErr error

	queryLogOnce.Do(func() {
		if path == "" {
			path = defaultQueryLogPath
		}

		// Debug mode lowers the file threshold to the trace level so
		// every executed statement lands in the log.
		threshold := slog.LevelInfo
		if s := conf.GetSettings(); s != nil && s.Debug {
			threshold = logging.LevelTrace
		}

		fileLog, closer, err := logging.NewFileLogger(path, "datastore", threshold)
		if err != nil {
			queryLog = slog.New(slog.NewTextHandler(io.Discard, nil))
			queryLogClose = func() error { return nil }
			openErr = errors.Newf("opening query log %s: %v", path, err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("log_path", path).
				Build()
			return
		}
		queryLog = fileLog
		queryLogClose = closer
	})

	return openErr
}

// activeQueryLog hands out the query log, opening it at the default
// path when nothing has yet.
func activeQueryLog() *slog.Logger {
	_ = OpenQueryLog("")
	return queryLog
}

// CloseQueryLog flushes and closes the query log file.
func CloseQueryLog() error {
	if queryLogClose == nil {
		return nil
	}
	return queryLogClose()
}

// queryLogger feeds GORM's logging callbacks into the query log and the
// datastore metrics.
type queryLogger struct {
	slowThreshold time.Duration
	level         gormlogger.LogLevel
	metrics       *Metrics
}

// newQueryLogger returns an adapter for gorm.Config. A nil metrics
// collector disables timing capture but keeps the log output.
func newQueryLogger(slowThreshold time.Duration, level gormlogger.LogLevel, metrics *Metrics) *queryLogger {
	return &queryLogger{
		slowThreshold: slowThreshold,
		level:         level,
		metrics:       metrics,
	}
}

func (ql *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *ql
	clone.level = level
	return &clone
}

// Info, Warn and Error pass GORM's own printf-style messages through at
// their native severity.
func (ql *queryLogger) Info(ctx context.Context, msg string, data ...any) {
	if ql.level >= gormlogger.Info {
		activeQueryLog().InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (ql *queryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if ql.level >= gormlogger.Warn {
		activeQueryLog().WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (ql *queryLogger) Error(ctx context.Context, msg string, data ...any) {
	if ql.level >= gormlogger.Error {
		activeQueryLog().ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace runs after every completed statement. Failures and slow queries
// surface at error and warn severity; ordinary statements only reach
// the file when the trace level is open. gorm.ErrRecordNotFound stays
// quiet because callers treat it as an ordinary miss.
func (ql *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if ql.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	statement, rows := fc()
	operation, table := parseSQLOperation(statement)

	// SQL-level timing only; the store methods record the logical
	// operation counters so each query is counted exactly once
	if ql.metrics != nil {
		ql.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		activeQueryLog().ErrorContext(ctx, "Query failed",
			"error", err,
			"sql", statement,
			"duration", elapsed,
			"rows", rows)

	case ql.slowThreshold != 0 && elapsed > ql.slowThreshold:
		activeQueryLog().WarnContext(ctx, "Slow query",
			"sql", statement,
			"duration", elapsed,
			"rows", rows,
			"threshold", ql.slowThreshold)
		if ql.metrics != nil {
			ql.metrics.RecordSlowQuery(operation)
		}

	case ql.level >= gormlogger.Info:
		activeQueryLog().Log(ctx, logging.LevelTrace, "Query executed",
			"sql", statement,
			"duration", elapsed,
			"rows", rows)
	}
}
