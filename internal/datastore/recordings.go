// recordings.go implements recording queries and persistence
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

// RecordingFilter narrows a recording query. Zero values mean no constraint.
type RecordingFilter struct {
	DeviceIDs  []uint
	GroupIDs   []uint
	StationIDs []uint
	Type       string
	From       time.Time
	Until      time.Time
}

// apply adds the filter's constraints to the query.
func (f RecordingFilter) apply(query *gorm.DB) *gorm.DB {
	if len(f.DeviceIDs) > 0 {
		query = query.Where("device_id IN ?", f.DeviceIDs)
	}
	if len(f.GroupIDs) > 0 {
		query = query.Where("group_id IN ?", f.GroupIDs)
	}
	if len(f.StationIDs) > 0 {
		query = query.Where("station_id IN ?", f.StationIDs)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if !f.From.IsZero() {
		query = query.Where("recording_date_time >= ?", f.From)
	}
	if !f.Until.IsZero() {
		query = query.Where("recording_date_time <= ?", f.Until)
	}
	return query
}

// QueryRecordings returns one page of recordings matching the filter. Rows are
// ordered by device id ascending, then recording time descending, then id
// descending, so each device's recordings form a contiguous newest-first run.
// The total matching count is computed only when wantCount is set.
func (ds *DataStore) QueryRecordings(ctx context.Context, filter RecordingFilter, offset, limit int, wantCount bool) ([]Recording, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, validationError("offset and limit must not be negative", "offset/limit", offset)
	}

	count := 0
	if wantCount {
		var total int64
		countQuery := filter.apply(ds.DB.WithContext(ctx).Model(&Recording{}))
		if err := countQuery.Count(&total).Error; err != nil {
			ds.recordOperationError(metrics.OpCountRecordings, "recordings", err)
			return nil, 0, dbError(err, "count_recordings", errors.PriorityHigh)
		}
		count = int(total)
	}

	var recordings []Recording
	listQuery := filter.apply(ds.DB.WithContext(ctx).Model(&Recording{}))
	err := listQuery.
		Preload("Device").
		Preload("Group").
		Preload("Tracks.Tags").
		Order("device_id asc").
		Order("recording_date_time desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&recordings).Error
	if err != nil {
		ds.recordOperationError(metrics.OpQueryRecordings, "recordings", err)
		return nil, 0, dbError(err, "query_recordings", errors.PriorityHigh,
			"offset", offset, "limit", limit)
	}

	ds.recordOperation(metrics.OpQueryRecordings, "recordings", len(recordings))
	return recordings, count, nil
}

// SaveRecording stores a recording and its nested tracks and tags as a single
// transaction in the database.
func (ds *DataStore) SaveRecording(recording *Recording) error {
	// Begin a transaction
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return dbError(tx.Error, "save_recording", errors.PriorityHigh)
	}

	// Roll back the transaction if a panic occurs
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Create cascades into Tracks and their Tags via the association graph
	if err := tx.Create(recording).Error; err != nil {
		tx.Rollback()
		return dbError(err, "save_recording", errors.PriorityHigh,
			"device_id", recording.DeviceID)
	}

	if err := tx.Commit().Error; err != nil {
		return dbError(err, "save_recording", errors.PriorityHigh)
	}
	return nil
}

// GetRecording retrieves a recording by its ID, with tracks and tags loaded.
func (ds *DataStore) GetRecording(id uint) (Recording, error) {
	var recording Recording
	err := ds.DB.
		Preload("Device").
		Preload("Group").
		Preload("Tracks.Tags").
		First(&recording, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Recording{}, errors.Newf("recording %d not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("recording_id", id).
				Build()
		}
		return Recording{}, dbError(err, "get_recording", errors.PriorityMedium, "recording_id", id)
	}
	return recording, nil
}

// DeleteRecording removes a recording and its associated tracks and tags.
func (ds *DataStore) DeleteRecording(id uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		var trackIDs []uint
		if err := tx.Model(&Track{}).Where("recording_id = ?", id).Pluck("id", &trackIDs).Error; err != nil {
			return dbError(err, "delete_recording", errors.PriorityMedium, "recording_id", id)
		}
		if len(trackIDs) > 0 {
			if err := tx.Where("track_id IN ?", trackIDs).Delete(&TrackTag{}).Error; err != nil {
				return dbError(err, "delete_recording", errors.PriorityMedium, "recording_id", id)
			}
			if err := tx.Where("recording_id = ?", id).Delete(&Track{}).Error; err != nil {
				return dbError(err, "delete_recording", errors.PriorityMedium, "recording_id", id)
			}
		}
		if err := tx.Delete(&Recording{}, id).Error; err != nil {
			return dbError(err, "delete_recording", errors.PriorityMedium, "recording_id", id)
		}
		return nil
	})
}

// recordOperation records a successful logical store operation.
func (ds *DataStore) recordOperation(operation, table string, resultSize int) {
	if ds.metrics == nil {
		return
	}
	ds.metrics.RecordDbOperation(operation, table, metrics.LabelSuccess)
	ds.metrics.RecordQueryResultSize(operation, table, resultSize)
}

// recordOperationError records a failed logical store operation.
func (ds *DataStore) recordOperationError(operation, table string, err error) {
	if ds.metrics == nil {
		return
	}
	ds.metrics.RecordDbOperation(operation, table, metrics.LabelError)
	ds.metrics.RecordDbOperationError(operation, table, categorizeError(err))
}
