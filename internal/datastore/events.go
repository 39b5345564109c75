// events.go implements audio bait event queries and file lookups
package datastore

import (
	"context"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability/metrics"
)

// AudioBaitEvents returns audio bait playback events for the given devices
// within [from, until]. Rows are ordered by device id ascending then event
// time descending, matching the recording stream's shape.
func (ds *DataStore) AudioBaitEvents(ctx context.Context, deviceIDs []uint, from, until time.Time) ([]Event, error) {
	query := ds.DB.WithContext(ctx).Model(&Event{}).Where("type = ?", EventTypeAudioBait)
	if len(deviceIDs) > 0 {
		query = query.Where("device_id IN ?", deviceIDs)
	}
	if !from.IsZero() {
		query = query.Where("date_time >= ?", from)
	}
	if !until.IsZero() {
		query = query.Where("date_time <= ?", until)
	}

	var events []Event
	err := query.
		Order("device_id asc").
		Order("date_time desc").
		Find(&events).Error
	if err != nil {
		ds.recordOperationError(metrics.OpAudioBaitEvents, "events", err)
		return nil, dbError(err, "audio_bait_events", errors.PriorityHigh,
			"device_count", len(deviceIDs))
	}

	ds.recordOperation(metrics.OpAudioBaitEvents, "events", len(events))
	return events, nil
}

// LookupFiles resolves file ids to File rows in a single bulk query. Ids with
// no matching row are absent from the returned map.
func (ds *DataStore) LookupFiles(ctx context.Context, ids []uint) (map[uint]File, error) {
	files := make(map[uint]File, len(ids))
	if len(ids) == 0 {
		return files, nil
	}

	var rows []File
	if err := ds.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		ds.recordOperationError(metrics.OpLookupFiles, "files", err)
		return nil, dbError(err, "lookup_files", errors.PriorityMedium,
			"id_count", len(ids))
	}

	for i := range rows {
		files[rows[i].ID] = rows[i]
	}
	ds.recordOperation(metrics.OpLookupFiles, "files", len(rows))
	return files, nil
}

// SaveEvent stores a device event.
func (ds *DataStore) SaveEvent(event *Event) error {
	if err := ds.DB.Create(event).Error; err != nil {
		return dbError(err, "save_event", errors.PriorityMedium,
			"device_id", event.DeviceID, "event_type", event.Type)
	}
	return nil
}

// SaveFile stores a file record.
func (ds *DataStore) SaveFile(file *File) error {
	if err := ds.DB.Create(file).Error; err != nil {
		return dbError(err, "save_file", errors.PriorityMedium, "file_type", file.Type)
	}
	return nil
}
