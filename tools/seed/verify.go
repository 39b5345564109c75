package main

import (
	"context"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
)

// probe checks the database is writable and migrated by pushing one canary
// recording through the full save, read back, delete cycle, and returns the
// number of recordings already present.
func probe(store datastore.Interface) (int, error) {
	ctx := context.Background()

	_, preCount, err := store.QueryRecordings(ctx, datastore.RecordingFilter{}, 0, 1, true)
	if err != nil {
		return 0, fmt.Errorf("counting existing recordings: %w", err)
	}

	group := seedGroups[0]
	canary := datastore.Recording{
		Type:              "thermalRaw",
		DeviceID:          1,
		GroupID:           group.ID,
		RecordingDateTime: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:          1,
		Device:            datastore.Device{ID: 1, DeviceName: "seed-camera-01", GroupID: group.ID, Group: group},
		Group:             group,
		Tracks: []datastore.Track{{
			StartS: 0,
			EndS:   1,
			Tags:   []datastore.TrackTag{{What: "possum", Automatic: true, Confidence: 0.9}},
		}},
	}
	if err := store.SaveRecording(&canary); err != nil {
		return 0, fmt.Errorf("saving canary recording: %w", err)
	}

	got, err := store.GetRecording(canary.ID)
	if err != nil {
		return 0, fmt.Errorf("reading canary recording back: %w", err)
	}
	if len(got.Tracks) != 1 || len(got.Tracks[0].Tags) != 1 {
		return 0, fmt.Errorf("canary recording %d came back without its track graph", canary.ID)
	}

	if err := store.DeleteRecording(canary.ID); err != nil {
		return 0, fmt.Errorf("deleting canary recording: %w", err)
	}
	if _, err := store.GetRecording(canary.ID); !errors.IsNotFound(err) {
		return 0, fmt.Errorf("canary recording %d still readable after delete", canary.ID)
	}

	return preCount, nil
}

// verify rereads the database after seeding and checks the totals and the
// page ordering the aggregation pipeline depends on.
func verify(store datastore.Interface, preCount int, stats *Stats) error {
	ctx := context.Background()

	page, count, err := store.QueryRecordings(ctx, datastore.RecordingFilter{}, 0, 200, true)
	if err != nil {
		return fmt.Errorf("counting recordings: %w", err)
	}
	if want := preCount + stats.Recordings; count != want {
		return fmt.Errorf("expected %d recordings, database holds %d", want, count)
	}

	// Pages must come back grouped by device, newest first within each.
	var prev *datastore.Recording
	for i := range page {
		r := &page[i]
		if prev != nil && r.DeviceID == prev.DeviceID && r.RecordingDateTime.After(prev.RecordingDateTime) {
			return fmt.Errorf("recordings for device %d out of order: %s after %s",
				r.DeviceID, prev.RecordingDateTime, r.RecordingDateTime)
		}
		if prev != nil && r.DeviceID < prev.DeviceID {
			return fmt.Errorf("device order broken: %d after %d", r.DeviceID, prev.DeviceID)
		}
		prev = r
	}

	files, err := store.LookupFiles(ctx, stats.BaitFileIDs)
	if err != nil {
		return fmt.Errorf("looking up bait files: %w", err)
	}
	if len(files) != len(stats.BaitFileIDs) {
		return fmt.Errorf("expected %d bait files, found %d", len(stats.BaitFileIDs), len(files))
	}

	return nil
}
