package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
)

// newTestStore opens an in-memory SQLite store with the schema migrated.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open(), "opening in-memory store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedGroup(t *testing.T, store *SQLiteStore, name string) Group {
	t.Helper()

	group := Group{GroupName: name}
	require.NoError(t, store.DB.Create(&group).Error)
	return group
}

func seedDevice(t *testing.T, store *SQLiteStore, name string, groupID uint) Device {
	t.Helper()

	device := Device{DeviceName: name, GroupID: groupID}
	require.NoError(t, store.DB.Create(&device).Error)
	return device
}

func seedRecording(t *testing.T, store *SQLiteStore, deviceID, groupID uint, at time.Time, tracks ...Track) Recording {
	t.Helper()

	recording := Recording{
		Type:              "thermalRaw",
		DeviceID:          deviceID,
		GroupID:           groupID,
		RecordingDateTime: at,
		Duration:          60,
		Tracks:            tracks,
	}
	require.NoError(t, store.SaveRecording(&recording))
	return recording
}

func seedAudioBaitEvent(t *testing.T, store *SQLiteStore, deviceID uint, at time.Time, details string) Event {
	t.Helper()

	event := Event{
		DeviceID: deviceID,
		DateTime: at,
		Type:     EventTypeAudioBait,
		Details:  []byte(details),
	}
	require.NoError(t, store.SaveEvent(&event))
	return event
}

func seedFile(t *testing.T, store *SQLiteStore, details string) File {
	t.Helper()

	file := File{Type: "audioBait", Details: []byte(details)}
	require.NoError(t, store.SaveFile(&file))
	return file
}
