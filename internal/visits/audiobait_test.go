package visits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignBaitEventsKeepsPrecedingTies(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &Visit{Start: base, End: base.Add(5 * time.Minute)}

	// Newest first, the order the matcher walks them in.
	events := []baitEvent{
		{id: 1, at: base.Add(2 * time.Minute)},
		{id: 2, at: base.Add(-10 * time.Minute)},
		{id: 3, at: base.Add(-10 * time.Minute)},
		{id: 4, at: base.Add(-40 * time.Minute)},
	}

	during, before := assignBaitEvents(v, events, time.Hour)
	assert.Equal(t, 1, during)
	assert.Equal(t, 2, before)

	// The contained playback, then both nearest preceding ones; the farther
	// event is dropped.
	require.Len(t, v.AudioBaitEvents, 3)
	assert.Equal(t, uint(1), v.AudioBaitEvents[0].EventID)
	assert.Equal(t, uint(2), v.AudioBaitEvents[1].EventID)
	assert.Equal(t, uint(3), v.AudioBaitEvents[2].EventID)
}

func TestAssignBaitEventsWindowBound(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &Visit{Start: base, End: base.Add(time.Minute)}

	events := []baitEvent{{id: 1, at: base.Add(-2 * time.Hour)}}
	during, before := assignBaitEvents(v, events, time.Hour)
	assert.Zero(t, during)
	assert.Zero(t, before)
	assert.Empty(t, v.AudioBaitEvents)
}

func TestAssignBaitEventsBoundaryInstants(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &Visit{Start: base, End: base.Add(5 * time.Minute)}

	// A playback at the exact start counts as during, not preceding.
	events := []baitEvent{
		{id: 1, at: base.Add(5 * time.Minute)},
		{id: 2, at: base},
	}
	during, before := assignBaitEvents(v, events, time.Hour)
	assert.Equal(t, 2, during)
	assert.Zero(t, before)
}

func TestEngineMatchesAudioBait(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)
	quiet := seedTestDevice(t, store, "gully-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Two visits on ridge-cam an hour apart, one lone visit on gully-cam.
	for _, offset := range []time.Duration{0, 2 * time.Minute, 4 * time.Minute, time.Hour, time.Hour + 2*time.Minute} {
		seedTestRecording(t, store, device.ID, group.ID, base.Add(offset))
	}
	seedTestRecording(t, store, quiet.ID, group.ID, base)

	chirp := seedTestFile(t, store, `{"name":"chirp.mp3"}`)
	played := seedTestBaitEvent(t, store, device.ID, base.Add(time.Hour+time.Minute), chirp.ID, 8)
	teaser := seedTestBaitEvent(t, store, device.ID, base.Add(-30*time.Minute), 9999, 6)

	engine := newTestEngine(store, Policy{VisitInterval: 5 * time.Minute, AudioBaitWindow: 24 * time.Hour})
	result, err := engine.Run(t.Context(), Params{})
	require.NoError(t, err)
	require.Len(t, result.Visits, 3)

	// Newest visit holds the contained playback plus the nearest preceding
	// one; the unknown file id leaves the name blank.
	newest := result.Visits[0]
	assert.Equal(t, device.ID, newest.DeviceID)
	require.Len(t, newest.AudioBaitEvents, 2)
	assert.Equal(t, played.ID, newest.AudioBaitEvents[0].EventID)
	assert.Equal(t, "chirp.mp3", newest.AudioBaitEvents[0].FileName)
	assert.Equal(t, chirp.ID, newest.AudioBaitEvents[0].FileID)
	assert.Equal(t, 8, newest.AudioBaitEvents[0].Volume)
	assert.Equal(t, teaser.ID, newest.AudioBaitEvents[1].EventID)
	assert.Equal(t, "", newest.AudioBaitEvents[1].FileName)

	// The same preceding playback also serves the older visit.
	older := result.Visits[1]
	assert.Equal(t, device.ID, older.DeviceID)
	require.Len(t, older.AudioBaitEvents, 1)
	assert.Equal(t, teaser.ID, older.AudioBaitEvents[0].EventID)

	quietVisit := result.Visits[2]
	assert.Equal(t, quiet.ID, quietVisit.DeviceID)
	assert.Empty(t, quietVisit.AudioBaitEvents)

	require.Contains(t, result.Summary.Devices, device.ID)
	require.Contains(t, result.Summary.Devices, quiet.ID)
	assert.True(t, result.Summary.Devices[device.ID].AudioBait)
	assert.False(t, result.Summary.Devices[quiet.ID].AudioBait)
}
