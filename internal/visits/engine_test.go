package visits

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

func newEngineStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"

	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open(), "opening in-memory store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(store datastore.Interface, policy Policy) *Engine {
	return &Engine{
		ds:        store,
		policy:    policy,
		maxVisits: DefaultMaxVisits,
		queryMax:  DefaultQueryMax,
	}
}

func seedTestGroup(t *testing.T, store *datastore.SQLiteStore, name string) datastore.Group {
	t.Helper()

	group := datastore.Group{GroupName: name}
	require.NoError(t, store.DB.Create(&group).Error)
	return group
}

func seedTestDevice(t *testing.T, store *datastore.SQLiteStore, name string, groupID uint) datastore.Device {
	t.Helper()

	device := datastore.Device{DeviceName: name, GroupID: groupID}
	require.NoError(t, store.DB.Create(&device).Error)
	return device
}

func seedTestRecording(t *testing.T, store *datastore.SQLiteStore, deviceID, groupID uint, at time.Time) datastore.Recording {
	t.Helper()

	recording := datastore.Recording{
		Type:              "thermalRaw",
		DeviceID:          deviceID,
		GroupID:           groupID,
		RecordingDateTime: at,
		Duration:          60,
	}
	require.NoError(t, store.SaveRecording(&recording))
	return recording
}

func seedTestBaitEvent(t *testing.T, store *datastore.SQLiteStore, deviceID uint, at time.Time, fileID uint, volume int) datastore.Event {
	t.Helper()

	event := datastore.Event{
		DeviceID: deviceID,
		DateTime: at,
		Type:     datastore.EventTypeAudioBait,
		Details:  []byte(fmt.Sprintf(`{"fileId":%d,"volume":%d}`, fileID, volume)),
	}
	require.NoError(t, store.SaveEvent(&event))
	return event
}

func seedTestFile(t *testing.T, store *datastore.SQLiteStore, details string) datastore.File {
	t.Helper()

	file := datastore.File{Type: "audioBait", Details: []byte(details)}
	require.NoError(t, store.SaveFile(&file))
	return file
}

// inflatedCountStore reports a larger total than the rows it can serve, the
// way a source with a stale count would.
type inflatedCountStore struct {
	datastore.Interface
	total int
	calls int
}

func (s *inflatedCountStore) QueryRecordings(ctx context.Context, filter datastore.RecordingFilter, offset, limit int, wantCount bool) ([]datastore.Recording, int, error) {
	s.calls++
	recordings, _, err := s.Interface.QueryRecordings(ctx, filter, offset, limit, wantCount)
	return recordings, s.total, err
}

type failingStore struct {
	datastore.Interface
	err error
}

func (s *failingStore) QueryRecordings(ctx context.Context, filter datastore.RecordingFilter, offset, limit int, wantCount bool) ([]datastore.Recording, int, error) {
	return nil, 0, s.err
}

type baitFailingStore struct {
	datastore.Interface
	err error
}

func (s *baitFailingStore) AudioBaitEvents(ctx context.Context, deviceIDs []uint, from, until time.Time) ([]datastore.Event, error) {
	return nil, s.err
}

type pageArgs struct {
	offset    int
	limit     int
	wantCount bool
}

// pagingRecorderStore captures the paging arguments the engine sends.
type pagingRecorderStore struct {
	datastore.Interface
	pages []pageArgs
}

func (s *pagingRecorderStore) QueryRecordings(ctx context.Context, filter datastore.RecordingFilter, offset, limit int, wantCount bool) ([]datastore.Recording, int, error) {
	s.pages = append(s.pages, pageArgs{offset: offset, limit: limit, wantCount: wantCount})
	return s.Interface.QueryRecordings(ctx, filter, offset, limit, wantCount)
}

func TestEngineSplitsRecordingsIntoVisits(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 2 * time.Minute, 10 * time.Minute} {
		seedTestRecording(t, store, device.ID, group.ID, base.Add(offset))
	}

	engine := newTestEngine(store, Policy{VisitInterval: 5 * time.Minute, AudioBaitWindow: 24 * time.Hour})
	result, err := engine.Run(t.Context(), Params{})
	require.NoError(t, err)

	require.Len(t, result.Visits, 2)
	newest, oldest := result.Visits[0], result.Visits[1]
	assert.WithinDuration(t, base.Add(10*time.Minute), newest.Start, time.Second)
	assert.WithinDuration(t, base.Add(10*time.Minute), newest.End, time.Second)
	assert.Len(t, newest.Events, 1)
	assert.WithinDuration(t, base, oldest.Start, time.Second)
	assert.WithinDuration(t, base.Add(2*time.Minute), oldest.End, time.Second)
	assert.Len(t, oldest.Events, 2)
	for _, v := range result.Visits {
		assert.True(t, v.Complete)
		assert.Equal(t, "ridge-cam", v.DeviceName)
		assert.Equal(t, "okarito", v.GroupName)
	}

	assert.False(t, result.HasMoreVisits)
	assert.Equal(t, 3, result.QueryOffset)
	assert.Equal(t, 3, result.TotalRecordings)
	assert.Equal(t, 3, result.NumRecordings)
	assert.Equal(t, 2, result.NumVisits)
}

func TestEngineAppliesRecordingFilter(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 2 * time.Minute} {
		seedTestRecording(t, store, device.ID, group.ID, base.Add(offset))
	}

	filtered := 0
	engine := newTestEngine(store, testPolicy())
	result, err := engine.Run(t.Context(), Params{
		FilterRecording: func(r *datastore.Recording) {
			filtered++
			r.Device.DeviceName = "restricted"
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, filtered, "every fetched recording passes through the filter")
	require.Len(t, result.Visits, 1)
	assert.Equal(t, "restricted", result.Visits[0].DeviceName)
}

func TestEngineStopsOnceEnoughVisitsComplete(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Three devices with one long visit each, 50 recordings in total.
	counts := []int{20, 20, 10}
	devices := make([]datastore.Device, 0, len(counts))
	for i, n := range counts {
		device := seedTestDevice(t, store, fmt.Sprintf("cam-%d", i+1), group.ID)
		devices = append(devices, device)
		for j := range n {
			seedTestRecording(t, store, device.ID, group.ID, base.Add(-time.Duration(j)*time.Minute))
		}
	}

	engine := newTestEngine(store, testPolicy())
	result, err := engine.Run(t.Context(), Params{RequestVisits: 1})
	require.NoError(t, err)

	require.Len(t, result.Visits, 1)
	assert.Equal(t, devices[0].ID, result.Visits[0].DeviceID)
	assert.True(t, result.Visits[0].Complete)
	assert.Len(t, result.Visits[0].Events, 20)

	// The second device's partially read visit was discarded; its first
	// recording index is where the next query resumes.
	assert.True(t, result.HasMoreVisits)
	assert.Equal(t, 20, result.QueryOffset)
	assert.Less(t, result.NumRecordings, 50)
	assert.Equal(t, 50, result.TotalRecordings)
	assert.Contains(t, result.Summary.Devices, devices[0].ID)
	assert.NotContains(t, result.Summary.Devices, devices[1].ID)
}

func TestEngineResumption(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Each device carries two visits separated by a two hour gap.
	for i := range 3 {
		device := seedTestDevice(t, store, fmt.Sprintf("cam-%d", i+1), group.ID)
		for j := range 4 {
			seedTestRecording(t, store, device.ID, group.ID, base.Add(-time.Duration(j)*time.Minute))
			seedTestRecording(t, store, device.ID, group.ID, base.Add(-2*time.Hour-time.Duration(j)*time.Minute))
		}
	}

	sig := func(v *Visit) string {
		return fmt.Sprintf("%d|%d|%d|%d", v.DeviceID, v.Start.Unix(), v.End.Unix(), len(v.Events))
	}

	engine := newTestEngine(store, testPolicy())

	full, err := engine.Run(t.Context(), Params{})
	require.NoError(t, err)
	require.Len(t, full.Visits, 6)
	assert.False(t, full.HasMoreVisits)

	expected := make(map[string]bool)
	for _, v := range full.Visits {
		expected[sig(v)] = true
	}

	// Chasing one visit at a time through QueryOffset must walk the same set
	// without duplicates.
	collected := make(map[string]bool)
	offset := 0
	for range 20 {
		partial, err := engine.Run(t.Context(), Params{RequestVisits: 1, Offset: offset})
		require.NoError(t, err)
		for _, v := range partial.Visits {
			s := sig(v)
			assert.False(t, collected[s], "visit %s returned twice", s)
			collected[s] = true
		}
		if !partial.HasMoreVisits {
			break
		}
		require.Greater(t, partial.QueryOffset, offset, "resumption must advance")
		offset = partial.QueryOffset
	}
	assert.Equal(t, expected, collected)
}

func TestEngineTreatsEmptyPageAsExhaustion(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for j := range 4 {
		seedTestRecording(t, store, device.ID, group.ID, base.Add(-time.Duration(j)*time.Minute))
	}

	source := &inflatedCountStore{Interface: store, total: 100}
	engine := newTestEngine(source, testPolicy())
	result, err := engine.Run(t.Context(), Params{})
	require.NoError(t, err)

	require.Len(t, result.Visits, 1)
	assert.True(t, result.Visits[0].Complete)
	assert.False(t, result.HasMoreVisits)
	assert.Equal(t, 4, result.QueryOffset)
	assert.Equal(t, 100, result.TotalRecordings)
	assert.Equal(t, 4, result.NumRecordings)
	assert.Equal(t, 2, source.calls)
}

func TestEngineReturnsPartialResultOnCancellation(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedTestRecording(t, store, device.ID, group.ID, base)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	engine := newTestEngine(store, testPolicy())
	result, err := engine.Run(ctx, Params{Offset: 3})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Empty(t, result.Visits)
	assert.True(t, result.HasMoreVisits)
	assert.Equal(t, 3, result.QueryOffset)
	assert.Zero(t, result.NumRecordings)
}

func TestEnginePropagatesFetchErrors(t *testing.T) {
	store := newEngineStore(t)
	fetchErr := errors.New("replica lagging")

	engine := newTestEngine(&failingStore{Interface: store, err: fetchErr}, testPolicy())
	result, err := engine.Run(t.Context(), Params{})
	require.ErrorIs(t, err, fetchErr)
	assert.Nil(t, result)
}

func TestEnginePropagatesBaitLookupErrors(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)
	seedTestRecording(t, store, device.ID, group.ID, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	baitErr := errors.New("events table locked")
	engine := newTestEngine(&baitFailingStore{Interface: store, err: baitErr}, testPolicy())
	result, err := engine.Run(t.Context(), Params{})
	require.ErrorIs(t, err, baitErr)
	assert.Nil(t, result)
}

func TestEnginePagingBehaviour(t *testing.T) {
	store := newEngineStore(t)
	group := seedTestGroup(t, store, "okarito")
	device := seedTestDevice(t, store, "ridge-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for j := range 5 {
		seedTestRecording(t, store, device.ID, group.ID, base.Add(-time.Duration(j)*time.Minute))
	}

	source := &pagingRecorderStore{Interface: store}
	engine := newTestEngine(source, testPolicy())

	result, err := engine.Run(t.Context(), Params{RequestVisits: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Visits, 1)
	assert.False(t, result.HasMoreVisits)
	assert.Equal(t, 5, result.QueryOffset)

	// The caller's limit bounds the first page only, the count is fetched
	// once, and later pages grow with the remaining visit demand.
	require.Equal(t, []pageArgs{
		{offset: 0, limit: 2, wantCount: true},
		{offset: 2, limit: 2},
		{offset: 4, limit: 2},
	}, source.pages)
}
