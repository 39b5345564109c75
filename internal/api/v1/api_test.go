package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
	"github.com/TheCacophonyProject/Full-Noise/internal/observability"
)

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"
	settings.Visits.Interval = 10 * time.Minute
	settings.Visits.AudioBaitWindow = 24 * time.Hour
	settings.Report.URLBase = "https://browse.example.org"
	settings.Main.TimeAs24h = true
	return settings
}

func newTestAPI(t *testing.T, settings *conf.Settings) (*echo.Echo, *datastore.SQLiteStore) {
	t.Helper()

	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open(), "opening in-memory store")
	t.Cleanup(func() { _ = store.Close() })

	e := echo.New()
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	controller, err := New(e, store, settings, log.New(io.Discard, "", 0), m)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	return e, store
}

func seedAPIGroup(t *testing.T, store *datastore.SQLiteStore, name string) datastore.Group {
	t.Helper()

	group := datastore.Group{GroupName: name}
	require.NoError(t, store.DB.Create(&group).Error)
	return group
}

func seedAPIDevice(t *testing.T, store *datastore.SQLiteStore, name string, groupID uint) datastore.Device {
	t.Helper()

	device := datastore.Device{DeviceName: name, GroupID: groupID}
	require.NoError(t, store.DB.Create(&device).Error)
	return device
}

func seedAPIRecording(t *testing.T, store *datastore.SQLiteStore, deviceID, groupID uint, at time.Time) {
	t.Helper()

	recording := datastore.Recording{
		Type:              "thermalRaw",
		DeviceID:          deviceID,
		GroupID:           groupID,
		RecordingDateTime: at,
		Duration:          60,
	}
	require.NoError(t, store.SaveRecording(&recording))
}

func getJSON(t *testing.T, e *echo.Echo, target string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec.Code, body
}

func TestGetVisitsReturnsAggregatedVisits(t *testing.T) {
	e, store := newTestAPI(t, testSettings())
	group := seedAPIGroup(t, store, "okarito")
	device := seedAPIDevice(t, store, "ridge-cam", group.ID)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 2 * time.Minute, 30 * time.Minute} {
		seedAPIRecording(t, store, device.ID, group.ID, base.Add(offset))
	}

	code, body := getJSON(t, e, fmt.Sprintf("/api/v1/visits?devices=%d", device.ID))
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, float64(2), body["numVisits"])
	assert.Equal(t, false, body["hasMoreVisits"])
	assert.Equal(t, float64(3), body["totalRecordings"])

	visitList, ok := body["visits"].([]any)
	require.True(t, ok)
	require.Len(t, visitList, 2)
	first, ok := visitList[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ridge-cam", first["deviceName"])
	assert.Equal(t, "okarito", first["groupName"])
	assert.Equal(t, "unidentified", first["assumedTag"])
}

func TestGetVisitsFiltersByDevice(t *testing.T) {
	e, store := newTestAPI(t, testSettings())
	group := seedAPIGroup(t, store, "okarito")
	wanted := seedAPIDevice(t, store, "ridge-cam", group.ID)
	other := seedAPIDevice(t, store, "gully-cam", group.ID)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedAPIRecording(t, store, wanted.ID, group.ID, base)
	seedAPIRecording(t, store, other.ID, group.ID, base)

	code, body := getJSON(t, e, fmt.Sprintf("/api/v1/visits?devices=%d", wanted.ID))
	require.Equal(t, http.StatusOK, code)

	visitList, ok := body["visits"].([]any)
	require.True(t, ok)
	require.Len(t, visitList, 1)
	first, ok := visitList[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ridge-cam", first["deviceName"])
}

func TestGetVisitsRejectsBadParams(t *testing.T) {
	e, _ := newTestAPI(t, testSettings())

	for _, target := range []string{
		"/api/v1/visits?devices=abc",
		"/api/v1/visits?from=notatime",
		"/api/v1/visits?limit=-1",
	} {
		code, body := getJSON(t, e, target)
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.NotEmpty(t, body["error"], target)
		correlationID, _ := body["correlationId"].(string)
		assert.Len(t, correlationID, 8, target)
	}
}

// apiFailingStore serves queries from nothing but errors.
type apiFailingStore struct {
	datastore.Interface
	err error
}

func (s *apiFailingStore) QueryRecordings(ctx context.Context, filter datastore.RecordingFilter, offset, limit int, wantCount bool) ([]datastore.Recording, int, error) {
	return nil, 0, s.err
}

func TestGetVisitsEngineErrorReturns500(t *testing.T) {
	settings := testSettings()
	e := echo.New()
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	controller, err := New(e, &apiFailingStore{err: errors.New("replica lagging")},
		settings, log.New(io.Discard, "", 0), m)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	code, body := getJSON(t, e, "/api/v1/visits")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "replica lagging")
	correlationID, _ := body["correlationId"].(string)
	assert.Len(t, correlationID, 8)
}

func TestGetVisitsCachesResponses(t *testing.T) {
	e, store := newTestAPI(t, testSettings())
	group := seedAPIGroup(t, store, "okarito")
	device := seedAPIDevice(t, store, "ridge-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedAPIRecording(t, store, device.ID, group.ID, base)

	target := fmt.Sprintf("/api/v1/visits?devices=%d", device.ID)
	code, first := getJSON(t, e, target)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), first["numVisits"])

	// New data within the TTL is invisible to the identical query.
	seedAPIRecording(t, store, device.ID, group.ID, base.Add(-2*time.Hour))
	code, second := getJSON(t, e, target)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first, second)

	// A different query misses the cache and sees the new recording.
	code, fresh := getJSON(t, e, target+"&limit=10")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), fresh["numVisits"])
}

func TestVisitsReportStreamsCSV(t *testing.T) {
	settings := testSettings()
	// A cap of one visit per iteration forces the report to paginate.
	settings.Visits.MaxVisits = 1

	e, store := newTestAPI(t, settings)
	group := seedAPIGroup(t, store, "okarito")
	device := seedAPIDevice(t, store, "ridge-cam", group.ID)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Two visits sized so the first engine run stops before exhausting the
	// stream, forcing a second page.
	seedAPIRecording(t, store, device.ID, group.ID, base)
	seedAPIRecording(t, store, device.ID, group.ID, base.Add(-time.Minute))
	for j := range 3 {
		seedAPIRecording(t, store, device.ID, group.ID, base.Add(-2*time.Hour-time.Duration(j)*time.Minute))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/visits/report", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	// Header, then per visit a summary row and its event rows.
	require.Len(t, records, 8)
	assert.Equal(t, "Visit", records[1][3])
	assert.Equal(t, "Event", records[2][3])
	assert.Equal(t, "Event", records[3][3])
	assert.Equal(t, "Visit", records[4][3])
	assert.Equal(t, "ridge-cam", records[1][2])
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newTestAPI(t, testSettings())

	code, body := getJSON(t, e, "/healthz")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
}

func TestCacheKeyNormalizesParameterOrder(t *testing.T) {
	e := echo.New()
	controller := &Controller{}

	parse := func(query string) string {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/visits?"+query, http.NoBody)
		ctx := e.NewContext(req, httptest.NewRecorder())
		q, err := controller.parseVisitQuery(ctx)
		require.NoError(t, err)
		return q.key
	}

	assert.Equal(t, parse("devices=2,1&groups=5"), parse("devices=1,2&groups=5"))
	assert.NotEqual(t, parse("devices=1"), parse("devices=1&limit=10"))
}
