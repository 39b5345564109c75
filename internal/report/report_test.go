package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()

	settings := &conf.Settings{}
	settings.Main.TimeAs24h = true
	settings.Report.URLBase = "https://browse.example.org/"

	assembler, err := NewAssembler(settings)
	require.NoError(t, err)
	return assembler
}

func TestRowsInterleavesBaitBetweenEvents(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &visits.Visit{
		ID:         7,
		DeviceName: "ridge-cam",
		GroupName:  "okarito",
		AssumedTag: "possum",
		Start:      base,
		End:        base.Add(11 * time.Minute),
		Events: []visits.VisitEvent{
			{RecordingID: 2, Start: base.Add(10 * time.Minute), End: base.Add(11 * time.Minute), What: "possum", Confidence: 0.85},
			{RecordingID: 1, Start: base, End: base.Add(time.Minute), What: "possum", Confidence: 0.6},
		},
		AudioBaitEvents: []visits.AudioBaitEvent{
			{EventID: 31, DateTime: base.Add(5 * time.Minute), FileName: "chirp.mp3", Volume: 8},
		},
	}

	rows := testAssembler(t).Rows(v)
	require.Len(t, rows, 4)

	visitRow, ok := rows[0].(*VisitRow)
	require.True(t, ok)
	assert.Equal(t, 7, visitRow.VisitID)
	assert.Equal(t, 2, visitRow.NumEvents)
	assert.Equal(t, "12:00:00", visitRow.Start)
	assert.Equal(t, "12:11:00", visitRow.End)

	// The bait play at +5m lands between the +10m and +0m events.
	first, ok := rows[1].(*EventRow)
	require.True(t, ok)
	assert.Equal(t, uint(2), first.RecordingID)

	bait, ok := rows[2].(*AudioBaitRow)
	require.True(t, ok)
	assert.Equal(t, "12:05:00", bait.Start)
	assert.Equal(t, "chirp.mp3 (volume 8)", bait.Played)

	last, ok := rows[3].(*EventRow)
	require.True(t, ok)
	assert.Equal(t, uint(1), last.RecordingID)
}

func TestRowsFlushesLeadingAndTrailingBait(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &visits.Visit{
		ID:    3,
		Start: base,
		End:   base.Add(time.Minute),
		Events: []visits.VisitEvent{
			{RecordingID: 1, Start: base, End: base.Add(time.Minute), What: "cat"},
		},
		AudioBaitEvents: []visits.AudioBaitEvent{
			{EventID: 1, DateTime: base.Add(30 * time.Second)},
			{EventID: 2, DateTime: base.Add(-20 * time.Minute)},
		},
	}

	rows := testAssembler(t).Rows(v)
	require.Len(t, rows, 4)
	// Bait newer than the event leads it, older bait trails everything.
	assert.IsType(t, &VisitRow{}, rows[0])
	assert.IsType(t, &AudioBaitRow{}, rows[1])
	assert.IsType(t, &EventRow{}, rows[2])
	assert.IsType(t, &AudioBaitRow{}, rows[3])
}

func TestRowColumnLayout(t *testing.T) {
	event := &EventRow{VisitID: 4, What: "stoat", RecordingID: 42, Date: "2024-05-01",
		Start: "12:00:00", End: "12:01:00", Confidence: 0.85, URL: "u"}
	cols := event.Columns()
	require.Len(t, cols, len(columns))
	assert.Equal(t, "4", cols[0])
	assert.Equal(t, rowTypeEvent, cols[3])
	assert.Equal(t, "stoat", cols[5])
	assert.Equal(t, "42", cols[6])
	assert.Equal(t, "0.85", cols[10])
	assert.Equal(t, "u", cols[13])

	visit := &VisitRow{VisitID: 4, Group: "okarito", Device: "ridge-cam",
		AssumedTag: "stoat", NumEvents: 3}
	cols = visit.Columns()
	require.Len(t, cols, len(columns))
	assert.Equal(t, rowTypeVisit, cols[3])
	assert.Equal(t, "stoat", cols[4])
	assert.Equal(t, "3", cols[11])

	bait := &AudioBaitRow{VisitID: 4, Played: "chirp.mp3"}
	cols = bait.Columns()
	require.Len(t, cols, len(columns))
	assert.Equal(t, rowTypeAudioBait, cols[3])
	assert.Equal(t, "chirp.mp3", cols[12])
}

func TestWriteCSVEscapesSpecialCharacters(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := &visits.Visit{
		ID:         1,
		DeviceName: `ridge "pro", north`,
		GroupName:  "okarito",
		AssumedTag: "possum",
		Start:      base,
		End:        base,
		Events: []visits.VisitEvent{
			{RecordingID: 42, Start: base, End: base.Add(time.Minute), What: "possum", Confidence: 0.85},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, testAssembler(t).WriteCSV(&buf, []*visits.Visit{v}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, `ridge "pro", north`, records[1][2])
	assert.Equal(t, "https://browse.example.org/recording/42", records[2][13])
}

func TestCSVWriterStreamsAcrossAppends(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mk := func(id int) *visits.Visit {
		return &visits.Visit{ID: id, Start: base, End: base}
	}

	var buf bytes.Buffer
	w := testAssembler(t).NewCSVWriter(&buf)
	require.NoError(t, w.Append([]*visits.Visit{mk(1)}))
	require.NoError(t, w.Append([]*visits.Visit{mk(2)}))
	require.NoError(t, w.Flush())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// One header despite two appends.
	require.Len(t, records, 3)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "2", records[2][0])
}

func TestNewAssemblerTimeZone(t *testing.T) {
	settings := &conf.Settings{}
	settings.Report.TimeZone = "Pacific/Auckland"
	settings.Main.TimeAs24h = false

	assembler, err := NewAssembler(settings)
	require.NoError(t, err)

	// 23:30 UTC on May 1 is already May 2 in New Zealand.
	late := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	row := assembler.visitRow(&visits.Visit{Start: late, End: late})
	assert.Equal(t, "2024-05-02", row.Date)
	assert.Equal(t, "11:30:00 AM", row.Start)

	settings.Report.TimeZone = "Nowhere/Invalid"
	_, err = NewAssembler(settings)
	require.Error(t, err)
}
