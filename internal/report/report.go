// Package report flattens aggregated visits into a tabular export. Each
// visit becomes a summary row followed by its recording events and audio
// bait plays, interleaved newest first so a bait play sits next to the
// event it most plausibly provoked.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/errors"
	"github.com/TheCacophonyProject/Full-Noise/internal/visits"
)

const (
	rowTypeVisit     = "Visit"
	rowTypeEvent     = "Event"
	rowTypeAudioBait = "Audio Bait"
)

// columns is the ordered export header. Downstream spreadsheets depend on
// this layout, so append new columns rather than reordering.
var columns = []string{
	"Visit ID",
	"Group",
	"Device",
	"Type",
	"Assumed Tag",
	"What",
	"Recording ID",
	"Date",
	"Start",
	"End",
	"Confidence",
	"# Events",
	"Audio Played",
	"URL",
}

// Row is one line of the visit export.
type Row interface {
	Columns() []string
}

// VisitRow summarises one visit.
type VisitRow struct {
	VisitID    int
	Group      string
	Device     string
	AssumedTag string
	Date       string
	Start      string
	End        string
	NumEvents  int
}

func (r *VisitRow) Columns() []string {
	return []string{
		strconv.Itoa(r.VisitID), r.Group, r.Device, rowTypeVisit, r.AssumedTag,
		"", "", r.Date, r.Start, r.End, "", strconv.Itoa(r.NumEvents), "", "",
	}
}

// EventRow is one recording-derived event within a visit.
type EventRow struct {
	VisitID     int
	What        string
	RecordingID uint
	Date        string
	Start       string
	End         string
	Confidence  float64
	URL         string
}

func (r *EventRow) Columns() []string {
	return []string{
		strconv.Itoa(r.VisitID), "", "", rowTypeEvent, "", r.What,
		strconv.FormatUint(uint64(r.RecordingID), 10), r.Date, r.Start, r.End,
		strconv.FormatFloat(r.Confidence, 'f', 2, 64), "", "", r.URL,
	}
}

// AudioBaitRow is one audio bait play attached to a visit.
type AudioBaitRow struct {
	VisitID int
	Date    string
	Start   string
	Played  string
}

func (r *AudioBaitRow) Columns() []string {
	return []string{
		strconv.Itoa(r.VisitID), "", "", rowTypeAudioBait, "", "", "",
		r.Date, r.Start, "", "", "", r.Played, "",
	}
}

// Assembler renders visits into export rows using the configured time zone
// and recording link base.
type Assembler struct {
	loc        *time.Location
	timeFormat string
	urlBase    string
}

// NewAssembler resolves the report time zone from settings. An unset zone
// renders in UTC; an unknown zone name is a configuration error.
func NewAssembler(settings *conf.Settings) (*Assembler, error) {
	loc := time.UTC
	if tz := settings.Report.TimeZone; tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, errors.New(err).
				Component("report").
				Category(errors.CategoryConfiguration).
				Context("timezone", tz).
				Build()
		}
	}

	timeFormat := time.TimeOnly
	if !settings.Main.TimeAs24h {
		timeFormat = "03:04:05 PM"
	}

	return &Assembler{
		loc:        loc,
		timeFormat: timeFormat,
		urlBase:    strings.TrimSuffix(settings.Report.URLBase, "/"),
	}, nil
}

// Rows flattens one visit, newest first: the summary row, then events with
// the audio bait plays that happened after each event's start emitted just
// before it. Bait events older than every event trail at the end.
func (a *Assembler) Rows(v *visits.Visit) []Row {
	rows := make([]Row, 0, 1+len(v.Events)+len(v.AudioBaitEvents))
	rows = append(rows, a.visitRow(v))

	bait := v.AudioBaitEvents
	next := 0
	for i := range v.Events {
		ev := &v.Events[i]
		for next < len(bait) && bait[next].DateTime.After(ev.Start) {
			rows = append(rows, a.baitRow(v, &bait[next]))
			next++
		}
		rows = append(rows, a.eventRow(v, ev))
	}
	for ; next < len(bait); next++ {
		rows = append(rows, a.baitRow(v, &bait[next]))
	}
	return rows
}

func (a *Assembler) visitRow(v *visits.Visit) *VisitRow {
	return &VisitRow{
		VisitID:    v.ID,
		Group:      v.GroupName,
		Device:     v.DeviceName,
		AssumedTag: v.AssumedTag,
		Date:       a.date(v.Start),
		Start:      a.clock(v.Start),
		End:        a.clock(v.End),
		NumEvents:  len(v.Events),
	}
}

func (a *Assembler) eventRow(v *visits.Visit, ev *visits.VisitEvent) *EventRow {
	return &EventRow{
		VisitID:     v.ID,
		What:        ev.What,
		RecordingID: ev.RecordingID,
		Date:        a.date(ev.Start),
		Start:       a.clock(ev.Start),
		End:         a.clock(ev.End),
		Confidence:  ev.Confidence,
		URL:         a.recordingURL(ev.RecordingID),
	}
}

func (a *Assembler) baitRow(v *visits.Visit, ev *visits.AudioBaitEvent) *AudioBaitRow {
	return &AudioBaitRow{
		VisitID: v.ID,
		Date:    a.date(ev.DateTime),
		Start:   a.clock(ev.DateTime),
		Played:  baitLabel(ev),
	}
}

func (a *Assembler) date(t time.Time) string {
	return t.In(a.loc).Format(time.DateOnly)
}

func (a *Assembler) clock(t time.Time) string {
	return t.In(a.loc).Format(a.timeFormat)
}

func (a *Assembler) recordingURL(id uint) string {
	if a.urlBase == "" {
		return ""
	}
	return fmt.Sprintf("%s/recording/%d", a.urlBase, id)
}

// baitLabel formats what was played. The file name may be blank when the
// sound library entry could not be resolved.
func baitLabel(ev *visits.AudioBaitEvent) string {
	switch {
	case ev.FileName != "" && ev.Volume > 0:
		return fmt.Sprintf("%s (volume %d)", ev.FileName, ev.Volume)
	case ev.FileName != "":
		return ev.FileName
	case ev.Volume > 0:
		return fmt.Sprintf("volume %d", ev.Volume)
	default:
		return ""
	}
}

// CSVWriter streams visit rows to an underlying writer, emitting the header
// before the first row. Append may be called once per engine page so a full
// export never needs all visits in memory.
type CSVWriter struct {
	assembler *Assembler
	w         *csv.Writer
	started   bool
}

// NewCSVWriter wraps w for streamed CSV output.
func (a *Assembler) NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{assembler: a, w: csv.NewWriter(w)}
}

// Append renders the given visits after the header.
func (c *CSVWriter) Append(visitList []*visits.Visit) error {
	if !c.started {
		if err := c.w.Write(columns); err != nil {
			return writeError(err, 0)
		}
		c.started = true
	}
	for _, v := range visitList {
		for _, row := range c.assembler.Rows(v) {
			if err := c.w.Write(row.Columns()); err != nil {
				return writeError(err, v.ID)
			}
		}
	}
	return nil
}

// Flush drains buffered rows and surfaces any deferred write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return writeError(err, 0)
	}
	return nil
}

// WriteCSV writes the header and every visit's rows to w in one pass.
func (a *Assembler) WriteCSV(w io.Writer, visitList []*visits.Visit) error {
	cw := a.NewCSVWriter(w)
	if err := cw.Append(visitList); err != nil {
		return err
	}
	return cw.Flush()
}

func writeError(err error, visitID int) error {
	builder := errors.New(err).
		Component("report").
		Category(errors.CategoryReportGeneration)
	if visitID > 0 {
		builder = builder.Context("visit_id", visitID)
	}
	return builder.Build()
}
