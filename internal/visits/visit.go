// Package visits stitches stored recordings into per-device animal visits.
//
// Recordings are consumed ordered by device then descending time, the order
// the datastore serves them in. Temporally close recordings of one device
// merge into a single visit; audio bait playbacks are matched into the
// visits they plausibly attracted. The Engine drives the whole process as a
// windowed fetch loop that can stop early and resume later without losing
// or double counting a recording.
package visits

import (
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// TagUnidentified is the placeholder tag for recordings carrying no usable
// classification. Such recordings still create or extend visits.
const TagUnidentified = "unidentified"

// VisitEvent is one detection track, or one track-less recording, inside a
// visit. Events are kept newest first, the direction they were consumed in.
type VisitEvent struct {
	RecordingID uint      `json:"recId"`
	TrackID     uint      `json:"trackId,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Confidence  float64   `json:"confidence"`
	What        string    `json:"what"`

	// human records whether the tag came from a person rather than the
	// classifier, which decides the event's weight in the visit tag vote.
	human bool
}

// AudioBaitEvent is a lure playback matched to a visit.
type AudioBaitEvent struct {
	EventID  uint      `json:"eventId"`
	DeviceID uint      `json:"deviceId"`
	DateTime time.Time `json:"dateTime"`
	FileID   uint      `json:"fileId"`
	FileName string    `json:"fileName,omitempty"`
	Volume   int       `json:"volume"`
}

// Visit is one presumed-continuous animal presence at a device, stitched
// from recordings whose gaps stay within the visit interval.
type Visit struct {
	ID         int       `json:"id"`
	DeviceID   uint      `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	GroupName  string    `json:"groupName"`
	StationID  *uint     `json:"stationId,omitempty"`
	AssumedTag string    `json:"assumedTag"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`

	// Events holds the visit's per-recording events, newest first.
	Events []VisitEvent `json:"events"`
	// AudioBaitEvents holds matched lure playbacks, newest first.
	AudioBaitEvents []AudioBaitEvent `json:"audioBaitEvents,omitempty"`

	// QueryOffset is the absolute stream index of the visit's most recent
	// recording. Resuming a scan at this offset re-reads the whole visit.
	QueryOffset int `json:"queryOffset"`
	// Complete marks the visit as unable to grow further. Complete visits
	// are never mutated again except for tag and bait annotation.
	Complete bool `json:"complete"`

	// recordings counts the distinct recordings consumed into the visit.
	recordings int
}

func newVisit(id int, rec *datastore.Recording, offset int, events []VisitEvent) *Visit {
	return &Visit{
		ID:          id,
		DeviceID:    rec.DeviceID,
		DeviceName:  rec.Device.DeviceName,
		GroupName:   rec.Group.GroupName,
		StationID:   rec.StationID,
		Start:       rec.RecordingDateTime,
		End:         rec.RecordingDateTime,
		Events:      events,
		QueryOffset: offset,
		recordings:  1,
	}
}

// extend absorbs an older recording into the visit, pulling its start
// earlier. The caller has already verified the interval policy.
func (v *Visit) extend(rec *datastore.Recording, events []VisitEvent) {
	v.Start = rec.RecordingDateTime
	v.Events = append(v.Events, events...)
	v.recordings++
}

// contains reports whether t falls inside the visit's [start, end] span.
func (v *Visit) contains(t time.Time) bool {
	return !t.Before(v.Start) && !t.After(v.End)
}

func (v *Visit) attachBait(ev baitEvent) {
	v.AudioBaitEvents = append(v.AudioBaitEvents, AudioBaitEvent{
		EventID:  ev.id,
		DeviceID: ev.deviceID,
		DateTime: ev.at,
		FileID:   ev.details.FileID,
		Volume:   ev.details.Volume,
	})
}
