// model.go defines the persistent entities the visit aggregation engine reads
package datastore

import (
	"encoding/json"
	"time"
)

// EventTypeAudioBait marks events recording an audio bait playback.
const EventTypeAudioBait = "audioBait"

// Group is a collection of devices administered together.
type Group struct {
	ID        uint   `gorm:"primaryKey"`
	GroupName string `gorm:"uniqueIndex;not null"`
}

// Device is a camera or recorder deployed in the field.
type Device struct {
	ID         uint   `gorm:"primaryKey"`
	DeviceName string `gorm:"index;not null"`
	GroupID    uint   `gorm:"index;not null"`
	Group      Group  `gorm:"foreignKey:GroupID"`
}

// Station marks a named point of interest within a group's area.
type Station struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index;not null"`
	GroupID   uint   `gorm:"index"`
	Latitude  float64
	Longitude float64
	RetiredAt *time.Time
}

// Recording is a single uploaded capture together with its detection tracks.
type Recording struct {
	ID                uint      `gorm:"primaryKey"`
	Type              string    `gorm:"index"` // thermalRaw or audio
	DeviceID          uint      `gorm:"index:idx_recordings_device_datetime"`
	Device            Device    `gorm:"foreignKey:DeviceID"`
	GroupID           uint      `gorm:"index"`
	Group             Group     `gorm:"foreignKey:GroupID"`
	StationID         *uint     `gorm:"index"`
	RecordingDateTime time.Time `gorm:"index:idx_recordings_device_datetime"`
	Duration          int
	Tracks            []Track `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE"`
}

// Track is one detected animal trace within a recording.
type Track struct {
	ID          uint `gorm:"primaryKey"`
	RecordingID uint `gorm:"index;not null"`
	StartS      float64
	EndS        float64
	Tags        []TrackTag `gorm:"foreignKey:TrackID;constraint:OnDelete:CASCADE"`
}

// TrackTag labels a track with a classification, applied either by the
// automatic classifier or by a person.
type TrackTag struct {
	ID         uint   `gorm:"primaryKey"`
	TrackID    uint   `gorm:"index;not null"`
	What       string `gorm:"index"`
	Automatic  bool
	Confidence float64
	UserID     *uint
}

// Event is a device-reported occurrence. Audio bait playbacks arrive as
// Type "audioBait" with the played file id and volume in Details.
type Event struct {
	ID       uint      `gorm:"primaryKey"`
	DeviceID uint      `gorm:"index:idx_events_device_datetime"`
	Device   Device    `gorm:"foreignKey:DeviceID"`
	DateTime time.Time `gorm:"index:idx_events_device_datetime"`
	Type     string    `gorm:"index"`
	Details  []byte    `gorm:"type:json"`
}

// File is uploaded reference content, such as the audio bait sound library.
type File struct {
	ID      uint   `gorm:"primaryKey"`
	Type    string `gorm:"index"`
	Details []byte `gorm:"type:json"`
}

// AudioBaitDetails is the payload carried by audio bait events.
type AudioBaitDetails struct {
	FileID uint `json:"fileId"`
	Volume int  `json:"volume"`
}

// FileDetails is the payload describing an uploaded file.
type FileDetails struct {
	Name         string `json:"name"`
	OriginalName string `json:"originalName"`
}

// DecodeDetails unmarshals the event's JSON details into v. Events with no
// details leave v untouched.
func (e *Event) DecodeDetails(v any) error {
	if len(e.Details) == 0 {
		return nil
	}
	return json.Unmarshal(e.Details, v)
}

// DecodeDetails unmarshals the file's JSON details into v. Files with no
// details leave v untouched.
func (f *File) DecodeDetails(v any) error {
	if len(f.Details) == 0 {
		return nil
	}
	return json.Unmarshal(f.Details, v)
}

// DisplayName returns the file's human-facing name, falling back to the
// original upload name. Returns an empty string when neither is present.
func (f *File) DisplayName() string {
	var details FileDetails
	if err := f.DecodeDetails(&details); err != nil {
		return ""
	}
	if details.Name != "" {
		return details.Name
	}
	return details.OriginalName
}
