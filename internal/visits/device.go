// device.go: per-device visit builder and accumulator
package visits

import (
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// VisitSummary aggregates the visits sharing one assumed tag at a device.
type VisitSummary struct {
	VisitCount int       `json:"visitCount"`
	EventCount int       `json:"eventCount"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// DeviceVisits accumulates one device's visits, newest first. Only the
// trailing visit may still be open; every visit before it was closed by an
// older recording and is immutable.
type DeviceVisits struct {
	DeviceID   uint      `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	GroupName  string    `json:"groupName"`
	Visits     []*Visit  `json:"visits"`
	VisitCount int       `json:"visitCount"`
	EventCount int       `json:"eventCount"`
	AudioBait  bool      `json:"audioBait"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	// AnimalSummary maps each assumed tag to the aggregate of its visits.
	AnimalSummary map[string]*VisitSummary `json:"animalSummary"`

	policy Policy
}

func newDeviceVisits(rec *datastore.Recording, policy Policy) *DeviceVisits {
	return &DeviceVisits{
		DeviceID:   rec.DeviceID,
		DeviceName: rec.Device.DeviceName,
		GroupName:  rec.Group.GroupName,
		policy:     policy,
	}
}

// current returns the open trailing visit, or nil when every visit is
// complete.
func (d *DeviceVisits) current() *Visit {
	if len(d.Visits) == 0 {
		return nil
	}
	if v := d.Visits[len(d.Visits)-1]; !v.Complete {
		return v
	}
	return nil
}

// withinInterval reports whether rec, which is older than everything in v,
// still belongs to v. The gap is measured against the visit's earliest
// recording; a zero gap extends.
func (d *DeviceVisits) withinInterval(v *Visit, rec *datastore.Recording) bool {
	gap := v.Start.Sub(rec.RecordingDateTime)
	return gap >= 0 && gap <= d.policy.VisitInterval
}

func (d *DeviceVisits) open(id int, rec *datastore.Recording, offset int, events []VisitEvent) {
	d.Visits = append(d.Visits, newVisit(id, rec, offset, events))
}

// completeTrailing seals the open visit once no deeper page can extend it.
func (d *DeviceVisits) completeTrailing() {
	if v := d.current(); v != nil {
		v.Complete = true
	}
}

// incompleteOffset returns the open visit's query offset, or -1 when every
// visit is complete.
func (d *DeviceVisits) incompleteOffset() int {
	if v := d.current(); v != nil {
		return v.QueryOffset
	}
	return -1
}

// removeIncomplete drops the trailing visit when it could still grow and
// returns its query offset, or -1 when there was nothing to drop.
func (d *DeviceVisits) removeIncomplete() int {
	v := d.current()
	if v == nil {
		return -1
	}
	d.Visits = d.Visits[:len(d.Visits)-1]
	return v.QueryOffset
}

// finalize resolves each visit's assumed tag and recomputes the aggregate
// counters from the visits that survived completeness filtering.
func (d *DeviceVisits) finalize() {
	d.VisitCount = len(d.Visits)
	d.EventCount = 0
	d.AudioBait = false
	d.AnimalSummary = make(map[string]*VisitSummary)

	for i, v := range d.Visits {
		resolveAssumedTag(v)
		d.EventCount += len(v.Events)
		if len(v.AudioBaitEvents) > 0 {
			d.AudioBait = true
		}
		if i == 0 || v.Start.Before(d.StartTime) {
			d.StartTime = v.Start
		}
		if i == 0 || v.End.After(d.EndTime) {
			d.EndTime = v.End
		}

		summary := d.AnimalSummary[v.AssumedTag]
		if summary == nil {
			summary = &VisitSummary{Start: v.Start, End: v.End}
			d.AnimalSummary[v.AssumedTag] = summary
		}
		summary.VisitCount++
		summary.EventCount += len(v.Events)
		if v.Start.Before(summary.Start) {
			summary.Start = v.Start
		}
		if v.End.After(summary.End) {
			summary.End = v.End
		}
	}
}
