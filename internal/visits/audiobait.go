// audiobait.go: matches lure playback events into the visits they relate to
package visits

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// Audio bait match kinds recorded against the visits metrics.
const (
	matchDuring = "during"
	matchBefore = "before"
)

// baitEvent is a decoded audio bait playback.
type baitEvent struct {
	id       uint
	deviceID uint
	at       time.Time
	details  datastore.AudioBaitDetails
}

// matchAudioBait fetches the bait playbacks bracketing the returned visits,
// attaches each to the visits it temporally relates to, and resolves the
// played file names in one bulk lookup. Fetch failures abort the invocation.
func (e *Engine) matchAudioBait(ctx context.Context, summary *DeviceSummary, visits []*Visit) error {
	if len(visits) == 0 {
		return nil
	}

	earliest, latest := visits[0].Start, visits[0].End
	deviceSet := make(map[uint]struct{})
	for _, v := range visits {
		if v.Start.Before(earliest) {
			earliest = v.Start
		}
		if v.End.After(latest) {
			latest = v.End
		}
		deviceSet[v.DeviceID] = struct{}{}
	}
	deviceIDs := slices.Sorted(maps.Keys(deviceSet))

	window := e.policy.AudioBaitWindow
	events, err := e.ds.AudioBaitEvents(ctx, deviceIDs, earliest.Add(-window), latest.Add(window))
	if err != nil {
		return err
	}

	// The store serves events newest first per device; keep that order.
	byDevice := make(map[uint][]baitEvent)
	for i := range events {
		ev := &events[i]
		var details datastore.AudioBaitDetails
		if err := ev.DecodeDetails(&details); err != nil {
			getLogger().Debug("Skipping audio bait event with undecodable details",
				"event_id", ev.ID, "device_id", ev.DeviceID, "error", err)
			continue
		}
		byDevice[ev.DeviceID] = append(byDevice[ev.DeviceID], baitEvent{
			id:       ev.ID,
			deviceID: ev.DeviceID,
			at:       ev.DateTime,
			details:  details,
		})
	}

	for deviceID, deviceEvents := range byDevice {
		dv := summary.Devices[deviceID]
		if dv == nil {
			continue
		}
		for _, v := range dv.Visits {
			during, before := assignBaitEvents(v, deviceEvents, window)
			e.recordBaitMatches(during, before)
		}
	}

	for _, v := range visits {
		for i := range v.AudioBaitEvents {
			if id := v.AudioBaitEvents[i].FileID; id != 0 {
				summary.addBaitFile(id)
			}
		}
	}
	ids := summary.baitFileIDs()
	if len(ids) == 0 {
		return nil
	}
	files, err := e.ds.LookupFiles(ctx, ids)
	if err != nil {
		return err
	}
	for _, v := range visits {
		for i := range v.AudioBaitEvents {
			// Unresolvable file ids leave the name blank.
			if file, ok := files[v.AudioBaitEvents[i].FileID]; ok {
				v.AudioBaitEvents[i].FileName = file.DisplayName()
			}
		}
	}
	return nil
}

// assignBaitEvents attaches the qualifying playbacks to one visit: every
// playback inside [start, end], plus the nearest playback preceding the
// visit within window in case the bait drew the animal in. Ties on the
// preceding playback time are all kept. events must be newest first.
func assignBaitEvents(v *Visit, events []baitEvent, window time.Duration) (during, before int) {
	var nearest time.Time
	for _, ev := range events {
		switch {
		case v.contains(ev.at):
			v.attachBait(ev)
			during++
		case ev.at.Before(v.Start) && v.Start.Sub(ev.at) <= window:
			// Events run newest first, so the first preceding playback is
			// the nearest one; only its exact-time ties also qualify.
			if nearest.IsZero() {
				nearest = ev.at
			}
			if ev.at.Equal(nearest) {
				v.attachBait(ev)
				before++
			}
		}
	}
	return during, before
}
