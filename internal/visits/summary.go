// summary.go: cross-device visit accumulation and completeness tracking
package visits

import (
	"maps"
	"slices"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// DeviceSummary owns every device's visit accumulator for one engine
// invocation. Instances carry open visit state and are not safe for
// concurrent use; each invocation builds its own.
type DeviceSummary struct {
	Devices map[uint]*DeviceVisits `json:"devices"`

	policy Policy
	// visitID numbers visits in generation order across all devices.
	visitID int
	// lastDeviceID is the device of the stream's most recently consumed
	// recording, the only device that may still produce older recordings.
	lastDeviceID uint
	// removedOffset remembers the earliest query offset among removed
	// incomplete visits, -1 when none were removed.
	removedOffset int
	// baitFiles is the set of audio files referenced by any matched bait
	// event, resolved to names in one bulk lookup.
	baitFiles map[uint]struct{}
}

// NewDeviceSummary creates an empty summary stitching visits under policy.
func NewDeviceSummary(policy Policy) *DeviceSummary {
	return &DeviceSummary{
		Devices:       make(map[uint]*DeviceVisits),
		policy:        policy,
		removedOffset: -1,
		baitFiles:     make(map[uint]struct{}),
	}
}

// GenerateVisits feeds one page of recordings through the per-device
// builders. offset is the absolute stream index of the page's first
// recording; userID breaks tag ties in that user's favor. When
// gotAllRecordings is set the source is exhausted and every open visit is
// promoted to complete.
func (s *DeviceSummary) GenerateVisits(recordings []datastore.Recording, offset int, gotAllRecordings bool, userID uint) {
	for i := range recordings {
		s.consume(&recordings[i], offset+i, userID)
	}
	if gotAllRecordings {
		s.MarkCompleted()
	}
}

func (s *DeviceSummary) consume(rec *datastore.Recording, offset int, userID uint) {
	dv := s.Devices[rec.DeviceID]
	if dv == nil {
		dv = newDeviceVisits(rec, s.policy)
		s.Devices[rec.DeviceID] = dv
	}
	s.lastDeviceID = rec.DeviceID

	events := buildEvents(rec, userID)
	if v := dv.current(); v != nil && dv.withinInterval(v, rec) {
		v.extend(rec, events)
		return
	}

	// A strictly older recording of the same device arrived, so nothing can
	// extend the open visit anymore.
	dv.completeTrailing()
	s.visitID++
	dv.open(s.visitID, rec, offset, events)
}

// CheckForCompleteVisits promotes the trailing visit of every exhausted
// device. Recordings stream in device order, so once a later device has been
// consumed no earlier device can produce further recordings; only the device
// still being read may keep its trailing visit open.
func (s *DeviceSummary) CheckForCompleteVisits() {
	for id, dv := range s.Devices {
		if id != s.lastDeviceID {
			dv.completeTrailing()
		}
	}
}

// MarkCompleted seals every open visit. Only valid once the source is
// exhausted, at which point no visit can grow further.
func (s *DeviceSummary) MarkCompleted() {
	for _, dv := range s.Devices {
		dv.completeTrailing()
	}
}

// CompleteVisitsCount returns how many visits are finalized so far.
func (s *DeviceSummary) CompleteVisitsCount() int {
	count := 0
	for _, dv := range s.Devices {
		count += len(dv.Visits)
		if dv.current() != nil {
			count--
		}
	}
	return count
}

// CompleteVisits returns every finalized visit across all devices sorted by
// start time descending. Ties keep the order the recordings were fetched in.
func (s *DeviceSummary) CompleteVisits() []*Visit {
	ids := slices.Sorted(maps.Keys(s.Devices))

	visits := make([]*Visit, 0, s.CompleteVisitsCount())
	for _, id := range ids {
		for _, v := range s.Devices[id].Visits {
			if v.Complete {
				visits = append(visits, v)
			}
		}
	}
	slices.SortStableFunc(visits, func(a, b *Visit) int {
		return b.Start.Compare(a.Start)
	})
	return visits
}

// RemoveIncompleteVisits discards every visit that could still grow and
// remembers the earliest offset among them as the resumption point. Devices
// left without visits are dropped entirely. Returns the number of visits
// removed.
func (s *DeviceSummary) RemoveIncompleteVisits() int {
	removed := 0
	for id, dv := range s.Devices {
		offset := dv.removeIncomplete()
		if offset < 0 {
			continue
		}
		removed++
		if s.removedOffset < 0 || offset < s.removedOffset {
			s.removedOffset = offset
		}
		if len(dv.Visits) == 0 {
			delete(s.Devices, id)
		}
	}
	return removed
}

// EarliestIncompleteOffset returns the minimum query offset among incomplete
// visits, including ones already removed, or -1 when every visit is
// complete. Resuming at this offset re-reads exactly the discarded work.
func (s *DeviceSummary) EarliestIncompleteOffset() int {
	earliest := s.removedOffset
	for _, dv := range s.Devices {
		if offset := dv.incompleteOffset(); offset >= 0 && (earliest < 0 || offset < earliest) {
			earliest = offset
		}
	}
	return earliest
}

func (s *DeviceSummary) addBaitFile(id uint) {
	s.baitFiles[id] = struct{}{}
}

// baitFileIDs returns the referenced audio file ids in ascending order.
func (s *DeviceSummary) baitFileIDs() []uint {
	return slices.Sorted(maps.Keys(s.baitFiles))
}

func (s *DeviceSummary) finalize() {
	for _, dv := range s.Devices {
		dv.finalize()
	}
}
