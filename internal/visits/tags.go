// tags.go: tag selection for visit events and whole visits
package visits

import (
	"slices"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// buildEvents converts one recording into visit events, one per track. A
// recording without tracks still yields a single placeholder event so the
// visit never loses the recording.
func buildEvents(rec *datastore.Recording, userID uint) []VisitEvent {
	if len(rec.Tracks) == 0 {
		return []VisitEvent{{
			RecordingID: rec.ID,
			Start:       rec.RecordingDateTime,
			End:         rec.RecordingDateTime.Add(time.Duration(rec.Duration) * time.Second),
			What:        TagUnidentified,
		}}
	}

	events := make([]VisitEvent, 0, len(rec.Tracks))
	for i := range rec.Tracks {
		track := &rec.Tracks[i]
		what, confidence, human := chooseTrackTag(track.Tags, userID)
		events = append(events, VisitEvent{
			RecordingID: rec.ID,
			TrackID:     track.ID,
			Start:       rec.RecordingDateTime.Add(secondsToDuration(track.StartS)),
			End:         rec.RecordingDateTime.Add(secondsToDuration(track.EndS)),
			Confidence:  confidence,
			What:        what,
			human:       human,
		})
	}

	// Newest first, matching the direction recordings are consumed in.
	slices.SortStableFunc(events, func(a, b VisitEvent) int {
		return b.Start.Compare(a.Start)
	})
	return events
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// chooseTrackTag picks the tag a track is reported under. A person's tag
// always beats the classifier, and the requesting user's own tag beats other
// people's. Automatic tags compete on confidence. Tags without a label are
// ignored.
func chooseTrackTag(tags []datastore.TrackTag, userID uint) (what string, confidence float64, human bool) {
	var humanTag, autoTag *datastore.TrackTag
	for i := range tags {
		tag := &tags[i]
		if tag.What == "" {
			continue
		}
		if tag.Automatic {
			if autoTag == nil || tag.Confidence > autoTag.Confidence {
				autoTag = tag
			}
			continue
		}
		if userID != 0 && tag.UserID != nil && *tag.UserID == userID {
			humanTag = tag
			break
		}
		if humanTag == nil {
			humanTag = tag
		}
	}

	switch {
	case humanTag != nil:
		return humanTag.What, humanTag.Confidence, true
	case autoTag != nil:
		return autoTag.What, autoTag.Confidence, false
	default:
		return TagUnidentified, 0, false
	}
}

// resolveAssumedTag derives the visit's overall tag from its events. Human
// tags outvote automatic ones; within a class the most frequent tag wins and
// ties go to the most recently seen one. Placeholder events only count when
// the visit has nothing else.
func resolveAssumedTag(v *Visit) {
	v.AssumedTag = tallyTags(v.Events, true)
	if v.AssumedTag == "" {
		v.AssumedTag = tallyTags(v.Events, false)
	}
	if v.AssumedTag == "" {
		v.AssumedTag = TagUnidentified
	}
}

// tallyTags returns the winning tag among events of one class, or "" when
// the class holds no votes. Events are newest first, so a tag's earliest
// index is its most recent occurrence.
func tallyTags(events []VisitEvent, human bool) string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i := range events {
		ev := &events[i]
		if ev.human != human || ev.What == "" || ev.What == TagUnidentified {
			continue
		}
		counts[ev.What]++
		if _, ok := firstSeen[ev.What]; !ok {
			firstSeen[ev.What] = i
		}
	}

	best := ""
	for what := range counts {
		switch {
		case best == "":
			best = what
		case counts[what] > counts[best]:
			best = what
		case counts[what] == counts[best] && firstSeen[what] < firstSeen[best]:
			best = what
		}
	}
	return best
}
