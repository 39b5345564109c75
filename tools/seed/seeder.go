package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/TheCacophonyProject/Full-Noise/internal/datastore"
)

// Options configures the generated scenario.
type Options struct {
	ConfigPath string
	Devices    int
	Days       int
	Seed       uint64
	Start      time.Time
	Verbose    bool
}

// Stats counts what one run wrote.
type Stats struct {
	Files       int
	Devices     int
	Recordings  int
	Tracks      int
	Tags        int
	BaitEvents  int
	OtherEvents int
	Duration    time.Duration

	// BaitFileIDs are the seeded sound library ids, kept for verification.
	BaitFileIDs []uint
}

// Print outputs the run summary.
func (s *Stats) Print() {
	fmt.Println("\n=== Seed Summary ===")
	fmt.Printf("Duration: %s\n\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("  %-12s %6d\n", "files", s.Files)
	fmt.Printf("  %-12s %6d\n", "devices", s.Devices)
	fmt.Printf("  %-12s %6d\n", "recordings", s.Recordings)
	fmt.Printf("  %-12s %6d\n", "tracks", s.Tracks)
	fmt.Printf("  %-12s %6d\n", "tags", s.Tags)
	fmt.Printf("  %-12s %6d\n", "bait events", s.BaitEvents)
	fmt.Printf("  %-12s %6d\n", "other events", s.OtherEvents)
}

// The two fixed groups every scenario uses. probe() relies on the first
// entry, so the ids and names here are the single source of truth.
var seedGroups = []datastore.Group{
	{ID: 1, GroupName: "seed-karaka-block"},
	{ID: 2, GroupName: "seed-totara-gully"},
}

// species a burst can be attributed to; the weights front-load the pests
// this kind of deployment is after.
var species = []string{
	"possum", "possum", "possum",
	"rat", "rat",
	"cat", "hedgehog", "stoat", "bird",
}

var baitSounds = []string{"morepork", "rat-squeak", "possum-screech", "bellbird"}

// Seeder writes one deterministic scenario through the store's public
// write path, the same calls the test suites seed with.
type Seeder struct {
	store datastore.Interface
	opts  Options
	rng   *rand.Rand
	stats Stats
}

// NewSeeder returns a Seeder whose output is fully determined by
// opts.Seed and opts.Start.
func NewSeeder(store datastore.Interface, opts Options) *Seeder {
	return &Seeder{
		store: store,
		opts:  opts,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed)),
	}
}

// Run writes the scenario and reports what it wrote.
func (s *Seeder) Run() (*Stats, error) {
	started := time.Now()

	if err := s.seedBaitFiles(); err != nil {
		return nil, err
	}
	for d := 0; d < s.opts.Devices; d++ {
		if err := s.seedDevice(d); err != nil {
			return nil, err
		}
	}

	s.stats.Duration = time.Since(started)
	return &s.stats, nil
}

// seedBaitFiles populates the sound library the bait events reference.
func (s *Seeder) seedBaitFiles() error {
	for _, sound := range baitSounds {
		details, err := json.Marshal(datastore.FileDetails{
			Name:         sound,
			OriginalName: sound + ".mp3",
		})
		if err != nil {
			return fmt.Errorf("encoding file details: %w", err)
		}
		file := datastore.File{Type: "audioBait", Details: details}
		if err := s.store.SaveFile(&file); err != nil {
			return fmt.Errorf("saving bait file %q: %w", sound, err)
		}
		s.stats.Files++
		s.stats.BaitFileIDs = append(s.stats.BaitFileIDs, file.ID)
	}
	return nil
}

// seedDevice writes all activity for one device: a handful of recording
// bursts per night, some preceded or accompanied by a bait playback, plus
// the occasional housekeeping event.
func (s *Seeder) seedDevice(d int) error {
	deviceID := uint(d + 1)
	group := seedGroups[d%len(seedGroups)]
	name := fmt.Sprintf("seed-camera-%02d", d+1)

	// The first recording carries the full device and group structs so the
	// store materializes them; later recordings reference them by id only.
	firstForDevice := true

	for day := 0; day < s.opts.Days; day++ {
		night := s.opts.Start.AddDate(0, 0, -day)

		for range 1 + s.rng.IntN(3) {
			// Activity clusters between 21:00 and 05:00.
			base := night.Add(21*time.Hour + time.Duration(s.rng.IntN(8*60))*time.Minute)
			if err := s.seedBurst(deviceID, group, name, base, firstForDevice); err != nil {
				return err
			}
			firstForDevice = false
		}

		if s.rng.IntN(10) == 0 {
			event := datastore.Event{
				DeviceID: deviceID,
				DateTime: night.Add(time.Duration(s.rng.IntN(24*60)) * time.Minute),
				Type:     "rpi-power-on",
			}
			if err := s.store.SaveEvent(&event); err != nil {
				return fmt.Errorf("saving power event for device %d: %w", deviceID, err)
			}
			s.stats.OtherEvents++
		}
	}
	s.stats.Devices++
	return nil
}

// seedBurst writes one visit-shaped cluster: consecutive recordings spaced
// well inside the default visit interval, attributed to one animal.
func (s *Seeder) seedBurst(deviceID uint, group datastore.Group, deviceName string, base time.Time, withGraph bool) error {
	animal := species[s.rng.IntN(len(species))]
	count := 1 + s.rng.IntN(4)
	baits := 0

	at := base
	for i := 0; i < count; i++ {
		recording := datastore.Recording{
			Type:              "thermalRaw",
			DeviceID:          deviceID,
			GroupID:           group.ID,
			RecordingDateTime: at,
			Duration:          15 + s.rng.IntN(105),
		}
		if s.rng.IntN(10) == 0 {
			recording.Type = "audio"
		}
		if withGraph && i == 0 {
			recording.Device = datastore.Device{ID: deviceID, DeviceName: deviceName, GroupID: group.ID, Group: group}
			recording.Group = group
		}
		s.addTracks(&recording, animal)

		if err := s.store.SaveRecording(&recording); err != nil {
			return fmt.Errorf("saving recording for device %d at %s: %w", deviceID, at, err)
		}
		s.stats.Recordings++

		if i == 0 && s.rng.IntN(20) < 3 {
			if err := s.seedBaitEvent(deviceID, at.Add(time.Duration(10+s.rng.IntN(50))*time.Second)); err != nil {
				return err
			}
			baits++
		}

		at = at.Add(time.Duration(30+s.rng.IntN(210)) * time.Second)
	}

	// A bait play shortly before the animal showed up. Written after the
	// recordings so the device row exists; matching goes by timestamp,
	// not insert order.
	if s.rng.IntN(10) < 4 {
		if err := s.seedBaitEvent(deviceID, base.Add(-time.Duration(1+s.rng.IntN(18))*time.Minute)); err != nil {
			return err
		}
		baits++
	}

	if s.opts.Verbose {
		fmt.Printf("  device %d %s: %d recordings of %q, %d bait plays\n",
			deviceID, base.Format("2006-01-02 15:04"), count, animal, baits)
	}
	return nil
}

// addTracks attaches detection tracks and tags. Some recordings stay
// trackless so the engine's placeholder tagging sees real input.
func (s *Seeder) addTracks(recording *datastore.Recording, animal string) {
	if s.rng.IntN(100) < 15 {
		return
	}

	for range 1 + s.rng.IntN(2) {
		what := animal
		if s.rng.IntN(10) == 0 {
			what = species[s.rng.IntN(len(species))]
		}

		startS := s.rng.Float64() * float64(recording.Duration) / 2
		track := datastore.Track{
			StartS: startS,
			EndS:   startS + 1 + s.rng.Float64()*float64(recording.Duration)/2,
			Tags: []datastore.TrackTag{{
				What:       what,
				Automatic:  true,
				Confidence: 0.4 + 0.5*s.rng.Float64(),
			}},
		}
		s.stats.Tags++

		// A human reviewer confirms roughly a third of the tracks.
		if s.rng.IntN(3) == 0 {
			userID := uint(1 + s.rng.IntN(5))
			track.Tags = append(track.Tags, datastore.TrackTag{
				What:       what,
				Confidence: 0.85 + 0.15*s.rng.Float64(),
				UserID:     &userID,
			})
			s.stats.Tags++
		}

		recording.Tracks = append(recording.Tracks, track)
		s.stats.Tracks++
	}
}

func (s *Seeder) seedBaitEvent(deviceID uint, at time.Time) error {
	details, err := json.Marshal(datastore.AudioBaitDetails{
		FileID: s.stats.BaitFileIDs[s.rng.IntN(len(s.stats.BaitFileIDs))],
		Volume: 5 + s.rng.IntN(6),
	})
	if err != nil {
		return fmt.Errorf("encoding bait details: %w", err)
	}
	event := datastore.Event{
		DeviceID: deviceID,
		DateTime: at,
		Type:     datastore.EventTypeAudioBait,
		Details:  details,
	}
	if err := s.store.SaveEvent(&event); err != nil {
		return fmt.Errorf("saving bait event for device %d: %w", deviceID, err)
	}
	s.stats.BaitEvents++
	return nil
}
