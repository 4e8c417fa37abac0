package media

import (
	"context"
	"slices"
	"sync"
)

type Constraints struct {
	Audio bool
	Video bool
}

// Devices captures local media.
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (*Stream, error)
}

type Stream struct {
	id string

	mu     sync.RWMutex
	tracks []*Track
}

func NewStream(id string, tracks ...*Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) AddTrack(t *Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.tracks, t) {
		s.tracks = append(s.tracks, t)
	}
}

func (s *Stream) Tracks() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tracks)
}

func (s *Stream) AudioTracks() []*Track {
	return s.byKind(KindAudio)
}

func (s *Stream) VideoTracks() []*Track {
	return s.byKind(KindVideo)
}

func (s *Stream) byKind(k Kind) []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Track
	for _, t := range s.tracks {
		if t.kind == k {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// LiveTracks counts tracks not yet stopped.
func (s *Stream) LiveTracks() int {
	n := 0
	for _, t := range s.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}
