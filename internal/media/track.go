// Package media models captured audio/video as streams of independently
// toggleable tracks and bridges them to pion/webrtc.
package media

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
)

var (
	ErrPermissionDenied = errors.New("media: permission denied")
	ErrNoDevice         = errors.New("media: requested device not found")
	ErrTrackStopped     = errors.New("media: track stopped")
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

type Track struct {
	id   string
	kind Kind

	mu      sync.Mutex
	enabled bool
	stopped bool
	onStop  []func()

	local *webrtc.TrackLocalStaticSample // nil for remote tracks
}

// NewTrack returns an enabled track with no sink.
func NewTrack(id string, kind Kind) *Track {
	return &Track{id: id, kind: kind, enabled: true}
}

func newLocalTrack(id string, kind Kind, local *webrtc.TrackLocalStaticSample) *Track {
	t := NewTrack(id, kind)
	t.local = local
	return t
}

func (t *Track) ID() string { return t.id }

func (t *Track) Kind() Kind { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Live reports a track that still holds its device.
func (t *Track) Live() bool {
	return !t.Stopped()
}

// Stop releases the track; later calls are no-ops.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	hooks := t.onStop
	t.onStop = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnStop runs fn when the track stops, immediately if it already has.
func (t *Track) OnStop(fn func()) {
	t.mu.Lock()
	if !t.stopped {
		t.onStop = append(t.onStop, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Local is the pion track to attach to peer connections, nil for remote tracks.
func (t *Track) Local() webrtc.TrackLocal {
	if t.local == nil {
		return nil
	}
	return t.local
}

// WriteSample forwards a captured sample. Disabled tracks drop samples,
// which is how mute and camera-off reach the peers.
func (t *Track) WriteSample(s pmedia.Sample) error {
	t.mu.Lock()
	enabled, stopped := t.enabled, t.stopped
	t.mu.Unlock()

	if stopped {
		return ErrTrackStopped
	}
	if !enabled || t.local == nil {
		return nil
	}
	return t.local.WriteSample(s)
}
