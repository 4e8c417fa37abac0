package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
)

func TestPionDevices_Constraints(t *testing.T) {
	ctx := context.Background()
	audioOnly := NewPionDevices(true, false)

	if _, err := audioOnly.GetUserMedia(ctx, Constraints{Audio: true, Video: true}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err = %v", err)
	}
	if _, err := audioOnly.GetUserMedia(ctx, Constraints{}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err = %v", err)
	}

	s, err := audioOnly.GetUserMedia(ctx, Constraints{Audio: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.AudioTracks()) != 1 || len(s.VideoTracks()) != 0 {
		t.Fatalf("tracks = %d audio, %d video", len(s.AudioTracks()), len(s.VideoTracks()))
	}

	both, err := NewPionDevices(true, true).GetUserMedia(ctx, Constraints{Audio: true, Video: true})
	if err != nil || len(both.Tracks()) != 2 || both.LiveTracks() != 2 {
		t.Fatalf("stream = %v, %v", both, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := audioOnly.GetUserMedia(cancelled, Constraints{Audio: true}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestTrack_EnableAndStop(t *testing.T) {
	s, err := NewPionDevices(true, true).GetUserMedia(context.Background(), Constraints{Audio: true, Video: true})
	if err != nil {
		t.Fatal(err)
	}
	audio := s.AudioTracks()[0]
	if !audio.Enabled() || audio.Local() == nil {
		t.Fatal("local track must start enabled")
	}
	audio.SetEnabled(false)
	if err := audio.WriteSample(pmedia.Sample{Data: []byte{1}, Duration: time.Millisecond}); err != nil {
		t.Fatalf("disabled write: %v", err)
	}

	stopped := 0
	audio.OnStop(func() { stopped++ })
	s.Stop()
	s.Stop()
	if stopped != 1 || s.LiveTracks() != 0 {
		t.Fatalf("stopped hooks = %d, live = %d", stopped, s.LiveTracks())
	}
	if err := audio.WriteSample(pmedia.Sample{Data: []byte{1}}); !errors.Is(err, ErrTrackStopped) {
		t.Fatalf("err = %v", err)
	}
	late := 0
	audio.OnStop(func() { late++ })
	if late != 1 {
		t.Fatal("OnStop after stop must run immediately")
	}
}

func TestPeerManager_AnswersOffer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	caller, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	defer caller.Close()
	if _, err := caller.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		t.Fatal(err)
	}
	offer, err := caller.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := webrtc.GatheringCompletePromise(caller)
	if err := caller.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gathered

	local, err := NewPionDevices(true, false).GetUserMedia(ctx, Constraints{Audio: true})
	if err != nil {
		t.Fatal(err)
	}

	pm := NewPeerManager(nil)
	answer, err := pm.Answer(ctx, "peer-1", caller.LocalDescription().SDP, local, PeerHandlers{})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(answer, "m=audio") {
		t.Fatalf("answer lacks audio section:\n%s", answer)
	}
	if pm.Peers() != 1 {
		t.Fatalf("peers = %d", pm.Peers())
	}
	if err := pm.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if pm.Peers() != 0 {
		t.Fatalf("peers = %d", pm.Peers())
	}

	if _, err := pm.Answer(ctx, "peer-2", "not sdp", local, PeerHandlers{}); err == nil {
		t.Fatal("expected error for malformed offer")
	}
}
