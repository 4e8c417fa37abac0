package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"
)

// PeerHandlers receive what a remote participant sends.
type PeerHandlers struct {
	OnTrack  func(participantID string, t *Track)
	OnClosed func(participantID string)
}

// PeerManager keeps one peer connection per remote participant. Offers and
// answers travel over an external signalling channel.
type PeerManager struct {
	iceServers []webrtc.ICEServer

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

func NewPeerManager(iceURLs []string) *PeerManager {
	var servers []webrtc.ICEServer
	if len(iceURLs) > 0 {
		servers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	return &PeerManager{iceServers: servers, peers: make(map[string]*webrtc.PeerConnection)}
}

func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}

	codecs := []struct {
		params webrtc.RTPCodecParameters
		kind   webrtc.RTPCodecType
	}{
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			PayloadType:        96,
		}, webrtc.RTPCodecTypeVideo},
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000},
			PayloadType:        98,
		}, webrtc.RTPCodecTypeVideo},
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
			PayloadType: 102,
		}, webrtc.RTPCodecTypeVideo},
		{webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		}, webrtc.RTPCodecTypeAudio},
	}
	for _, c := range codecs {
		if err := m.RegisterCodec(c.params, c.kind); err != nil {
			return nil, err
		}
	}

	i := &interceptor.Registry{}
	pli, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, err
	}
	i.Add(pli)
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}

	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i)), nil
}

// Answer accepts participantID's offer, sends local's tracks back and
// returns the answer SDP once ICE gathering completes. An existing
// connection for the participant is replaced.
func (pm *PeerManager) Answer(ctx context.Context, participantID, offerSDP string, local *Stream, h PeerHandlers) (string, error) {
	api, err := newAPI()
	if err != nil {
		return "", fmt.Errorf("media engine: %w", err)
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: pm.iceServers})
	if err != nil {
		return "", fmt.Errorf("new peer connection: %w", err)
	}

	if local != nil {
		for _, t := range local.Tracks() {
			if t.Local() == nil || t.Stopped() {
				continue
			}
			if _, err := pc.AddTrack(t.Local()); err != nil {
				pc.Close()
				return "", fmt.Errorf("add track %s: %w", t.ID(), err)
			}
		}
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Info("media.peer track received",
			slog.String("participant_id", participantID),
			slog.String("mime", remote.Codec().MimeType))
		t := NewTrack(remote.ID(), Kind(remote.Kind().String()))
		go drain(remote, t)
		if h.OnTrack != nil {
			h.OnTrack(participantID, t)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("media.peer state", slog.String("participant_id", participantID), slog.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if pm.forget(participantID, pc) && h.OnClosed != nil {
				h.OnClosed(participantID)
			}
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		pc.Close()
		return "", ctx.Err()
	}

	pm.mu.Lock()
	old := pm.peers[participantID]
	pm.peers[participantID] = pc
	pm.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	return pc.LocalDescription().SDP, nil
}

// drain reads RTP so the interceptors keep running, until t stops or the
// remote track ends.
func drain(remote *webrtc.TrackRemote, t *Track) {
	for !t.Stopped() {
		if _, _, err := remote.ReadRTP(); err != nil {
			t.Stop()
			return
		}
	}
}

func (pm *PeerManager) forget(participantID string, pc *webrtc.PeerConnection) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.peers[participantID] != pc {
		return false
	}
	delete(pm.peers, participantID)
	return true
}

func (pm *PeerManager) Peers() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.peers)
}

func (pm *PeerManager) Close(participantID string) error {
	pm.mu.Lock()
	pc := pm.peers[participantID]
	delete(pm.peers, participantID)
	pm.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Close()
}

func (pm *PeerManager) CloseAll() error {
	pm.mu.Lock()
	peers := pm.peers
	pm.peers = make(map[string]*webrtc.PeerConnection)
	pm.mu.Unlock()

	var errs []error
	for _, pc := range peers {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}
