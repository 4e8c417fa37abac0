// Package call is the call-state store: one global call, the local capture
// stream and the remote streams of the other participants.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/media"
	"github.com/cwrk-planet/glasschat/internal/notify"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

const mediaFailure = "Could not access camera or microphone"

// leaveTimeout bounds the backend write made by Close.
const leaveTimeout = 5 * time.Second

type Backend interface {
	CreateCall(ctx context.Context, c *domain.CallRecord) error
	UpdateCallParticipants(ctx context.Context, c *domain.CallRecord) error
	EndCall(ctx context.Context, c *domain.CallRecord) error
	ActiveCall(ctx context.Context, roomID string) (*domain.CallRecord, error)
}

// Peers negotiates media with remote participants.
type Peers interface {
	Answer(ctx context.Context, participantID, offerSDP string, local *media.Stream, h media.PeerHandlers) (string, error)
	Close(participantID string) error
	CloseAll() error
}

// Identity yields the signed-in user id, or "" when signed out.
type Identity interface {
	UserID() string
}

// State is the call state plus the local media flags.
type State struct {
	domain.CallState
	Muted       bool     `json:"muted"`
	VideoOff    bool     `json:"video_off"`
	LocalTracks int      `json:"local_tracks"`
	Remote      []string `json:"remote_participants"`
}

type Store struct {
	backend  Backend
	devices  media.Devices
	peers    Peers
	notifier notify.Notifier
	identity Identity

	op sync.Mutex

	mu       sync.RWMutex
	state    domain.CallState
	record   *domain.CallRecord
	self     string
	local    *media.Stream
	remote   map[string]*media.Stream
	muted    bool
	videoOff bool

	obsMu     sync.RWMutex
	observers map[int]func(State)
	nextObs   int
}

// New builds an idle store. peers may be nil when no signalling is wired.
func New(b Backend, devices media.Devices, peers Peers, notifier notify.Notifier, identity Identity) *Store {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Store{
		backend:   b,
		devices:   devices,
		peers:     peers,
		notifier:  notifier,
		identity:  identity,
		state:     domain.IdleCall(),
		remote:    make(map[string]*media.Stream),
		observers: make(map[int]func(State)),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := State{CallState: s.state.Clone(), Muted: s.muted, VideoOff: s.videoOff, Remote: []string{}}
	if s.local != nil {
		st.LocalTracks = s.local.LiveTracks()
	}
	for id := range s.remote {
		st.Remote = append(st.Remote, id)
	}
	slices.Sort(st.Remote)
	return st
}

// OnChange registers fn for every later state change.
func (s *Store) OnChange(fn func(State)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) emit() {
	st := s.State()
	s.obsMu.RLock()
	fns := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (s *Store) currentUser() (string, error) {
	uid := s.identity.UserID()
	if uid == "" {
		return "", errs.ErrUnauthorized
	}
	return uid, nil
}

func (s *Store) capture(ctx context.Context, typ domain.CallType) (*media.Stream, bool) {
	stream, err := s.devices.GetUserMedia(ctx, media.Constraints{Audio: true, Video: typ.WantsVideo()})
	if err != nil {
		slog.Warn("call.capture failed", slog.String("call_type", string(typ)), slog.Any("err", err))
		s.notifier.Notify(notify.Failure("Call failed", mediaFailure))
		return nil, false
	}
	return stream, true
}

// StartCall captures local media for typ and starts a call in roomID with
// the current user as initiator. A capture failure is reported as a
// notification and leaves the store idle.
func (s *Store) StartCall(ctx context.Context, roomID string, typ domain.CallType) (State, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return s.State(), err
	}
	if s.State().Active {
		return s.State(), fmt.Errorf("%w: a call is already active", errs.ErrConflict)
	}
	if err := ident.Check("room id", roomID); err != nil {
		return s.State(), err
	}
	if _, err := domain.ParseCallType(string(typ)); err != nil {
		return s.State(), fmt.Errorf("%w: call type %q", errs.ErrInvalidInput, typ)
	}

	stream, ok := s.capture(ctx, typ)
	if !ok {
		return s.State(), nil
	}

	rec := &domain.CallRecord{
		ID:           ident.New(),
		RoomID:       roomID,
		InitiatorID:  uid,
		Type:         typ,
		Participants: []string{uid},
	}
	if err := s.backend.CreateCall(ctx, rec); err != nil {
		stream.Stop()
		slog.Error("call.start.createCall failed", slog.String("room_id", roomID), slog.Any("err", err))
		s.notifier.Notify(notify.Failure("Call failed", err.Error()))
		return s.State(), err
	}

	s.mu.Lock()
	s.record = rec
	s.self = uid
	s.local = stream
	s.muted, s.videoOff = false, false
	s.state = domain.CallState{
		ID:           rec.ID,
		Active:       true,
		Type:         typ,
		RoomID:       roomID,
		Participants: []string{uid},
		InitiatorID:  uid,
	}
	s.mu.Unlock()

	slog.Info("call started", slog.String("call_id", rec.ID), slog.String("room_id", roomID), slog.String("call_type", string(typ)))
	s.notifier.Notify(notify.Info("Call started", describe(typ)))
	s.emit()
	return s.State(), nil
}

// JoinCall joins the running call of roomID, or, when the backend knows of
// none, enters the room's call with the kind already held locally.
func (s *Store) JoinCall(ctx context.Context, roomID string) (State, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return s.State(), err
	}
	if err := ident.Check("room id", roomID); err != nil {
		return s.State(), err
	}
	cur := s.State()
	if cur.Active {
		if cur.RoomID == roomID && slices.Contains(cur.Participants, uid) {
			return cur, nil
		}
		return cur, fmt.Errorf("%w: a call is already active", errs.ErrConflict)
	}

	rec, err := s.backend.ActiveCall(ctx, roomID)
	if err != nil {
		slog.Error("call.join.activeCall failed", slog.String("room_id", roomID), slog.Any("err", err))
		return cur, err
	}
	typ := cur.Type
	if rec != nil {
		typ = rec.Type
	}

	stream, ok := s.capture(ctx, typ)
	if !ok {
		return s.State(), nil
	}

	next := domain.CallState{Active: true, Type: typ, RoomID: roomID, Participants: cur.Clone().Participants}
	if rec != nil {
		next.ID = rec.ID
		next.InitiatorID = rec.InitiatorID
		next.Participants = slices.Clone(rec.Participants)
	}
	if !slices.Contains(next.Participants, uid) {
		next.Participants = append(next.Participants, uid)
	}
	if rec != nil {
		rec.Participants = slices.Clone(next.Participants)
		if err := s.backend.UpdateCallParticipants(ctx, rec); err != nil {
			stream.Stop()
			slog.Error("call.join.updateParticipants failed", slog.String("call_id", rec.ID), slog.Any("err", err))
			s.notifier.Notify(notify.Failure("Call failed", err.Error()))
			return s.State(), err
		}
	}

	s.mu.Lock()
	s.record = rec
	s.self = uid
	s.local = stream
	s.muted, s.videoOff = false, false
	s.state = next
	s.mu.Unlock()

	slog.Info("call joined", slog.String("room_id", roomID), slog.String("call_type", string(typ)))
	s.notifier.Notify(notify.Info("Call joined", describe(typ)))
	s.emit()
	return s.State(), nil
}

// EndCall stops every local and remote track and returns to the idle
// state. It always succeeds; backend failures are only logged.
func (s *Store) EndCall(ctx context.Context) State {
	s.op.Lock()
	defer s.op.Unlock()

	s.leave(ctx)
	s.notifier.Notify(notify.Info("Call ended", ""))
	s.emit()
	return s.State()
}

// Close releases every stream without a notification. Sign-out and
// shutdown use it; it is a no-op while idle.
func (s *Store) Close() {
	s.op.Lock()
	defer s.op.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if s.leave(ctx) {
		s.emit()
	}
}

// leave drops the call on behalf of the user that started or joined it and
// reports whether there was anything to drop.
func (s *Store) leave(ctx context.Context) bool {
	s.mu.Lock()
	rec := s.record
	uid := s.self
	local := s.local
	wasActive := s.state.Active || rec != nil || local != nil || len(s.remote) > 0
	s.record = nil
	s.self = ""
	s.local = nil
	s.state = domain.IdleCall()
	s.muted, s.videoOff = false, false
	s.mu.Unlock()

	// Idle before the peers close, so tracks arriving meanwhile are refused.
	if s.peers != nil {
		if err := s.peers.CloseAll(); err != nil {
			slog.Warn("call.leave.closePeers failed", slog.Any("err", err))
		}
	}

	s.mu.Lock()
	remote := s.remote
	s.remote = make(map[string]*media.Stream)
	s.mu.Unlock()

	if local != nil {
		local.Stop()
	}
	for _, st := range remote {
		st.Stop()
	}

	if rec == nil {
		return wasActive
	}
	remaining := slices.DeleteFunc(slices.Clone(rec.Participants), func(id string) bool { return id == uid })
	if len(remaining) == 0 {
		if err := s.backend.EndCall(ctx, rec); err != nil {
			slog.Error("call.leave.endCall failed", slog.String("call_id", rec.ID), slog.Any("err", err))
		}
		return wasActive
	}
	rec.Participants = remaining
	if err := s.backend.UpdateCallParticipants(ctx, rec); err != nil {
		slog.Error("call.leave.updateParticipants failed", slog.String("call_id", rec.ID), slog.Any("err", err))
	}
	return wasActive
}

// ToggleMute flips the local audio tracks. Without a local stream it does
// nothing. It returns the muted flag.
func (s *Store) ToggleMute() bool {
	s.mu.Lock()
	if s.local == nil {
		muted := s.muted
		s.mu.Unlock()
		return muted
	}
	s.muted = !s.muted
	for _, t := range s.local.AudioTracks() {
		t.SetEnabled(!s.muted)
	}
	muted := s.muted
	s.mu.Unlock()

	s.emit()
	return muted
}

// ToggleVideo flips the local video tracks. Without a local stream it does
// nothing. It returns the camera-off flag.
func (s *Store) ToggleVideo() bool {
	s.mu.Lock()
	if s.local == nil {
		off := s.videoOff
		s.mu.Unlock()
		return off
	}
	s.videoOff = !s.videoOff
	for _, t := range s.local.VideoTracks() {
		t.SetEnabled(!s.videoOff)
	}
	off := s.videoOff
	s.mu.Unlock()

	s.emit()
	return off
}

// AddRemoteStream registers participantID's media, replacing and stopping
// a previous stream. Outside a call the stream is stopped and dropped.
func (s *Store) AddRemoteStream(participantID string, stream *media.Stream) {
	s.mu.Lock()
	if !s.state.Active {
		s.mu.Unlock()
		slog.Debug("call.addRemoteStream while idle", slog.String("participant_id", participantID))
		stream.Stop()
		return
	}
	old := s.remote[participantID]
	s.remote[participantID] = stream
	s.mu.Unlock()

	if old != nil && old != stream {
		old.Stop()
	}
	s.emit()
}

func (s *Store) RemoveRemoteStream(participantID string) {
	s.mu.Lock()
	old, ok := s.remote[participantID]
	delete(s.remote, participantID)
	s.mu.Unlock()

	if !ok {
		return
	}
	old.Stop()
	s.emit()
}

func (s *Store) addRemoteTrack(participantID string, t *media.Track) {
	s.mu.Lock()
	if !s.state.Active {
		s.mu.Unlock()
		t.Stop()
		return
	}
	st, ok := s.remote[participantID]
	if !ok {
		st = media.NewStream(participantID)
		s.remote[participantID] = st
	}
	st.AddTrack(t)
	s.mu.Unlock()
	s.emit()
}

// AnswerOffer answers participantID's SDP offer with the local stream and
// registers the tracks it receives as that participant's remote stream.
func (s *Store) AnswerOffer(ctx context.Context, participantID, offerSDP string) (string, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.peers == nil {
		return "", fmt.Errorf("%w: peer connections", errs.ErrNotImplemented)
	}
	if participantID == "" || offerSDP == "" {
		return "", fmt.Errorf("%w: participant id and offer are required", errs.ErrInvalidInput)
	}
	s.mu.RLock()
	local, active := s.local, s.state.Active
	s.mu.RUnlock()
	if !active || local == nil {
		return "", fmt.Errorf("%w: no active call", errs.ErrMediaUnavailable)
	}

	answer, err := s.peers.Answer(ctx, participantID, offerSDP, local, media.PeerHandlers{
		OnTrack:  s.addRemoteTrack,
		OnClosed: s.RemoveRemoteStream,
	})
	if err != nil {
		slog.Error("call.answerOffer failed", slog.String("participant_id", participantID), slog.Any("err", err))
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	return answer, nil
}

func describe(typ domain.CallType) string {
	switch typ {
	case domain.CallAudio:
		return "Audio call"
	case domain.CallVideo:
		return "Video call"
	}
	return ""
}
