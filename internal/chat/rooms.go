package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

// CreateRoom persists a room holding the current user and participantIDs,
// appends it and makes it active.
func (s *Store) CreateRoom(ctx context.Context, name string, kind domain.RoomKind, participantIDs []string) (*domain.Room, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name is empty", errs.ErrInvalidInput)
	}
	switch kind {
	case domain.RoomPrivate, domain.RoomDirect:
	case domain.RoomCommunity:
		return nil, fmt.Errorf("%w: the community room already exists", errs.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: room kind %q", errs.ErrInvalidInput, kind)
	}
	if err := ident.Check("participant id", participantIDs...); err != nil {
		return nil, err
	}

	room := domain.Room{
		ID:           ident.New(),
		Name:         name,
		Kind:         kind,
		Participants: domain.UniqueParticipants(uid, participantIDs),
		CreatedBy:    uid,
		CreatedAt:    s.backend.Now().UTC(),
	}
	if err := s.backend.CreateRoom(ctx, &room); err != nil {
		slog.Error("chat.createRoom failed", slog.String("name", name), slog.Any("err", err))
		return nil, err
	}

	s.mu.Lock()
	s.addRoom(room.Clone())
	s.active = room.ID
	s.mu.Unlock()

	s.watch(realtime.RoomChannel(room.ID))
	s.emit(Change{Type: ChangeRoom, RoomID: room.ID, Payload: room.Clone()})
	out := room.Clone()
	return &out, nil
}

// JoinRoom adds the current user to a known room. Unknown rooms and
// existing membership are no-ops.
func (s *Store) JoinRoom(ctx context.Context, roomID string) error {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return err
	}
	room, ok := s.Room(roomID)
	if !ok || room.HasParticipant(uid) {
		return nil
	}
	if err := s.backend.AddParticipant(ctx, roomID, uid); err != nil {
		slog.Error("chat.joinRoom failed", slog.String("room_id", roomID), slog.Any("err", err))
		return err
	}

	s.mu.Lock()
	if i := s.roomIndex(roomID); i >= 0 {
		s.rooms[i].AddParticipant(uid)
		room = s.rooms[i].Clone()
	}
	s.mu.Unlock()

	s.watch(realtime.RoomChannel(roomID))
	s.emit(Change{Type: ChangeRoom, RoomID: roomID, Payload: room})
	return nil
}

// LeaveRoom removes the current user from a known room. Leaving the active
// room falls back to the community room, or to none when it is missing.
// The community room is never left and a creator cannot leave their room.
func (s *Store) LeaveRoom(ctx context.Context, roomID string) error {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return err
	}
	room, ok := s.Room(roomID)
	if !ok || ident.IsCommunity(roomID) {
		return nil
	}
	if room.CreatedBy == uid {
		return fmt.Errorf("%w: %w", errs.ErrConflict, domain.ErrCreatorCannotLeave)
	}
	if room.HasParticipant(uid) {
		if err := s.backend.RemoveParticipant(ctx, roomID, uid); err != nil {
			slog.Error("chat.leaveRoom failed", slog.String("room_id", roomID), slog.Any("err", err))
			return err
		}
	}

	s.mu.Lock()
	if i := s.roomIndex(roomID); i >= 0 {
		s.rooms[i].RemoveParticipant(uid)
		room = s.rooms[i].Clone()
	}
	if s.active == roomID {
		s.active = ""
		if s.communityPresent() {
			s.active = ident.CommunityRoomID
		}
	}
	s.mu.Unlock()

	s.emit(Change{Type: ChangeRoom, RoomID: roomID, Payload: room})
	return nil
}

// SetActiveRoom selects a known room and reports whether it was found.
// An empty id clears the selection.
func (s *Store) SetActiveRoom(roomID string) bool {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if roomID != "" && s.roomIndex(roomID) < 0 {
		s.mu.Unlock()
		return false
	}
	s.active = roomID
	s.mu.Unlock()

	s.emit(Change{Type: ChangeRoom, RoomID: roomID})
	return true
}
