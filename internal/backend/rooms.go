package backend

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

// ParticipantRecord is the change-feed record of room_participants.
type ParticipantRecord struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// CreateRoom stores the room with its participants, creator included.
func (b *Backend) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := ident.Check("room id", room.ID); err != nil {
		return err
	}
	if err := ident.Check("user id", room.CreatedBy); err != nil {
		return err
	}
	if err := ident.Check("participant id", room.Participants...); err != nil {
		return err
	}
	room.AddParticipant(room.CreatedBy)

	if err := b.repos.Rooms.Create(ctx, room); err != nil {
		return wrap("rooms.create", err)
	}
	b.publish(ctx, realtime.ChannelRooms, realtime.TableRooms, realtime.OpInsert, room.ID, room)
	return nil
}

func (b *Backend) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	if err := ident.Check("room id", id); err != nil {
		return nil, err
	}
	room, err := b.repos.Rooms.Get(ctx, id)
	if err != nil {
		return nil, wrap("rooms.get", err)
	}
	return room, nil
}

// ListRooms walks every page.
func (b *Backend) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var (
		out  []domain.Room
		page = repository.Page{Limit: repository.MaxPageSize}
	)
	for {
		rooms, next, err := b.repos.Rooms.List(ctx, page)
		if err != nil {
			return nil, wrap("rooms.list", err)
		}
		out = append(out, rooms...)
		if next == "" {
			return out, nil
		}
		page.After = next
	}
}

func (b *Backend) AddParticipant(ctx context.Context, roomID, userID string) error {
	if err := ident.Check("room id", roomID); err != nil {
		return err
	}
	if err := ident.Check("user id", userID); err != nil {
		return err
	}
	added, err := b.repos.Rooms.AddParticipant(ctx, roomID, userID, b.now())
	if err != nil {
		return wrap("rooms.addParticipant", err)
	}
	if added {
		b.publish(ctx, realtime.RoomChannel(roomID), realtime.TableParticipants, realtime.OpInsert, roomID,
			ParticipantRecord{RoomID: roomID, UserID: userID})
	}
	return nil
}

func (b *Backend) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	if err := ident.Check("room id", roomID); err != nil {
		return err
	}
	if err := ident.Check("user id", userID); err != nil {
		return err
	}
	removed, err := b.repos.Rooms.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		return wrap("rooms.removeParticipant", err)
	}
	if removed {
		b.publish(ctx, realtime.RoomChannel(roomID), realtime.TableParticipants, realtime.OpDelete, roomID,
			ParticipantRecord{RoomID: roomID, UserID: userID})
	}
	return nil
}
