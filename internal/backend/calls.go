package backend

import (
	"context"
	"errors"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

func (b *Backend) CreateCall(ctx context.Context, c *domain.CallRecord) error {
	if err := ident.Check("call id", c.ID); err != nil {
		return err
	}
	if err := ident.Check("room id", c.RoomID); err != nil {
		return err
	}
	if err := ident.Check("participant id", c.Participants...); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = b.now()
	}
	if err := b.repos.Calls.Create(ctx, c); err != nil {
		return wrap("calls.create", err)
	}
	b.publish(ctx, realtime.RoomChannel(c.RoomID), realtime.TableCalls, realtime.OpInsert, c.RoomID, c)
	return nil
}

func (b *Backend) UpdateCallParticipants(ctx context.Context, c *domain.CallRecord) error {
	if err := ident.Check("call id", c.ID); err != nil {
		return err
	}
	if err := ident.Check("participant id", c.Participants...); err != nil {
		return err
	}
	if err := b.repos.Calls.UpdateParticipants(ctx, c.ID, c.Participants); err != nil {
		return wrap("calls.updateParticipants", err)
	}
	b.publish(ctx, realtime.RoomChannel(c.RoomID), realtime.TableCalls, realtime.OpUpdate, c.RoomID, c)
	return nil
}

func (b *Backend) EndCall(ctx context.Context, c *domain.CallRecord) error {
	if err := ident.Check("call id", c.ID); err != nil {
		return err
	}
	at := b.now()
	if err := b.repos.Calls.End(ctx, c.ID, at); err != nil {
		return wrap("calls.end", err)
	}
	c.EndedAt = &at
	b.publish(ctx, realtime.RoomChannel(c.RoomID), realtime.TableCalls, realtime.OpUpdate, c.RoomID, c)
	return nil
}

// ActiveCall returns nil, nil when the room has no running call.
func (b *Backend) ActiveCall(ctx context.Context, roomID string) (*domain.CallRecord, error) {
	if err := ident.Check("room id", roomID); err != nil {
		return nil, err
	}
	c, err := b.repos.Calls.ActiveByRoom(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("calls.active", err)
	}
	return c, nil
}
