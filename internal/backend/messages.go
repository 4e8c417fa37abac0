package backend

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

// ReadRecord is published when a reader marks a room read.
type ReadRecord struct {
	RoomID   string `json:"room_id"`
	ReaderID string `json:"reader_id"`
}

func (b *Backend) SendMessage(ctx context.Context, m *domain.Message) error {
	if err := ident.Check("message id", m.ID); err != nil {
		return err
	}
	if err := ident.Check("room id", m.RoomID); err != nil {
		return err
	}
	if err := ident.Check("sender id", m.SenderID); err != nil {
		return err
	}
	if err := b.repos.Messages.Create(ctx, m); err != nil {
		return wrap("messages.create", err)
	}
	b.publish(ctx, realtime.RoomChannel(m.RoomID), realtime.TableMessages, realtime.OpInsert, m.RoomID, m)
	return nil
}

// ListMessages returns the whole room history, oldest first, reactions folded in.
func (b *Backend) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	if err := ident.Check("room id", roomID); err != nil {
		return nil, err
	}

	var (
		out  []domain.Message
		page = repository.Page{Limit: repository.MaxPageSize}
	)
	for {
		msgs, next, err := b.repos.Messages.ListByRoom(ctx, roomID, page)
		if err != nil {
			return nil, wrap("messages.list", err)
		}
		out = append(out, msgs...)
		if next == "" {
			break
		}
		page.After = next
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	rows, err := b.repos.Reactions.ListByMessages(ctx, ids)
	if err != nil {
		return nil, wrap("reactions.list", err)
	}
	byMessage := domain.ReactionsFrom(rows)
	for i := range out {
		if rs, ok := byMessage[out[i].ID]; ok {
			out[i].Reactions = rs
		} else {
			out[i].Reactions = domain.Reactions{}
		}
	}
	return out, nil
}

func (b *Backend) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	if err := ident.Check("room id", roomID); err != nil {
		return 0, err
	}
	if err := ident.Check("user id", readerID); err != nil {
		return 0, err
	}
	n, err := b.repos.Messages.MarkRead(ctx, roomID, readerID)
	if err != nil {
		return 0, wrap("messages.markRead", err)
	}
	if n > 0 {
		b.publish(ctx, realtime.RoomChannel(roomID), realtime.TableMessages, realtime.OpUpdate, roomID,
			ReadRecord{RoomID: roomID, ReaderID: readerID})
	}
	return n, nil
}

func (b *Backend) AddReaction(ctx context.Context, roomID string, r domain.Reaction) error {
	if err := ident.Check("message id", r.MessageID); err != nil {
		return err
	}
	if err := ident.Check("user id", r.UserID); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = b.now()
	}
	added, err := b.repos.Reactions.Add(ctx, r)
	if err != nil {
		return wrap("reactions.add", err)
	}
	if added {
		b.publish(ctx, realtime.RoomChannel(roomID), realtime.TableReactions, realtime.OpInsert, roomID, r)
	}
	return nil
}

func (b *Backend) RemoveReaction(ctx context.Context, roomID string, r domain.Reaction) error {
	if err := ident.Check("message id", r.MessageID); err != nil {
		return err
	}
	if err := ident.Check("user id", r.UserID); err != nil {
		return err
	}
	removed, err := b.repos.Reactions.Remove(ctx, r.MessageID, r.UserID, r.Emoji)
	if err != nil {
		return wrap("reactions.remove", err)
	}
	if removed {
		b.publish(ctx, realtime.RoomChannel(roomID), realtime.TableReactions, realtime.OpDelete, roomID, r)
	}
	return nil
}
