package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

func (s *Store) currentUser() (string, error) {
	uid := s.identity.UserID()
	if uid == "" {
		return "", errs.ErrUnauthorized
	}
	return uid, nil
}

// SendMessage persists a new unread message and appends it locally. The
// timestamp never goes behind the latest message of the room. Content is
// not checked for emptiness.
func (s *Store) SendMessage(ctx context.Context, content, roomID string, kind domain.MessageKind) (*domain.Message, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	if err := ident.Check("room id", roomID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseMessageKind(string(kind)); err != nil {
		return nil, fmt.Errorf("%w: message kind %q", errs.ErrInvalidInput, kind)
	}

	s.mu.RLock()
	ts := s.backend.Now().UTC()
	if latest := s.latestTimestamp(roomID); latest.After(ts) {
		ts = latest
	}
	s.mu.RUnlock()

	m := domain.Message{
		ID:        ident.New(),
		Content:   content,
		SenderID:  uid,
		RoomID:    roomID,
		Timestamp: ts,
		Kind:      kind,
		Reactions: domain.Reactions{},
	}
	if err := s.backend.SendMessage(ctx, &m); err != nil {
		slog.Error("chat.sendMessage failed", slog.String("room_id", roomID), slog.Any("err", err))
		return nil, err
	}

	s.mu.Lock()
	s.insertMessage(m)
	s.mu.Unlock()

	s.emit(Change{Type: ChangeMessage, RoomID: roomID, Payload: m.Clone()})
	out := m.Clone()
	return &out, nil
}

// AddReaction toggles emoji for the current user on a message. An unknown
// message is a no-op. The returned reactions are those after the toggle.
func (s *Store) AddReaction(ctx context.Context, messageID, emoji string) (domain.Reactions, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, domain.ErrEmptyEmoji)
	}

	s.mu.RLock()
	m := s.findMessage(messageID)
	var (
		roomID string
		held   bool
	)
	if m != nil {
		roomID = m.RoomID
		held = m.Reactions.Has(emoji, uid)
	}
	s.mu.RUnlock()
	if m == nil {
		return nil, nil
	}

	r := domain.Reaction{MessageID: messageID, UserID: uid, Emoji: emoji, CreatedAt: s.backend.Now().UTC()}
	if held {
		err = s.backend.RemoveReaction(ctx, roomID, r)
	} else {
		err = s.backend.AddReaction(ctx, roomID, r)
	}
	if err != nil {
		slog.Error("chat.addReaction failed",
			slog.String("message_id", messageID), slog.Bool("remove", held), slog.Any("err", err))
		return nil, err
	}

	s.mu.Lock()
	m = s.findMessage(messageID)
	var after domain.Reactions
	if m != nil {
		if held {
			m.Reactions.Remove(emoji, uid)
		} else {
			m.Reactions.Add(emoji, uid)
		}
		after = m.Reactions.Clone()
	}
	s.mu.Unlock()

	s.emit(Change{Type: ChangeReaction, RoomID: roomID, Payload: reactionChange{MessageID: messageID, Reactions: after}})
	return after, nil
}

type reactionChange struct {
	MessageID string           `json:"message_id"`
	Reactions domain.Reactions `json:"reactions"`
}

// MarkRead marks the messages other users sent to roomID as read.
func (s *Store) MarkRead(ctx context.Context, roomID string) (int64, error) {
	s.op.Lock()
	defer s.op.Unlock()

	uid, err := s.currentUser()
	if err != nil {
		return 0, err
	}
	n, err := s.backend.MarkRead(ctx, roomID, uid)
	if err != nil {
		slog.Error("chat.markRead failed", slog.String("room_id", roomID), slog.Any("err", err))
		return 0, err
	}

	if s.markReadLocal(roomID, uid) {
		s.emit(Change{Type: ChangeMessage, RoomID: roomID})
	}
	return n, nil
}

func (s *Store) markReadLocal(roomID, readerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].Read {
			msgs[i].Read = true
			changed = true
		}
	}
	return changed
}
