package domain

import (
	"slices"
	"time"
)

type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVoice MessageKind = "voice"
	MessageVideo MessageKind = "video"
)

func ParseMessageKind(s string) (MessageKind, error) {
	switch MessageKind(s) {
	case MessageText, MessageImage, MessageVoice, MessageVideo:
		return MessageKind(s), nil
	}
	return "", ErrUnknownKind
}

// IsMedia reports whether Content is a URI to an uploaded payload.
func (k MessageKind) IsMedia() bool {
	switch k {
	case MessageImage, MessageVoice, MessageVideo:
		return true
	case MessageText:
		return false
	}
	return false
}

type Message struct {
	ID        string      `db:"id" json:"id"`
	Content   string      `db:"content" json:"content"`
	SenderID  string      `db:"sender_id" json:"sender_id"`
	RoomID    string      `db:"room_id" json:"room_id"`
	Timestamp time.Time   `db:"created_at" json:"timestamp"`
	Kind      MessageKind `db:"kind" json:"kind"`
	Read      bool        `db:"read" json:"read"`
	Reactions Reactions   `db:"-" json:"reactions"`
}

func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	return m
}

// Reaction is one (message, user, emoji) row.
type Reaction struct {
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Reactions maps emoji to the users that applied it. A key is present only
// while at least one user holds it.
type Reactions map[string][]string

func (r Reactions) Has(emoji, userID string) bool {
	return slices.Contains(r[emoji], userID)
}

// Add reports whether the set changed.
func (r Reactions) Add(emoji, userID string) bool {
	if r.Has(emoji, userID) {
		return false
	}
	r[emoji] = append(r[emoji], userID)
	return true
}

// Remove reports whether the set changed; the key goes away with its last user.
func (r Reactions) Remove(emoji, userID string) bool {
	users := r[emoji]
	i := slices.Index(users, userID)
	if i < 0 {
		return false
	}
	users = slices.Delete(users, i, i+1)
	if len(users) == 0 {
		delete(r, emoji)
		return true
	}
	r[emoji] = users
	return true
}

// Toggle returns true when the user now holds the reaction.
func (r Reactions) Toggle(emoji, userID string) bool {
	if r.Remove(emoji, userID) {
		return false
	}
	r.Add(emoji, userID)
	return true
}

func (r Reactions) Count(emoji string) int {
	return len(r[emoji])
}

func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for k, v := range r {
		out[k] = slices.Clone(v)
	}
	return out
}

// ReactionsFrom folds rows into per-message reaction maps.
func ReactionsFrom(rows []Reaction) map[string]Reactions {
	out := make(map[string]Reactions)
	for _, row := range rows {
		rs, ok := out[row.MessageID]
		if !ok {
			rs = Reactions{}
			out[row.MessageID] = rs
		}
		rs.Add(row.Emoji, row.UserID)
	}
	return out
}
