// Package realtime is the row-level change feed between the backend facade
// and the stores.
package realtime

import (
	"context"
	"encoding/json"
	"time"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

const (
	TableUsers        = "users"
	TableRooms        = "rooms"
	TableParticipants = "room_participants"
	TableMessages     = "messages"
	TableReactions    = "message_reactions"
	TableCalls        = "video_calls"
)

const (
	ChannelRooms = "rooms"
	ChannelUsers = "users"
)

// RoomChannel carries messages, reactions, participants and calls of one room.
func RoomChannel(roomID string) string {
	return "room:" + roomID
}

// Event is one row change.
type Event struct {
	Table     string          `json:"table"`
	Op        Op              `json:"op"`
	RoomID    string          `json:"room_id,omitempty"`
	Record    json.RawMessage `json:"record"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(table string, op Op, roomID string, record any) (*Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &Event{
		Table:     table,
		Op:        op,
		RoomID:    roomID,
		Record:    data,
		Timestamp: time.Now(),
	}, nil
}

func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

type Bus interface {
	Publisher
	// Subscribe delivers events of channel until the subscription is closed
	// or ctx is done.
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
	Close() error
}
