package domain

import (
	"slices"
	"time"
)

type RoomKind string

const (
	RoomCommunity RoomKind = "community"
	RoomPrivate   RoomKind = "private"
	RoomDirect    RoomKind = "direct"
)

func ParseRoomKind(s string) (RoomKind, error) {
	switch RoomKind(s) {
	case RoomCommunity, RoomPrivate, RoomDirect:
		return RoomKind(s), nil
	}
	return "", ErrUnknownKind
}

type Room struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Kind         RoomKind  `db:"kind" json:"kind"`
	Participants []string  `db:"-" json:"participants"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastMessage  *Message  `db:"-" json:"last_message,omitempty"`
}

func (r *Room) HasParticipant(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

// AddParticipant reports whether userID was added.
func (r *Room) AddParticipant(userID string) bool {
	if r.HasParticipant(userID) {
		return false
	}
	r.Participants = append(r.Participants, userID)
	return true
}

// RemoveParticipant reports whether userID was present.
func (r *Room) RemoveParticipant(userID string) bool {
	i := slices.Index(r.Participants, userID)
	if i < 0 {
		return false
	}
	r.Participants = slices.Delete(r.Participants, i, i+1)
	return true
}

// LastActivity is the last message time, or the zero time.
func (r *Room) LastActivity() time.Time {
	if r.LastMessage == nil {
		return time.Time{}
	}
	return r.LastMessage.Timestamp
}

func (r Room) Clone() Room {
	r.Participants = slices.Clone(r.Participants)
	if r.LastMessage != nil {
		m := r.LastMessage.Clone()
		r.LastMessage = &m
	}
	return r
}

// UniqueParticipants dedups ids and makes sure creator is included.
func UniqueParticipants(creator string, ids []string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, creator)
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
