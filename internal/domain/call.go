package domain

import (
	"slices"
	"time"
)

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

func ParseCallType(s string) (CallType, error) {
	switch CallType(s) {
	case CallAudio, CallVideo:
		return CallType(s), nil
	}
	return "", ErrUnknownKind
}

// WantsVideo reports whether capture must include a camera track.
func (t CallType) WantsVideo() bool {
	switch t {
	case CallVideo:
		return true
	case CallAudio:
		return false
	}
	return false
}

// CallState is the single global view of the current call.
type CallState struct {
	ID           string   `json:"id,omitempty"`
	Active       bool     `json:"active"`
	Type         CallType `json:"call_type"`
	RoomID       string   `json:"room_id,omitempty"`
	Participants []string `json:"participants"`
	InitiatorID  string   `json:"initiator_id,omitempty"`
}

// IdleCall is the initial call state. Video is the default kind used by a
// join without a known call.
func IdleCall() CallState {
	return CallState{Type: CallVideo, Participants: []string{}}
}

func (c CallState) Clone() CallState {
	c.Participants = slices.Clone(c.Participants)
	if c.Participants == nil {
		c.Participants = []string{}
	}
	return c
}

func (c CallState) Equal(o CallState) bool {
	return c.ID == o.ID && c.Active == o.Active && c.Type == o.Type &&
		c.RoomID == o.RoomID && c.InitiatorID == o.InitiatorID &&
		slices.Equal(c.Participants, o.Participants)
}

// CallRecord is the persisted video_calls row.
type CallRecord struct {
	ID           string     `db:"id" json:"id"`
	RoomID       string     `db:"room_id" json:"room_id"`
	InitiatorID  string     `db:"initiator_id" json:"initiator_id"`
	Type         CallType   `db:"call_type" json:"call_type"`
	Participants []string   `db:"participants" json:"participants"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	EndedAt      *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}
