package ws

// Message types pushed to the UI.
const (
	TypeState        = "state"        // snapshot, sent on connect and after a reset
	TypeNotification = "notification" // toast
	TypeMessage      = "message"      // message inserted or read
	TypeReaction     = "reaction"     // reactions of one message changed
	TypeRoom         = "room"         // room added, membership or selection changed
	TypeUser         = "user"         // profile or presence changed
	TypeCall         = "call"         // call state changed
	TypeSession      = "session"      // signed in or out
	TypePing         = "ping"
	TypePong         = "pong"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ChangePayload carries a store change scoped to a room.
type ChangePayload struct {
	RoomID string `json:"room_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}
