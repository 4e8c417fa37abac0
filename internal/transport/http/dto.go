package http

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateRoomRequest struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
}

type ActiveRoomRequest struct {
	RoomID string `json:"room_id"`
}

type ActiveRoomResponse struct {
	RoomID string `json:"room_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

type ReactionResponse struct {
	MessageID string              `json:"message_id"`
	Reactions map[string][]string `json:"reactions"`
}

type StartCallRequest struct {
	RoomID   string `json:"room_id"`
	CallType string `json:"call_type"`
}

type JoinCallRequest struct {
	RoomID string `json:"room_id"`
}

type OfferRequest struct {
	SDP string `json:"sdp"`
}

type AnswerResponse struct {
	SDP string `json:"sdp"`
}

type ToggleResponse struct {
	Value bool `json:"value"`
}
