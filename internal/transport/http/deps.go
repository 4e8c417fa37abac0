package http

import (
	"context"
	"io"

	"github.com/cwrk-planet/glasschat/internal/attachments"
	"github.com/cwrk-planet/glasschat/internal/call"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/identity"
	"github.com/cwrk-planet/glasschat/internal/session"
)

type Identity interface {
	SignUp(ctx context.Context, email, password, name string) (*identity.Session, error)
	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	VerifyAccessToken(token string) (string, error)
}

type Session interface {
	UserID() string
	Current() *domain.User
	Logout(ctx context.Context) error
	Preferences() *session.Preferences
}

type Chat interface {
	Users() []domain.User
	SortedRooms() []domain.Room
	ActiveRoom() string
	SetActiveRoom(roomID string) bool
	CreateRoom(ctx context.Context, name string, kind domain.RoomKind, participantIDs []string) (*domain.Room, error)
	OpenRoomCreation(ctx context.Context) error
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	MarkRead(ctx context.Context, roomID string) (int64, error)
	Messages(roomID string) []domain.Message
	SendMessage(ctx context.Context, content, roomID string, kind domain.MessageKind) (*domain.Message, error)
	AddReaction(ctx context.Context, messageID, emoji string) (domain.Reactions, error)
}

type Call interface {
	State() call.State
	StartCall(ctx context.Context, roomID string, typ domain.CallType) (call.State, error)
	JoinCall(ctx context.Context, roomID string) (call.State, error)
	EndCall(ctx context.Context) call.State
	ToggleMute() bool
	ToggleVideo() bool
	AnswerOffer(ctx context.Context, participantID, offerSDP string) (string, error)
}

type Uploader interface {
	Upload(ctx context.Context, roomID, filename, contentType string, r io.Reader, size int64) (*attachments.Upload, error)
}
