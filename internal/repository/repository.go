// Package repository declares the relational store used by the backend facade.
package repository

import (
	"context"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// UpdateStatus sets status and last_seen and returns the updated row.
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus, at time.Time) (*domain.User, error)
}

type CredentialRepository interface {
	Create(ctx context.Context, c *domain.Credential) error
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// DeleteByID reports whether a row was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type RoomRepository interface {
	// Create stores the room row and its participant rows atomically.
	Create(ctx context.Context, r *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)
	// List returns rooms by (created_at, id) ascending with participants filled.
	List(ctx context.Context, page Page) ([]domain.Room, string, error)
	// AddParticipant is idempotent; it reports whether a row was inserted.
	AddParticipant(ctx context.Context, roomID, userID string, at time.Time) (bool, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	Participants(ctx context.Context, roomID string) ([]string, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	// ListByRoom returns messages in ascending (created_at, id) order.
	ListByRoom(ctx context.Context, roomID string, page Page) ([]domain.Message, string, error)
	// MarkRead flags messages of other senders in the room as read.
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
}

type ReactionRepository interface {
	// Add is idempotent per (message, user, emoji); it reports whether a row was inserted.
	Add(ctx context.Context, r domain.Reaction) (bool, error)
	Remove(ctx context.Context, messageID, userID, emoji string) (bool, error)
	ListByMessages(ctx context.Context, messageIDs []string) ([]domain.Reaction, error)
}

type CallRepository interface {
	Create(ctx context.Context, c *domain.CallRecord) error
	UpdateParticipants(ctx context.Context, id string, participants []string) error
	End(ctx context.Context, id string, at time.Time) error
	// ActiveByRoom returns the latest call of the room with no ended_at.
	ActiveByRoom(ctx context.Context, roomID string) (*domain.CallRecord, error)
}

// Set bundles one implementation of every repository.
type Set struct {
	Users       UserRepository
	Credentials CredentialRepository
	Sessions    SessionRepository
	Rooms       RoomRepository
	Messages    MessageRepository
	Reactions   ReactionRepository
	Calls       CallRepository
}
