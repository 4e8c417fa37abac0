package domain

import (
	"strings"
	"time"
)

// Session is a refresh-token session issued by the identity provider.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

func NewSession(id, userID, tokenHash string, expiresAt, now time.Time) (*Session, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return nil, ErrEmptyTokenHash
	}
	if !expiresAt.After(now) {
		return nil, ErrPastExpiry
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
