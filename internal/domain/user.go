package domain

import (
	"strings"
	"time"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
)

func ParseUserStatus(s string) (UserStatus, error) {
	switch UserStatus(s) {
	case StatusOnline, StatusOffline, StatusAway:
		return UserStatus(s), nil
	}
	return "", ErrUnknownKind
}

// User is a public profile row.
type User struct {
	ID       string     `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Email    string     `db:"email" json:"email,omitempty"`
	Avatar   *string    `db:"avatar" json:"avatar,omitempty"`
	Status   UserStatus `db:"status" json:"status"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

func (u *User) SetStatus(status UserStatus, now time.Time) {
	u.Status = status
	t := now
	u.LastSeen = &t
}

func (u User) Clone() User {
	if u.Avatar != nil {
		a := *u.Avatar
		u.Avatar = &a
	}
	if u.LastSeen != nil {
		t := *u.LastSeen
		u.LastSeen = &t
	}
	return u
}

// Credential is the identity provider's private record for a user.
type Credential struct {
	UserID       string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NewCredential(userID, email, passwordHash string, now time.Time) (*Credential, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	return &Credential{UserID: userID, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}
