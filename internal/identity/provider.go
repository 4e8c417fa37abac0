// Package identity is the self-hosted identity provider: credentials,
// access/refresh tokens and auth-state notifications.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/security"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

type AuthEventType string

const (
	SignedIn       AuthEventType = "SIGNED_IN"
	SignedOut      AuthEventType = "SIGNED_OUT"
	TokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`

	id string // auth_sessions row of RefreshToken
}

type AuthEvent struct {
	Type    AuthEventType
	Session *Session // nil on SignedOut
}

// Profiles stores the public profile created at sign-up.
type Profiles interface {
	CreateProfile(ctx context.Context, u *domain.User) error
	DeleteProfile(ctx context.Context, id string) error
}

type Provider struct {
	creds      repository.CredentialRepository
	sessions   repository.SessionRepository
	profiles   Profiles
	jwt        *security.JWTSigner
	refreshTTL time.Duration
	passPolicy security.BcryptConfig
	now        func() time.Time

	mu        sync.RWMutex
	current   *Session
	listeners map[int]func(AuthEvent)
	nextID    int
}

func NewProvider(
	creds repository.CredentialRepository,
	sessions repository.SessionRepository,
	profiles Profiles,
	jwt *security.JWTSigner,
	refreshTTL time.Duration,
	passPolicy security.BcryptConfig,
	now func() time.Time,
) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{
		creds:      creds,
		sessions:   sessions,
		profiles:   profiles,
		jwt:        jwt,
		refreshTTL: refreshTTL,
		passPolicy: passPolicy,
		now:        now,
		listeners:  make(map[int]func(AuthEvent)),
	}
}

// SignUp creates credentials and an online profile, then signs the user in.
func (p *Provider) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrInvalidInput)
	}

	_, err := p.creds.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: email already registered", errs.ErrConflict)
	case !errors.Is(err, repository.ErrNotFound):
		slog.Error("identity.signUp.getByEmail failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	hash, err := security.HashPassword(password, &p.passPolicy)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
		}
		slog.Error("identity.signUp.hashPassword failed", slog.Any("err", err))
		return nil, err
	}

	now := p.now()
	cred, err := domain.NewCredential(ident.New(), email, hash, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}

	user := &domain.User{ID: cred.UserID, Name: name, Email: email}
	user.SetStatus(domain.StatusOnline, now)
	if err := p.profiles.CreateProfile(ctx, user); err != nil {
		slog.Error("identity.signUp.createProfile failed", slog.Any("err", err))
		return nil, err
	}
	// Credentials reference the profile row, so the profile goes first and is
	// removed again when the credential insert fails.
	if err := p.creds.Create(ctx, cred); err != nil {
		slog.Error("identity.signUp.createCredential failed", slog.Any("err", err))
		if derr := p.profiles.DeleteProfile(ctx, user.ID); derr != nil {
			slog.Error("identity.signUp.deleteProfile failed",
				slog.String("user_id", user.ID), slog.Any("err", derr))
		}
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email already registered", errs.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	s, err := p.issue(ctx, cred.UserID, email)
	if err != nil {
		return nil, err
	}
	p.setCurrent(s, SignedIn)
	return s.clone(), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
		}
		slog.Error("identity.signIn.getByEmail failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	if err := security.ComparePassword(cred.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", errs.ErrUnauthorized)
	}

	s, err := p.issue(ctx, cred.UserID, cred.Email)
	if err != nil {
		return nil, err
	}
	p.setCurrent(s, SignedIn)
	return s.clone(), nil
}

// Refresh rotates refreshToken; an empty token refreshes the current session.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		if cur := p.Session(); cur != nil {
			refreshToken = cur.RefreshToken
		}
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", errs.ErrUnauthorized)
	}

	hash := security.HashRefreshToken(refreshToken)
	old, err := p.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown refresh token", errs.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	// The delete is the claim: of two concurrent refreshes with the same
	// token only one removes the row.
	deleted, err := p.sessions.DeleteByID(ctx, old.ID)
	if err != nil {
		slog.Error("identity.refresh.deleteSession failed", slog.String("session_id", old.ID), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	if !deleted {
		return nil, fmt.Errorf("%w: refresh token already used", errs.ErrUnauthorized)
	}
	if old.IsExpired(p.now()) {
		return nil, fmt.Errorf("%w: session expired", errs.ErrUnauthorized)
	}

	email := ""
	if cur := p.Session(); cur != nil && cur.UserID == old.UserID {
		email = cur.Email
	}
	s, err := p.issue(ctx, old.UserID, email)
	if err != nil {
		return nil, err
	}
	p.setCurrent(s, TokenRefreshed)
	return s.clone(), nil
}

// SignOut revokes the current refresh session. Signed out is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	cur := p.Session()
	if cur == nil {
		return nil
	}
	if _, err := p.sessions.DeleteByID(ctx, cur.id); err != nil {
		slog.Error("identity.signOut.deleteSession failed", slog.Any("err", err))
		return fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}
	p.setCurrent(nil, SignedOut)
	return nil
}

// Session returns a copy of the current session or nil.
func (p *Provider) Session() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone()
}

// OnAuthStateChange registers fn for every later transition.
func (p *Provider) OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// VerifyAccessToken returns the user id carried by a valid access token.
func (p *Provider) VerifyAccessToken(token string) (string, error) {
	userID, err := p.jwt.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	return userID, nil
}

func (p *Provider) setCurrent(s *Session, typ AuthEventType) {
	p.mu.Lock()
	p.current = s
	listeners := make([]func(AuthEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(AuthEvent{Type: typ, Session: s.clone()})
	}
}

// issue signs an access token and stores a new refresh session.
func (p *Provider) issue(ctx context.Context, userID, email string) (*Session, error) {
	now := p.now()

	access, err := p.jwt.SignAccessToken(userID, now)
	if err != nil {
		slog.Error("identity.issue.signAccessToken failed", slog.Any("err", err))
		return nil, err
	}
	refresh, refreshHash, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	row, err := domain.NewSession(ident.New(), userID, refreshHash, now.Add(p.refreshTTL), now)
	if err != nil {
		return nil, err
	}
	if err := p.sessions.Create(ctx, row); err != nil {
		slog.Error("identity.issue.createSession failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", errs.ErrUpstream, err)
	}

	return &Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(p.jwt.TTL()),
		id:           row.ID,
	}, nil
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
