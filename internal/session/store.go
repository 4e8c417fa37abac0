// Package session is the session store: the signed-in user, their presence
// heartbeat and the UI preferences.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/identity"
	"github.com/cwrk-planet/glasschat/internal/notify"
)

const DefaultHeartbeatInterval = 30 * time.Second

type Provider interface {
	OnAuthStateChange(fn func(identity.AuthEvent)) (unsubscribe func())
	Session() *identity.Session
	SignOut(ctx context.Context) error
}

type Backend interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpdatePresence(ctx context.Context, id string, status domain.UserStatus) (*domain.User, error)
}

// Chat is the room/message store loaded on sign-in and reset on logout.
type Chat interface {
	Load(ctx context.Context) error
	Reset()
}

// Call is the call store, released before the user signs out.
type Call interface {
	Close()
}

type Store struct {
	provider Provider
	backend  Backend
	chat     Chat
	notifier notify.Notifier
	interval time.Duration
	prefs    *Preferences

	mu          sync.RWMutex
	user        *domain.User
	call        Call
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	hbStop      context.CancelFunc
	hbDone      chan struct{}

	obsMu     sync.RWMutex
	observers map[int]func(*domain.User)
	nextObs   int
}

func New(provider Provider, b Backend, chat Chat, notifier notify.Notifier, prefs *Preferences, interval time.Duration) *Store {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if notifier == nil {
		notifier = notify.Log{}
	}
	if prefs == nil {
		prefs = NewPreferences()
	}
	return &Store{
		provider:  provider,
		backend:   b,
		chat:      chat,
		notifier:  notifier,
		interval:  interval,
		prefs:     prefs,
		observers: make(map[int]func(*domain.User)),
	}
}

func (s *Store) Preferences() *Preferences { return s.prefs }

// SetCall attaches the call store; it reads the user id from this store, so
// it is built afterwards.
func (s *Store) SetCall(c Call) {
	s.mu.Lock()
	s.call = c
	s.mu.Unlock()
}

func (s *Store) releaseCall() {
	s.mu.RLock()
	c := s.call
	s.mu.RUnlock()
	if c != nil {
		c.Close()
	}
}

// Init subscribes to auth-state changes once and picks up an existing
// session. Later calls are no-ops.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.provider.OnAuthStateChange(s.handle)
	s.mu.Unlock()

	if cur := s.provider.Session(); cur != nil {
		s.signedIn(cur.UserID)
	}
}

// Close unsubscribes and stops the heartbeat.
func (s *Store) Close() {
	s.stopHeartbeat()
	s.mu.Lock()
	unsub, cancel := s.unsubscribe, s.cancel
	s.unsubscribe, s.cancel = nil, nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

// Current returns a copy of the signed-in user or nil.
func (s *Store) Current() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := s.user.Clone()
	return &u
}

// UserID returns the signed-in user id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// OnChange registers fn for sign-in, sign-out and presence changes; the
// user is nil when signed out.
func (s *Store) OnChange(fn func(*domain.User)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) emit() {
	u := s.Current()
	s.obsMu.RLock()
	fns := make([]func(*domain.User), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (s *Store) baseCtx() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Store) handle(ev identity.AuthEvent) {
	switch ev.Type {
	case identity.SignedIn:
		if ev.Session != nil {
			s.signedIn(ev.Session.UserID)
		}
	case identity.TokenRefreshed:
		if ev.Session != nil && s.UserID() != ev.Session.UserID {
			s.signedIn(ev.Session.UserID)
		}
	case identity.SignedOut:
		s.releaseCall()
		s.stopHeartbeat()
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()
		s.emit()
	}
}

func (s *Store) signedIn(userID string) {
	ctx := s.baseCtx()

	u, err := s.backend.GetUser(ctx, userID)
	if err != nil {
		slog.Error("session.loadProfile failed", slog.String("user_id", userID), slog.Any("err", err))
		s.notifier.Notify(notify.Failure("Error", "Could not load your profile"))
		return
	}
	if online, err := s.backend.UpdatePresence(ctx, userID, domain.StatusOnline); err != nil {
		slog.Warn("session.markOnline failed", slog.String("user_id", userID), slog.Any("err", err))
	} else {
		u = online
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.startHeartbeat(userID)
	s.emit()

	if s.chat != nil {
		if err := s.chat.Load(ctx); err != nil {
			s.notifier.Notify(notify.Failure("Error", "Could not load rooms"))
		}
	}
}

func (s *Store) startHeartbeat(userID string) {
	s.stopHeartbeat()

	ctx, stop := context.WithCancel(s.baseCtx())
	done := make(chan struct{})
	s.mu.Lock()
	s.hbStop, s.hbDone = stop, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				u, err := s.backend.UpdatePresence(ctx, userID, domain.StatusOnline)
				if err != nil {
					if ctx.Err() == nil {
						slog.Warn("session.heartbeat failed", slog.String("user_id", userID), slog.Any("err", err))
					}
					continue
				}
				s.mu.Lock()
				current := s.user != nil && s.user.ID == userID
				if current {
					s.user = u
				}
				s.mu.Unlock()
				if current {
					s.emit()
				}
			}
		}
	}()
}

func (s *Store) stopHeartbeat() {
	s.mu.Lock()
	stop, done := s.hbStop, s.hbDone
	s.hbStop, s.hbDone = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// Logout leaves any call, marks the user offline, signs out of the provider
// and resets the chat store. Failures are notified; a sign-out failure is
// also returned.
func (s *Store) Logout(ctx context.Context) error {
	s.releaseCall()
	s.stopHeartbeat()

	if uid := s.UserID(); uid != "" {
		if _, err := s.backend.UpdatePresence(ctx, uid, domain.StatusOffline); err != nil {
			slog.Error("session.markOffline failed", slog.String("user_id", uid), slog.Any("err", err))
			s.notifier.Notify(notify.Failure("Error", "Could not update your status"))
		}
	}

	if err := s.provider.SignOut(ctx); err != nil {
		slog.Error("session.signOut failed", slog.Any("err", err))
		s.notifier.Notify(notify.Failure("Error", "Could not sign out"))
		return err
	}

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	if s.chat != nil {
		s.chat.Reset()
	}
	s.emit()
	return nil
}
