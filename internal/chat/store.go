// Package chat is the room/message store: local collections of users, rooms
// and messages kept in sync with the backend and its change feed.
package chat

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
)

// Backend is the part of the backend facade the store writes through.
type Backend interface {
	Now() time.Time
	Subscribe(ctx context.Context, channel string) (*realtime.Subscription, error)

	ListUsers(ctx context.Context) ([]domain.User, error)

	CreateRoom(ctx context.Context, room *domain.Room) error
	ListRooms(ctx context.Context) ([]domain.Room, error)
	AddParticipant(ctx context.Context, roomID, userID string) error
	RemoveParticipant(ctx context.Context, roomID, userID string) error

	SendMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, roomID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
	AddReaction(ctx context.Context, roomID string, r domain.Reaction) error
	RemoveReaction(ctx context.Context, roomID string, r domain.Reaction) error
}

// Identity yields the signed-in user id, or "" when signed out.
type Identity interface {
	UserID() string
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func() string

func (f IdentityFunc) UserID() string { return f() }

type ChangeType string

const (
	ChangeMessage  ChangeType = "message"
	ChangeReaction ChangeType = "reaction"
	ChangeRoom     ChangeType = "room"
	ChangeUser     ChangeType = "user"
	ChangeReset    ChangeType = "reset"
)

// Change describes a state mutation for observers such as the UI stream.
type Change struct {
	Type    ChangeType `json:"type"`
	RoomID  string     `json:"room_id,omitempty"`
	Payload any        `json:"payload,omitempty"`
}

type Option func(*Store)

func WithRoomCreationFlow(f RoomCreationFlow) Option {
	return func(s *Store) { s.flow = f }
}

// Store serialises intents and feed events with op; mu guards the
// collections for readers.
type Store struct {
	backend  Backend
	identity Identity
	flow     RoomCreationFlow

	op sync.Mutex

	mu       sync.RWMutex
	users    map[string]domain.User
	rooms    []domain.Room
	messages map[string][]domain.Message // by room id, ordered by timestamp
	owner    map[string]string           // message id -> room id
	active   string

	feed feed

	obsMu     sync.RWMutex
	observers map[int]func(Change)
	nextObs   int
}

func New(b Backend, identity Identity, opts ...Option) *Store {
	s := &Store{
		backend:   b,
		identity:  identity,
		flow:      UnimplementedRoomCreationFlow{},
		observers: make(map[int]func(Change)),
	}
	s.clear()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clear() {
	s.users = make(map[string]domain.User)
	s.rooms = nil
	s.messages = make(map[string][]domain.Message)
	s.owner = make(map[string]string)
	s.active = ""
}

// OnChange registers fn for every later mutation. fn runs while an intent
// is in progress and must not call intents itself.
func (s *Store) OnChange(fn func(Change)) (unsubscribe func()) {
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

func (s *Store) emit(c Change) {
	s.obsMu.RLock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) ActiveRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Rooms returns copies in insertion order.
func (s *Store) Rooms() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, len(s.rooms))
	for i := range s.rooms {
		out[i] = s.rooms[i].Clone()
	}
	return out
}

// SortedRooms puts the community room first, then orders by last message
// time and creation time, newest first.
func (s *Store) SortedRooms() []domain.Room {
	out := s.Rooms()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ca, cb := ident.IsCommunity(a.ID), ident.IsCommunity(b.ID); ca != cb {
			return ca
		}
		if la, lb := a.LastActivity(), b.LastActivity(); !la.Equal(lb) {
			return la.After(lb)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

func (s *Store) Room(id string) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.roomIndex(id)
	if i < 0 {
		return domain.Room{}, false
	}
	return s.rooms[i].Clone(), true
}

func (s *Store) Messages(roomID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	out := make([]domain.Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Clone()
	}
	return out
}

func (s *Store) Message(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.findMessage(id)
	if m == nil {
		return domain.Message{}, false
	}
	return m.Clone(), true
}

// Users returns profiles ordered by name.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.User) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Snapshot is the whole state, used by the UI stream on connect.
type Snapshot struct {
	ActiveRoom string                      `json:"active_room"`
	Rooms      []domain.Room               `json:"rooms"`
	Users      []domain.User               `json:"users"`
	Messages   map[string][]domain.Message `json:"messages"`
}

func (s *Store) Snapshot() Snapshot {
	rooms := s.SortedRooms()
	snap := Snapshot{
		ActiveRoom: s.ActiveRoom(),
		Rooms:      rooms,
		Users:      s.Users(),
		Messages:   make(map[string][]domain.Message, len(rooms)),
	}
	for _, r := range rooms {
		snap.Messages[r.ID] = s.Messages(r.ID)
	}
	return snap
}

// The helpers below expect s.mu to be held.

func (s *Store) roomIndex(id string) int {
	return slices.IndexFunc(s.rooms, func(r domain.Room) bool { return r.ID == id })
}

func (s *Store) findMessage(id string) *domain.Message {
	roomID, ok := s.owner[id]
	if !ok {
		return nil
	}
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].ID == id {
			return &msgs[i]
		}
	}
	return nil
}

// insertMessage keeps the room slice ordered and reports false for a
// message that is already present.
func (s *Store) insertMessage(m domain.Message) bool {
	if _, ok := s.owner[m.ID]; ok {
		return false
	}
	if m.Reactions == nil {
		m.Reactions = domain.Reactions{}
	}
	msgs := s.messages[m.RoomID]
	i := len(msgs)
	for i > 0 && msgs[i-1].Timestamp.After(m.Timestamp) {
		i--
	}
	s.messages[m.RoomID] = slices.Insert(msgs, i, m)
	s.owner[m.ID] = m.RoomID

	if ri := s.roomIndex(m.RoomID); ri >= 0 {
		r := &s.rooms[ri]
		if r.LastMessage == nil || !m.Timestamp.Before(r.LastMessage.Timestamp) {
			last := m.Clone()
			r.LastMessage = &last
		}
	}
	return true
}

// addRoom reports false for a room that is already present. Later
// membership changes arrive as participant events.
func (s *Store) addRoom(r domain.Room) bool {
	if s.roomIndex(r.ID) >= 0 {
		return false
	}
	s.rooms = append(s.rooms, r)
	return true
}

func (s *Store) latestTimestamp(roomID string) time.Time {
	msgs := s.messages[roomID]
	if len(msgs) == 0 {
		return time.Time{}
	}
	return msgs[len(msgs)-1].Timestamp
}

func (s *Store) communityPresent() bool {
	return s.roomIndex(ident.CommunityRoomID) >= 0
}
