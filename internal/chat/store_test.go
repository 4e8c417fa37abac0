package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/glasschat/internal/backend"
	"github.com/cwrk-planet/glasschat/internal/backend/backendtest"
	"github.com/cwrk-planet/glasschat/internal/chat"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

// who is a switchable signed-in user.
type who struct {
	mu sync.Mutex
	id string
}

func (w *who) UserID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.id
}

func (w *who) set(id string) {
	w.mu.Lock()
	w.id = id
	w.mu.Unlock()
}

func newStore(t *testing.T, b chat.Backend, userID string) (*chat.Store, *who) {
	t.Helper()
	w := &who{id: userID}
	s := chat.New(b, w)
	t.Cleanup(s.Reset)
	return s, w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScenario_HelloAndThumbsUp(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	u := env.User(t, "U")
	s, _ := newStore(t, env.Backend, u.ID)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := len(s.Messages(ident.CommunityRoomID))

	m, err := s.SendMessage(ctx, "hello", ident.CommunityRoomID, domain.MessageText)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := s.Messages(ident.CommunityRoomID)
	if len(msgs) != before+1 {
		t.Fatalf("messages = %d, want %d", len(msgs), before+1)
	}
	got := msgs[len(msgs)-1]
	if got.ID != m.ID || got.Content != "hello" || got.Kind != domain.MessageText || got.Read ||
		got.SenderID != u.ID || got.RoomID != ident.CommunityRoomID || len(got.Reactions) != 0 {
		t.Fatalf("message = %+v", got)
	}

	rs, err := s.AddReaction(ctx, m.ID, "👍")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if users := rs["👍"]; len(users) != 1 || users[0] != u.ID {
		t.Fatalf("reactions = %v", rs)
	}

	rs, err = s.AddReaction(ctx, m.ID, "👍")
	if err != nil {
		t.Fatalf("unreact: %v", err)
	}
	if _, ok := rs["👍"]; ok {
		t.Fatalf("emoji key kept after last user left: %v", rs)
	}
	stored, _ := s.Message(m.ID)
	if len(stored.Reactions) != 0 {
		t.Fatalf("stored reactions = %v", stored.Reactions)
	}

	rows, err := env.Repos.Reactions.ListByMessages(ctx, []string{m.ID})
	if err != nil || len(rows) != 0 {
		t.Fatalf("rows = %v, %v", rows, err)
	}
}

func TestAddReaction_InvolutionKeepsOthers(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	s, w := newStore(t, env.Backend, a.ID)

	m, err := s.SendMessage(ctx, "hi", ident.CommunityRoomID, domain.MessageText)
	if err != nil {
		t.Fatal(err)
	}
	w.set(b.ID)
	if _, err := s.AddReaction(ctx, m.ID, "🔥"); err != nil {
		t.Fatal(err)
	}
	w.set(a.ID)
	orig, _ := s.Message(m.ID)

	for range 2 {
		if _, err := s.AddReaction(ctx, m.ID, "🔥"); err != nil {
			t.Fatal(err)
		}
	}
	after, _ := s.Message(m.ID)
	if len(after.Reactions["🔥"]) != 1 || after.Reactions["🔥"][0] != orig.Reactions["🔥"][0] {
		t.Fatalf("before %v after %v", orig.Reactions, after.Reactions)
	}
}

func TestAddReaction_UnknownMessageIsNoop(t *testing.T) {
	env := backendtest.New(t)
	u := env.User(t, "U")
	s, _ := newStore(t, env.Backend, u.ID)

	rs, err := s.AddReaction(context.Background(), ident.New(), "👍")
	if err != nil || rs != nil {
		t.Fatalf("got %v, %v", rs, err)
	}
	if _, err := s.AddReaction(context.Background(), ident.New(), "  "); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty emoji: %v", err)
	}
}

type backwardsClock struct {
	*backend.Backend
	at time.Time
}

func (c *backwardsClock) Now() time.Time {
	c.at = c.at.Add(-time.Minute)
	return c.at
}

func TestSendMessage_TimestampNeverGoesBack(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	u := env.User(t, "U")
	clock := &backwardsClock{Backend: env.Backend, at: time.Now()}
	s, _ := newStore(t, clock, u.ID)

	var prev time.Time
	for range 3 {
		m, err := s.SendMessage(ctx, "x", ident.CommunityRoomID, domain.MessageText)
		if err != nil {
			t.Fatal(err)
		}
		if m.Timestamp.Before(prev) {
			t.Fatalf("timestamp %v before previous %v", m.Timestamp, prev)
		}
		prev = m.Timestamp
	}
	if n := len(s.Messages(ident.CommunityRoomID)); n != 3 {
		t.Fatalf("messages = %d", n)
	}
}

func TestSendMessage_Rejections(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	u := env.User(t, "U")
	s, w := newStore(t, env.Backend, "")

	if _, err := s.SendMessage(ctx, "x", ident.CommunityRoomID, domain.MessageText); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("signed out: %v", err)
	}
	w.set(u.ID)
	if _, err := s.SendMessage(ctx, "x", "community", domain.MessageText); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad room: %v", err)
	}
	if _, err := s.SendMessage(ctx, "x", ident.CommunityRoomID, "sticker"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad kind: %v", err)
	}
	if _, err := s.SendMessage(ctx, "x", ident.New(), domain.MessageText); err == nil {
		t.Fatal("expected backend failure for unknown room")
	}
	if n := len(s.Messages(ident.CommunityRoomID)); n != 0 {
		t.Fatalf("messages = %d", n)
	}
}

func TestCreateRoom_BecomesActive(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	s, _ := newStore(t, env.Backend, a.ID)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ActiveRoom() != ident.CommunityRoomID {
		t.Fatalf("active = %q", s.ActiveRoom())
	}

	r, err := s.CreateRoom(ctx, "team", domain.RoomPrivate, []string{b.ID, b.ID, a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if s.ActiveRoom() != r.ID {
		t.Fatalf("active = %q, want %q", s.ActiveRoom(), r.ID)
	}
	if len(r.Participants) != 2 || !r.HasParticipant(a.ID) || !r.HasParticipant(b.ID) || r.CreatedBy != a.ID {
		t.Fatalf("room = %+v", r)
	}
	got, err := env.Backend.GetRoom(ctx, r.ID)
	if err != nil || len(got.Participants) != 2 {
		t.Fatalf("stored room = %+v, %v", got, err)
	}

	sorted := s.SortedRooms()
	if sorted[0].ID != ident.CommunityRoomID || sorted[1].ID != r.ID {
		t.Fatalf("sorted = %v, %v", sorted[0].ID, sorted[1].ID)
	}

	if _, err := s.CreateRoom(ctx, "", domain.RoomPrivate, nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := s.CreateRoom(ctx, "x", domain.RoomCommunity, nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("community kind: %v", err)
	}
	if _, err := s.CreateRoom(ctx, "x", domain.RoomPrivate, []string{"bob"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("bad participant: %v", err)
	}
}

func TestLeaveRoom_FallsBackToCommunity(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	s, w := newStore(t, env.Backend, a.ID)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	r, err := s.CreateRoom(ctx, "pair", domain.RoomDirect, []string{b.ID})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.LeaveRoom(ctx, r.ID); !errors.Is(err, domain.ErrCreatorCannotLeave) {
		t.Fatalf("creator leave: %v", err)
	}

	w.set(b.ID)
	if err := s.LeaveRoom(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if s.ActiveRoom() != ident.CommunityRoomID {
		t.Fatalf("active = %q", s.ActiveRoom())
	}
	room, _ := s.Room(r.ID)
	if room.HasParticipant(b.ID) {
		t.Fatal("participant kept")
	}
	if err := s.LeaveRoom(ctx, ident.CommunityRoomID); err != nil || s.ActiveRoom() != ident.CommunityRoomID {
		t.Fatalf("community leave: %v, active %q", err, s.ActiveRoom())
	}
	if err := s.LeaveRoom(ctx, ident.New()); err != nil {
		t.Fatalf("unknown room: %v", err)
	}
}

func TestLeaveRoom_NoCommunityClearsActive(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	// Not loaded: the community room is not in local state.
	s, w := newStore(t, env.Backend, a.ID)
	r, err := s.CreateRoom(ctx, "pair", domain.RoomDirect, []string{b.ID})
	if err != nil {
		t.Fatal(err)
	}
	w.set(b.ID)
	if err := s.LeaveRoom(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if s.ActiveRoom() != "" {
		t.Fatalf("active = %q", s.ActiveRoom())
	}
}

func TestJoinRoom_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	s, w := newStore(t, env.Backend, a.ID)
	r, err := s.CreateRoom(ctx, "open", domain.RoomPrivate, nil)
	if err != nil {
		t.Fatal(err)
	}

	w.set(b.ID)
	for range 2 {
		if err := s.JoinRoom(ctx, r.ID); err != nil {
			t.Fatal(err)
		}
	}
	room, _ := s.Room(r.ID)
	if len(room.Participants) != 2 {
		t.Fatalf("participants = %v", room.Participants)
	}
	ids, err := env.Repos.Rooms.Participants(ctx, r.ID)
	if err != nil || len(ids) != 2 {
		t.Fatalf("stored participants = %v, %v", ids, err)
	}
	if err := s.JoinRoom(ctx, ident.New()); err != nil {
		t.Fatalf("unknown room: %v", err)
	}
}

func TestFeed_AppliesOtherUsersWrites(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	a, b := env.User(t, "A"), env.User(t, "B")
	s, _ := newStore(t, env.Backend, a.ID)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	m := domain.Message{
		ID: ident.New(), Content: "from b", SenderID: b.ID, RoomID: ident.CommunityRoomID,
		Timestamp: time.Now().UTC(), Kind: domain.MessageText, Reactions: domain.Reactions{},
	}
	if err := env.Backend.SendMessage(ctx, &m); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { _, ok := s.Message(m.ID); return ok })

	if err := env.Backend.AddReaction(ctx, ident.CommunityRoomID, domain.Reaction{MessageID: m.ID, UserID: b.ID, Emoji: "🎉"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { got, _ := s.Message(m.ID); return got.Reactions.Has("🎉", b.ID) })

	if _, err := s.MarkRead(ctx, ident.CommunityRoomID); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Message(m.ID); !got.Read {
		t.Fatal("message not marked read")
	}

	if _, err := env.Backend.UpdatePresence(ctx, b.ID, domain.StatusOnline); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		for _, u := range s.Users() {
			if u.ID == b.ID {
				return u.Status == domain.StatusOnline
			}
		}
		return false
	})

	// Duplicate deliveries change nothing.
	ev, _ := realtime.NewEvent(realtime.TableMessages, realtime.OpInsert, m.RoomID, m)
	s.Apply(ev)
	if n := len(s.Messages(ident.CommunityRoomID)); n != 1 {
		t.Fatalf("messages = %d", n)
	}
}

func TestReset_ClearsStateAndFeed(t *testing.T) {
	ctx := context.Background()
	env := backendtest.New(t)
	u := env.User(t, "U")
	s, _ := newStore(t, env.Backend, u.ID)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if env.Bus.Subscribers(realtime.ChannelRooms) != 1 {
		t.Fatalf("rooms subscribers = %d", env.Bus.Subscribers(realtime.ChannelRooms))
	}
	if _, err := s.SendMessage(ctx, "x", ident.CommunityRoomID, domain.MessageText); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	if len(s.Rooms()) != 0 || len(s.Users()) != 0 || len(s.Messages(ident.CommunityRoomID)) != 0 || s.ActiveRoom() != "" {
		t.Fatal("state not cleared")
	}
	waitFor(t, func() bool {
		return env.Bus.Subscribers(realtime.ChannelRooms) == 0 &&
			env.Bus.Subscribers(realtime.RoomChannel(ident.CommunityRoomID)) == 0
	})
}

func TestOpenRoomCreation_Unimplemented(t *testing.T) {
	env := backendtest.New(t)
	s, _ := newStore(t, env.Backend, "")
	if err := s.OpenRoomCreation(context.Background()); !errors.Is(err, errs.ErrNotImplemented) {
		t.Fatalf("err = %v", err)
	}
}

func TestOnChange_ReportsMessages(t *testing.T) {
	env := backendtest.New(t)
	u := env.User(t, "U")
	s, _ := newStore(t, env.Backend, u.ID)

	var (
		mu      sync.Mutex
		changes []chat.Change
	)
	stop := s.OnChange(func(c chat.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	defer stop()

	if _, err := s.SendMessage(context.Background(), "x", ident.CommunityRoomID, domain.MessageText); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0].Type != chat.ChangeMessage || changes[0].RoomID != ident.CommunityRoomID {
		t.Fatalf("changes = %+v", changes)
	}
}
