package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/glasschat/internal/backend/backendtest"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

func next(t *testing.T, s *realtime.Subscription) *realtime.Event {
	t.Helper()
	select {
	case e := <-s.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return nil
}

func TestBackend_RejectsMalformedIDs(t *testing.T) {
	env := backendtest.New(t)
	ctx := context.Background()

	err := env.Backend.SendMessage(ctx, &domain.Message{ID: ident.New(), RoomID: "general", SenderID: ident.New()})
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if _, err := env.Backend.ListMessages(ctx, "not-a-uuid"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if _, err := env.Backend.GetUser(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestBackend_SendPublishesOnRoomChannel(t *testing.T) {
	env := backendtest.New(t)
	ctx := context.Background()
	u := env.User(t, "alice")

	sub, err := env.Backend.Subscribe(ctx, realtime.RoomChannel(ident.CommunityRoomID))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	m := domain.Message{ID: ident.New(), RoomID: ident.CommunityRoomID, SenderID: u.ID, Content: "hello",
		Kind: domain.MessageText, Timestamp: time.Now(), Reactions: domain.Reactions{}}
	if err := env.Backend.SendMessage(ctx, &m); err != nil {
		t.Fatal(err)
	}
	ev := next(t, sub)
	var got domain.Message
	if err := ev.Decode(&got); err != nil || got.ID != m.ID || ev.Table != realtime.TableMessages {
		t.Fatalf("event = %+v, %v", ev, err)
	}

	if err := env.Backend.AddReaction(ctx, m.RoomID, domain.Reaction{MessageID: m.ID, UserID: u.ID, Emoji: "👍"}); err != nil {
		t.Fatal(err)
	}
	if ev := next(t, sub); ev.Table != realtime.TableReactions || ev.Op != realtime.OpInsert {
		t.Fatalf("event = %+v", ev)
	}

	msgs, err := env.Backend.ListMessages(ctx, ident.CommunityRoomID)
	if err != nil || len(msgs) != 1 || !msgs[0].Reactions.Has("👍", u.ID) {
		t.Fatalf("messages = %+v, %v", msgs, err)
	}
}

func TestBackend_RoomsAndParticipants(t *testing.T) {
	env := backendtest.New(t)
	ctx := context.Background()
	a := env.User(t, "a")
	b := env.User(t, "b")

	rooms, _ := env.Backend.Subscribe(ctx, realtime.ChannelRooms)
	defer rooms.Close()

	room := domain.Room{ID: ident.New(), Name: "x", Kind: domain.RoomPrivate, CreatedBy: a.ID, CreatedAt: time.Now()}
	if err := env.Backend.CreateRoom(ctx, &room); err != nil {
		t.Fatal(err)
	}
	if !room.HasParticipant(a.ID) {
		t.Fatal("creator must be a participant")
	}
	if ev := next(t, rooms); ev.Table != realtime.TableRooms {
		t.Fatalf("event = %+v", ev)
	}

	if err := env.Backend.AddParticipant(ctx, room.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	got, err := env.Backend.GetRoom(ctx, room.ID)
	if err != nil || len(got.Participants) != 2 {
		t.Fatalf("room = %+v, %v", got, err)
	}

	all, err := env.Backend.ListRooms(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("rooms = %v, %v", all, err)
	}

	if _, err := env.Backend.GetRoom(ctx, ident.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestBackend_Calls(t *testing.T) {
	env := backendtest.New(t)
	ctx := context.Background()
	a := env.User(t, "a")

	if c, err := env.Backend.ActiveCall(ctx, ident.CommunityRoomID); c != nil || err != nil {
		t.Fatalf("active = %v, %v", c, err)
	}
	c := domain.CallRecord{ID: ident.New(), RoomID: ident.CommunityRoomID, InitiatorID: a.ID, Type: domain.CallVideo,
		Participants: []string{a.ID}}
	if err := env.Backend.CreateCall(ctx, &c); err != nil {
		t.Fatal(err)
	}
	active, err := env.Backend.ActiveCall(ctx, ident.CommunityRoomID)
	if err != nil || active == nil || active.ID != c.ID {
		t.Fatalf("active = %+v, %v", active, err)
	}
	if err := env.Backend.EndCall(ctx, &c); err != nil || c.EndedAt == nil {
		t.Fatalf("end: %v", err)
	}
	if err := env.Backend.EndCall(ctx, &c); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second end: %v", err)
	}
}

func TestBackend_PresencePublishesOnUsers(t *testing.T) {
	env := backendtest.New(t)
	ctx := context.Background()
	u := env.User(t, "a")

	users, _ := env.Backend.Subscribe(ctx, realtime.ChannelUsers)
	defer users.Close()

	got, err := env.Backend.UpdatePresence(ctx, u.ID, domain.StatusOnline)
	if err != nil || got.Status != domain.StatusOnline {
		t.Fatalf("user = %+v, %v", got, err)
	}
	ev := next(t, users)
	var rec domain.User
	if err := ev.Decode(&rec); err != nil || rec.Status != domain.StatusOnline || ev.Op != realtime.OpUpdate {
		t.Fatalf("event = %+v", ev)
	}
}
