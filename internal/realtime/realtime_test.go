package realtime

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func recv(t *testing.T, s *Subscription) *Event {
	t.Helper()
	select {
	case e, ok := <-s.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func TestMemoryBus_FanOutPerChannel(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx := context.Background()

	a, _ := bus.Subscribe(ctx, RoomChannel("r1"))
	b, _ := bus.Subscribe(ctx, RoomChannel("r1"))
	other, _ := bus.Subscribe(ctx, RoomChannel("r2"))

	ev, err := NewEvent(TableMessages, OpInsert, "r1", map[string]string{"id": "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, RoomChannel("r1"), ev); err != nil {
		t.Fatal(err)
	}

	for _, s := range []*Subscription{a, b} {
		got := recv(t, s)
		var rec map[string]string
		if err := got.Decode(&rec); err != nil || rec["id"] != "m1" || got.Op != OpInsert {
			t.Fatalf("event = %+v, %v", got, err)
		}
	}
	select {
	case e := <-other.Events():
		t.Fatalf("unexpected event on r2: %+v", e)
	default:
	}
}

func TestMemoryBus_DropsWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	ctx := context.Background()
	s, _ := bus.Subscribe(ctx, ChannelRooms)

	ev, _ := NewEvent(TableRooms, OpInsert, "", nil)
	for i := 0; i < 3; i++ {
		if err := bus.Publish(ctx, ChannelRooms, ev); err != nil {
			t.Fatal(err)
		}
	}
	if len(s.Events()) != 1 {
		t.Fatalf("buffered = %d", len(s.Events()))
	}
}

func TestMemoryBus_CloseAndContext(t *testing.T) {
	bus := NewMemoryBus(1)
	ctx, cancel := context.WithCancel(context.Background())

	s, _ := bus.Subscribe(ctx, ChannelUsers)
	manual, _ := bus.Subscribe(context.Background(), ChannelUsers)
	if bus.Subscribers(ChannelUsers) != 2 {
		t.Fatalf("subscribers = %d", bus.Subscribers(ChannelUsers))
	}

	cancel()
	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed on ctx cancel")
	}

	manual.Close()
	manual.Close()
	if _, ok := <-manual.Events(); ok {
		t.Fatal("expected closed channel")
	}
	if bus.Subscribers(ChannelUsers) != 0 {
		t.Fatalf("subscribers = %d", bus.Subscribers(ChannelUsers))
	}

	late, _ := bus.Subscribe(context.Background(), ChannelUsers)
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-late.Events(); ok {
		t.Fatal("bus close must end subscriptions")
	}
	late.Close()
	if _, err := bus.Subscribe(context.Background(), ChannelUsers); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("err = %v", err)
	}
}

// Needs a live server: REDIS_ADDR=localhost:6379 go test ./internal/realtime
func TestRedisBus_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	bus, err := NewRedisBus(ctx, RedisConfig{Address: addr}, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	s, err := bus.Subscribe(ctx, RoomChannel("redis-test"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ev, _ := NewEvent(TableMessages, OpInsert, "redis-test", map[string]string{"id": "m"})
	if err := bus.Publish(ctx, RoomChannel("redis-test"), ev); err != nil {
		t.Fatal(err)
	}
	got := recv(t, s)
	if got.Table != TableMessages || got.RoomID != "redis-test" {
		t.Fatalf("event = %+v", got)
	}
}
