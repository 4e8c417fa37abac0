package chat

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwrk-planet/glasschat/internal/backend"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
)

// loadConcurrency bounds parallel history fetches.
const loadConcurrency = 4

// feed owns the change-feed subscriptions of one Load.
type feed struct {
	ctx    context.Context
	cancel context.CancelFunc
	subs   map[string]*realtime.Subscription
	wg     *sync.WaitGroup
	gen    uint64
}

// Load replaces local state with the backend's rooms, users and message
// histories and starts following the change feed.
func (s *Store) Load(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.stopFeed()
	s.startFeed(ctx)
	s.watch(realtime.ChannelRooms)
	s.watch(realtime.ChannelUsers)

	var (
		rooms []domain.Room
		users []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rooms, err = s.backend.ListRooms(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.backend.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("chat.load failed", slog.Any("err", err))
		s.stopFeed()
		return err
	}

	for _, r := range rooms {
		s.watch(realtime.RoomChannel(r.ID))
	}

	histories := make([][]domain.Message, len(rooms))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i := range rooms {
		g.Go(func() error {
			msgs, err := s.backend.ListMessages(gctx, rooms[i].ID)
			histories[i] = msgs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("chat.load.messages failed", slog.Any("err", err))
		s.stopFeed()
		return err
	}

	s.mu.Lock()
	active := s.active
	s.clear()
	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, r := range rooms {
		s.addRoom(r)
	}
	for _, msgs := range histories {
		for _, m := range msgs {
			s.insertMessage(m)
		}
	}
	switch {
	case active != "" && s.roomIndex(active) >= 0:
		s.active = active
	case s.communityPresent():
		s.active = ident.CommunityRoomID
	}
	s.mu.Unlock()

	slog.Info("chat.load done", slog.Int("rooms", len(rooms)), slog.Int("users", len(users)))
	s.emit(Change{Type: ChangeReset})
	return nil
}

// Reset restores the initial empty collections and stops the change feed.
func (s *Store) Reset() {
	s.op.Lock()
	wg := s.stopFeed()
	s.mu.Lock()
	s.clear()
	s.mu.Unlock()
	s.op.Unlock()

	if wg != nil {
		wg.Wait()
	}
	s.emit(Change{Type: ChangeReset})
}

// Apply folds one change-feed event into local state. Events are applied
// idempotently.
func (s *Store) Apply(ev *realtime.Event) {
	s.op.Lock()
	defer s.op.Unlock()
	s.apply(ev)
}

// The feed helpers below expect s.op to be held.

func (s *Store) startFeed(ctx context.Context) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.feed = feed{
		ctx:    fctx,
		cancel: cancel,
		subs:   make(map[string]*realtime.Subscription),
		wg:     &sync.WaitGroup{},
		gen:    s.feed.gen + 1,
	}
}

// stopFeed returns the wait group of the stopped relays, or nil.
func (s *Store) stopFeed() *sync.WaitGroup {
	if s.feed.cancel == nil {
		return nil
	}
	s.feed.cancel()
	for _, sub := range s.feed.subs {
		sub.Close()
	}
	wg := s.feed.wg
	s.feed = feed{gen: s.feed.gen + 1}
	return wg
}

func (s *Store) watch(channel string) {
	f := &s.feed
	if f.ctx == nil {
		return
	}
	if _, ok := f.subs[channel]; ok {
		return
	}
	sub, err := s.backend.Subscribe(f.ctx, channel)
	if err != nil {
		slog.Warn("chat.watch failed", slog.String("channel", channel), slog.Any("err", err))
		return
	}
	f.subs[channel] = sub
	f.wg.Add(1)
	go s.relay(f.gen, f.wg, sub)
}

func (s *Store) relay(gen uint64, wg *sync.WaitGroup, sub *realtime.Subscription) {
	defer wg.Done()
	for ev := range sub.Events() {
		s.op.Lock()
		if s.feed.gen == gen {
			s.apply(ev)
		}
		s.op.Unlock()
	}
}

func (s *Store) apply(ev *realtime.Event) {
	if ev == nil {
		return
	}
	self := s.identity.UserID()

	switch ev.Table {
	case realtime.TableMessages:
		s.applyMessage(ev)
	case realtime.TableReactions:
		var r domain.Reaction
		if err := ev.Decode(&r); err != nil {
			slog.Warn("chat.apply bad reaction", slog.Any("err", err))
			return
		}
		// Own reactions are applied by AddReaction; a late echo must not
		// undo a newer toggle.
		if r.UserID == self {
			return
		}
		s.mu.Lock()
		m := s.findMessage(r.MessageID)
		changed := false
		var after domain.Reactions
		if m != nil {
			switch ev.Op {
			case realtime.OpInsert:
				changed = m.Reactions.Add(r.Emoji, r.UserID)
			case realtime.OpDelete:
				changed = m.Reactions.Remove(r.Emoji, r.UserID)
			}
			after = m.Reactions.Clone()
		}
		s.mu.Unlock()
		if changed {
			s.emit(Change{Type: ChangeReaction, RoomID: ev.RoomID, Payload: reactionChange{MessageID: r.MessageID, Reactions: after}})
		}
	case realtime.TableRooms:
		var r domain.Room
		if err := ev.Decode(&r); err != nil {
			slog.Warn("chat.apply bad room", slog.Any("err", err))
			return
		}
		s.mu.Lock()
		added := s.addRoom(r.Clone())
		s.mu.Unlock()
		if added {
			s.watch(realtime.RoomChannel(r.ID))
			s.emit(Change{Type: ChangeRoom, RoomID: r.ID, Payload: r})
		}
	case realtime.TableParticipants:
		var p backend.ParticipantRecord
		if err := ev.Decode(&p); err != nil {
			slog.Warn("chat.apply bad participant", slog.Any("err", err))
			return
		}
		if p.UserID == self {
			return
		}
		s.mu.Lock()
		changed := false
		var room domain.Room
		if i := s.roomIndex(p.RoomID); i >= 0 {
			switch ev.Op {
			case realtime.OpInsert:
				changed = s.rooms[i].AddParticipant(p.UserID)
			case realtime.OpDelete:
				changed = s.rooms[i].RemoveParticipant(p.UserID)
			}
			room = s.rooms[i].Clone()
		}
		s.mu.Unlock()
		if changed {
			s.emit(Change{Type: ChangeRoom, RoomID: p.RoomID, Payload: room})
		}
	case realtime.TableUsers:
		var u domain.User
		if err := ev.Decode(&u); err != nil {
			slog.Warn("chat.apply bad user", slog.Any("err", err))
			return
		}
		s.mu.Lock()
		if ev.Op == realtime.OpDelete {
			delete(s.users, u.ID)
		} else {
			s.users[u.ID] = u
		}
		s.mu.Unlock()
		s.emit(Change{Type: ChangeUser, Payload: u.Clone()})
	}
}

func (s *Store) applyMessage(ev *realtime.Event) {
	switch ev.Op {
	case realtime.OpInsert:
		var m domain.Message
		if err := ev.Decode(&m); err != nil {
			slog.Warn("chat.apply bad message", slog.Any("err", err))
			return
		}
		s.mu.Lock()
		inserted := s.insertMessage(m)
		s.mu.Unlock()
		if inserted {
			s.emit(Change{Type: ChangeMessage, RoomID: m.RoomID, Payload: m.Clone()})
		}
	case realtime.OpUpdate:
		var rr backend.ReadRecord
		if err := ev.Decode(&rr); err != nil {
			slog.Warn("chat.apply bad read marker", slog.Any("err", err))
			return
		}
		if s.markReadLocal(rr.RoomID, rr.ReaderID) {
			s.emit(Change{Type: ChangeMessage, RoomID: rr.RoomID})
		}
	}
}
