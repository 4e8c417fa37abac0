package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrBusClosed = errors.New("realtime: bus closed")

// MemoryBus fans events out in-process. A subscriber whose buffer is full
// misses the event.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{} // channel -> subscriptions
	buffer int
	closed bool
}

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 100
	}
	return &MemoryBus{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for s := range b.subs[channel] {
		select {
		case s.events <- event:
		default:
			slog.Warn("realtime.publish dropped event",
				slog.String("channel", channel), slog.String("table", event.Table))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	var s *Subscription
	s = newSubscription(channel, b.buffer, func() { b.remove(s) })

	set, ok := b.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[channel] = set
	}
	set[s] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (b *MemoryBus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[s.channel]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.channel)
	}
	close(s.events)
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, set := range subs {
		for s := range set {
			s.once.Do(func() { close(s.done) })
			close(s.events)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *MemoryBus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
