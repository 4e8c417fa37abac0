package realtime

import "sync"

type Subscription struct {
	channel string
	events  chan *Event
	done    chan struct{}
	once    sync.Once
	stop    func()
}

func newSubscription(channel string, buffer int, stop func()) *Subscription {
	return &Subscription{
		channel: channel,
		events:  make(chan *Event, buffer),
		done:    make(chan struct{}),
		stop:    stop,
	}
}

func (s *Subscription) Channel() string {
	return s.channel
}

// Events is closed once the subscription ends.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Done is closed by Close.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
}
