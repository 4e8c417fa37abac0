// Package notify delivers user-visible notifications, the daemon's
// counterpart of UI toasts.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Info and Failure build the two notification variants.
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

func Failure(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}

// Log writes notifications to the default slog logger.
type Log struct{}

func (Log) Notify(n Notification) {
	attrs := []any{slog.String("title", n.Title), slog.String("description", n.Description)}
	if n.Variant == VariantDestructive {
		slog.Warn("notification", attrs...)
		return
	}
	slog.Info("notification", attrs...)
}

// Broadcaster fans notifications out to its sinks. While enabled reports
// false only destructive notifications are delivered.
type Broadcaster struct {
	enabled func() bool
	now     func() time.Time

	mu     sync.RWMutex
	sinks  map[int]Notifier
	nextID int
}

func NewBroadcaster(enabled func() bool, sinks ...Notifier) *Broadcaster {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	b := &Broadcaster{enabled: enabled, now: time.Now, sinks: make(map[int]Notifier)}
	for _, s := range sinks {
		b.Add(s)
	}
	return b
}

// Add registers a sink and returns a func removing it.
func (b *Broadcaster) Add(n Notifier) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.sinks[id] = n
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.sinks, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Notify(n Notification) {
	if n.Variant == "" {
		n.Variant = VariantDefault
	}
	if n.Variant != VariantDestructive && !b.enabled() {
		return
	}
	if n.At.IsZero() {
		n.At = b.now()
	}

	b.mu.RLock()
	sinks := make([]Notifier, 0, len(b.sinks))
	for _, s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Notify(n)
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Last returns the most recent notification and whether there was one.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
