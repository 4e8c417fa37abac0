package session

import (
	"fmt"
	"sync"

	"github.com/cwrk-planet/glasschat/pkg/errs"
)

type Preference string

const (
	PrefNotifications Preference = "notifications"
	PrefSound         Preference = "sound"
	PrefSidebar       Preference = "sidebar"
)

type PreferenceValues struct {
	Notifications bool `json:"notifications"`
	Sound         bool `json:"sound"`
	Sidebar       bool `json:"sidebar"`
}

// Preferences are the UI toggles. Notifications and sound start enabled,
// the sidebar starts closed.
type Preferences struct {
	mu sync.RWMutex
	v  PreferenceValues
}

func NewPreferences() *Preferences {
	return &Preferences{v: PreferenceValues{Notifications: true, Sound: true}}
}

func (p *Preferences) Values() PreferenceValues {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v
}

func (p *Preferences) NotificationsEnabled() bool {
	return p.Values().Notifications
}

// Toggle flips name and returns its new value.
func (p *Preferences) Toggle(name Preference) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var f *bool
	switch name {
	case PrefNotifications:
		f = &p.v.Notifications
	case PrefSound:
		f = &p.v.Sound
	case PrefSidebar:
		f = &p.v.Sidebar
	default:
		return false, fmt.Errorf("%w: unknown preference %q", errs.ErrInvalidInput, name)
	}
	*f = !*f
	return *f, nil
}
