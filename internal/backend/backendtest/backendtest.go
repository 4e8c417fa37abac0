// Package backendtest wires a Backend on a temporary SQLite file and an
// in-process bus for tests of the stores.
package backendtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cwrk-planet/glasschat/internal/backend"
	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/repository/sqlite"
)

type Env struct {
	Backend *backend.Backend
	Repos   repository.Set
	Bus     *realtime.MemoryBus
}

func New(t testing.TB) *Env {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	bus := realtime.NewMemoryBus(64)
	t.Cleanup(func() {
		bus.Close()
		db.Close()
	})
	repos := db.Repositories()
	return &Env{Backend: backend.New(repos, bus, nil), Repos: repos, Bus: bus}
}

// User creates an offline profile.
func (e *Env) User(t testing.TB, name string) domain.User {
	t.Helper()
	u := domain.User{ID: ident.New(), Name: name, Status: domain.StatusOffline}
	if err := e.Backend.CreateProfile(context.Background(), &u); err != nil {
		t.Fatalf("create profile %s: %v", name, err)
	}
	return u
}
