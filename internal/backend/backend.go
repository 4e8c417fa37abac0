// Package backend is the relational store plus change feed that the stores
// talk to. Every write is validated, persisted and then published.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/glasschat/internal/realtime"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/pkg/errs"
)

type Backend struct {
	repos repository.Set
	bus   realtime.Bus
	now   func() time.Time
}

func New(repos repository.Set, bus realtime.Bus, now func() time.Time) *Backend {
	if now == nil {
		now = time.Now
	}
	return &Backend{repos: repos, bus: bus, now: now}
}

func (b *Backend) Now() time.Time {
	return b.now()
}

func (b *Backend) Subscribe(ctx context.Context, channel string) (*realtime.Subscription, error) {
	sub, err := b.bus.Subscribe(ctx, channel)
	if err != nil {
		return nil, wrap("subscribe "+channel, err)
	}
	return sub, nil
}

// publish is best-effort: the write already happened.
func (b *Backend) publish(ctx context.Context, channel, table string, op realtime.Op, roomID string, record any) {
	ev, err := realtime.NewEvent(table, op, roomID, record)
	if err != nil {
		slog.Error("backend.publish encode failed", slog.String("table", table), slog.Any("err", err))
		return
	}
	if err := b.bus.Publish(ctx, channel, ev); err != nil {
		slog.Warn("backend.publish failed",
			slog.String("channel", channel), slog.String("table", table), slog.Any("err", err))
	}
}

// wrap classifies repository failures for the error taxonomy.
func wrap(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s: %v", errs.ErrNotFound, op, err)
	case errors.Is(err, repository.ErrAlreadyExists):
		return fmt.Errorf("%w: %s: %v", errs.ErrConflict, op, err)
	case errors.Is(err, repository.ErrInvalidCursor):
		return fmt.Errorf("%w: %s: %v", errs.ErrInvalidInput, op, err)
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrUpstream, op, err)
}
