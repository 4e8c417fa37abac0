package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/glasschat/internal/repository"
)

type Config struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string // "chatd" when empty
}

// overlay copies the non-zero knobs of c onto pc.
func (c Config) overlay(pc *pgxpool.Config) {
	setIf := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	setIf(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setIf(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setIf(&pc.HealthCheckPeriod, c.HealthCheckPeriod)

	app := c.ApplicationName
	if app == "" {
		app = "chatd"
	}
	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = make(map[string]string, 1)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = app
}

// NewPool connects and waits for the first ping.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.overlay(pc)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Repositories returns every repository backed by pool.
func Repositories(pool *pgxpool.Pool) repository.Set {
	return repository.Set{
		Users:       &UserRepo{q: pool},
		Credentials: &CredentialRepo{q: pool},
		Sessions:    &SessionRepo{q: pool},
		Rooms:       &RoomRepo{pool: pool},
		Messages:    &MessageRepo{q: pool},
		Reactions:   &ReactionRepo{q: pool},
		Calls:       &CallRepo{q: pool},
	}
}
