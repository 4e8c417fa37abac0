package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisBus publishes events as JSON on Redis pub/sub channels, so several
// daemons sharing a backend see each other's writes.
type RedisBus struct {
	client *redis.Client
	buffer int
}

func NewRedisBus(ctx context.Context, cfg RedisConfig, buffer int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if buffer <= 0 {
		buffer = 100
	}
	return &RedisBus{client: client, buffer: buffer}, nil
}

func (r *RedisBus) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns once Redis has confirmed the subscription.
func (r *RedisBus) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	relayCtx, cancel := context.WithCancel(ctx)
	s := newSubscription(channel, r.buffer, func() {
		cancel()
		_ = ps.Close()
	})

	go r.relay(relayCtx, ps, s)
	return s, nil
}

func (r *RedisBus) relay(ctx context.Context, ps *redis.PubSub, s *Subscription) {
	defer close(s.events)
	defer s.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Warn("realtime.relay bad payload", slog.String("channel", msg.Channel), slog.Any("err", err))
				continue
			}

			select {
			case s.events <- &event:
			case <-ctx.Done():
				return
			default:
				slog.Warn("realtime.relay dropped event", slog.String("channel", msg.Channel))
			}
		}
	}
}

func (r *RedisBus) Close() error {
	return r.client.Close()
}
