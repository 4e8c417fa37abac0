package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"
)

type CallRepo struct {
	q querier
}

func (r *CallRepo) Create(ctx context.Context, c *domain.CallRecord) error {
	_, err := r.q.Exec(ctx, queries.QueryCreateCall,
		c.ID, c.RoomID, c.InitiatorID, string(c.Type), nonNil(c.Participants), c.CreatedAt, c.EndedAt)
	return mapPgError(err)
}

func (r *CallRepo) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	tag, err := r.q.Exec(ctx, queries.QueryUpdateCallParticipants, id, nonNil(participants))
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CallRepo) End(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, queries.QueryEndCall, id, at)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CallRepo) ActiveByRoom(ctx context.Context, roomID string) (*domain.CallRecord, error) {
	var (
		c        domain.CallRecord
		callType string
	)
	err := r.q.QueryRow(ctx, queries.QueryActiveCallByRoom, roomID).
		Scan(&c.ID, &c.RoomID, &c.InitiatorID, &callType, &c.Participants, &c.CreatedAt, &c.EndedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	c.Type = domain.CallType(callType)
	return &c, nil
}
