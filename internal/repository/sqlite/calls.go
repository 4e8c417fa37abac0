package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

type CallRepo struct {
	q querier
}

func (r *CallRepo) Create(ctx context.Context, c *domain.CallRecord) error {
	participants, err := json.Marshal(nonNil(c.Participants))
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO video_calls (id, room_id, initiator_id, call_type, participants, created_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RoomID, c.InitiatorID, string(c.Type), string(participants), toNanos(c.CreatedAt), nullNanos(c.EndedAt))
	return mapSQLiteError(err)
}

func (r *CallRepo) UpdateParticipants(ctx context.Context, id string, participants []string) error {
	data, err := json.Marshal(nonNil(participants))
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE video_calls SET participants = ? WHERE id = ?`, string(data), id)
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CallRepo) End(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE video_calls SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, toNanos(at), id)
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CallRepo) ActiveByRoom(ctx context.Context, roomID string) (*domain.CallRecord, error) {
	var (
		c            domain.CallRecord
		callType     string
		participants string
		created      int64
		ended        sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, room_id, initiator_id, call_type, participants, created_at, ended_at
		FROM video_calls
		WHERE room_id = ? AND ended_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, roomID,
	).Scan(&c.ID, &c.RoomID, &c.InitiatorID, &callType, &participants, &created, &ended)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	if err := json.Unmarshal([]byte(participants), &c.Participants); err != nil {
		return nil, err
	}
	c.Type = domain.CallType(callType)
	c.CreatedAt = fromNanos(created)
	c.EndedAt = timePtr(ended)
	return &c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
