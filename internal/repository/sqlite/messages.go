package sqlite

import (
	"context"
	"database/sql"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

type MessageRepo struct {
	q querier
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, content, kind, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.SenderID, m.Content, string(m.Kind), m.Read, toNanos(m.Timestamp),
	)
	return mapSQLiteError(err)
}

func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string, page repository.Page) ([]domain.Message, string, error) {
	limit := page.Size()
	cur, err := repository.DecodeCursor(page.After)
	if err != nil {
		return nil, "", err
	}

	var createdAt sql.NullInt64
	var lastID string
	if cur != nil {
		createdAt = sql.NullInt64{Int64: toNanos(cur.CreatedAt), Valid: true}
		lastID = cur.ID
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, room_id, sender_id, content, kind, read, created_at
		FROM messages
		WHERE room_id = ?1
		  AND (?2 IS NULL OR created_at > ?2 OR (created_at = ?2 AND id > ?3))
		ORDER BY created_at, id
		LIMIT ?4`, roomID, createdAt, lastID, limit)
	if err != nil {
		return nil, "", mapSQLiteError(err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m       domain.Message
			kind    string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &kind, &m.Read, &created); err != nil {
			return nil, "", err
		}
		m.Kind = domain.MessageKind(kind)
		m.Timestamp = fromNanos(created)
		m.Reactions = domain.Reactions{}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if n := len(out); n > 0 {
		next = repository.NextCursor(n, limit, out[n-1].Timestamp, out[n-1].ID)
	}
	return out, next, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE messages SET read = 1 WHERE room_id = ? AND sender_id <> ? AND read = 0`, roomID, readerID)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return res.RowsAffected()
}
