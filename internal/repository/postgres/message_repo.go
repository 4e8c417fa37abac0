package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"
)

type MessageRepo struct {
	q querier
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.q.Exec(ctx, queries.QueryCreateMessage,
		m.ID, m.RoomID, m.SenderID, m.Content, string(m.Kind), m.Read, m.Timestamp)
	return mapPgError(err)
}

// ListByRoom pages through room history oldest first.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string, page repository.Page) ([]domain.Message, string, error) {
	limit := page.Size()
	createdAt, lastID, err := cursorArgs(page.After)
	if err != nil {
		return nil, "", err
	}

	rows, err := r.q.Query(ctx, queries.QueryListMessagesByRoom, roomID, createdAt, lastID, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var (
			m    domain.Message
			kind string
		)
		err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &kind, &m.Read, &m.Timestamp)
		m.Kind = domain.MessageKind(kind)
		m.Timestamp = utc(m.Timestamp)
		m.Reactions = domain.Reactions{}
		return m, err
	})
	if err != nil {
		return nil, "", mapPgError(err)
	}

	var next string
	if n := len(out); n > 0 {
		next = repository.NextCursor(n, limit, out[n-1].Timestamp, out[n-1].ID)
	}
	return out, next, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, roomID, readerID string) (int64, error) {
	tag, err := r.q.Exec(ctx, queries.QueryMarkMessagesRead, roomID, readerID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}
