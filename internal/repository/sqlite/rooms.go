package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

type RoomRepo struct {
	db *sql.DB
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, kind, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		room.ID, room.Name, string(room.Kind), nullString(room.CreatedBy), toNanos(room.CreatedAt),
	)
	if err != nil {
		return mapSQLiteError(err)
	}
	for _, userID := range room.Participants {
		if _, err := addParticipant(ctx, tx, room.ID, userID, room.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RoomRepo) Get(ctx context.Context, id string) (*domain.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, kind, COALESCE(created_by, ''), created_at FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return nil, err
	}
	if room.Participants, err = r.Participants(ctx, id); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RoomRepo) List(ctx context.Context, page repository.Page) ([]domain.Room, string, error) {
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

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, COALESCE(created_by, ''), created_at
		FROM rooms
		WHERE ?1 IS NULL OR created_at > ?1 OR (created_at = ?1 AND id > ?2)
		ORDER BY created_at, id
		LIMIT ?3`, createdAt, lastID, limit)
	if err != nil {
		return nil, "", mapSQLiteError(err)
	}

	var out []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, "", err
		}
		out = append(out, *room)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	for i := range out {
		if out[i].Participants, err = r.Participants(ctx, out[i].ID); err != nil {
			return nil, "", err
		}
	}

	var next string
	if n := len(out); n > 0 {
		next = repository.NextCursor(n, limit, out[n-1].CreatedAt, out[n-1].ID)
	}
	return out, next, nil
}

func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID string, at time.Time) (bool, error) {
	return addParticipant(ctx, r.db, roomID, userID, at)
}

func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM room_participants WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RoomRepo) Participants(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY joined_at, user_id`, roomID)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func addParticipant(ctx context.Context, q querier, roomID, userID string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_participants (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		roomID, userID, toNanos(at))
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanRoom(s rowScanner) (*domain.Room, error) {
	var (
		room    domain.Room
		kind    string
		created int64
	)
	if err := s.Scan(&room.ID, &room.Name, &kind, &room.CreatedBy, &created); err != nil {
		return nil, mapSQLiteError(err)
	}
	room.Kind = domain.RoomKind(kind)
	room.CreatedAt = fromNanos(created)
	room.Participants = []string{}
	return &room, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
