package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"
)

type RoomRepo struct {
	pool *pgxpool.Pool
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, queries.QueryCreateRoom,
			room.ID, room.Name, string(room.Kind), nullString(room.CreatedBy), room.CreatedAt)
		if err != nil {
			return mapPgError(err)
		}
		for _, userID := range room.Participants {
			if _, err := tx.Exec(ctx, queries.QueryAddParticipant, room.ID, userID, room.CreatedAt); err != nil {
				return mapPgError(err)
			}
		}
		return nil
	})
}

func (r *RoomRepo) Get(ctx context.Context, id string) (*domain.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx, queries.QueryGetRoom, id))
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
	createdAt, lastID, err := cursorArgs(page.After)
	if err != nil {
		return nil, "", err
	}

	rows, err := r.pool.Query(ctx, queries.QueryListRooms, createdAt, lastID, limit)
	if err != nil {
		return nil, "", mapPgError(err)
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
		return nil, "", mapPgError(err)
	}
	if len(out) == 0 {
		return out, "", nil
	}

	if err := r.fillParticipants(ctx, out); err != nil {
		return nil, "", err
	}
	last := out[len(out)-1]
	return out, repository.NextCursor(len(out), limit, last.CreatedAt, last.ID), nil
}

func (r *RoomRepo) fillParticipants(ctx context.Context, rooms []domain.Room) error {
	ids := make([]string, len(rooms))
	index := make(map[string]int, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
		index[room.ID] = i
	}
	rows, err := r.pool.Query(ctx, queries.QueryListParticipantsOfRooms, ids)
	if err != nil {
		return mapPgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID, userID string
		if err := rows.Scan(&roomID, &userID); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		if i, ok := index[roomID]; ok {
			rooms[i].Participants = append(rooms[i].Participants, userID)
		}
	}
	return rows.Err()
}

func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, queries.QueryAddParticipant, roomID, userID, at)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, queries.QueryRemoveParticipant, roomID, userID)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RoomRepo) Participants(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, queries.QueryListParticipants, roomID)
	if err != nil {
		return nil, mapPgError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapPgError(err)
	}
	return nonNil(ids), nil
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		room      domain.Room
		kind      string
		createdBy *string
	)
	if err := row.Scan(&room.ID, &room.Name, &kind, &createdBy, &room.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	room.Kind = domain.RoomKind(kind)
	if createdBy != nil {
		room.CreatedBy = *createdBy
	}
	room.CreatedAt = utc(room.CreatedAt)
	room.Participants = []string{}
	return &room, nil
}
