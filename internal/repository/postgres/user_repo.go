package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"

	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	q querier
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.q.Exec(ctx, queries.QueryCreateUser,
		u.ID, u.Name, u.Email, u.Avatar, string(u.Status), u.LastSeen)
	return mapPgError(err)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, queries.QueryDeleteUser, id)
	return mapPgError(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, queries.QueryGetUserByID, id))
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, queries.QueryListUsers)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id string, status domain.UserStatus, at time.Time) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, queries.QueryUpdateUserStatus, id, string(status), at))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u      domain.User
		status string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &status, &u.LastSeen); err != nil {
		return nil, mapPgError(err)
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}
