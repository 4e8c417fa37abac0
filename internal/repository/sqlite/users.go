package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository"
)

const userColumns = `id, name, email, avatar, status, last_seen`

type UserRepo struct {
	q querier
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Avatar, string(u.Status), nullNanos(u.LastSeen),
	)
	return mapSQLiteError(err)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return mapSQLiteError(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, mapSQLiteError(err)
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
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET status = ?, last_seen = ? WHERE id = ?`,
		string(status), toNanos(at), id,
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*domain.User, error) {
	var (
		u        domain.User
		status   string
		lastSeen sql.NullInt64
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &status, &lastSeen); err != nil {
		return nil, mapSQLiteError(err)
	}
	u.Status = domain.UserStatus(status)
	u.LastSeen = timePtr(lastSeen)
	return &u, nil
}
