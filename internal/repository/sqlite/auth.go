package sqlite

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
)

type CredentialRepo struct {
	q querier
}

func (r *CredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO auth_users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Email, c.PasswordHash, toNanos(c.CreatedAt),
	)
	return mapSQLiteError(err)
}

func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var (
		c       domain.Credential
		created int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM auth_users WHERE email = ?`,
		domain.NormalizeEmail(email),
	).Scan(&c.UserID, &c.Email, &c.PasswordHash, &created)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	c.CreatedAt = fromNanos(created)
	return &c, nil
}

type SessionRepo struct {
	q querier
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, toNanos(s.ExpiresAt), toNanos(s.CreatedAt),
	)
	return mapSQLiteError(err)
}

func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var (
		s                  domain.Session
		expires, createdAt int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at FROM auth_sessions WHERE token_hash = ?`,
		tokenHash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &expires, &createdAt)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	s.ExpiresAt = fromNanos(expires)
	s.CreatedAt = fromNanos(createdAt)
	return &s, nil
}

func (r *SessionRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, id)
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return res.RowsAffected()
}
