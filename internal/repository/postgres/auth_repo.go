package postgres

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"
)

type CredentialRepo struct {
	q querier
}

func (r *CredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	_, err := r.q.Exec(ctx, queries.QueryCreateCredential, c.UserID, c.Email, c.PasswordHash, c.CreatedAt)
	return mapPgError(err)
}

func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.q.QueryRow(ctx, queries.QueryGetCredentialByEmail, domain.NormalizeEmail(email)).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &c, nil
}

type SessionRepo struct {
	q querier
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.q.Exec(ctx, queries.QueryCreateSession, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.CreatedAt)
	return mapPgError(err)
}

func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRow(ctx, queries.QueryGetSessionByTokenHash, tokenHash).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &s, nil
}

func (r *SessionRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, queries.QueryDeleteSessionByID, id)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.q.Exec(ctx, queries.QueryDeleteSessionByUser, userID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}
