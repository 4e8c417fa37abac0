package sqlite

import (
	"context"

	"github.com/cwrk-planet/glasschat/internal/domain"
)

type ReactionRepo struct {
	q querier
}

func (r *ReactionRepo) Add(ctx context.Context, re domain.Reaction) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reactions (message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?)`,
		re.MessageID, re.UserID, re.Emoji, toNanos(re.CreatedAt))
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ReactionRepo) Remove(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji)
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ReactionRepo) ListByMessages(ctx context.Context, messageIDs []string) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(messageIDs))
	for i, id := range messageIDs {
		args[i] = id
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT message_id, user_id, emoji, created_at FROM message_reactions
		WHERE message_id IN (`+placeholders(len(args))+`)
		ORDER BY created_at, user_id`, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var (
			re      domain.Reaction
			created int64
		)
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Emoji, &created); err != nil {
			return nil, err
		}
		re.CreatedAt = fromNanos(created)
		out = append(out, re)
	}
	return out, rows.Err()
}
