package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/internal/repository/postgres/queries"
)

type ReactionRepo struct {
	q querier
}

func (r *ReactionRepo) Add(ctx context.Context, re domain.Reaction) (bool, error) {
	tag, err := r.q.Exec(ctx, queries.QueryAddReaction, re.MessageID, re.UserID, re.Emoji, re.CreatedAt)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReactionRepo) Remove(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	tag, err := r.q.Exec(ctx, queries.QueryRemoveReaction, messageID, userID, emoji)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReactionRepo) ListByMessages(ctx context.Context, messageIDs []string) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, queries.QueryListReactionsByMessages, messageIDs)
	if err != nil {
		return nil, mapPgError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Reaction, error) {
		var re domain.Reaction
		err := row.Scan(&re.MessageID, &re.UserID, &re.Emoji, &re.CreatedAt)
		return re, err
	})
	return out, mapPgError(err)
}
