package votes

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
)

// Repository handles vote persistence. Votes are only ever inserted and read.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a votes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertBatch inserts all votes of one submission in a single transaction.
func (r *Repository) InsertBatch(ctx context.Context, votes []models.Vote) error {
	const query = `INSERT INTO votes (id, session_id, question_id, selected_option_id, voter_name, is_anonymous, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range votes {
			v := &votes[i]
			if err := tx.QueryRow(ctx, query, v.SessionID, v.QuestionID, v.SelectedOptionID, v.VoterName, v.IsAnonymous, v.CreatedAt).
				Scan(&v.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.Store("insert votes", err)
}

// ListBySession returns every vote of a session, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]models.Vote, error) {
	const query = `SELECT id, session_id, question_id, selected_option_id, voter_name, is_anonymous, created_at
		FROM votes WHERE session_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, apperr.Store("list votes", err)
	}
	defer rows.Close()

	list := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.SessionID, &v.QuestionID, &v.SelectedOptionID, &v.VoterName, &v.IsAnonymous, &v.CreatedAt); err != nil {
			return nil, apperr.Store("scan vote", err)
		}
		list = append(list, v)
	}
	return list, apperr.Store("list votes", rows.Err())
}
