package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
)

const uniqueViolation = "23505"

// Repository handles session, question and option persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the session, its questions and their options in one transaction.
// IDs and timestamps are filled in on s and questions.
func (r *Repository) Create(ctx context.Context, s *models.Session, questions []models.QuestionWithOptions) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const sessionQ = `INSERT INTO sessions (id, password_hash, is_active)
			VALUES ($1, $2, $3)
			RETURNING created_at`
		if err := tx.QueryRow(ctx, sessionQ, s.ID, s.PasswordHash, s.IsActive).Scan(&s.CreatedAt); err != nil {
			return err
		}

		const questionQ = `INSERT INTO questions (id, session_id, question_text, question_order)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING id, created_at`
		const optionQ = `INSERT INTO session_options (id, question_id, option_text, option_order)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING id`
		for i := range questions {
			q := &questions[i]
			q.SessionID = s.ID
			if err := tx.QueryRow(ctx, questionQ, s.ID, q.Text, q.Order).Scan(&q.ID, &q.CreatedAt); err != nil {
				return err
			}
			for j := range q.Options {
				o := &q.Options[j]
				o.QuestionID = q.ID
				if err := tx.QueryRow(ctx, optionQ, q.ID, o.Text, o.Order).Scan(&o.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return mapCreateErr(err)
}

// mapCreateErr turns a unique violation on the sessions table into ErrDuplicateID.
// Violations on other tables stay store errors.
func mapCreateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.TableName == "sessions" {
		return apperr.ErrDuplicateID
	}
	return apperr.Store("create session", err)
}

// GetByID returns a session by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, password_hash, is_active, created_at FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.PasswordHash, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Store("get session", err)
	}
	return &s, nil
}

// SetActive sets the session's active flag.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE sessions SET is_active = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return apperr.Store("set session active", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

const summaryQuery = `SELECT s.id, s.password_hash, s.is_active, s.created_at,
		(SELECT COUNT(*) FROM questions q WHERE q.session_id = s.id),
		(SELECT COUNT(*) FROM session_options o INNER JOIN questions q ON q.id = o.question_id WHERE q.session_id = s.id)
	FROM sessions s`

// List returns all sessions, newest first.
func (r *Repository) List(ctx context.Context) ([]models.SessionSummary, error) {
	return r.listSummaries(ctx, summaryQuery+` ORDER BY s.created_at DESC`)
}

// ListActive returns active sessions, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]models.SessionSummary, error) {
	return r.listSummaries(ctx, summaryQuery+` WHERE s.is_active ORDER BY s.created_at DESC`)
}

func (r *Repository) listSummaries(ctx context.Context, query string) ([]models.SessionSummary, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.Store("list sessions", err)
	}
	defer rows.Close()

	list := []models.SessionSummary{}
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.PasswordHash, &s.IsActive, &s.CreatedAt, &s.QuestionCount, &s.OptionCount); err != nil {
			return nil, apperr.Store("scan session", err)
		}
		s.PasswordProtected = s.Session.PasswordProtected()
		list = append(list, s)
	}
	return list, apperr.Store("list sessions", rows.Err())
}

// Layout returns the session's questions in question order, each with its options in option order.
func (r *Repository) Layout(ctx context.Context, sessionID string) ([]models.QuestionWithOptions, error) {
	const query = `SELECT q.id, q.session_id, q.question_text, q.question_order, q.created_at,
			o.id, o.option_text, o.option_order
		FROM questions q
		LEFT JOIN session_options o ON o.question_id = q.id
		WHERE q.session_id = $1
		ORDER BY q.question_order, o.option_order`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, apperr.Store("load layout", err)
	}
	defer rows.Close()

	var layout []models.QuestionWithOptions
	for rows.Next() {
		var (
			q        models.Question
			optID    *uuid.UUID
			optText  *string
			optOrder *int
		)
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Order, &q.CreatedAt, &optID, &optText, &optOrder); err != nil {
			return nil, apperr.Store("scan layout", err)
		}
		if n := len(layout); n == 0 || layout[n-1].ID != q.ID {
			layout = append(layout, models.QuestionWithOptions{Question: q, Options: []models.Option{}})
		}
		if optID != nil {
			cur := &layout[len(layout)-1]
			cur.Options = append(cur.Options, models.Option{ID: *optID, QuestionID: q.ID, Text: *optText, Order: *optOrder})
		}
	}
	return layout, apperr.Store("load layout", rows.Err())
}
