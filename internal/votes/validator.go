// Package votes validates and records voter submissions.
package votes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/models"
)

// Store inserts votes. *Repository implements it.
type Store interface {
	InsertBatch(ctx context.Context, votes []models.Vote) error
}

// SessionReader resolves sessions and their questions. *sessions.Manager implements it.
type SessionReader interface {
	Session(ctx context.Context, id string) (*models.Session, error)
	Layout(ctx context.Context, id string) ([]models.QuestionWithOptions, error)
}

// AccessVerifier checks a poll-access token issued when a voter unlocked a session.
type AccessVerifier interface {
	VerifyPollAccess(token, sessionID string) error
}

// Submission is one voter's answers to a session.
type Submission struct {
	SessionID   string
	Answers     map[uuid.UUID]uuid.UUID // question id -> option id
	VoterName   string
	IsAnonymous bool
	AccessToken string
}

// Receipt describes an accepted submission.
type Receipt struct {
	SessionID   string      `json:"session_id"`
	VoteIDs     []uuid.UUID `json:"vote_ids"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Validator enforces the submission rules before any vote is written.
type Validator struct {
	sessions  SessionReader
	store     Store
	access    AccessVerifier
	publisher feed.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewValidator creates a vote validator. publisher may be nil.
func NewValidator(sessions SessionReader, store Store, access AccessVerifier, publisher feed.Publisher, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{sessions: sessions, store: store, access: access, publisher: publisher, logger: logger, now: time.Now}
}

// SubmitVote checks sub and inserts one vote per question sharing the voter fields and timestamp.
// Rejected submissions write nothing. Repeat submissions by the same voter are accepted.
func (v *Validator) SubmitVote(ctx context.Context, sub Submission) (*Receipt, error) {
	sess, err := v.OpenSession(ctx, sub.SessionID, sub.AccessToken)
	if err != nil {
		return nil, err
	}

	layout, err := v.sessions.Layout(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := checkAnswers(layout, sub.Answers); err != nil {
		return nil, err
	}

	var name *string
	if !sub.IsAnonymous {
		trimmed := strings.TrimSpace(sub.VoterName)
		if trimmed == "" {
			return nil, apperr.Invalid("voter_name", "enter your name or choose to vote anonymously")
		}
		name = &trimmed
	}

	at := v.now().UTC()
	votes := make([]models.Vote, 0, len(layout))
	for _, q := range layout {
		votes = append(votes, models.Vote{
			SessionID:        sess.ID,
			QuestionID:       q.ID,
			SelectedOptionID: sub.Answers[q.ID],
			VoterName:        name,
			IsAnonymous:      sub.IsAnonymous,
			CreatedAt:        at,
		})
	}
	if err := v.store.InsertBatch(ctx, votes); err != nil {
		v.logger.Error("insert votes failed", zap.String("session_id", sess.ID), zap.Error(err))
		return nil, apperr.Store("insert votes", err)
	}

	if v.publisher != nil {
		if err := v.publisher.Publish(ctx, feed.VoteInserted(sess.ID)); err != nil {
			v.logger.Warn("publish vote_inserted failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	receipt := &Receipt{SessionID: sess.ID, SubmittedAt: at, VoteIDs: make([]uuid.UUID, 0, len(votes))}
	for _, vt := range votes {
		receipt.VoteIDs = append(receipt.VoteIDs, vt.ID)
	}
	return receipt, nil
}

// OpenSession returns the session if it exists, accepts votes and is unlocked by accessToken.
// It reports ErrNotFound, ErrSessionInactive and ErrUnauthorized in that order.
func (v *Validator) OpenSession(ctx context.Context, sessionID, accessToken string) (*models.Session, error) {
	sess, err := v.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, apperr.ErrSessionInactive
	}
	if sess.PasswordProtected() {
		if v.access == nil || accessToken == "" || v.access.VerifyPollAccess(accessToken, sess.ID) != nil {
			return nil, apperr.ErrUnauthorized
		}
	}
	return sess, nil
}

// checkAnswers requires exactly one answer per question, each naming an option of that question.
func checkAnswers(layout []models.QuestionWithOptions, answers map[uuid.UUID]uuid.UUID) error {
	if len(layout) == 0 {
		return apperr.Invalid("answers", "this poll has no questions")
	}
	for i := range layout {
		q := &layout[i]
		opt, ok := answers[q.ID]
		if !ok {
			return apperr.Invalid("answers", "please answer question %d", q.Order)
		}
		if !q.HasOption(opt) {
			return apperr.Invalid("answers", "option is not part of question %d", q.Order)
		}
	}
	if len(answers) != len(layout) {
		return apperr.Invalid("answers", "answers include questions outside this poll")
	}
	return nil
}
