package results

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/models"
)

// SessionReader resolves sessions and their layouts. *sessions.Manager implements it.
type SessionReader interface {
	Session(ctx context.Context, id string) (*models.Session, error)
	Layout(ctx context.Context, id string) ([]models.QuestionWithOptions, error)
}

// VoteReader lists the raw votes of a session. *votes.Repository implements it.
type VoteReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Vote, error)
}

// Voter is one named answer shown in the voters table.
type Voter struct {
	Name          string    `json:"voter_name"`
	QuestionID    uuid.UUID `json:"question_id"`
	QuestionOrder int       `json:"question_order"`
	QuestionText  string    `json:"question_text"`
	OptionText    string    `json:"option_text"`
	VotedAt       time.Time `json:"voted_at"`
}

// Service loads a session's votes and aggregates them.
type Service struct {
	sessions SessionReader
	votes    VoteReader
	now      func() time.Time
}

// NewService creates a results service.
func NewService(sessions SessionReader, votes VoteReader) *Service {
	return &Service{sessions: sessions, votes: votes, now: time.Now}
}

// SessionResults recomputes the results of a session from its full vote set.
func (s *Service) SessionResults(ctx context.Context, sessionID string) (*SessionResults, error) {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	layout, err := s.sessions.Layout(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	votes, err := s.votes.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	res := ComputeSessionResults(sess.ID, sess.IsActive, layout, votes)
	res.ComputedAt = s.now().UTC()
	return &res, nil
}

// Voters lists named votes, oldest first. Anonymous votes are left out.
func (s *Service) Voters(ctx context.Context, sessionID string) ([]Voter, error) {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	layout, err := s.sessions.Layout(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	votes, err := s.votes.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	questions := make(map[uuid.UUID]*models.Question, len(layout))
	options := make(map[uuid.UUID]string)
	for i := range layout {
		questions[layout[i].ID] = &layout[i].Question
		for _, o := range layout[i].Options {
			options[o.ID] = o.Text
		}
	}

	list := []Voter{}
	for _, v := range votes {
		if v.IsAnonymous || v.VoterName == nil {
			continue
		}
		voter := Voter{
			Name:       *v.VoterName,
			QuestionID: v.QuestionID,
			OptionText: options[v.SelectedOptionID],
			VotedAt:    v.CreatedAt,
		}
		if q, ok := questions[v.QuestionID]; ok {
			voter.QuestionOrder = q.Order
			voter.QuestionText = q.Text
		}
		list = append(list, voter)
	}
	return list, nil
}
