package votes

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/models"
)

type fakeSessions struct {
	sessions map[string]*models.Session
	layouts  map[string][]models.QuestionWithOptions
}

func (f *fakeSessions) Session(_ context.Context, id string) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Layout(_ context.Context, id string) ([]models.QuestionWithOptions, error) {
	return f.layouts[id], nil
}

type fakeStore struct {
	mu      sync.Mutex
	votes   []models.Vote
	batches int
	err     error
}

func (f *fakeStore) InsertBatch(_ context.Context, votes []models.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i := range votes {
		votes[i].ID = uuid.New()
	}
	f.votes = append(f.votes, votes...)
	f.batches++
	return nil
}

type fakeAccess struct{ token string }

func (f fakeAccess) VerifyPollAccess(token, sessionID string) error {
	if token != f.token+":"+sessionID {
		return errors.New("invalid token")
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []feed.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev feed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func question(sessionID, text string, order int, opts ...string) models.QuestionWithOptions {
	q := models.QuestionWithOptions{Question: models.Question{ID: uuid.New(), SessionID: sessionID, Text: text, Order: order}}
	for i, o := range opts {
		q.Options = append(q.Options, models.Option{ID: uuid.New(), QuestionID: q.ID, Text: o, Order: i + 1})
	}
	return q
}
