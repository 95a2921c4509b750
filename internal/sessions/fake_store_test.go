package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
)

// memStore mirrors Repository with the same all-or-nothing create.
type memStore struct {
	mu          sync.Mutex
	sessions    map[string]models.Session
	layouts     map[string][]models.QuestionWithOptions
	failOnOrder int // fail while inserting the question with this order
	layoutCalls int
	now         time.Time
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]models.Session),
		layouts:  make(map[string][]models.QuestionWithOptions),
		now:      time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) Create(_ context.Context, sess *models.Session, questions []models.QuestionWithOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return apperr.ErrDuplicateID
	}
	staged := make([]models.QuestionWithOptions, 0, len(questions))
	for i := range questions {
		q := questions[i]
		if s.failOnOrder != 0 && q.Order == s.failOnOrder {
			return apperr.Store("create session", errors.New("connection reset"))
		}
		q.ID = uuid.New()
		q.SessionID = sess.ID
		opts := make([]models.Option, len(q.Options))
		for j, o := range q.Options {
			o.ID = uuid.New()
			o.QuestionID = q.ID
			opts[j] = o
		}
		q.Options = opts
		staged = append(staged, q)
	}
	s.now = s.now.Add(time.Minute)
	sess.CreatedAt = s.now
	s.sessions[sess.ID] = *sess
	s.layouts[sess.ID] = staged
	copy(questions, staged)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &sess, nil
}

func (s *memStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return apperr.ErrNotFound
	}
	sess.IsActive = active
	s.sessions[id] = sess
	return nil
}

func (s *memStore) List(ctx context.Context) ([]models.SessionSummary, error) {
	return s.list(false), nil
}

func (s *memStore) ListActive(ctx context.Context) ([]models.SessionSummary, error) {
	return s.list(true), nil
}

func (s *memStore) list(activeOnly bool) []models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SessionSummary{}
	for id, sess := range s.sessions {
		if activeOnly && !sess.IsActive {
			continue
		}
		sum := models.SessionSummary{Session: sess, PasswordProtected: sess.PasswordProtected()}
		for _, q := range s.layouts[id] {
			sum.QuestionCount++
			sum.OptionCount += len(q.Options)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memStore) Layout(_ context.Context, id string) ([]models.QuestionWithOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutCalls++
	return s.layouts[id], nil
}
