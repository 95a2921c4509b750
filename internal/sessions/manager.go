// Package sessions creates poll sessions and toggles their active flag.
package sessions

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/pkg/secret"
)

// MaxIDLength bounds the organizer-chosen session slug.
const MaxIDLength = 64

// Store is the persistence the manager needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, s *models.Session, questions []models.QuestionWithOptions) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context) ([]models.SessionSummary, error)
	ListActive(ctx context.Context) ([]models.SessionSummary, error)
	Layout(ctx context.Context, sessionID string) ([]models.QuestionWithOptions, error)
}

// QuestionInput is one question of a create request.
type QuestionInput struct {
	Text    string
	Options []string
}

// CreateInput is the organizer's create request.
type CreateInput struct {
	ID        string
	Password  string
	Questions []QuestionInput
}

// View is a session as shown to voters and viewers.
type View struct {
	Session           *models.Session              `json:"session"`
	PasswordProtected bool                         `json:"password_protected"`
	Questions         []models.QuestionWithOptions `json:"questions"`
}

// Manager implements the session lifecycle.
type Manager struct {
	store  Store
	cache  *layoutCache
	logger *zap.Logger
}

// NewManager creates a session manager with a layout cache of cacheSize entries.
func NewManager(store Store, cacheSize int, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := newLayoutCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, cache: cache, logger: logger}, nil
}

// CreateSession validates in and persists the session with its questions and options.
// All validation happens before the first write. The returned id is the trimmed slug.
func (m *Manager) CreateSession(ctx context.Context, in CreateInput) (string, error) {
	s, questions, err := normalize(in)
	if err != nil {
		return "", err
	}
	if pw := strings.TrimSpace(in.Password); pw != "" {
		hash, err := secret.HashPassword(pw)
		if err != nil {
			return "", apperr.Store("hash password", err)
		}
		s.PasswordHash = &hash
	}

	if err := m.store.Create(ctx, s, questions); err != nil {
		if errors.Is(err, apperr.ErrDuplicateID) {
			m.logger.Info("session id taken", zap.String("session_id", s.ID))
		} else {
			m.logger.Error("create session failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		return "", err
	}
	m.cache.add(s.ID, questions)
	m.logger.Info("session created", zap.String("session_id", s.ID), zap.Int("questions", len(questions)))
	return s.ID, nil
}

func normalize(in CreateInput) (*models.Session, []models.QuestionWithOptions, error) {
	id := strings.TrimSpace(in.ID)
	switch {
	case id == "":
		return nil, nil, apperr.Invalid("id", "session name is required")
	case utf8.RuneCountInString(id) > MaxIDLength:
		return nil, nil, apperr.Invalid("id", "session name must be at most %d characters", MaxIDLength)
	case strings.ContainsRune(id, '/') || strings.IndexFunc(id, unicode.IsSpace) >= 0:
		return nil, nil, apperr.Invalid("id", "session name must not contain spaces or slashes")
	}
	if len(in.Questions) == 0 {
		return nil, nil, apperr.Invalid("questions", "at least one question is required")
	}

	questions := make([]models.QuestionWithOptions, 0, len(in.Questions))
	for i, qi := range in.Questions {
		text := strings.TrimSpace(qi.Text)
		if text == "" {
			return nil, nil, apperr.Invalid("questions", "question %d has no text", i+1)
		}
		if len(qi.Options) < 2 {
			return nil, nil, apperr.Invalid("questions", "question %d needs at least 2 options", i+1)
		}
		q := models.QuestionWithOptions{
			Question: models.Question{SessionID: id, Text: text, Order: i + 1},
			Options:  make([]models.Option, 0, len(qi.Options)),
		}
		for j, opt := range qi.Options {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				return nil, nil, apperr.Invalid("questions", "question %d option %d is blank", i+1, j+1)
			}
			q.Options = append(q.Options, models.Option{Text: opt, Order: len(q.Options) + 1})
		}
		questions = append(questions, q)
	}
	return &models.Session{ID: id, IsActive: true}, questions, nil
}

// SetActive flips the session's active flag. Setting the current value again is a no-op.
func (m *Manager) SetActive(ctx context.Context, id string, active bool) error {
	if err := m.store.SetActive(ctx, id, active); err != nil {
		return err
	}
	m.logger.Info("session active changed", zap.String("session_id", id), zap.Bool("active", active))
	return nil
}

// ListSessions returns all sessions, newest first, with question and option counts.
func (m *Manager) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	return m.store.List(ctx)
}

// ListActiveSessions returns the sessions currently accepting votes, newest first.
func (m *Manager) ListActiveSessions(ctx context.Context) ([]models.SessionSummary, error) {
	return m.store.ListActive(ctx)
}

// Session returns the session or apperr.ErrNotFound.
func (m *Manager) Session(ctx context.Context, id string) (*models.Session, error) {
	return m.store.GetByID(ctx, id)
}

// Layout returns the session's questions and options in order.
func (m *Manager) Layout(ctx context.Context, id string) ([]models.QuestionWithOptions, error) {
	if layout, ok := m.cache.get(id); ok {
		return layout, nil
	}
	layout, err := m.store.Layout(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(layout) > 0 {
		m.cache.add(id, layout)
	}
	return layout, nil
}

// View returns the session with its questions for the voting page.
func (m *Manager) View(ctx context.Context, id string) (*View, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	layout, err := m.Layout(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Session: s, PasswordProtected: s.PasswordProtected(), Questions: layout}, nil
}

// CheckPassword reports whether password unlocks the session.
// Sessions without a password are always unlocked.
func (m *Manager) CheckPassword(ctx context.Context, id, password string) (bool, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return false, err
	}
	if !s.PasswordProtected() {
		return true, nil
	}
	return secret.CheckPassword(strings.TrimSpace(password), *s.PasswordHash), nil
}
