package export

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/internal/results"
	"github.com/livepoll/backend/pkg/queue"
)

func sampleResults() *results.SessionResults {
	return &results.SessionResults{
		SessionID: "weekly-meeting",
		IsActive:  true,
		Questions: []results.QuestionResult{
			{
				QuestionID: uuid.New(), Text: "Lunch?", Order: 1, TotalVotes: 3,
				Options: []results.OptionResult{
					{OptionID: uuid.New(), Text: "Pizza", Order: 1, Count: 2, Percentage: 66.7},
					{OptionID: uuid.New(), Text: "Salad", Order: 2, Count: 1, Percentage: 33.3},
				},
			},
			{
				QuestionID: uuid.New(), Text: "Drinks, hot or cold?", Order: 2, TotalVotes: 0,
				Options: []results.OptionResult{
					{OptionID: uuid.New(), Text: "Tea", Order: 1},
					{OptionID: uuid.New(), Text: "Café", Order: 2},
				},
			},
		},
	}
}

type stubResults struct {
	res *results.SessionResults
	err error
}

func (s stubResults) SessionResults(_ context.Context, id string) (*results.SessionResults, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.res == nil || s.res.SessionID != id {
		return nil, apperr.ErrNotFound
	}
	return s.res, nil
}

type memStore struct {
	mu      sync.Mutex
	exports map[uuid.UUID]*models.Export
}

func newMemStore() *memStore {
	return &memStore{exports: map[uuid.UUID]*models.Export{}}
}

func (s *memStore) Create(_ context.Context, e *models.Export) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	e.Status = models.ExportPending
	e.CreatedAt = time.Now()
	cp := *e
	s.exports[e.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) update(id uuid.UUID, fn func(e *models.Export)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exports[id]
	if !ok {
		return apperr.ErrNotFound
	}
	fn(e)
	return nil
}

func (s *memStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(e *models.Export) { e.Status = models.ExportProcessing })
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID, key string) error {
	return s.update(id, func(e *models.Export) {
		now := time.Now()
		e.Status = models.ExportCompleted
		e.ObjectKey = &key
		e.CompletedAt = &now
	})
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return s.update(id, func(e *models.Export) {
		e.Status = models.ExportFailed
		e.Error = &reason
	})
}

func (s *memStore) status(id uuid.UUID) string {
	e, _ := s.GetByID(context.Background(), id)
	if e == nil {
		return ""
	}
	return e.Status
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemUploader() *memUploader {
	return &memUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (u *memUploader) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if u.err != nil {
		return u.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = b
	u.types[key] = contentType
	return nil
}

// memQueue is a JobQueue and Enqueuer backed by a slice.
type memQueue struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	dlq        []*queue.Job
	enqueueErr error
}

func (q *memQueue) EnqueueExport(_ context.Context, p queue.ExportPayload) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, exportJob(p))
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) Retry(_ context.Context, job *queue.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	if job.Attempt >= queue.MaxRetries {
		q.dlq = append(q.dlq, job)
		return true, nil
	}
	q.jobs = append(q.jobs, job)
	return false, nil
}

type stubSigner struct{ err error }

func (s stubSigner) GeneratePresignedDownloadURL(_ context.Context, key, filename string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://exports.example.com/" + key + "?filename=" + filename, nil
}

var errFlaky = errors.New("flaky upstream")
