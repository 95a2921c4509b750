package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/internal/results"
	"github.com/livepoll/backend/pkg/queue"
	"github.com/livepoll/backend/pkg/storage"
)

// ResultsLoader recomputes a session's results. *results.Service implements it.
type ResultsLoader interface {
	SessionResults(ctx context.Context, sessionID string) (*results.SessionResults, error)
}

// Store persists export status. *Repository implements it.
type Store interface {
	Create(ctx context.Context, e *models.Export) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// Uploader stores rendered files. *storage.S3 implements it.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
}

// JobQueue feeds the processor. *queue.Queue implements it.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent export failure")

// Processor renders queued exports, uploads them to S3 and records the result.
type Processor struct {
	results  ResultsLoader
	store    Store
	uploader Uploader
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewProcessor creates an export processor.
func NewProcessor(res ResultsLoader, store Store, uploader Uploader, q JobQueue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{results: res, store: store, uploader: uploader, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one export job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeExport {
		return fmt.Errorf("%w: unknown job type %s", errPermanent, job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", errPermanent, err)
	}
	format, err := ParseFormat(payload.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	exp, err := p.store.GetByID(ctx, payload.ExportID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", payload.ExportID, err)
	}
	if exp.Status == models.ExportCompleted {
		p.logger.Info("export already completed", zap.String("export_id", exp.ID.String()))
		return nil
	}
	if err := p.store.MarkProcessing(ctx, exp.ID); err != nil {
		return err
	}

	res, err := p.results.SessionResults(ctx, payload.SessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%w: session %s not found", errPermanent, payload.SessionID)
	}
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, res, format); err != nil {
		return fmt.Errorf("%w: render %s: %v", errPermanent, format, err)
	}
	key := storage.ExportKey(payload.SessionID, exp.ID.String(), string(format))
	if err := p.uploader.Upload(ctx, key, format.ContentType(), &buf, int64(buf.Len())); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.store.MarkCompleted(ctx, exp.ID, key); err != nil {
		p.logger.Error("mark export completed failed", zap.Error(err), zap.String("export_id", exp.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("export completed", zap.String("export_id", exp.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.fail(ctx, job, err)
		}
	}
}

func (p *Processor) fail(ctx context.Context, job *queue.Job, err error) {
	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	if errors.Is(err, errPermanent) {
		p.markFailed(ctx, job, err)
		return
	}
	dead, reErr := p.queue.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
		return
	}
	if dead {
		p.markFailed(ctx, job, err)
		return
	}
	p.sleep(ctx)
}

func (p *Processor) markFailed(ctx context.Context, job *queue.Job, cause error) {
	var payload queue.ExportPayload
	if json.Unmarshal(job.Payload, &payload) != nil || payload.ExportID == uuid.Nil {
		return
	}
	if err := p.store.MarkFailed(ctx, payload.ExportID, cause.Error()); err != nil {
		p.logger.Error("mark export failed", zap.Error(err), zap.String("export_id", payload.ExportID.String()))
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
