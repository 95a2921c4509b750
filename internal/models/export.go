package models

import (
	"time"

	"github.com/google/uuid"
)

// Export statuses.
const (
	ExportPending    = "pending"
	ExportProcessing = "processing"
	ExportCompleted  = "completed"
	ExportFailed     = "failed"
)

// Export is an asynchronous results export rendered by the worker and stored in S3.
type Export struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   string     `json:"session_id"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	ObjectKey   *string    `json:"-"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
