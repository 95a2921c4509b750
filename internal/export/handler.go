package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/pkg/queue"
	"github.com/livepoll/backend/pkg/response"
)

// Enqueuer schedules export jobs. *queue.Queue implements it.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) error
}

// Signer signs download links for stored exports. *storage.S3 implements it.
type Signer interface {
	GeneratePresignedDownloadURL(ctx context.Context, key, filename string) (string, error)
}

// EnqueueRequest is the body for POST /admin/sessions/:id/exports.
type EnqueueRequest struct {
	Format string `json:"format" binding:"required"`
}

// StatusResponse describes an export and, once completed, where to download it.
type StatusResponse struct {
	*models.Export
	DownloadURL string `json:"download_url,omitempty"`
}

// Handler handles export HTTP endpoints.
type Handler struct {
	results  ResultsLoader
	store    Store
	enqueuer Enqueuer
	signer   Signer
	logger   *zap.Logger
}

// NewHandler creates an export handler. store, enqueuer and signer may be nil, which disables async exports.
func NewHandler(res ResultsLoader, store Store, enqueuer Enqueuer, signer Signer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{results: res, store: store, enqueuer: enqueuer, signer: signer, logger: logger}
}

func (h *Handler) asyncEnabled() bool {
	return h.store != nil && h.enqueuer != nil && h.signer != nil
}

// Download handles GET /admin/sessions/:id/export?format=csv|pdf and streams the file directly.
func (h *Handler) Download(c *gin.Context) {
	format, err := ParseFormat(c.DefaultQuery("format", string(FormatCSV)))
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	res, err := h.results.SessionResults(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	var buf bytes.Buffer
	if err := Render(&buf, res, format); err != nil {
		h.logger.Error("render export failed", zap.Error(err), zap.String("session_id", id), zap.String("format", string(format)))
		response.Internal(c, "failed to render export")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", Filename(id, format)))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Enqueue handles POST /admin/sessions/:id/exports.
func (h *Handler) Enqueue(c *gin.Context) {
	if !h.asyncEnabled() {
		response.ServiceUnavailable(c, "background exports are not configured")
		return
	}
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.results.SessionResults(ctx, id); err != nil {
		response.Error(c, err)
		return
	}

	exp := &models.Export{SessionID: id, Format: string(format)}
	if err := h.store.Create(ctx, exp); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enqueuer.EnqueueExport(ctx, queue.ExportPayload{ExportID: exp.ID, SessionID: id, Format: string(format)}); err != nil {
		h.logger.Error("enqueue export failed", zap.Error(err), zap.String("export_id", exp.ID.String()))
		if mErr := h.store.MarkFailed(ctx, exp.ID, "could not be queued"); mErr != nil {
			h.logger.Error("mark export failed", zap.Error(mErr))
		}
		response.ServiceUnavailable(c, "export queue unavailable, please try again")
		return
	}
	response.Accepted(c, exp)
}

// Status handles GET /admin/exports/:id.
func (h *Handler) Status(c *gin.Context) {
	if !h.asyncEnabled() {
		response.ServiceUnavailable(c, "background exports are not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return
	}
	exp, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		response.NotFound(c, "export not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	out := StatusResponse{Export: exp}
	if exp.Status == models.ExportCompleted && exp.ObjectKey != nil {
		url, err := h.signer.GeneratePresignedDownloadURL(c.Request.Context(), *exp.ObjectKey, Filename(exp.SessionID, Format(exp.Format)))
		if err != nil {
			h.logger.Error("presign export failed", zap.Error(err), zap.String("export_id", exp.ID.String()))
			response.Internal(c, "failed to sign download link")
			return
		}
		out.DownloadURL = url
	}
	response.OK(c, out)
}
