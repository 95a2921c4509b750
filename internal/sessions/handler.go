package sessions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/livepoll/backend/pkg/response"
)

// QuestionRequest is one question of a create request.
type QuestionRequest struct {
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
}

// CreateRequest is the body for POST /sessions.
// Question and Options are the single-question shorthand, used when Questions is empty.
type CreateRequest struct {
	ID        string            `json:"id"`
	Password  string            `json:"password"`
	Questions []QuestionRequest `json:"questions"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
}

// SetActiveRequest is the body for PATCH /admin/sessions/:id/active.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	manager *Manager
	baseURL string
	logger  *zap.Logger
}

// NewHandler creates a sessions handler. baseURL prefixes shared voter and result links.
func NewHandler(manager *Manager, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, baseURL: baseURL, logger: logger}
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := CreateInput{ID: req.ID, Password: req.Password}
	if len(req.Questions) == 0 && (req.Question != "" || len(req.Options) > 0) {
		in.Questions = []QuestionInput{{Text: req.Question, Options: req.Options}}
	}
	for _, q := range req.Questions {
		in.Questions = append(in.Questions, QuestionInput{Text: q.Text, Options: q.Options})
	}

	id, err := h.manager.CreateSession(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id, "links": LinksFor(h.baseURL, id)})
}

// ListActive handles GET /sessions (home page: active sessions only).
func (h *Handler) ListActive(c *gin.Context) {
	list, err := h.manager.ListActiveSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// List handles GET /admin/sessions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.manager.ListSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	view, err := h.manager.View(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"session":            view.Session,
		"password_protected": view.PasswordProtected,
		"questions":          view.Questions,
		"links":              LinksFor(h.baseURL, id),
	})
}

// SetActive handles PATCH /admin/sessions/:id/active.
func (h *Handler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: active is required")
		return
	}
	id := c.Param("id")
	if err := h.manager.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "is_active": *req.Active})
}

// QRCode handles GET /sessions/:id/qr.png.
func (h *Handler) QRCode(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.manager.Session(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	png, err := QRCode(h.baseURL, id)
	if err != nil {
		h.logger.Error("render qr code", zap.String("session_id", id), zap.Error(err))
		response.Internal(c, "failed to render qr code")
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
