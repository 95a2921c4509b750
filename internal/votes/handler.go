package votes

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/pkg/response"
)

// HeaderPollToken carries the poll-access token for password-protected sessions.
const HeaderPollToken = "X-Poll-Token"

// SubmitRequest is the body for POST /sessions/:id/votes.
type SubmitRequest struct {
	Answers     map[string]string `json:"answers"`
	VoterName   string            `json:"voter_name"`
	IsAnonymous bool              `json:"is_anonymous"`
}

// Handler handles vote HTTP endpoints.
type Handler struct {
	validator *Validator
}

// NewHandler creates a votes handler.
func NewHandler(validator *Validator) *Handler {
	return &Handler{validator: validator}
}

// Submit handles POST /sessions/:id/votes.
// Session errors take precedence over a malformed body, so an unknown session is always a 404.
func (h *Handler) Submit(c *gin.Context) {
	sessionID := c.Param("id")
	token := pollToken(c)

	var req SubmitRequest
	var answers map[uuid.UUID]uuid.UUID
	err := c.ShouldBindJSON(&req)
	if err != nil {
		err = apperr.Invalid("", "invalid request: %s", err.Error())
	} else {
		answers, err = parseAnswers(req.Answers)
	}
	if err != nil {
		if _, gateErr := h.validator.OpenSession(c.Request.Context(), sessionID, token); gateErr != nil {
			err = gateErr
		}
		response.Error(c, err)
		return
	}

	receipt, err := h.validator.SubmitVote(c.Request.Context(), Submission{
		SessionID:   sessionID,
		Answers:     answers,
		VoterName:   req.VoterName,
		IsAnonymous: req.IsAnonymous,
		AccessToken: token,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

func parseAnswers(raw map[string]string) (map[uuid.UUID]uuid.UUID, error) {
	answers := make(map[uuid.UUID]uuid.UUID, len(raw))
	for q, o := range raw {
		qID, err := uuid.Parse(q)
		if err != nil {
			return nil, apperr.Invalid("answers", "invalid question id %q", q)
		}
		oID, err := uuid.Parse(o)
		if err != nil {
			return nil, apperr.Invalid("answers", "please select an option for every question")
		}
		answers[qID] = oID
	}
	return answers, nil
}

func pollToken(c *gin.Context) string {
	if t := c.GetHeader(HeaderPollToken); t != "" {
		return t
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
