// Package auth issues the tokens behind the admin area and password-protected polls.
package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/livepoll/backend/pkg/response"
	"github.com/livepoll/backend/pkg/secret"
)

// LoginRequest is the body for POST /admin/login.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// UnlockRequest is the body for POST /sessions/:id/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id,omitempty"`
}

// PasswordChecker verifies a session's poll password. *sessions.Manager implements it.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, id, password string) (bool, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	jwt           *JWTService
	sessions      PasswordChecker
	adminPassword string
	logger        *zap.Logger
}

// NewHandler creates an auth handler. An empty adminPassword disables admin login.
func NewHandler(jwt *JWTService, sessions PasswordChecker, adminPassword string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwt, sessions: sessions, adminPassword: adminPassword, logger: logger}
}

// Login handles POST /admin/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !secret.Equal(req.Password, h.adminPassword) {
		h.logger.Info("admin login rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "incorrect password")
		return
	}
	token, err := h.jwt.GenerateAdmin()
	if err != nil {
		h.logger.Error("generate admin token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token})
}

// Unlock handles POST /sessions/:id/unlock and returns a poll-access token on the right password.
func (h *Handler) Unlock(c *gin.Context) {
	var req UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id := c.Param("id")
	ok, err := h.sessions.CheckPassword(c.Request.Context(), id, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Unauthorized(c, "incorrect password")
		return
	}
	token, err := h.jwt.GeneratePollAccess(id)
	if err != nil {
		h.logger.Error("generate poll token failed", zap.Error(err), zap.String("session_id", id))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, SessionID: id})
}
