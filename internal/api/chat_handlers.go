// Package api - Chatbot handlers
package api

import (
	"net/http"

	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
)

// QueryRequest is one question to the assistant
type QueryRequest struct {
	Message   string                 `json:"message" binding:"required"`
	SessionID string                 `json:"session_id" binding:"max=100"`
	Language  models.Language        `json:"language" binding:"omitempty,enum"`
	Category  models.ArticleCategory `json:"category" binding:"omitempty,enum"`
}

// ChatQuery answers a question from the knowledge base
// POST /api/chatbot/query/
func (h *Handler) ChatQuery(c *gin.Context) {
	var req QueryRequest
	if !bindJSON(c, &req) {
		return
	}

	reply, err := h.chat.Query(c.Request.Context(), principal(c), engine.QueryInput{
		Message:   req.Message,
		SessionID: req.SessionID,
		Language:  req.Language,
		Category:  req.Category,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ListSessions returns the caller's active chat sessions
// GET /api/chatbot/sessions/
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.chat.ListSessions(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions, "count": len(sessions)})
}

// GetSession returns a session with its messages, oldest first
// GET /api/chatbot/sessions/:session_id/
func (h *Handler) GetSession(c *gin.Context) {
	detail, err := h.chat.GetSession(c.Request.Context(), principal(c), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DeleteSession marks a session inactive
// DELETE /api/chatbot/sessions/:session_id/
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.chat.DeactivateSession(c.Request.Context(), principal(c), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
