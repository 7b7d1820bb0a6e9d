package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	"tradepost/internal/app/messaging"
	domainmessage "tradepost/internal/domain/message"
)

// MessagingHTTP exposes the direct-message endpoints.
type MessagingHTTP interface {
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	ListConversations(c *gin.Context)
	UnreadCount(c *gin.Context)
	ListThread(c *gin.Context)
}

// MessagingHandler bridges HTTP with the messaging core.
type MessagingHandler struct {
	Service *messaging.Service
	Logger  *slog.Logger
}

// SendMessage creates a message from the caller to the receiver in the body.
func (h MessagingHandler) SendMessage(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := h.Service.SendMessage(c.Request.Context(), caller.ID, req.ReceiverID, req.Content)
	if err != nil {
		h.respondError(c, err, "send message", "sender_id", caller.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.MapMessage(msg))
}

// MarkRead flips the read flag of a message addressed to the caller.
func (h MessagingHandler) MarkRead(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	id, err := parseMessageID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	msg, err := h.Service.MarkMessageRead(c.Request.Context(), id, caller.ID)
	if err != nil {
		h.respondError(c, err, "mark message read", "message_id", id, "user_id", caller.ID)
		return
	}
	c.JSON(http.StatusOK, dto.MapMessage(msg))
}

// ListConversations returns the caller's conversation list, most recent first.
func (h MessagingHandler) ListConversations(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	conversations, err := h.Service.GetConversations(c.Request.Context(), caller.ID)
	if err != nil {
		h.respondError(c, err, "list conversations", "user_id", caller.ID)
		return
	}
	c.JSON(http.StatusOK, dto.MapConversationList(conversations))
}

// UnreadCount returns the caller's platform-wide unread total.
func (h MessagingHandler) UnreadCount(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	count, err := h.Service.GetUnreadCount(c.Request.Context(), caller.ID)
	if err != nil {
		h.respondError(c, err, "count unread", "user_id", caller.ID)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCount{Count: count})
}

// ListThread returns the full thread between the caller and another user.
func (h MessagingHandler) ListThread(c *gin.Context) {
	caller, ok := requireUser(c)
	if !ok {
		return
	}
	otherID := strings.TrimSpace(c.Param("userId"))
	if otherID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}
	messages, err := h.Service.ListThread(c.Request.Context(), caller.ID, otherID)
	if err != nil {
		h.respondError(c, err, "list thread", "user_id", caller.ID, "other_id", otherID)
		return
	}
	c.JSON(http.StatusOK, dto.MapMessageList(messages))
}

func (h MessagingHandler) respondError(c *gin.Context, err error, action string, fields ...any) {
	switch {
	case errors.Is(err, domainmessage.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainmessage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, messaging.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the message receiver"})
	default:
		if h.Logger != nil {
			h.Logger.Error(action+" failed", append([]any{"error", err}, fields...)...)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging temporarily unavailable"})
	}
}

func parseMessageID(raw string) (domainmessage.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return domainmessage.ID(id), nil
}

var _ MessagingHTTP = (*MessagingHandler)(nil)
