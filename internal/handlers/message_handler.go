package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/internal/realtime"
	"github.com/skymarket/skymarket-backend/monitoring"
)

// MessageHandler handles direct messages between booking participants
type MessageHandler struct {
	messageRepo *database.MessageRepository
	userRepo    *database.UserRepository
	notifier    *realtime.Notifier
	logger      *logrus.Logger
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(
	messageRepo *database.MessageRepository,
	userRepo *database.UserRepository,
	notifier *realtime.Notifier,
	logger *logrus.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

// Send stores a message and pushes a realtime notification to the recipient.
// The notification is best effort; the message is persisted either way and
// shows up when the recipient next loads the conversation.
func (h *MessageHandler) Send(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}
	if req.RecipientID == userCtx.UserID {
		respondError(c, models.ErrValidationError, "Cannot message yourself")
		return
	}

	recipient, err := h.userRepo.GetUserByID(req.RecipientID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up recipient")
		respondError(c, models.ErrInternalError, "Failed to send message")
		return
	}
	if recipient == nil {
		respondError(c, models.ErrResourceNotFound, "Recipient not found")
		return
	}

	message := &models.Message{
		SenderID:    userCtx.UserID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	if err := h.messageRepo.Create(message); err != nil {
		h.logger.WithError(err).Error("Failed to create message")
		respondError(c, models.ErrInternalError, "Failed to send message")
		return
	}

	if err := h.notifier.NotifyNewMessage(c.Request.Context(), message); err != nil {
		h.logger.WithError(err).Warn("Failed to publish message notification")
	}
	monitoring.RecordRealtimeEvent("message.new")

	respondData(c, http.StatusCreated, message)
}

// ListConversation returns the messages between the authenticated user and
// the user named in the path, newest first
func (h *MessageHandler) ListConversation(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	otherID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid user id")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messageRepo.ListConversation(userCtx.UserID, otherID, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list conversation")
		respondError(c, models.ErrInternalError, "Failed to list conversation")
		return
	}

	respondData(c, http.StatusOK, gin.H{"messages": messages, "limit": limit, "offset": offset})
}

// MarkRead marks all messages from the named sender to the authenticated
// user as read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	senderID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid user id")
		return
	}

	if err := h.messageRepo.MarkRead(userCtx.UserID, senderID); err != nil {
		h.logger.WithError(err).Error("Failed to mark messages read")
		respondError(c, models.ErrInternalError, "Failed to mark messages read")
		return
	}

	respondData(c, http.StatusOK, gin.H{"read": true})
}
