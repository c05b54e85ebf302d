package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/realtime"
)

// WSHandler upgrades authenticated clients to WebSocket connections
type WSHandler struct {
	hub    *realtime.Hub
	logger *logrus.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *realtime.Hub, logger *logrus.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Connect upgrades the request and registers the connection for the
// authenticated user. The upgrade writes its own handshake response, so
// errors after it starts are only logged.
func (h *WSHandler) Connect(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	if err := h.hub.ServeWS(c.Writer, c.Request, userCtx.UserID); err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
	}
}
