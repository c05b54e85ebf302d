package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/skymarket/skymarket-backend/internal/models"
)

// respondData writes a successful { data, error: null } envelope
func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.DataEnvelope(data))
}

// respondError writes a { data: null, error } envelope with the HTTP status
// derived from the error code
func respondError(c *gin.Context, code models.ErrorCode, message string) {
	c.JSON(models.ErrorStatus(code), models.ErrorEnvelope(code, message))
}
