package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/config"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/internal/utils"
	"github.com/skymarket/skymarket-backend/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles registration, login and profile operations
type AuthHandler struct {
	userRepo   *database.UserRepository
	jwtService *jwt.Service
	cfg        *config.Config
	logger     *logrus.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userRepo *database.UserRepository, jwtService *jwt.Service, cfg *config.Config, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:   userRepo,
		jwtService: jwtService,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register creates a new account
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	existing, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up email")
		respondError(c, models.ErrInternalError, "Failed to register")
		return
	}
	if existing != nil {
		respondError(c, models.ErrValidationError, "Email is already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cfg.Security.BcryptCost)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		respondError(c, models.ErrInternalError, "Failed to register")
		return
	}

	user, err := h.userRepo.CreateUser(req.Email, string(hash), req.FullName, req.Phone, req.Role)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create user")
		respondError(c, models.ErrInternalError, "Failed to register")
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue tokens")
		respondError(c, models.ErrInternalError, "Failed to register")
		return
	}

	respondData(c, http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// Login authenticates an account and records the session
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	user, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		respondError(c, models.ErrInternalError, "Failed to log in")
		return
	}
	if user == nil {
		respondError(c, models.ErrAuthenticationRequired, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, models.ErrAuthenticationRequired, "Invalid email or password")
		return
	}

	device := utils.ParseUserAgent(c.Request.UserAgent())
	session := &models.UserSession{
		UserID:     user.ID,
		IPAddress:  c.ClientIP(),
		DeviceType: device.DeviceType,
		OS:         device.OS,
		Browser:    device.Browser,
		UserAgent:  device.Raw,
	}
	if err := h.userRepo.CreateSession(session); err != nil {
		// Session bookkeeping must not block login
		h.logger.WithError(err).Warn("Failed to record login session")
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue tokens")
		respondError(c, models.ErrInternalError, "Failed to log in")
		return
	}

	respondData(c, http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, models.ErrAuthenticationRequired, "Invalid refresh token")
		return
	}

	user, err := h.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		respondError(c, models.ErrInternalError, "Failed to refresh")
		return
	}
	if user == nil {
		respondError(c, models.ErrAuthenticationRequired, "Account no longer exists")
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue tokens")
		respondError(c, models.ErrInternalError, "Failed to refresh")
		return
	}

	respondData(c, http.StatusOK, gin.H{"tokens": tokens})
}

// GetProfile returns the authenticated user's profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.userRepo.GetUserByID(userCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get profile")
		respondError(c, models.ErrInternalError, "Failed to get profile")
		return
	}
	if user == nil {
		respondError(c, models.ErrResourceNotFound, "User not found")
		return
	}

	respondData(c, http.StatusOK, user)
}

// UpdateProfile updates the mutable profile fields
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	user, err := h.userRepo.GetUserByID(userCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get profile")
		respondError(c, models.ErrInternalError, "Failed to update profile")
		return
	}
	if user == nil {
		respondError(c, models.ErrResourceNotFound, "User not found")
		return
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}

	if err := h.userRepo.UpdateProfile(user.ID, user.FullName, user.Phone); err != nil {
		h.logger.WithError(err).Error("Failed to update profile")
		respondError(c, models.ErrInternalError, "Failed to update profile")
		return
	}

	respondData(c, http.StatusOK, user)
}

func (h *AuthHandler) issueTokens(user *models.User) (*models.TokenPair, error) {
	access, err := h.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(h.jwtService.AccessTokenExpiry().Seconds()),
	}, nil
}
