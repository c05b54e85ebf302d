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
)

// ListingHandler handles listing browse and provider CRUD operations
type ListingHandler struct {
	listingRepo *database.ListingRepository
	logger      *logrus.Logger
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(listingRepo *database.ListingRepository, logger *logrus.Logger) *ListingHandler {
	return &ListingHandler{listingRepo: listingRepo, logger: logger}
}

// Browse returns active listings, optionally filtered by category
func (h *ListingHandler) Browse(c *gin.Context) {
	category := models.ListingCategory(c.Query("category"))
	if category != "" && !models.ValidCategory(category) {
		respondError(c, models.ErrValidationError, "Unknown category")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	listings, err := h.listingRepo.ListActive(category, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to browse listings")
		respondError(c, models.ErrInternalError, "Failed to list listings")
		return
	}

	respondData(c, http.StatusOK, gin.H{"listings": listings, "limit": limit, "offset": offset})
}

// GetByID returns a single listing
func (h *ListingHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid listing id")
		return
	}

	listing, err := h.listingRepo.GetByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		respondError(c, models.ErrInternalError, "Failed to get listing")
		return
	}
	if listing == nil {
		respondError(c, models.ErrResourceNotFound, "Listing not found")
		return
	}

	respondData(c, http.StatusOK, listing)
}

// Create adds a new listing owned by the authenticated provider
func (h *ListingHandler) Create(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	listing := &models.Listing{
		ProviderID:  userCtx.UserID,
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		PriceBase:   req.PriceBase,
		Active:      true,
	}
	if err := h.listingRepo.Create(listing); err != nil {
		h.logger.WithError(err).Error("Failed to create listing")
		respondError(c, models.ErrInternalError, "Failed to create listing")
		return
	}

	respondData(c, http.StatusCreated, listing)
}

// ListMine returns all listings owned by the authenticated provider
func (h *ListingHandler) ListMine(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	listings, err := h.listingRepo.ListByProvider(userCtx.UserID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list provider listings")
		respondError(c, models.ErrInternalError, "Failed to list listings")
		return
	}

	respondData(c, http.StatusOK, gin.H{"listings": listings})
}

// Update modifies a listing owned by the authenticated provider
func (h *ListingHandler) Update(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid listing id")
		return
	}

	var req models.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	listing, err := h.listingRepo.GetByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		respondError(c, models.ErrInternalError, "Failed to update listing")
		return
	}
	if listing == nil {
		respondError(c, models.ErrResourceNotFound, "Listing not found")
		return
	}
	if listing.ProviderID != userCtx.UserID && userCtx.Role != models.RoleAdmin {
		respondError(c, models.ErrAuthorizationDenied, "You do not own this listing")
		return
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.PriceBase != nil {
		if req.PriceBase.IsNegative() || req.PriceBase.IsZero() {
			respondError(c, models.ErrValidationError, "price_base must be positive")
			return
		}
		listing.PriceBase = *req.PriceBase
	}
	if req.Active != nil {
		listing.Active = *req.Active
	}

	if err := h.listingRepo.Update(listing); err != nil {
		h.logger.WithError(err).Error("Failed to update listing")
		respondError(c, models.ErrInternalError, "Failed to update listing")
		return
	}

	respondData(c, http.StatusOK, listing)
}

// Delete removes a listing owned by the authenticated provider
func (h *ListingHandler) Delete(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid listing id")
		return
	}

	listing, err := h.listingRepo.GetByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		respondError(c, models.ErrInternalError, "Failed to delete listing")
		return
	}
	if listing == nil {
		respondError(c, models.ErrResourceNotFound, "Listing not found")
		return
	}
	if listing.ProviderID != userCtx.UserID && userCtx.Role != models.RoleAdmin {
		respondError(c, models.ErrAuthorizationDenied, "You do not own this listing")
		return
	}

	if err := h.listingRepo.Delete(id); err != nil {
		h.logger.WithError(err).Error("Failed to delete listing")
		respondError(c, models.ErrInternalError, "Failed to delete listing")
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": id})
}
