package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/internal/realtime"
	"github.com/skymarket/skymarket-backend/internal/services"
	"github.com/skymarket/skymarket-backend/monitoring"
	"github.com/skymarket/skymarket-backend/pkg/payments"
)

// BookingHandler handles booking CRUD and the lifecycle status flow,
// including escrow capture on completion
type BookingHandler struct {
	bookingRepo *database.BookingRepository
	listingRepo *database.ListingRepository
	userRepo    *database.UserRepository
	auditRepo   *database.PaymentAuditRepository
	gateway     payments.Gateway
	email       *services.EmailService
	notifier    *realtime.Notifier
	logger      *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	bookingRepo *database.BookingRepository,
	listingRepo *database.ListingRepository,
	userRepo *database.UserRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway payments.Gateway,
	email *services.EmailService,
	notifier *realtime.Notifier,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingRepo: bookingRepo,
		listingRepo: listingRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		email:       email,
		notifier:    notifier,
		logger:      logger,
	}
}

// Create books a listing for the authenticated consumer
func (h *BookingHandler) Create(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	listing, err := h.listingRepo.GetByID(req.ListingID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get listing")
		respondError(c, models.ErrInternalError, "Failed to create booking")
		return
	}
	if listing == nil || !listing.Active {
		respondError(c, models.ErrResourceNotFound, "Listing not found")
		return
	}

	booking := &models.Booking{
		ConsumerID:     userCtx.UserID,
		ProviderID:     listing.ProviderID,
		ListingID:      listing.ID,
		ScheduledAt:    req.ScheduledAt,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Instructions:   req.Instructions,
		PriceTotal:     listing.PriceBase,
	}
	if err := h.bookingRepo.Create(booking); err != nil {
		h.logger.WithError(err).Error("Failed to create booking")
		respondError(c, models.ErrInternalError, "Failed to create booking")
		return
	}

	h.notifyProviderNewBooking(c, booking)

	respondData(c, http.StatusCreated, booking)
}

// GetByID returns a booking visible to its participants
func (h *BookingHandler) GetByID(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	if !isParticipant(userCtx, booking) {
		respondError(c, models.ErrAuthorizationDenied, "You are not a participant of this booking")
		return
	}

	respondData(c, http.StatusOK, booking)
}

// ListMine returns the authenticated consumer's bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookingRepo.ListByConsumer(userCtx.UserID, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookings")
		respondError(c, models.ErrInternalError, "Failed to list bookings")
		return
	}

	respondData(c, http.StatusOK, gin.H{"bookings": bookings, "limit": limit, "offset": offset})
}

// ListForProvider returns bookings addressed to the authenticated provider
func (h *BookingHandler) ListForProvider(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookingRepo.ListByProvider(userCtx.UserID, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list provider bookings")
		respondError(c, models.ErrInternalError, "Failed to list bookings")
		return
	}

	respondData(c, http.StatusOK, gin.H{"bookings": bookings, "limit": limit, "offset": offset})
}

// Update applies a partial update to a booking. Status transitions follow
// pending -> accepted -> in_progress -> completed with cancelled reachable
// from any non-terminal state. When the capture flag is set and an intent
// exists, the authorized funds are captured and the booking marked paid.
// An update with no recognized field is a no-op success.
func (h *BookingHandler) Update(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidationError, err.Error())
		return
	}

	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	if !isParticipant(userCtx, booking) {
		respondError(c, models.ErrAuthorizationDenied, "You are not a participant of this booking")
		return
	}

	if req.Status != nil {
		if !models.ValidBookingStatus(*req.Status) {
			respondError(c, models.ErrValidationError, fmt.Sprintf("Unknown status: %s", *req.Status))
			return
		}
		if !booking.Status.CanTransitionTo(*req.Status) {
			respondError(c, models.ErrValidationError,
				fmt.Sprintf("Cannot transition from %s to %s", booking.Status, *req.Status))
			return
		}
	}

	// Capture is only invoked when the flag is set and an authorization exists
	if req.Capture && booking.PaymentIntentID != nil {
		err := h.gateway.CaptureIntent(c.Request.Context(), *booking.PaymentIntentID)
		monitoring.RecordPaymentOperation("capture", err)
		if err != nil {
			h.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to capture payment")
			respondError(c, models.ErrInternalError, "Failed to capture payment")
			return
		}
		booking.PaymentStatus = models.PaymentPaid
		h.audit(booking, models.AuditIntentCaptured, *booking.PaymentIntentID)
	}

	changed := booking.PaymentStatus == models.PaymentPaid && req.Capture
	if req.Status != nil && *req.Status != booking.Status {
		booking.Status = *req.Status
		changed = true
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.Equal(booking.ScheduledAt) {
		booking.ScheduledAt = *req.ScheduledAt
		changed = true
	}
	if req.PickupAddress != nil && *req.PickupAddress != booking.PickupAddress {
		booking.PickupAddress = *req.PickupAddress
		changed = true
	}
	if req.DropoffAddress != nil && *req.DropoffAddress != booking.DropoffAddress {
		booking.DropoffAddress = *req.DropoffAddress
		changed = true
	}
	if req.Instructions != nil && *req.Instructions != booking.Instructions {
		booking.Instructions = *req.Instructions
		changed = true
	}

	if !changed {
		respondData(c, http.StatusOK, gin.H{"id": booking.ID})
		return
	}

	if booking.Status == models.BookingCancelled {
		h.compensateCancellation(c, booking)
	}

	if err := h.bookingRepo.Update(booking); err != nil {
		h.logger.WithError(err).Error("Failed to update booking")
		respondError(c, models.ErrInternalError, "Failed to update booking")
		return
	}

	h.notifyCounterparty(c, userCtx, booking)
	if booking.Status == models.BookingCompleted {
		h.sendCompletionReceipt(booking)
	}

	respondData(c, http.StatusOK, booking)
}

// Delete removes a booking. Administrative cleanup only.
func (h *BookingHandler) Delete(c *gin.Context) {
	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}

	if err := h.bookingRepo.Delete(booking.ID); err != nil {
		h.logger.WithError(err).Error("Failed to delete booking")
		respondError(c, models.ErrInternalError, "Failed to delete booking")
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": booking.ID})
}

// compensateCancellation releases or refunds held funds when a booking is
// cancelled. A release failure is logged but does not block the
// cancellation; the processor expires stale authorizations on its own.
func (h *BookingHandler) compensateCancellation(c *gin.Context, booking *models.Booking) {
	if booking.PaymentIntentID == nil {
		return
	}

	switch booking.PaymentStatus {
	case models.PaymentAuthorized:
		err := h.gateway.CancelIntent(c.Request.Context(), *booking.PaymentIntentID)
		monitoring.RecordPaymentOperation("cancel", err)
		if err != nil {
			h.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to release authorization")
			return
		}
		booking.PaymentStatus = models.PaymentUnpaid
		h.audit(booking, models.AuditIntentCancelled, *booking.PaymentIntentID)

	case models.PaymentPaid:
		err := h.gateway.RefundIntent(c.Request.Context(), *booking.PaymentIntentID)
		monitoring.RecordPaymentOperation("refund", err)
		if err != nil {
			h.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to refund payment")
			return
		}
		booking.PaymentStatus = models.PaymentRefunded
		h.audit(booking, models.AuditIntentRefunded, *booking.PaymentIntentID)
	}
}

func (h *BookingHandler) loadBooking(c *gin.Context) (*models.Booking, bool) {
	return loadBooking(c, h.bookingRepo, h.logger)
}

// loadBooking resolves the :id path parameter to a booking, writing the
// error envelope itself when it cannot
func loadBooking(c *gin.Context, repo *database.BookingRepository, logger *logrus.Logger) (*models.Booking, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrValidationError, "Invalid booking id")
		return nil, false
	}

	booking, err := repo.GetByID(id)
	if err != nil {
		logger.WithError(err).Error("Failed to get booking")
		respondError(c, models.ErrInternalError, "Failed to get booking")
		return nil, false
	}
	if booking == nil {
		respondError(c, models.ErrResourceNotFound, "Booking not found")
		return nil, false
	}
	return booking, true
}

func (h *BookingHandler) audit(booking *models.Booking, action models.PaymentAuditAction, reference string) {
	err := h.auditRepo.Insert(&models.PaymentAudit{
		BookingID:   booking.ID,
		Action:      action,
		Reference:   reference,
		AmountCents: booking.AmountCents(),
	})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to record payment audit")
	}
}

func (h *BookingHandler) notifyProviderNewBooking(c *gin.Context, booking *models.Booking) {
	provider, err := h.userRepo.GetUserByID(booking.ProviderID)
	if err != nil || provider == nil {
		h.logger.WithError(err).Warn("Failed to look up provider for notification")
		return
	}
	if err := h.email.SendBookingCreated(provider.Email, booking); err != nil {
		h.logger.WithError(err).Warn("Failed to send booking-created email")
	}
	if err := h.notifier.NotifyBookingUpdated(c.Request.Context(), booking.ProviderID, booking); err != nil {
		h.logger.WithError(err).Warn("Failed to publish booking notification")
	}
	monitoring.RecordRealtimeEvent("booking.updated")
}

func (h *BookingHandler) notifyCounterparty(c *gin.Context, userCtx middleware.UserContext, booking *models.Booking) {
	recipient := booking.ProviderID
	if userCtx.UserID == booking.ProviderID {
		recipient = booking.ConsumerID
	}
	if err := h.notifier.NotifyBookingUpdated(c.Request.Context(), recipient, booking); err != nil {
		h.logger.WithError(err).Warn("Failed to publish booking notification")
	}
	monitoring.RecordRealtimeEvent("booking.updated")
}

func (h *BookingHandler) sendCompletionReceipt(booking *models.Booking) {
	consumer, err := h.userRepo.GetUserByID(booking.ConsumerID)
	if err != nil || consumer == nil {
		h.logger.WithError(err).Warn("Failed to look up consumer for receipt")
		return
	}
	if err := h.email.SendBookingCompleted(consumer.Email, booking); err != nil {
		h.logger.WithError(err).Warn("Failed to send completion receipt")
	}
}

func isParticipant(userCtx middleware.UserContext, booking *models.Booking) bool {
	return userCtx.UserID == booking.ConsumerID ||
		userCtx.UserID == booking.ProviderID ||
		userCtx.Role == models.RoleAdmin
}
