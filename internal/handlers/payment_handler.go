package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/monitoring"
	"github.com/skymarket/skymarket-backend/pkg/payments"
)

// PaymentHandler bridges bookings to the hosted payments processor:
// manual-capture intents, hosted checkout sessions and webhooks
type PaymentHandler struct {
	bookingRepo *database.BookingRepository
	auditRepo   *database.PaymentAuditRepository
	gateway     payments.Gateway
	currency    string
	logger      *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	bookingRepo *database.BookingRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway payments.Gateway,
	currency string,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		bookingRepo: bookingRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		currency:    currency,
		logger:      logger,
	}
}

// ResetIntent creates a fresh manual-capture authorization for a booking and
// returns its client secret. Any existing authorization is cancelled first;
// a cancel failure is logged and ignored because the replacement intent
// supersedes it either way. The idempotency key is derived from a per-booking
// attempt counter so a retried reset reuses the same key while a deliberate
// new reset gets a fresh one.
func (h *PaymentHandler) ResetIntent(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	if booking.ConsumerID != userCtx.UserID && userCtx.Role != models.RoleAdmin {
		respondError(c, models.ErrAuthorizationDenied, "You do not own this booking")
		return
	}

	var idempotencyKey string
	if booking.PaymentIntentID == nil {
		// First authorization for this booking, nothing to cancel
		idempotencyKey = fmt.Sprintf("booking-intent:%s", booking.ID)
	} else {
		err := h.gateway.CancelIntent(c.Request.Context(), *booking.PaymentIntentID)
		monitoring.RecordPaymentOperation("cancel", err)
		if err != nil {
			h.logger.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to cancel previous intent")
		} else {
			h.audit(booking, models.AuditIntentCancelled, *booking.PaymentIntentID, "superseded by reset")
		}

		attempt, err := h.bookingRepo.ReserveNextPaymentAttempt(booking.ID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to reserve payment attempt")
			respondError(c, models.ErrInternalError, "Failed to reset payment intent")
			return
		}
		idempotencyKey = fmt.Sprintf("reset-intent:%s:%d", booking.ID, attempt)
	}

	intent, err := h.gateway.CreateIntent(c.Request.Context(), payments.CreateIntentParams{
		AmountCents:    booking.AmountCents(),
		Currency:       h.currency,
		BookingID:      booking.ID.String(),
		IdempotencyKey: idempotencyKey,
	})
	monitoring.RecordPaymentOperation("create_intent", err)
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to create payment intent")
		respondError(c, models.ErrInternalError, "Failed to create payment intent")
		return
	}

	if err := h.bookingRepo.SetPaymentIntent(booking.ID, intent.ID); err != nil {
		h.logger.WithError(err).Error("Failed to store payment intent")
		respondError(c, models.ErrInternalError, "Failed to reset payment intent")
		return
	}
	booking.PaymentIntentID = &intent.ID
	h.audit(booking, models.AuditIntentCreated, intent.ID, "")

	respondData(c, http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
}

// Checkout creates a hosted checkout session for a booking and returns its
// redirect URL. Success and cancel URLs are built from the request origin so
// the processor sends the customer back to the same frontend that started
// the flow.
func (h *PaymentHandler) Checkout(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	booking, ok := h.loadBooking(c)
	if !ok {
		return
	}
	if booking.ConsumerID != userCtx.UserID && userCtx.Role != models.RoleAdmin {
		respondError(c, models.ErrAuthorizationDenied, "You do not own this booking")
		return
	}

	origin := requestOrigin(c)
	session, err := h.gateway.CreateCheckoutSession(c.Request.Context(), payments.CreateCheckoutParams{
		AmountCents: booking.AmountCents(),
		Currency:    h.currency,
		BookingID:   booking.ID.String(),
		Description: fmt.Sprintf("SkyMarket booking %s", booking.ID),
		SuccessURL:  fmt.Sprintf("%s/orders/%s?checkout=success", origin, booking.ID),
		CancelURL:   fmt.Sprintf("%s/orders/%s?checkout=cancelled", origin, booking.ID),
	})
	monitoring.RecordPaymentOperation("create_checkout", err)
	if err != nil {
		h.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to create checkout session")
		respondError(c, models.ErrInternalError, "Failed to create checkout session")
		return
	}

	h.audit(booking, models.AuditCheckoutCreated, session.ID, "")

	respondData(c, http.StatusOK, gin.H{"id": session.ID, "url": session.URL})
}

// Webhook receives processor notifications. The endpoint is public; the
// gateway verifies the payload signature before anything is trusted. Events
// we do not act on are acknowledged so the processor stops retrying them.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<16))
	if err != nil {
		respondError(c, models.ErrValidationError, "Failed to read webhook payload")
		return
	}

	event, err := h.gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.WithError(err).Warn("Rejected webhook with bad signature")
		respondError(c, models.ErrValidationError, "Invalid webhook signature")
		return
	}

	if event.Type == payments.EventIgnored {
		respondData(c, http.StatusOK, gin.H{"received": true})
		return
	}

	booking, err := h.bookingRepo.GetByPaymentIntentID(event.IntentID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up booking for webhook")
		respondError(c, models.ErrInternalError, "Failed to process webhook")
		return
	}
	if booking == nil {
		// Intent from another environment or an already-deleted booking
		h.logger.WithField("intent_id", event.IntentID).Warn("Webhook for unknown intent")
		respondData(c, http.StatusOK, gin.H{"received": true})
		return
	}

	var status models.PaymentStatus
	switch event.Type {
	case payments.EventIntentAuthorized:
		status = models.PaymentAuthorized
	case payments.EventIntentSucceeded:
		status = models.PaymentPaid
	}

	if err := h.bookingRepo.SetPaymentStatus(booking.ID, status); err != nil {
		h.logger.WithError(err).Error("Failed to update payment status")
		respondError(c, models.ErrInternalError, "Failed to process webhook")
		return
	}
	h.audit(booking, models.AuditWebhookReceived, event.IntentID, string(event.Type))

	h.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"payment_status": status,
	}).Info("Payment status updated from webhook")

	respondData(c, http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) loadBooking(c *gin.Context) (*models.Booking, bool) {
	return loadBooking(c, h.bookingRepo, h.logger)
}

func (h *PaymentHandler) audit(booking *models.Booking, action models.PaymentAuditAction, reference, detail string) {
	err := h.auditRepo.Insert(&models.PaymentAudit{
		BookingID:   booking.ID,
		Action:      action,
		Reference:   reference,
		AmountCents: booking.AmountCents(),
		Detail:      detail,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to record payment audit")
	}
}

// requestOrigin reconstructs the scheme and host the client used, honoring
// proxy forwarding headers
func requestOrigin(c *gin.Context) string {
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
