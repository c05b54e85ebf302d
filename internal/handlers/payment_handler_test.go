package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/skymarket/skymarket-backend/internal/database"
	"github.com/skymarket/skymarket-backend/internal/middleware"
	"github.com/skymarket/skymarket-backend/internal/models"
	"github.com/skymarket/skymarket-backend/pkg/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway records gateway calls instead of talking to the processor
type stubGateway struct {
	intentParams   []payments.CreateIntentParams
	checkoutParams []payments.CreateCheckoutParams
	cancelled      []string
	captured       []string
	refunded       []string
	createErr      error
	captureErr     error
	webhookEvent   *payments.WebhookEvent
	webhookErr     error
}

func (g *stubGateway) CreateIntent(_ context.Context, params payments.CreateIntentParams) (*payments.Intent, error) {
	g.intentParams = append(g.intentParams, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payments.Intent{ID: "pi_new", ClientSecret: "pi_new_secret"}, nil
}

func (g *stubGateway) CancelIntent(_ context.Context, intentID string) error {
	g.cancelled = append(g.cancelled, intentID)
	return nil
}

func (g *stubGateway) CaptureIntent(_ context.Context, intentID string) error {
	g.captured = append(g.captured, intentID)
	return g.captureErr
}

func (g *stubGateway) RefundIntent(_ context.Context, intentID string) error {
	g.refunded = append(g.refunded, intentID)
	return nil
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, params payments.CreateCheckoutParams) (*payments.CheckoutSession, error) {
	g.checkoutParams = append(g.checkoutParams, params)
	return &payments.CheckoutSession{ID: "cs_new", URL: "https://checkout.example.com/cs_new"}, nil
}

func (g *stubGateway) ParseWebhook(_ []byte, _ string) (*payments.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

func setupHandlerTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var handlerBookingRows = []string{
	"id", "consumer_id", "provider_id", "listing_id", "scheduled_at",
	"pickup_address", "dropoff_address", "instructions", "price_total",
	"status", "payment_status", "payment_intent_id", "payment_attempts",
	"created_at", "updated_at",
}

func expectBookingSelect(mock sqlmock.Sqlmock, bookingID, consumerID uuid.UUID, price, status, payStatus string, intentID interface{}, attempts int) {
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows(handlerBookingRows).AddRow(
			bookingID, consumerID, uuid.New(), uuid.New(), now.Add(time.Hour),
			"12 Harbor Rd", "", "", price,
			status, payStatus, intentID, attempts,
			now, now,
		))
}

func newBookingContext(t *testing.T, method string, userCtx *middleware.UserContext, bookingID uuid.UUID, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var err error
	c.Request, err = http.NewRequest(method, "/api/orders/"+bookingID.String(), nil)
	require.NoError(t, err)
	if body != "" {
		c.Request, err = http.NewRequest(method, "/api/orders/"+bookingID.String(), jsonBody(body))
		require.NoError(t, err)
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = gin.Params{{Key: "id", Value: bookingID.String()}}
	if userCtx != nil {
		c.Set(middleware.UserContextKey, *userCtx)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) models.Envelope {
	t.Helper()
	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestResetIntent_FirstIntentNeverCancels(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	consumerID := uuid.New()

	expectBookingSelect(mock, bookingID, consumerID, "38.90", "pending", "unpaid", nil, 0)
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(bookingID, "pi_new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := newBookingContext(t, http.MethodPost, &middleware.UserContext{UserID: consumerID, Role: models.RoleConsumer}, bookingID, "")
	handler.ResetIntent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gateway.cancelled, "no prior intent, nothing to cancel")
	require.Len(t, gateway.intentParams, 1)
	assert.Equal(t, int64(3890), gateway.intentParams[0].AmountCents)
	assert.Equal(t, fmt.Sprintf("booking-intent:%s", bookingID), gateway.intentParams[0].IdempotencyKey)
	assert.Equal(t, "usd", gateway.intentParams[0].Currency)

	envelope := decodeEnvelope(t, w)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "pi_new_secret", data["clientSecret"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetIntent_ReplacementCancelsAndUsesAttemptCounter(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	consumerID := uuid.New()

	expectBookingSelect(mock, bookingID, consumerID, "120.00", "pending", "authorized", "pi_old", 1)
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE bookings SET payment_attempts = payment_attempts \+ 1`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows([]string{"payment_attempts"}).AddRow(2))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(bookingID, "pi_new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := newBookingContext(t, http.MethodPost, &middleware.UserContext{UserID: consumerID, Role: models.RoleConsumer}, bookingID, "")
	handler.ResetIntent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"pi_old"}, gateway.cancelled)
	require.Len(t, gateway.intentParams, 1)
	assert.Equal(t, int64(12000), gateway.intentParams[0].AmountCents)
	assert.Equal(t, fmt.Sprintf("reset-intent:%s:2", bookingID), gateway.intentParams[0].IdempotencyKey)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetIntent_NonOwnerDenied(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	expectBookingSelect(mock, bookingID, uuid.New(), "38.90", "pending", "unpaid", nil, 0)

	c, w := newBookingContext(t, http.MethodPost, &middleware.UserContext{UserID: uuid.New(), Role: models.RoleConsumer}, bookingID, "")
	handler.ResetIntent(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, gateway.intentParams)
	assert.Empty(t, gateway.cancelled)

	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, models.ErrAuthorizationDenied, envelope.Error.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetIntent_BookingNotFound(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		&stubGateway{},
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows(handlerBookingRows))

	c, w := newBookingContext(t, http.MethodPost, &middleware.UserContext{UserID: uuid.New(), Role: models.RoleConsumer}, bookingID, "")
	handler.ResetIntent(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, models.ErrResourceNotFound, envelope.Error.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_ReturnsSessionURL(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	consumerID := uuid.New()

	expectBookingSelect(mock, bookingID, consumerID, "38.90", "pending", "unpaid", nil, 0)
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, w := newBookingContext(t, http.MethodPost, &middleware.UserContext{UserID: consumerID, Role: models.RoleConsumer}, bookingID, "")
	c.Request.Header.Set("X-Forwarded-Host", "app.skymarket.test")
	c.Request.Header.Set("X-Forwarded-Proto", "https")
	handler.Checkout(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gateway.checkoutParams, 1)
	params := gateway.checkoutParams[0]
	assert.Equal(t, int64(3890), params.AmountCents)
	assert.Contains(t, params.SuccessURL, "https://app.skymarket.test/orders/"+bookingID.String())
	assert.Contains(t, params.SuccessURL, "checkout=success")
	assert.Contains(t, params.CancelURL, "checkout=cancelled")

	envelope := decodeEnvelope(t, w)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "cs_new", data["id"])
	assert.Equal(t, "https://checkout.example.com/cs_new", data["url"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_AuthorizedEventUpdatesPaymentStatus(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{webhookEvent: &payments.WebhookEvent{
		Type:     payments.EventIntentAuthorized,
		IntentID: "pi_hook",
	}}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	bookingID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE payment_intent_id`).
		WithArgs("pi_hook").
		WillReturnRows(sqlmock.NewRows(handlerBookingRows).AddRow(
			bookingID, uuid.New(), uuid.New(), uuid.New(), now.Add(time.Hour),
			"12 Harbor Rd", "", "", "38.90",
			"pending", "unpaid", "pi_hook", 1,
			now, now,
		))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs(bookingID, models.PaymentAuthorized).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/payments/webhook", jsonBody(`{}`))
	c.Request.Header.Set("Stripe-Signature", "t=1,v1=sig")
	handler.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_IgnoredEventIsAcknowledged(t *testing.T) {
	db, mock := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{webhookEvent: &payments.WebhookEvent{Type: payments.EventIgnored}}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/payments/webhook", jsonBody(`{}`))
	handler.Webhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	db, _ := setupHandlerTestDB(t)
	defer db.Close()

	gateway := &stubGateway{webhookErr: fmt.Errorf("signature mismatch")}
	handler := NewPaymentHandler(
		database.NewBookingRepository(db),
		database.NewPaymentAuditRepository(db),
		gateway,
		"usd",
		testLogger(),
	)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/payments/webhook", jsonBody(`{}`))
	handler.Webhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
