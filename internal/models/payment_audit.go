package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentAuditAction enumerates gateway side effects worth recording
type PaymentAuditAction string

const (
	AuditIntentCreated   PaymentAuditAction = "intent_created"
	AuditIntentCancelled PaymentAuditAction = "intent_cancelled"
	AuditIntentCaptured  PaymentAuditAction = "intent_captured"
	AuditIntentRefunded  PaymentAuditAction = "intent_refunded"
	AuditCheckoutCreated PaymentAuditAction = "checkout_created"
	AuditWebhookReceived PaymentAuditAction = "webhook_received"
)

// PaymentAudit is an append-only record of a payments-processor side effect
type PaymentAudit struct {
	ID          uuid.UUID          `db:"id" json:"id"`
	BookingID   uuid.UUID          `db:"booking_id" json:"booking_id"`
	Action      PaymentAuditAction `db:"action" json:"action"`
	Reference   string             `db:"reference" json:"reference"`
	AmountCents int64              `db:"amount_cents" json:"amount_cents"`
	Detail      string             `db:"detail" json:"detail"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}
