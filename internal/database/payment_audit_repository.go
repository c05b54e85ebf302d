package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/skymarket/skymarket-backend/internal/models"
)

// PaymentAuditRepository appends gateway side effects to the audit log
type PaymentAuditRepository struct {
	db *sqlx.DB
}

// NewPaymentAuditRepository creates a new PaymentAuditRepository
func NewPaymentAuditRepository(db *sqlx.DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

// Insert appends one audit row
func (r *PaymentAuditRepository) Insert(audit *models.PaymentAudit) error {
	audit.ID = uuid.New()
	audit.CreatedAt = time.Now()

	query := `
		INSERT INTO payment_audits (id, booking_id, action, reference, amount_cents, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		audit.ID, audit.BookingID, audit.Action, audit.Reference,
		audit.AmountCents, audit.Detail, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment audit: %w", err)
	}
	return nil
}

// ListByBooking returns the audit trail for one booking, oldest first
func (r *PaymentAuditRepository) ListByBooking(bookingID uuid.UUID) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `
		SELECT id, booking_id, action, reference, amount_cents, detail, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC`

	if err := r.db.Select(&audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}
