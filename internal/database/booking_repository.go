package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/skymarket/skymarket-backend/internal/models"
)

const bookingColumns = `
	id, consumer_id, provider_id, listing_id, scheduled_at,
	pickup_address, dropoff_address, instructions, price_total,
	status, payment_status, payment_intent_id, payment_attempts,
	created_at, updated_at`

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a new booking
func (r *BookingRepository) Create(booking *models.Booking) error {
	booking.ID = uuid.New()
	booking.Status = models.BookingPending
	booking.PaymentStatus = models.PaymentUnpaid
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	query := `
		INSERT INTO bookings (
			id, consumer_id, provider_id, listing_id, scheduled_at,
			pickup_address, dropoff_address, instructions, price_total,
			status, payment_status, payment_attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(query,
		booking.ID, booking.ConsumerID, booking.ProviderID, booking.ListingID,
		booking.ScheduledAt, booking.PickupAddress, booking.DropoffAddress,
		booking.Instructions, booking.PriceTotal, booking.Status,
		booking.PaymentStatus, 0, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by ID, returning nil when absent
func (r *BookingRepository) GetByID(id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := r.db.Get(&booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// GetByPaymentIntentID resolves a booking from a payment intent reference
func (r *BookingRepository) GetByPaymentIntentID(intentID string) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_intent_id = $1`

	err := r.db.Get(&booking, query, intentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by payment intent: %w", err)
	}
	return &booking, nil
}

// ListByConsumer returns bookings created by a consumer, newest first
func (r *BookingRepository) ListByConsumer(consumerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE consumer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&bookings, query, consumerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list consumer bookings: %w", err)
	}
	return bookings, nil
}

// ListByProvider returns bookings addressed to a provider, newest first
func (r *BookingRepository) ListByProvider(providerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&bookings, query, providerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list provider bookings: %w", err)
	}
	return bookings, nil
}

// Update persists the mutable booking fields
func (r *BookingRepository) Update(booking *models.Booking) error {
	query := `
		UPDATE bookings
		SET scheduled_at = $2, pickup_address = $3, dropoff_address = $4,
		    instructions = $5, status = $6, payment_status = $7, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.Exec(query,
		booking.ID, booking.ScheduledAt, booking.PickupAddress,
		booking.DropoffAddress, booking.Instructions, booking.Status,
		booking.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReserveNextPaymentAttempt atomically increments the per-booking attempt
// counter and returns the new value. The counter keeps replacement intent
// idempotency keys deterministic: two racing resets reserve distinct attempt
// numbers instead of colliding on a timestamp.
func (r *BookingRepository) ReserveNextPaymentAttempt(id uuid.UUID) (int, error) {
	var attempt int
	query := `
		UPDATE bookings
		SET payment_attempts = payment_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING payment_attempts`

	err := r.db.Get(&attempt, query, id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("booking not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reserve payment attempt: %w", err)
	}
	return attempt, nil
}

// SetPaymentIntent persists the active payment intent reference
func (r *BookingRepository) SetPaymentIntent(id uuid.UUID, intentID string) error {
	query := `
		UPDATE bookings
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(query, id, intentID)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}
	return nil
}

// SetPaymentStatus updates only the payment status
func (r *BookingRepository) SetPaymentStatus(id uuid.UUID, status models.PaymentStatus) error {
	query := `
		UPDATE bookings
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(query, id, status)
	if err != nil {
		return fmt.Errorf("failed to set payment status: %w", err)
	}
	return nil
}

// Delete removes a booking row. Administrative cleanup only.
func (r *BookingRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
