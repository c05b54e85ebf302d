package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus is the booking lifecycle status
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// ValidBookingStatus reports whether s is a known lifecycle status
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingAccepted, BookingInProgress, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// The forward path is pending -> accepted -> in_progress -> completed;
// cancelled is reachable from any non-terminal state.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s == next {
		return true
	}
	if next == BookingCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case BookingPending:
		return next == BookingAccepted
	case BookingAccepted:
		return next == BookingInProgress
	case BookingInProgress:
		return next == BookingCompleted
	}
	return false
}

// PaymentStatus is the payment state of a booking
// Matches PostgreSQL ENUM: payment_status
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Booking is a consumer's request for a provider's service. A booking holds at
// most one active payment intent at a time; resetting an intent must first
// attempt cancellation of the prior one.
type Booking struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ConsumerID      uuid.UUID       `db:"consumer_id" json:"consumer_id"`
	ProviderID      uuid.UUID       `db:"provider_id" json:"provider_id"`
	ListingID       uuid.UUID       `db:"listing_id" json:"listing_id"`
	ScheduledAt     time.Time       `db:"scheduled_at" json:"scheduled_at"`
	PickupAddress   string          `db:"pickup_address" json:"pickup_address"`
	DropoffAddress  string          `db:"dropoff_address" json:"dropoff_address"`
	Instructions    string          `db:"instructions" json:"instructions"`
	PriceTotal      decimal.Decimal `db:"price_total" json:"price_total"`
	Status          BookingStatus   `db:"status" json:"status"`
	PaymentStatus   PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentIntentID *string         `db:"payment_intent_id" json:"payment_intent_id"`
	PaymentAttempts int             `db:"payment_attempts" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AmountCents returns the booking total in integer minor units,
// round(price_total * 100). This exact integer is what goes to the
// payments processor.
func (b *Booking) AmountCents() int64 {
	return b.PriceTotal.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateBookingRequest is the payload for POST /api/orders
type CreateBookingRequest struct {
	ListingID      uuid.UUID `json:"listing_id" binding:"required"`
	ScheduledAt    time.Time `json:"scheduled_at" binding:"required"`
	PickupAddress  string    `json:"pickup_address" binding:"required"`
	DropoffAddress string    `json:"dropoff_address"`
	Instructions   string    `json:"instructions"`
}

// Validate checks scheduling constraints
func (r *CreateBookingRequest) Validate() error {
	if r.ScheduledAt.Before(time.Now()) {
		return fmt.Errorf("scheduled_at cannot be in the past")
	}
	return nil
}

// UpdateBookingRequest is the payload for PATCH /api/orders/:id. All fields
// are optional; an update with no recognized field present is a no-op success.
type UpdateBookingRequest struct {
	Status         *BookingStatus `json:"status"`
	ScheduledAt    *time.Time     `json:"scheduled_at"`
	PickupAddress  *string        `json:"pickup_address"`
	DropoffAddress *string        `json:"dropoff_address"`
	Instructions   *string        `json:"instructions"`
	Capture        bool           `json:"capture"`
}

// HasRecognizedField reports whether any updatable field is present
func (r *UpdateBookingRequest) HasRecognizedField() bool {
	return r.Status != nil || r.ScheduledAt != nil || r.PickupAddress != nil ||
		r.DropoffAddress != nil || r.Instructions != nil
}
