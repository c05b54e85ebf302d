package payments

import "context"

// Intent is a payment authorization created with the processor. ClientSecret
// is handed to the caller's payment UI to confirm the payment.
type Intent struct {
	ID           string
	ClientSecret string
}

// CheckoutSession is a hosted checkout page created with the processor
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateIntentParams are the inputs for a new authorization. Funds are held
// with manual capture and captured later when the booking completes.
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	BookingID      string
	IdempotencyKey string
}

// CreateCheckoutParams are the inputs for a hosted checkout session
type CreateCheckoutParams struct {
	AmountCents int64
	Currency    string
	BookingID   string
	Description string
	SuccessURL  string
	CancelURL   string
}

// WebhookEventType classifies processor webhook events we act on
type WebhookEventType string

const (
	EventIntentAuthorized WebhookEventType = "intent_authorized"
	EventIntentSucceeded  WebhookEventType = "intent_succeeded"
	EventIgnored          WebhookEventType = "ignored"
)

// WebhookEvent is a verified, parsed processor notification
type WebhookEvent struct {
	Type     WebhookEventType
	IntentID string
}

// Gateway abstracts the hosted payments processor. Implementations must be
// safe for concurrent use by request handlers.
type Gateway interface {
	// CreateIntent creates a manual-capture authorization. The idempotency
	// key guarantees a retried request does not create a duplicate charge.
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)

	// CancelIntent cancels an existing authorization. Callers resetting an
	// intent ignore the error when the intent is no longer cancellable.
	CancelIntent(ctx context.Context, intentID string) error

	// CaptureIntent captures previously authorized funds.
	CaptureIntent(ctx context.Context, intentID string) error

	// RefundIntent refunds a captured payment.
	RefundIntent(ctx context.Context, intentID string) error

	// CreateCheckoutSession creates a hosted checkout page and returns its
	// redirect URL.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error)

	// ParseWebhook verifies the signature of a processor notification and
	// maps it onto a WebhookEvent.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
