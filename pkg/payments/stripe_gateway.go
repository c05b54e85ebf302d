package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements Gateway against the Stripe API. The API client is
// constructed once at startup and injected into handlers rather than
// referenced as ambient global state.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *logrus.Logger
}

// NewStripeGateway creates a gateway bound to the given secret key
func NewStripeGateway(secretKey, webhookSecret string, logger *logrus.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateIntent creates a manual-capture payment intent
func (g *StripeGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(params.IdempotencyKey),
		},
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(params.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	piParams.AddMetadata("booking_id", params.BookingID)

	pi, err := g.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"booking_id":   params.BookingID,
		"intent_id":    pi.ID,
		"amount_cents": params.AmountCents,
	}).Info("Payment intent created")

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CancelIntent cancels an authorization
func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	return nil
}

// CaptureIntent captures previously authorized funds
func (g *StripeGateway) CaptureIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCaptureParams{
		Params: stripe.Params{Context: ctx},
	}
	if _, err := g.api.PaymentIntents.Capture(intentID, params); err != nil {
		return fmt.Errorf("failed to capture payment intent: %w", err)
	}

	g.logger.WithField("intent_id", intentID).Info("Payment intent captured")
	return nil
}

// RefundIntent refunds a captured payment
func (g *StripeGateway) RefundIntent(ctx context.Context, intentID string) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
	}
	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("failed to refund payment intent: %w", err)
	}

	g.logger.WithField("intent_id", intentID).Info("Payment intent refunded")
	return nil
}

// CreateCheckoutSession creates a hosted checkout page for the exact amount
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params CreateCheckoutParams) (*CheckoutSession, error) {
	csParams := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	csParams.AddMetadata("booking_id", params.BookingID)

	sess, err := g.api.CheckoutSessions.New(csParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"booking_id": params.BookingID,
		"session_id": sess.ID,
	}).Info("Checkout session created")

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook verifies the event signature and extracts the intent reference
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var eventType WebhookEventType
	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		eventType = EventIntentAuthorized
	case "payment_intent.succeeded":
		eventType = EventIntentSucceeded
	default:
		return &WebhookEvent{Type: EventIgnored}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event data: %w", err)
	}

	return &WebhookEvent{Type: eventType, IntentID: pi.ID}, nil
}
