// internal/gateway/stripe.go
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/pedalgo/pedalgo-backend/internal/config"
)

type StripeGateway struct {
	config *config.Config
}

func NewStripeGateway(cfg *config.Config) *StripeGateway {
	// Initialize Stripe
	stripe.Key = cfg.Payment.StripeSecretKey

	return &StripeGateway{config: cfg}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionRef, error) {
	// Convert amount to cents for Stripe
	amountInCents := req.Amount.Shift(2).IntPart()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ExpiresAt:  stripe.Int64(req.ExpiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(amountInCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &SessionRef{
		ID:        sess.ID,
		URL:       sess.URL,
		ExpiresAt: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

func (g *StripeGateway) VerifySession(ctx context.Context, sessionID string) (SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("failed to fetch checkout session: %w", err)
	}

	switch sess.Status {
	case stripe.CheckoutSessionStatusComplete:
		return SessionStatusComplete, nil
	case stripe.CheckoutSessionStatusExpired:
		return SessionStatusExpired, nil
	default:
		return SessionStatusOpen, nil
	}
}

// ParseWebhookEvent verifies the Stripe signature and returns the event.
// The raw payload must be the unmodified request body.
func (g *StripeGateway) ParseWebhookEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, g.config.Payment.StripeWebhookSecret)
}
