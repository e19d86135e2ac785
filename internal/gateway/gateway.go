// internal/gateway/gateway.go
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the gateway-side state of a checkout session.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// CreateSessionRequest describes one time-boxed card payment session.
// Metadata is echoed back on the webhook and carries the booking id, leg
// type and computed percentages needed for reconciliation.
type CreateSessionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   time.Time
}

// SessionRef is the redirect handle returned to the client.
type SessionRef struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// PaymentGateway is the narrow surface the orchestrator consumes. The Stripe
// implementation backs production; tests and dev mode inject fakes.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionRef, error)
	VerifySession(ctx context.Context, sessionID string) (SessionStatus, error)
}
