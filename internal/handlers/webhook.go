// internal/handlers/webhook.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/monitoring"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

// WebhookParser verifies a raw gateway callback and returns the event.
type WebhookParser interface {
	ParseWebhookEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type WebhookHandler struct {
	parser         WebhookParser
	paymentService *services.PaymentService
}

func NewWebhookHandler(parser WebhookParser, paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		parser:         parser,
		paymentService: paymentService,
	}
}

// POST /webhooks/stripe
//
// Signature failures are rejected with 400 so the gateway retries through
// its own backoff; an unknown session id is acknowledged with 200 because
// redelivery cannot fix it.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	start := time.Now()
	defer func() {
		monitoring.ObserveWebhookDuration(time.Since(start).Seconds())
	}()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	event, err := h.parser.ParseWebhookEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		logrus.WithError(err).Warn("Rejected webhook with invalid signature")
		utils.BadRequestResponse(c, "Invalid webhook signature", nil)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionEvent(c, event, h.paymentService.ReconcileSessionCompleted)
	case "checkout.session.expired":
		h.handleSessionEvent(c, event, h.paymentService.ReconcileSessionExpired)
	default:
		logrus.WithField("type", event.Type).Debug("Ignoring unhandled webhook event")
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *WebhookHandler) handleSessionEvent(c *gin.Context, event stripe.Event, reconcile func(ctx context.Context, sessionID string) error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		logrus.WithError(err).Error("Failed to decode checkout session payload")
		utils.BadRequestResponse(c, "Malformed event payload", nil)
		return
	}

	err := reconcile(c.Request.Context(), session.ID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			logrus.WithFields(logrus.Fields{
				"event":   event.Type,
				"session": session.ID,
			}).Warn("Webhook references an unknown payment session")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		logrus.WithError(err).WithField("session", session.ID).Error("Webhook reconciliation failed")
		utils.InternalErrorResponse(c, "Failed to process event")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
