// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/gateway"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/monitoring"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

// amountTolerance absorbs client-side float formatting when validating
// submitted amounts against the computed legs.
var amountTolerance = decimal.NewFromFloat(0.01)

type PaymentService struct {
	db         *gorm.DB
	config     *config.Config
	gateway    gateway.PaymentGateway
	bookings   *BookingService
	settlement *SettlementService
	notifier   NotificationSink
}

type StartInitialPaymentRequest struct {
	Amount decimal.Decimal      `json:"amount" validate:"required"`
	Method models.PaymentMethod `json:"method" validate:"required,oneof=card cash"`
}

type StartRemainingPaymentRequest struct {
	Method            models.PaymentMethod      `json:"method" validate:"required,oneof=card cash"`
	AdditionalCharges []models.AdditionalCharge `json:"additional_charges,omitempty"`
}

// StartPaymentResponse carries either a completed payment (cash, dev mode)
// or the gateway redirect for card sessions.
type StartPaymentResponse struct {
	Payment     *models.Payment `json:"payment"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, gw gateway.PaymentGateway, bookings *BookingService, settlement *SettlementService, notifier NotificationSink) *PaymentService {
	return &PaymentService{
		db:         db,
		config:     cfg,
		gateway:    gw,
		bookings:   bookings,
		settlement: settlement,
		notifier:   notifier,
	}
}

// StartInitialPayment opens the deposit leg. The booking must be confirmed
// and the leg not yet completed; the submitted amount must match the
// computed 20% within the tolerance. Card payments get a 30-minute gateway
// session; cash and dev mode complete synchronously and drive
// confirmed -> active plus settlement.
func (s *PaymentService) StartInitialPayment(ctx context.Context, callerUserID uuid.UUID, bookingID uuid.UUID, req *StartInitialPaymentRequest) (*StartPaymentResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.RenterID != callerUserID {
		return nil, apperrors.Forbidden("only the renter can start the initial payment")
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, apperrors.InvalidState("initial payment requires a confirmed booking, got %s", booking.Status)
	}
	if booking.InitialPayment.Status == models.PaymentLegStatusCompleted {
		return nil, apperrors.InvalidState("initial payment is already completed")
	}

	expected := booking.InitialPayment.Amount
	if req.Amount.Sub(expected).Abs().GreaterThan(amountTolerance) {
		return nil, apperrors.InvalidAmount("expected initial amount %s, got %s", expected.StringFixed(2), req.Amount.StringFixed(2))
	}

	if req.Method == models.PaymentMethodCash || s.config.Payment.DevMode {
		return s.completeSynchronously(ctx, booking, models.PaymentLegInitial, expected, req.Method, nil)
	}

	return s.openSession(ctx, booking, models.PaymentLegInitial, expected, nil)
}

// StartRemainingPayment opens the balance leg, optionally with ad hoc
// charges on top. Authorized callers are the renter and the user behind the
// dropoff partner (who collects the bike and any cash).
func (s *PaymentService) StartRemainingPayment(ctx context.Context, callerUserID uuid.UUID, bookingID uuid.UUID, req *StartRemainingPaymentRequest) (*StartPaymentResponse, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeRemainingCaller(ctx, callerUserID, booking); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusActive {
		return nil, apperrors.InvalidState("remaining payment requires an active booking, got %s", booking.Status)
	}
	if booking.InitialPayment.Status != models.PaymentLegStatusCompleted {
		return nil, apperrors.InvalidState("initial payment must complete before the remaining leg")
	}
	if booking.RemainingPayment.Status == models.PaymentLegStatusCompleted {
		return nil, apperrors.InvalidState("remaining payment is already completed")
	}

	charges := models.ChargeList(req.AdditionalCharges)
	for _, charge := range charges {
		if charge.Amount.IsNegative() {
			return nil, apperrors.Validation("additional charge %q must not be negative", charge.Label)
		}
	}

	amount := booking.RemainingPayment.Amount.Add(charges.Total()).Round(2)

	if req.Method == models.PaymentMethodCash || s.config.Payment.DevMode {
		return s.completeSynchronously(ctx, booking, models.PaymentLegRemaining, amount, req.Method, charges)
	}

	return s.openSession(ctx, booking, models.PaymentLegRemaining, amount, charges)
}

// openSession creates the pending payment row and the time-boxed gateway
// session in one step; the webhook completes or expires it later.
func (s *PaymentService) openSession(ctx context.Context, booking *models.Booking, leg models.PaymentLegType, amount decimal.Decimal, charges models.ChargeList) (*StartPaymentResponse, error) {
	expiresAt := time.Now().Add(time.Duration(s.config.Payment.SessionTTLMinutes) * time.Minute)

	ref, err := s.gateway.CreateSession(ctx, gateway.CreateSessionRequest{
		Amount:      amount,
		Currency:    s.config.Payment.Currency,
		Description: fmt.Sprintf("Booking %s, %s payment", booking.BookingNumber, leg),
		Metadata: map[string]string{
			"booking_id":    booking.ID.String(),
			"leg_type":      string(leg),
			"percent":       s.legPercent(booking, leg).StringFixed(2),
			"booking_total": booking.Pricing.Total.StringFixed(2),
		},
		SuccessURL: fmt.Sprintf("%s/bookings/%s/payment/success", s.config.Frontend.BaseURL, booking.ID),
		CancelURL:  fmt.Sprintf("%s/bookings/%s/payment/cancel", s.config.Frontend.BaseURL, booking.ID),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, apperrors.Gateway(err, "failed to open payment session")
	}

	payment := s.buildPayment(booking, leg, amount, models.PaymentMethodCard, ref.ID, charges)
	payment.SessionExpiresAt = &ref.ExpiresAt

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.updateLeg(tx, booking, leg, models.PaymentLegStatusProcessing, &payment.ID)
	})
	if err != nil {
		return nil, err
	}

	return &StartPaymentResponse{
		Payment:     payment,
		CheckoutURL: ref.URL,
		SessionID:   ref.ID,
		ExpiresAt:   &ref.ExpiresAt,
	}, nil
}

// completeSynchronously is the cash / dev-mode path: payment row, leg
// update, state transition and settlement commit in one transaction.
func (s *PaymentService) completeSynchronously(ctx context.Context, booking *models.Booking, leg models.PaymentLegType, amount decimal.Decimal, method models.PaymentMethod, charges models.ChargeList) (*StartPaymentResponse, error) {
	reference, err := utils.GenerateReceiptReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt reference: %w", err)
	}

	payment := s.buildPayment(booking, leg, amount, method, reference, charges)
	now := time.Now()
	payment.Status = models.PaymentStatusCompleted
	payment.ProcessedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := s.updateLeg(tx, booking, leg, models.PaymentLegStatusCompleted, &payment.ID); err != nil {
			return err
		}
		if err := s.advanceBooking(tx, booking, leg); err != nil {
			return err
		}
		return s.settlement.DistributeTx(tx, payment, booking)
	})
	if err != nil {
		return nil, err
	}

	monitoring.PaymentReconciled(string(leg), "completed")
	s.notifyPaymentCompleted(booking, payment)

	return &StartPaymentResponse{Payment: payment}, nil
}

// ReconcileSessionCompleted handles checkout.session.completed. Idempotent
// under at-least-once delivery: the session id maps to exactly one payment
// row, and a payment already completed reconciles as success without new
// writes (the settlement layer independently dedupes on payment id). A leg
// already completed by a different payment (a parallel session, or the cash
// path) closes this payment out as failed instead of settling twice.
func (s *PaymentService) ReconcileSessionCompleted(ctx context.Context, sessionID string) error {
	var completed *models.Payment
	var superseded *models.Payment
	var booking *models.Booking

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.paymentBySession(tx, sessionID)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentStatusCompleted {
			// Re-delivered event; nothing left to do.
			return nil
		}

		var b models.Booking
		if err := tx.First(&b, "id = ?", payment.BookingID).Error; err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}

		leg := b.InitialPayment
		if payment.LegType == models.PaymentLegRemaining {
			leg = b.RemainingPayment
		}
		if leg.Status == models.PaymentLegStatusCompleted && (leg.PaymentID == nil || *leg.PaymentID != payment.ID) {
			payment.Status = models.PaymentStatusFailed
			payment.FailureReason = "leg already paid through another payment"
			if err := tx.Save(payment).Error; err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
			superseded = payment
			return nil
		}

		now := time.Now()
		payment.Status = models.PaymentStatusCompleted
		payment.ProcessedAt = &now
		payment.FailureReason = ""
		if err := tx.Save(payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if err := s.updateLeg(tx, &b, payment.LegType, models.PaymentLegStatusCompleted, &payment.ID); err != nil {
			return err
		}
		if err := s.advanceBooking(tx, &b, payment.LegType); err != nil {
			return err
		}
		if err := s.settlement.DistributeTx(tx, payment, &b); err != nil {
			return err
		}

		completed = payment
		booking = &b
		return nil
	})
	if err != nil {
		return err
	}

	if superseded != nil {
		logrus.WithFields(logrus.Fields{
			"session":  sessionID,
			"leg_type": superseded.LegType,
		}).Warn("Session completed for a leg already paid, payment closed as failed")
		monitoring.PaymentReconciled(string(superseded.LegType), "superseded")
	}
	if completed != nil {
		monitoring.PaymentReconciled(string(completed.LegType), "completed")
		s.notifyPaymentCompleted(booking, completed)
	}
	return nil
}

// ReconcileSessionExpired handles checkout.session.expired. Only a payment
// still awaiting the gateway regresses to failed; sessions that completed
// through another path are left untouched.
func (s *PaymentService) ReconcileSessionExpired(ctx context.Context, sessionID string) error {
	var expiredLeg models.PaymentLegType

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.paymentBySession(tx, sessionID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return nil
		}

		payment.Status = models.PaymentStatusFailed
		payment.FailureReason = "payment session expired"
		if err := tx.Save(payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		var b models.Booking
		if err := tx.First(&b, "id = ?", payment.BookingID).Error; err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}

		// Regress the leg only when it is still waiting on this session.
		leg := b.InitialPayment
		if payment.LegType == models.PaymentLegRemaining {
			leg = b.RemainingPayment
		}
		if leg.Status == models.PaymentLegStatusProcessing && leg.PaymentID != nil && *leg.PaymentID == payment.ID {
			if err := s.updateLeg(tx, &b, payment.LegType, models.PaymentLegStatusFailed, &payment.ID); err != nil {
				return err
			}
		}

		expiredLeg = payment.LegType
		return nil
	})
	if err != nil {
		return err
	}

	if expiredLeg != "" {
		monitoring.PaymentReconciled(string(expiredLeg), "expired")
	}
	return nil
}

// ReconcileStaleSessions is the fallback for webhooks that never arrived:
// card payments still pending past their session expiry are checked against
// the gateway directly and reconciled through the same paths the webhook
// events would take. Returns the number of payments reconciled.
func (s *PaymentService) ReconcileStaleSessions(ctx context.Context) (int, error) {
	var stale []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND method = ? AND session_expires_at < ?",
			models.PaymentStatusPending, models.PaymentMethodCard, time.Now()).
		Limit(100).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}

	reconciled := 0
	for _, payment := range stale {
		status, err := s.gateway.VerifySession(ctx, payment.ProviderReference)
		if err != nil {
			logrus.WithField("session", payment.ProviderReference).
				WithError(err).Warn("Failed to verify stale payment session")
			continue
		}

		switch status {
		case gateway.SessionStatusComplete:
			err = s.ReconcileSessionCompleted(ctx, payment.ProviderReference)
		case gateway.SessionStatusExpired:
			err = s.ReconcileSessionExpired(ctx, payment.ProviderReference)
		default:
			continue
		}
		if err != nil {
			logrus.WithField("session", payment.ProviderReference).
				WithError(err).Warn("Failed to reconcile stale payment session")
			continue
		}
		reconciled++
	}

	return reconciled, nil
}

// GetPayment loads one payment with its ledger rows.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("Transactions").
		First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment")
		}
		return nil, err
	}
	return &payment, nil
}

// GetPaymentHistory pages payments where the user is payer, or any payment
// on the partner's bookings for partner users.
func (s *PaymentService) GetPaymentHistory(ctx context.Context, userID uuid.UUID, params utils.PaginationParams) ([]models.Payment, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("payer_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}

	return payments, total, nil
}

// authorizeRemainingCaller admits the renter and the user behind the
// dropoff partner, who settles the balance at handover.
func (s *PaymentService) authorizeRemainingCaller(ctx context.Context, callerUserID uuid.UUID, booking *models.Booking) error {
	if booking.RenterID == callerUserID {
		return nil
	}

	var partner models.Partner
	err := s.db.WithContext(ctx).First(&partner, "id = ?", booking.DropoffPartnerID).Error
	if err == nil && partner.UserID == callerUserID {
		return nil
	}

	return apperrors.Forbidden("only the renter or the dropoff partner can start the remaining payment")
}

func (s *PaymentService) paymentBySession(tx *gorm.DB, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.First(&payment, "provider_reference = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("payment")
		}
		return nil, err
	}
	return &payment, nil
}

func (s *PaymentService) buildPayment(booking *models.Booking, leg models.PaymentLegType, amount decimal.Decimal, method models.PaymentMethod, reference string, charges models.ChargeList) *models.Payment {
	payment := &models.Payment{
		BookingID:         booking.ID,
		PayerID:           booking.RenterID,
		Amount:            amount,
		BookingTotal:      booking.Pricing.Total,
		LegType:           leg,
		Method:            method,
		ProviderReference: reference,
		Status:            models.PaymentStatusPending,
		AdditionalCharges: charges,
	}

	switch leg {
	case models.PaymentLegInitial:
		payment.PayeePartnerID = &booking.OwnerPartnerID
	case models.PaymentLegRemaining:
		payment.PayeePartnerID = &booking.DropoffPartnerID
		payment.RelatedPaymentID = booking.InitialPayment.PaymentID
	}

	return payment
}

// updateLeg writes the embedded leg columns through the state-machine
// owner's transaction handle, keeping booking mutation centralized.
func (s *PaymentService) updateLeg(tx *gorm.DB, booking *models.Booking, leg models.PaymentLegType, status models.PaymentLegStatus, paymentID *uuid.UUID) error {
	prefix := "initial"
	if leg == models.PaymentLegRemaining {
		prefix = "remaining"
	}

	updates := map[string]interface{}{
		prefix + "_status":     status,
		prefix + "_payment_id": paymentID,
	}
	if err := tx.Model(&models.Booking{}).Where("id = ?", booking.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update payment leg: %w", err)
	}

	if leg == models.PaymentLegRemaining {
		booking.RemainingPayment.Status = status
		booking.RemainingPayment.PaymentID = paymentID
	} else {
		booking.InitialPayment.Status = status
		booking.InitialPayment.PaymentID = paymentID
	}
	return nil
}

// advanceBooking maps a completed leg to its state-machine transition.
// A booking already past the expected source state (raced by another
// completion path) is left alone rather than failed.
func (s *PaymentService) advanceBooking(tx *gorm.DB, booking *models.Booking, leg models.PaymentLegType) error {
	switch leg {
	case models.PaymentLegInitial:
		if booking.Status != models.BookingStatusConfirmed {
			logrus.WithFields(logrus.Fields{
				"booking": booking.BookingNumber,
				"status":  booking.Status,
			}).Warn("Initial payment reconciled on a booking past confirmed, skipping transition")
			return nil
		}
		return s.bookings.ActivateTx(tx, booking)
	case models.PaymentLegRemaining:
		if booking.Status != models.BookingStatusActive {
			logrus.WithFields(logrus.Fields{
				"booking": booking.BookingNumber,
				"status":  booking.Status,
			}).Warn("Remaining payment reconciled on a booking past active, skipping transition")
			return nil
		}
		return s.bookings.CompleteTx(tx, booking)
	default:
		return nil
	}
}

func (s *PaymentService) legPercent(booking *models.Booking, leg models.PaymentLegType) decimal.Decimal {
	if leg == models.PaymentLegRemaining {
		return booking.RemainingPayment.Percent
	}
	return booking.InitialPayment.Percent
}

func (s *PaymentService) notifyPaymentCompleted(booking *models.Booking, payment *models.Payment) {
	kind := models.NotificationPaymentReceived
	title := "Payment received"
	message := fmt.Sprintf("Payment of %s received for booking %s", payment.Amount.StringFixed(2), booking.BookingNumber)
	if payment.LegType == models.PaymentLegRemaining {
		kind = models.NotificationBookingCompleted
		title = "Booking completed"
		message = fmt.Sprintf("Booking %s is fully paid and completed", booking.BookingNumber)
	}

	s.notifier.Notify(NotificationEvent{
		UserID:  booking.RenterID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Payload: models.JSONB{
			"booking_id": booking.ID.String(),
			"payment_id": payment.ID.String(),
			"leg_type":   string(payment.LegType),
			"amount":     payment.Amount.StringFixed(2),
		},
	})
}
