// internal/services/booking_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/bookingnum"
	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/monitoring"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

// nonTerminalStatuses are the statuses that hold a bike's time window.
var nonTerminalStatuses = []models.BookingStatus{
	models.BookingStatusRequested,
	models.BookingStatusConfirmed,
	models.BookingStatusActive,
}

// allowedTransitions is the full state machine. Any transition not listed
// here is rejected with InvalidTransition before anything is written.
var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingStatusRequested: {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed: {models.BookingStatusActive, models.BookingStatusCancelled},
	models.BookingStatusActive:    {models.BookingStatusCompleted},
}

type BookingService struct {
	db       *gorm.DB
	config   *config.Config
	catalog  BikeCatalog
	partners PartnerDirectory
	numbers  bookingnum.Generator
	notifier NotificationSink
}

type CreateBookingRequest struct {
	BikeID           uuid.UUID       `json:"bike_id" validate:"required"`
	DropoffPartnerID uuid.UUID       `json:"dropoff_partner_id" validate:"required"`
	StartDate        time.Time       `json:"start_date" validate:"required"`
	EndDate          time.Time       `json:"end_date" validate:"required,gtfield=StartDate"`
	Insurance        decimal.Decimal `json:"insurance"`
	Extras           decimal.Decimal `json:"extras"`
	Discount         decimal.Decimal `json:"discount"`
}

func NewBookingService(db *gorm.DB, cfg *config.Config, catalog BikeCatalog, partners PartnerDirectory, numbers bookingnum.Generator, notifier NotificationSink) *BookingService {
	return &BookingService{
		db:       db,
		config:   cfg,
		catalog:  catalog,
		partners: partners,
		numbers:  numbers,
		notifier: notifier,
	}
}

// CheckConflict reports whether any non-terminal booking of the bike
// overlaps [start, end). Half-open semantics: end1 == start2 is no conflict.
// This read-only form exists for availability previews; admission runs the
// same predicate inside the create transaction.
func (s *BookingService) CheckConflict(ctx context.Context, bikeID uuid.UUID, start, end time.Time) (bool, error) {
	return s.hasConflict(s.db.WithContext(ctx), bikeID, start, end)
}

func (s *BookingService) hasConflict(db *gorm.DB, bikeID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	err := db.Model(&models.Booking{}).
		Where("bike_id = ?", bikeID).
		Where("status IN ?", nonTerminalStatuses).
		Where("start_date < ? AND end_date > ?", end, start).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check booking conflicts: %w", err)
	}
	return count > 0, nil
}

// CreateBooking admits a booking request: conflict check and insert commit
// as one transaction, with the bike row locked on Postgres so two identical
// concurrent requests serialize and exactly one wins.
func (s *BookingService) CreateBooking(ctx context.Context, renterID uuid.UUID, req *CreateBookingRequest) (*models.Booking, error) {
	if !req.EndDate.After(req.StartDate) {
		return nil, apperrors.Validation("end date must be after start date")
	}
	if req.Insurance.IsNegative() || req.Extras.IsNegative() || req.Discount.IsNegative() {
		return nil, apperrors.Validation("insurance, extras and discount must not be negative")
	}

	bike, err := s.catalog.GetBike(ctx, req.BikeID)
	if err != nil {
		return nil, err
	}
	if bike.Availability == models.AvailabilityMaintenance {
		return nil, apperrors.Validation("bike is under maintenance")
	}

	dropoffPartner, err := s.partners.GetPartner(ctx, req.DropoffPartnerID)
	if err != nil {
		return nil, err
	}

	pricing, err := s.computePricing(bike, req)
	if err != nil {
		return nil, err
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking number: %w", err)
	}

	initialAmount, remainingAmount := s.SplitLegs(pricing.Total)
	initialPercent := decimal.NewFromFloat(s.config.Payment.InitialLegPercent)

	booking := &models.Booking{
		BookingNumber:    number,
		RenterID:         renterID,
		BikeID:           bike.ID,
		OwnerPartnerID:   bike.OwnerPartnerID,
		PickupPartnerID:  bike.CurrentPartnerID,
		DropoffPartnerID: dropoffPartner.ID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Package:          models.PackageForDuration(req.StartDate, req.EndDate),
		Status:           models.BookingStatusRequested,
		Pricing:          pricing,
		InitialPayment: models.PaymentLeg{
			Amount:  initialAmount,
			Percent: initialPercent,
			Status:  models.PaymentLegStatusPending,
		},
		RemainingPayment: models.PaymentLeg{
			Amount:  remainingAmount,
			Percent: decimal.NewFromInt(100).Sub(initialPercent),
			Status:  models.PaymentLegStatusPending,
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent admissions for the same bike. SQLite (tests)
		// serializes writers on its own and rejects FOR UPDATE.
		bikeQuery := tx.Model(&models.Bike{})
		if tx.Dialector.Name() == "postgres" {
			bikeQuery = bikeQuery.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var locked models.Bike
		if err := bikeQuery.First(&locked, "id = ?", bike.ID).Error; err != nil {
			return fmt.Errorf("failed to lock bike row: %w", err)
		}

		conflict, err := s.hasConflict(tx, bike.ID, req.StartDate, req.EndDate)
		if err != nil {
			return err
		}
		if conflict {
			return apperrors.Conflict("bike is already booked for the requested window")
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		return s.catalog.SetAvailability(tx, bike.ID, models.AvailabilityRequested)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			monitoring.BookingConflict()
		}
		return nil, err
	}

	monitoring.BookingCreated()
	s.notifyPartners(ctx, booking, models.NotificationBookingRequested,
		"New booking request",
		fmt.Sprintf("Booking %s was requested for one of your bikes", booking.BookingNumber))

	return booking, nil
}

// computePricing is the single canonical pricing path: insurance is never
// folded into the base price, and Total = base + insurance + extras - discount.
func (s *BookingService) computePricing(bike *models.Bike, req *CreateBookingRequest) (models.PricingSnapshot, error) {
	days := models.RentalDays(req.StartDate, req.EndDate)
	base := bike.PricePerDay.Mul(decimal.NewFromInt(int64(days))).Round(2)

	insurance := req.Insurance.Round(2)
	extras := req.Extras.Round(2)
	discount := req.Discount.Round(2)

	total := base.Add(insurance).Add(extras).Sub(discount)
	if !total.IsPositive() {
		return models.PricingSnapshot{}, apperrors.Validation("discount exceeds the booking price")
	}

	return models.PricingSnapshot{
		BasePrice: base,
		Insurance: insurance,
		Extras:    extras,
		Discount:  discount,
		Total:     total,
	}, nil
}

// SplitLegs computes the two installments. The remaining leg is the exact
// complement of the rounded initial leg, so the two always sum to the total.
func (s *BookingService) SplitLegs(total decimal.Decimal) (initial, remaining decimal.Decimal) {
	percent := decimal.NewFromFloat(s.config.Payment.InitialLegPercent)
	initial = total.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	remaining = total.Sub(initial)
	return initial, remaining
}

// GetBooking loads one booking with its references.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Preload("Bike").
		Preload("OwnerPartner").
		Preload("PickupPartner").
		Preload("DropoffPartner").
		First(&booking, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("booking")
		}
		return nil, err
	}
	return &booking, nil
}

// ListBookings pages bookings filtered by renter or partner involvement.
func (s *BookingService) ListBookings(ctx context.Context, renterID, partnerID *uuid.UUID, params utils.PaginationParams) ([]models.Booking, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Booking{})

	if renterID != nil {
		query = query.Where("renter_id = ?", *renterID)
	}
	if partnerID != nil {
		query = query.Where("owner_partner_id = ? OR pickup_partner_id = ? OR dropoff_partner_id = ?",
			*partnerID, *partnerID, *partnerID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	allowedSortFields := []string{"created_at", "start_date", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var bookings []models.Booking
	if err := query.Find(&bookings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	return bookings, total, nil
}

// ConfirmBooking is the partner-accepts transition (requested -> confirmed).
func (s *BookingService) ConfirmBooking(ctx context.Context, callerUserID uuid.UUID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizePartner(ctx, callerUserID, booking); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, booking, models.BookingStatusConfirmed)
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(booking.RenterID, models.NotificationPaymentRequired,
		"Booking confirmed",
		fmt.Sprintf("Booking %s is confirmed. Complete the initial payment to activate it.", booking.BookingNumber),
		booking)

	return booking, nil
}

// DeclineBooking is the partner-declines transition (requested -> cancelled).
func (s *BookingService) DeclineBooking(ctx context.Context, callerUserID uuid.UUID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizePartner(ctx, callerUserID, booking); err != nil {
		return nil, err
	}

	if booking.Status != models.BookingStatusRequested {
		return nil, apperrors.InvalidTransition("booking cannot be declined from status %s", booking.Status)
	}

	return s.cancel(ctx, booking, "declined by partner")
}

// CancelBooking is the explicit cancel endpoint: legal from requested and
// confirmed only. An active or settled rental can only be completed.
func (s *BookingService) CancelBooking(ctx context.Context, callerUserID uuid.UUID, isAdmin bool, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && booking.RenterID != callerUserID {
		if err := s.authorizePartner(ctx, callerUserID, booking); err != nil {
			return nil, err
		}
	}

	if booking.Status.IsTerminal() {
		return nil, apperrors.InvalidTransition("booking %s is already %s", booking.BookingNumber, booking.Status)
	}

	return s.cancel(ctx, booking, "cancelled")
}

func (s *BookingService) cancel(ctx context.Context, booking *models.Booking, reason string) (*models.Booking, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transition(tx, booking, models.BookingStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	s.notifyUser(booking.RenterID, models.NotificationBookingCancelled,
		"Booking cancelled",
		fmt.Sprintf("Booking %s was %s", booking.BookingNumber, reason),
		booking)

	return booking, nil
}

// ActivateTx runs the confirmed -> active transition inside the payment
// reconciliation transaction.
func (s *BookingService) ActivateTx(tx *gorm.DB, booking *models.Booking) error {
	return s.transition(tx, booking, models.BookingStatusActive)
}

// CompleteTx runs the active -> completed transition inside the payment
// reconciliation transaction.
func (s *BookingService) CompleteTx(tx *gorm.DB, booking *models.Booking) error {
	return s.transition(tx, booking, models.BookingStatusCompleted)
}

// transition is the only place booking status and bike availability change.
// It validates against the transition table, applies the status write and
// the availability side effect in the caller's transaction, and leaves
// notifications to the caller (they are fire-and-forget, post-commit).
func (s *BookingService) transition(tx *gorm.DB, booking *models.Booking, to models.BookingStatus) error {
	if !transitionAllowed(booking.Status, to) {
		return apperrors.InvalidTransition("booking cannot change from %s to %s", booking.Status, to)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": to}

	switch to {
	case models.BookingStatusCancelled:
		updates["cancelled_at"] = now
	case models.BookingStatusCompleted:
		updates["completed_at"] = now
	}

	// Guard against a concurrent transition between read and write.
	result := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, booking.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.InvalidTransition("booking status changed concurrently")
	}

	var availability models.AvailabilityStatus
	switch to {
	case models.BookingStatusConfirmed:
		availability = models.AvailabilityUnavailable
	case models.BookingStatusCancelled, models.BookingStatusCompleted:
		availability = models.AvailabilityAvailable
	}

	if availability != "" {
		if err := s.catalog.SetAvailability(tx, booking.BikeID, availability); err != nil {
			return err
		}
	}

	booking.Status = to
	switch to {
	case models.BookingStatusCancelled:
		booking.CancelledAt = &now
	case models.BookingStatusCompleted:
		booking.CompletedAt = &now
	}

	monitoring.BookingTransition(string(to))
	return nil
}

func transitionAllowed(from, to models.BookingStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// authorizePartner verifies the caller is the user behind the owner, pickup
// or dropoff partner of the booking.
func (s *BookingService) authorizePartner(ctx context.Context, callerUserID uuid.UUID, booking *models.Booking) error {
	partnerIDs := []uuid.UUID{booking.OwnerPartnerID, booking.PickupPartnerID, booking.DropoffPartnerID}
	seen := make(map[uuid.UUID]bool)

	for _, partnerID := range partnerIDs {
		if seen[partnerID] {
			continue
		}
		seen[partnerID] = true

		partner, err := s.partners.GetPartner(ctx, partnerID)
		if err != nil {
			continue
		}
		if partner.UserID == callerUserID {
			return nil
		}
	}

	return apperrors.Forbidden("caller is not a partner of this booking")
}

func (s *BookingService) notifyPartners(ctx context.Context, booking *models.Booking, kind models.NotificationKind, title, message string) {
	notified := make(map[uuid.UUID]bool)
	for _, partnerID := range []uuid.UUID{booking.OwnerPartnerID, booking.PickupPartnerID} {
		partner, err := s.partners.GetPartner(ctx, partnerID)
		if err != nil || notified[partner.UserID] {
			continue
		}
		notified[partner.UserID] = true
		s.notifyUser(partner.UserID, kind, title, message, booking)
	}
}

func (s *BookingService) notifyUser(userID uuid.UUID, kind models.NotificationKind, title, message string, booking *models.Booking) {
	s.notifier.Notify(NotificationEvent{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
		Payload: models.JSONB{
			"booking_id":     booking.ID.String(),
			"booking_number": booking.BookingNumber,
			"status":         string(booking.Status),
		},
	})
}
