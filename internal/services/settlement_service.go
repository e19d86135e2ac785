// internal/services/settlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/monitoring"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

type SettlementService struct {
	db     *gorm.DB
	policy RevenuePolicy
}

type PartnerBalance struct {
	PartnerID       uuid.UUID       `json:"partner_id"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	Balance         decimal.Decimal `json:"balance"`
	Currency        string          `json:"currency"`
}

type EarningsBucket struct {
	Period   string          `json:"period"` // YYYY-MM
	Earnings decimal.Decimal `json:"earnings"`
	Count    int             `json:"count"`
}

type ManualAdjustmentRequest struct {
	PartnerID   uuid.UUID                  `json:"partner_id" validate:"required"`
	Category    models.TransactionCategory `json:"category" validate:"required,oneof=earning deduction"`
	Amount      decimal.Decimal            `json:"amount" validate:"required,gt=0"`
	Description string                     `json:"description" validate:"required"`
}

func NewSettlementService(db *gorm.DB, policy RevenuePolicy) *SettlementService {
	return &SettlementService{
		db:     db,
		policy: policy,
	}
}

// DistributeTx splits a completed payment into ledger rows inside the
// caller's transaction. Idempotent per payment: when ledger rows for this
// payment already exist (a retried webhook re-invoked us) it does nothing.
// Owner and pickup rows are written separately even when both point at the
// same partner, because downstream reporting distinguishes the earning type.
func (s *SettlementService) DistributeTx(tx *gorm.DB, payment *models.Payment, booking *models.Booking) error {
	if payment.Status != models.PaymentStatusCompleted {
		return apperrors.InvalidState("cannot distribute payment in status %s", payment.Status)
	}

	var existing int64
	if err := tx.Model(&models.Transaction{}).
		Where("payment_id = ?", payment.ID).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to check existing distribution: %w", err)
	}
	if existing > 0 {
		return nil
	}

	ownerShare, pickupShare, platformShare := s.policy.Split(payment.Amount)

	description := fmt.Sprintf("Settlement of %s payment for booking %s", payment.LegType, booking.BookingNumber)

	rows := []models.Transaction{
		{
			PartnerID:   &booking.OwnerPartnerID,
			PaymentID:   &payment.ID,
			BookingID:   &booking.ID,
			Type:        models.TransactionTypeOwnerEarnings,
			Category:    models.TransactionCategoryEarning,
			Amount:      ownerShare,
			Description: description,
		},
		{
			PartnerID:   &booking.PickupPartnerID,
			PaymentID:   &payment.ID,
			BookingID:   &booking.ID,
			Type:        models.TransactionTypePickupEarnings,
			Category:    models.TransactionCategoryEarning,
			Amount:      pickupShare,
			Description: description,
		},
		{
			PartnerID:   nil,
			PaymentID:   &payment.ID,
			BookingID:   &booking.ID,
			Type:        models.TransactionTypePlatformFee,
			Category:    models.TransactionCategoryEarning,
			Amount:      platformShare,
			Description: description,
		},
	}

	// Zero shares (e.g. a zero-amount adjustment leg) produce no row.
	written := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		if row.Amount.IsZero() {
			continue
		}
		written = append(written, row)
	}

	if len(written) == 0 {
		return nil
	}

	if err := tx.Create(&written).Error; err != nil {
		return fmt.Errorf("failed to write settlement transactions: %w", err)
	}

	monitoring.SettlementRecorded()
	return nil
}

// Distribute is the standalone entry point for re-running a distribution
// (admin retry after a partial failure). The webhook path uses DistributeTx
// inside the reconciliation transaction instead.
func (s *SettlementService) Distribute(ctx context.Context, paymentID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, "id = ?", paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("payment")
			}
			return err
		}

		var booking models.Booking
		if err := tx.First(&booking, "id = ?", payment.BookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("booking")
			}
			return err
		}

		return s.DistributeTx(tx, &payment, &booking)
	})
}

// RecordManualAdjustment appends an adjustment row outside any payment
// distribution. Corrections to previous rows are entered as offsetting
// adjustments, never as edits.
func (s *SettlementService) RecordManualAdjustment(ctx context.Context, req *ManualAdjustmentRequest) (*models.Transaction, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).First(&partner, "id = ?", req.PartnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("partner")
		}
		return nil, err
	}

	adjustment := &models.Transaction{
		PartnerID:   &partner.ID,
		Type:        models.TransactionTypeManualAdjustment,
		Category:    req.Category,
		Amount:      req.Amount.Round(2),
		Description: req.Description,
	}

	if err := s.db.WithContext(ctx).Create(adjustment).Error; err != nil {
		return nil, fmt.Errorf("failed to record adjustment: %w", err)
	}

	return adjustment, nil
}

// GetPartnerBalance derives the balance from the ledger. The ledger is the
// source of truth; this aggregate is recomputable at any time.
func (s *SettlementService) GetPartnerBalance(ctx context.Context, partnerID uuid.UUID) (*PartnerBalance, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).First(&partner, "id = ?", partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("partner")
		}
		return nil, err
	}

	earnings, err := s.sumByCategory(ctx, partnerID, models.TransactionCategoryEarning)
	if err != nil {
		return nil, err
	}

	deductions, err := s.sumByCategory(ctx, partnerID, models.TransactionCategoryDeduction)
	if err != nil {
		return nil, err
	}

	return &PartnerBalance{
		PartnerID:       partnerID,
		TotalEarnings:   earnings,
		TotalDeductions: deductions,
		Balance:         earnings.Sub(deductions),
		Currency:        "USD",
	}, nil
}

func (s *SettlementService) sumByCategory(ctx context.Context, partnerID uuid.UUID, category models.TransactionCategory) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("partner_id = ? AND category = ?", partnerID, category).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate ledger: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// GetPartnerEarningsSeries buckets the partner's earning rows by calendar
// month. Bucketing happens in Go so the same query runs on every dialect.
func (s *SettlementService) GetPartnerEarningsSeries(ctx context.Context, partnerID uuid.UUID, from, to time.Time) ([]EarningsBucket, error) {
	var transactions []models.Transaction
	err := s.db.WithContext(ctx).
		Where("partner_id = ? AND category = ? AND created_at >= ? AND created_at < ?",
			partnerID, models.TransactionCategoryEarning, from, to).
		Order("created_at asc").
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger rows: %w", err)
	}

	buckets := make(map[string]*EarningsBucket)
	var order []string
	for _, txn := range transactions {
		period := txn.CreatedAt.UTC().Format("2006-01")
		bucket, ok := buckets[period]
		if !ok {
			bucket = &EarningsBucket{Period: period, Earnings: decimal.Zero}
			buckets[period] = bucket
			order = append(order, period)
		}
		bucket.Earnings = bucket.Earnings.Add(txn.Amount)
		bucket.Count++
	}

	series := make([]EarningsBucket, 0, len(order))
	for _, period := range order {
		series = append(series, *buckets[period])
	}
	return series, nil
}

// ListPartnerTransactions pages through a partner's ledger rows.
func (s *SettlementService) ListPartnerTransactions(ctx context.Context, partnerID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("partner_id = ?", partnerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}
