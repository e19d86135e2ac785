// internal/services/settlement_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

func TestRevenuePolicySplit(t *testing.T) {
	policy := DefaultRevenuePolicy()

	cases := []struct {
		amount   string
		owner    string
		pickup   string
		platform string
	}{
		{"300.00", "210.00", "60.00", "30.00"},
		{"1000.00", "700.00", "200.00", "100.00"},
		{"99.99", "69.99", "20.00", "10.00"},
		{"0.01", "0.01", "0.00", "0.00"},
		{"33.33", "23.33", "6.67", "3.33"},
	}

	for _, tc := range cases {
		amount := decimal.RequireFromString(tc.amount)
		owner, pickup, platform := policy.Split(amount)

		assert.Equal(t, tc.owner, owner.StringFixed(2), "owner of %s", tc.amount)
		assert.Equal(t, tc.pickup, pickup.StringFixed(2), "pickup of %s", tc.amount)
		assert.Equal(t, tc.platform, platform.StringFixed(2), "platform of %s", tc.amount)
		assert.True(t, owner.Add(pickup).Add(platform).Equal(amount),
			"shares of %s must sum exactly", tc.amount)
	}
}

// completedPaymentFixture persists a booking with a completed payment and
// returns both, bypassing the orchestrator.
func completedPaymentFixture(t *testing.T, db *gorm.DB, f *fixture, amount decimal.Decimal, pickupID uuid.UUID) (*models.Payment, *models.Booking) {
	t.Helper()

	now := time.Now()
	booking := &models.Booking{
		BookingNumber:    "PG-2026-" + uuid.NewString()[:6],
		RenterID:         f.renter.ID,
		BikeID:           f.bike.ID,
		OwnerPartnerID:   f.owner.ID,
		PickupPartnerID:  pickupID,
		DropoffPartnerID: pickupID,
		StartDate:        now.AddDate(0, 0, 7),
		EndDate:          now.AddDate(0, 0, 9),
		Package:          models.PackageTierDay,
		Status:           models.BookingStatusActive,
		Pricing:          models.PricingSnapshot{BasePrice: amount, Total: amount},
	}
	require.NoError(t, db.Create(booking).Error)

	payment := &models.Payment{
		BookingID:         booking.ID,
		PayerID:           f.renter.ID,
		Amount:            amount,
		BookingTotal:      amount,
		LegType:           models.PaymentLegInitial,
		Method:            models.PaymentMethodCard,
		ProviderReference: "cs_fixture_" + uuid.NewString()[:8],
		Status:            models.PaymentStatusCompleted,
		ProcessedAt:       &now,
	}
	require.NoError(t, db.Create(payment).Error)

	return payment, booking
}

func TestDistributeWritesThreeWaySplit(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	payment, booking := completedPaymentFixture(t, db, f, decimal.NewFromInt(300), f.pickup.ID)

	require.NoError(t, svc.Distribute(context.Background(), payment.ID))

	var rows []models.Transaction
	require.NoError(t, db.Where("payment_id = ?", payment.ID).Order("amount desc").Find(&rows).Error)
	require.Len(t, rows, 3)

	byType := map[models.TransactionType]models.Transaction{}
	for _, row := range rows {
		byType[row.Type] = row
		assert.Equal(t, models.TransactionCategoryEarning, row.Category)
		require.NotNil(t, row.BookingID)
		assert.Equal(t, booking.ID, *row.BookingID)
	}

	owner := byType[models.TransactionTypeOwnerEarnings]
	require.NotNil(t, owner.PartnerID)
	assert.Equal(t, f.owner.ID, *owner.PartnerID)
	assert.Equal(t, "210.00", owner.Amount.StringFixed(2))

	pickup := byType[models.TransactionTypePickupEarnings]
	require.NotNil(t, pickup.PartnerID)
	assert.Equal(t, f.pickup.ID, *pickup.PartnerID)
	assert.Equal(t, "60.00", pickup.Amount.StringFixed(2))

	platform := byType[models.TransactionTypePlatformFee]
	assert.Nil(t, platform.PartnerID)
	assert.Equal(t, "30.00", platform.Amount.StringFixed(2))

	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Amount)
	}
	assert.True(t, sum.Equal(payment.Amount), "ledger rows must sum to the payment")
}

func TestDistributeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	payment, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(300), f.pickup.ID)

	require.NoError(t, svc.Distribute(context.Background(), payment.ID))
	require.NoError(t, svc.Distribute(context.Background(), payment.ID))

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("payment_id = ?", payment.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestDistributeSamePartnerKeepsSeparateRows(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	// Owner is also the pickup partner.
	payment, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(100), f.owner.ID)

	require.NoError(t, svc.Distribute(context.Background(), payment.ID))

	var rows []models.Transaction
	require.NoError(t, db.Where("payment_id = ? AND partner_id = ?", payment.ID, f.owner.ID).Find(&rows).Error)
	require.Len(t, rows, 2, "owner and pickup earnings stay distinct rows")

	types := map[models.TransactionType]bool{}
	for _, row := range rows {
		types[row.Type] = true
	}
	assert.True(t, types[models.TransactionTypeOwnerEarnings])
	assert.True(t, types[models.TransactionTypePickupEarnings])
}

func TestDistributeRejectsIncompletePayment(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	payment, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(100), f.pickup.ID)
	require.NoError(t, db.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Update("status", models.PaymentStatusPending).Error)

	err := svc.Distribute(context.Background(), payment.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestGetPartnerBalance(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	p1, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(300), f.pickup.ID)
	p2, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(100), f.pickup.ID)
	require.NoError(t, svc.Distribute(context.Background(), p1.ID))
	require.NoError(t, svc.Distribute(context.Background(), p2.ID))

	_, err := svc.RecordManualAdjustment(context.Background(), &ManualAdjustmentRequest{
		PartnerID:   f.owner.ID,
		Category:    models.TransactionCategoryDeduction,
		Amount:      decimal.NewFromInt(50),
		Description: "Damaged fender deducted from payout",
	})
	require.NoError(t, err)

	balance, err := svc.GetPartnerBalance(context.Background(), f.owner.ID)
	require.NoError(t, err)

	// owner earnings: 210 + 70, deduction 50
	assert.Equal(t, "280.00", balance.TotalEarnings.StringFixed(2))
	assert.Equal(t, "50.00", balance.TotalDeductions.StringFixed(2))
	assert.Equal(t, "230.00", balance.Balance.StringFixed(2))
}

func TestGetPartnerBalanceUnknownPartner(t *testing.T) {
	db := newTestDB(t)
	newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	_, err := svc.GetPartnerBalance(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestGetPartnerEarningsSeries(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	payment, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(300), f.pickup.ID)
	require.NoError(t, svc.Distribute(context.Background(), payment.ID))

	from := time.Now().AddDate(0, -1, 0)
	to := time.Now().AddDate(0, 1, 0)

	series, err := svc.GetPartnerEarningsSeries(context.Background(), f.owner.ID, from, to)
	require.NoError(t, err)
	require.Len(t, series, 1)

	assert.Equal(t, time.Now().UTC().Format("2006-01"), series[0].Period)
	assert.Equal(t, "210.00", series[0].Earnings.StringFixed(2))
	assert.Equal(t, 1, series[0].Count)
}

func TestListPartnerTransactions(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	p1, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(300), f.pickup.ID)
	p2, _ := completedPaymentFixture(t, db, f, decimal.NewFromInt(100), f.pickup.ID)
	require.NoError(t, svc.Distribute(context.Background(), p1.ID))
	require.NoError(t, svc.Distribute(context.Background(), p2.ID))

	rows, total, err := svc.ListPartnerTransactions(context.Background(), f.owner.ID, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.PartnerID)
		assert.Equal(t, f.owner.ID, *row.PartnerID)
	}
}

func TestManualAdjustmentUnknownPartner(t *testing.T) {
	db := newTestDB(t)
	newFixture(t, db)
	svc := NewSettlementService(db, DefaultRevenuePolicy())

	_, err := svc.RecordManualAdjustment(context.Background(), &ManualAdjustmentRequest{
		PartnerID:   uuid.New(),
		Category:    models.TransactionCategoryEarning,
		Amount:      decimal.NewFromInt(10),
		Description: "bonus",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
