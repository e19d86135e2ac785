// internal/services/revenue_policy.go
package services

import (
	"github.com/shopspring/decimal"

	"github.com/pedalgo/pedalgo-backend/internal/config"
)

// RevenuePolicy maps a completed payment amount to the three-way split.
// It is a pure computation with no storage access.
type RevenuePolicy struct {
	ownerPercent  decimal.Decimal
	pickupPercent decimal.Decimal
}

func NewRevenuePolicy(cfg config.SettlementConfig) RevenuePolicy {
	return RevenuePolicy{
		ownerPercent:  decimal.NewFromFloat(cfg.OwnerSharePercent),
		pickupPercent: decimal.NewFromFloat(cfg.PickupSharePercent),
	}
}

// DefaultRevenuePolicy is the fixed 70/20/10 platform policy.
func DefaultRevenuePolicy() RevenuePolicy {
	return RevenuePolicy{
		ownerPercent:  decimal.NewFromInt(70),
		pickupPercent: decimal.NewFromInt(20),
	}
}

// Split divides amount into owner, pickup and platform shares. Owner and
// pickup shares are rounded independently to 2 decimals; the platform share
// is the remainder rather than its own percentage, so the three shares
// always sum exactly to amount with no rounding leakage.
func (p RevenuePolicy) Split(amount decimal.Decimal) (owner, pickup, platform decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	owner = amount.Mul(p.ownerPercent).Div(hundred).Round(2)
	pickup = amount.Mul(p.pickupPercent).Div(hundred).Round(2)
	platform = amount.Sub(owner).Sub(pickup)
	return owner, pickup, platform
}
