// internal/models/booking.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingSnapshot freezes the price of a booking at creation time. Later
// changes to the bike's rates never touch existing bookings.
// Invariant: Total = BasePrice + Insurance + Extras - Discount.
type PricingSnapshot struct {
	BasePrice decimal.Decimal `json:"base_price" gorm:"type:decimal(12,2);not null"`
	Insurance decimal.Decimal `json:"insurance" gorm:"type:decimal(12,2);not null"`
	Extras    decimal.Decimal `json:"extras" gorm:"type:decimal(12,2);not null"`
	Discount  decimal.Decimal `json:"discount" gorm:"type:decimal(12,2);not null"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
}

// PaymentLeg is the per-installment sub-ledger embedded on the booking.
// Amount and Percent are fixed when the booking is created; Status and
// PaymentID follow the orchestration of that leg.
type PaymentLeg struct {
	Amount    decimal.Decimal  `json:"amount" gorm:"type:decimal(12,2);not null"`
	Percent   decimal.Decimal  `json:"percent" gorm:"type:decimal(5,2);not null"`
	Status    PaymentLegStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
	PaymentID *uuid.UUID       `json:"payment_id" gorm:"type:uuid"`
}

// Booking is one rental reservation, the aggregate root of the lifecycle
// engine. Status transitions go exclusively through services.BookingService;
// handlers never write Status or bike availability directly.
type Booking struct {
	BaseModel
	BookingNumber    string        `json:"booking_number" gorm:"size:30;uniqueIndex;not null"`
	RenterID         uuid.UUID     `json:"renter_id" gorm:"type:uuid;not null;index"`
	BikeID           uuid.UUID     `json:"bike_id" gorm:"type:uuid;not null;index"`
	OwnerPartnerID   uuid.UUID     `json:"owner_partner_id" gorm:"type:uuid;not null;index"`
	PickupPartnerID  uuid.UUID     `json:"pickup_partner_id" gorm:"type:uuid;not null;index"`
	DropoffPartnerID uuid.UUID     `json:"dropoff_partner_id" gorm:"type:uuid;not null;index"`
	StartDate        time.Time     `json:"start_date" gorm:"not null;index"`
	EndDate          time.Time     `json:"end_date" gorm:"not null;index"`
	Package          PackageTier   `json:"package" gorm:"type:varchar(10);not null"`
	Status           BookingStatus `json:"status" gorm:"type:varchar(20);default:'requested';index"`

	Pricing          PricingSnapshot `json:"pricing" gorm:"embedded;embeddedPrefix:pricing_"`
	InitialPayment   PaymentLeg      `json:"initial_payment" gorm:"embedded;embeddedPrefix:initial_"`
	RemainingPayment PaymentLeg      `json:"remaining_payment" gorm:"embedded;embeddedPrefix:remaining_"`

	CancelledAt *time.Time `json:"cancelled_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Relationships
	Renter         User      `json:"renter,omitempty" gorm:"foreignKey:RenterID"`
	Bike           Bike      `json:"bike,omitempty" gorm:"foreignKey:BikeID"`
	OwnerPartner   Partner   `json:"owner_partner,omitempty" gorm:"foreignKey:OwnerPartnerID"`
	PickupPartner  Partner   `json:"pickup_partner,omitempty" gorm:"foreignKey:PickupPartnerID"`
	DropoffPartner Partner   `json:"dropoff_partner,omitempty" gorm:"foreignKey:DropoffPartnerID"`
	Payments       []Payment `json:"payments,omitempty" gorm:"foreignKey:BookingID"`
}

// PackageForDuration maps a rental window to the package tier:
// up to 7 days "day", up to 30 days "week", anything longer "month".
func PackageForDuration(start, end time.Time) PackageTier {
	days := RentalDays(start, end)
	switch {
	case days <= 7:
		return PackageTierDay
	case days <= 30:
		return PackageTierWeek
	default:
		return PackageTierMonth
	}
}

// RentalDays counts billable days for [start, end), rounding partial days up.
// A window shorter than one day still bills a full day.
func RentalDays(start, end time.Time) int {
	hours := end.Sub(start).Hours()
	days := int(hours / 24)
	if hours > float64(days)*24 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}
