// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the UUID client-side so the models also work on
// databases without gen_random_uuid (sqlite in tests).
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if str, strOK := value.(string); strOK {
			bytes = []byte(str)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeRenter  UserType = "renter"
	UserTypePartner UserType = "partner"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type PartnerStatus string

const (
	PartnerStatusActive    PartnerStatus = "active"
	PartnerStatusInactive  PartnerStatus = "inactive"
	PartnerStatusSuspended PartnerStatus = "suspended"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityRequested   AvailabilityStatus = "requested"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityMaintenance AvailabilityStatus = "maintenance"
)

type BookingStatus string

const (
	BookingStatusRequested BookingStatus = "requested"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsTerminal reports whether the booking can never transition again.
// Terminal bookings do not count toward window-overlap conflicts.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type PackageTier string

const (
	PackageTierDay   PackageTier = "day"
	PackageTierWeek  PackageTier = "week"
	PackageTierMonth PackageTier = "month"
)

type PaymentLegType string

const (
	PaymentLegInitial           PaymentLegType = "initial"
	PaymentLegRemaining         PaymentLegType = "remaining"
	PaymentLegAdditionalCharges PaymentLegType = "additional_charges"
	PaymentLegRefund            PaymentLegType = "refund"
)

type PaymentLegStatus string

const (
	PaymentLegStatusPending    PaymentLegStatus = "pending"
	PaymentLegStatusProcessing PaymentLegStatus = "processing"
	PaymentLegStatusCompleted  PaymentLegStatus = "completed"
	PaymentLegStatusFailed     PaymentLegStatus = "failed"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

type TransactionType string

const (
	TransactionTypeOwnerEarnings    TransactionType = "owner_earnings"
	TransactionTypePickupEarnings   TransactionType = "pickup_earnings"
	TransactionTypePlatformFee      TransactionType = "platform_fee"
	TransactionTypeManualAdjustment TransactionType = "manual_adjustment"
)

type TransactionCategory string

const (
	TransactionCategoryEarning   TransactionCategory = "earning"
	TransactionCategoryDeduction TransactionCategory = "deduction"
)

type NotificationKind string

const (
	NotificationBookingRequested NotificationKind = "booking_requested"
	NotificationBookingConfirmed NotificationKind = "booking_confirmed"
	NotificationBookingCancelled NotificationKind = "booking_cancelled"
	NotificationPaymentRequired  NotificationKind = "payment_required"
	NotificationPaymentReceived  NotificationKind = "payment_received"
	NotificationBookingCompleted NotificationKind = "booking_completed"
)
