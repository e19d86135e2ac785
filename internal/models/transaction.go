// internal/models/transaction.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry. Rows are append-only:
// corrections are written as new offsetting entries, never as updates.
// A nil PartnerID attributes the row to the platform itself; PaymentID and
// BookingID are nil for manual adjustments entered outside a distribution.
type Transaction struct {
	BaseModel
	PartnerID   *uuid.UUID          `json:"partner_id" gorm:"type:uuid;index"`
	PaymentID   *uuid.UUID          `json:"payment_id" gorm:"type:uuid;index"`
	BookingID   *uuid.UUID          `json:"booking_id" gorm:"type:uuid;index"`
	Type        TransactionType     `json:"type" gorm:"type:varchar(30);not null;index"`
	Category    TransactionCategory `json:"category" gorm:"type:varchar(20);not null;index"`
	Amount      decimal.Decimal     `json:"amount" gorm:"type:decimal(12,2);not null"`
	Description string              `json:"description" gorm:"type:text"`

	// Relationships
	Partner *Partner `json:"partner,omitempty" gorm:"foreignKey:PartnerID"`
	Payment *Payment `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`
	Booking *Booking `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
}
