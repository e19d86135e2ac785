// internal/models/payment.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdditionalCharge is one ad hoc item charged on top of the remaining leg
// (damage, late return, accessories).
type AdditionalCharge struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// ChargeList is stored as a JSON column, mirroring the JSONB helper.
type ChargeList []AdditionalCharge

func (l ChargeList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *ChargeList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
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

	return json.Unmarshal(bytes, l)
}

// Total sums the itemized charges.
func (l ChargeList) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range l {
		total = total.Add(c.Amount)
	}
	return total
}

// Payment is one attempted or completed payment leg. ProviderReference holds
// the external gateway session id (or a locally generated receipt id for
// cash) and is unique, which makes webhook re-delivery idempotent: the same
// session can never produce two payment rows.
type Payment struct {
	BaseModel
	BookingID         uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;index"`
	PayerID           uuid.UUID       `json:"payer_id" gorm:"type:uuid;not null;index"`
	PayeePartnerID    *uuid.UUID      `json:"payee_partner_id" gorm:"type:uuid;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	BookingTotal      decimal.Decimal `json:"booking_total" gorm:"type:decimal(12,2);not null"`
	LegType           PaymentLegType  `json:"leg_type" gorm:"type:varchar(20);not null;index"`
	RelatedPaymentID  *uuid.UUID      `json:"related_payment_id" gorm:"type:uuid"`
	Method            PaymentMethod   `json:"method" gorm:"type:varchar(10);not null"`
	ProviderReference string          `json:"provider_reference" gorm:"size:255;uniqueIndex;not null"`
	Status            PaymentStatus   `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	AdditionalCharges ChargeList      `json:"additional_charges,omitempty" gorm:"type:jsonb"`
	SessionExpiresAt  *time.Time      `json:"session_expires_at"`
	ProcessedAt       *time.Time      `json:"processed_at"`
	FailureReason     string          `json:"failure_reason,omitempty" gorm:"type:text"`

	// Relationships
	Booking        Booking       `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
	Payer          User          `json:"payer,omitempty" gorm:"foreignKey:PayerID"`
	PayeePartner   *Partner      `json:"payee_partner,omitempty" gorm:"foreignKey:PayeePartnerID"`
	RelatedPayment *Payment      `json:"related_payment,omitempty" gorm:"foreignKey:RelatedPaymentID"`
	Transactions   []Transaction `json:"transactions,omitempty" gorm:"foreignKey:PaymentID"`
}
