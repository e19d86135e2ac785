// internal/models/bike.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Bike is the shared rentable resource. CurrentPartnerID is the pickup
// location, which may differ from the owning partner when bikes rotate
// between stations. AvailabilityStatus is only ever written by the booking
// state machine (through CatalogService.SetAvailability) so that the
// "at most one non-terminal booking per window" invariant stays in one place.
type Bike struct {
	BaseModel
	OwnerPartnerID   uuid.UUID          `json:"owner_partner_id" gorm:"type:uuid;not null;index"`
	CurrentPartnerID uuid.UUID          `json:"current_partner_id" gorm:"type:uuid;not null;index"`
	Model            string             `json:"model" gorm:"size:255;not null"`
	Description      string             `json:"description" gorm:"type:text"`
	Photos           pq.StringArray     `json:"photos" gorm:"type:text[]"`
	PricePerDay      decimal.Decimal    `json:"price_per_day" gorm:"type:decimal(12,2);not null"`
	PricePerHour     decimal.Decimal    `json:"price_per_hour" gorm:"type:decimal(12,2)"`
	Availability     AvailabilityStatus `json:"availability" gorm:"type:varchar(20);default:'available';index"`

	// Relationships
	OwnerPartner   Partner   `json:"owner_partner,omitempty" gorm:"foreignKey:OwnerPartnerID"`
	CurrentPartner Partner   `json:"current_partner,omitempty" gorm:"foreignKey:CurrentPartnerID"`
	Bookings       []Booking `json:"bookings,omitempty" gorm:"foreignKey:BikeID"`
}
