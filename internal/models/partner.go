// internal/models/partner.go
package models

import (
	"github.com/google/uuid"
)

// Partner is a rental location that owns bikes and/or hands them over to
// renters. Catalog CRUD is external; the engine reads partners for booking
// admission and writes their earnings into the transaction ledger.
type Partner struct {
	BaseModel
	UserID      uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	CompanyName string        `json:"company_name" gorm:"size:255;not null"`
	Phone       string        `json:"phone" gorm:"size:30"`
	Address     string        `json:"address" gorm:"type:text"`
	Status      PartnerStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	User         User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Bikes        []Bike        `json:"bikes,omitempty" gorm:"foreignKey:OwnerPartnerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:PartnerID"`
}
