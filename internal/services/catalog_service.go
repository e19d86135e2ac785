// internal/services/catalog_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pedalgo/pedalgo-backend/internal/apperrors"
	"github.com/pedalgo/pedalgo-backend/internal/models"
)

// BikeCatalog and PartnerDirectory are the narrow collaborator surfaces the
// booking engine consumes. Catalog CRUD itself lives outside this service.
type BikeCatalog interface {
	GetBike(ctx context.Context, id uuid.UUID) (*models.Bike, error)
	// SetAvailability runs against the caller's transaction handle so the
	// availability write commits atomically with the booking transition.
	SetAvailability(db *gorm.DB, bikeID uuid.UUID, status models.AvailabilityStatus) error
}

type PartnerDirectory interface {
	GetPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error)
}

type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) GetBike(ctx context.Context, id uuid.UUID) (*models.Bike, error) {
	var bike models.Bike
	if err := s.db.WithContext(ctx).First(&bike, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("bike")
		}
		return nil, err
	}
	return &bike, nil
}

func (s *CatalogService) SetAvailability(db *gorm.DB, bikeID uuid.UUID, status models.AvailabilityStatus) error {
	result := db.Model(&models.Bike{}).
		Where("id = ?", bikeID).
		Update("availability", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("bike")
	}
	return nil
}

func (s *CatalogService) GetPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := s.db.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("partner")
		}
		return nil, err
	}
	return &partner, nil
}
