// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.User{},
		&models.Partner{},
		&models.Bike{},
		&models.Booking{},
		&models.Payment{},
		&models.Transaction{},
		&models.Notification{},
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_type_status ON users(user_type, status)",

		// Booking indexes: (bike_id, status) serves the conflict scan,
		// the date pair serves window queries
		"CREATE INDEX IF NOT EXISTS idx_bookings_bike_status ON bookings(bike_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_bike_window ON bookings(bike_id, start_date, end_date)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_renter ON bookings(renter_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_owner_partner ON bookings(owner_partner_id)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_pickup_partner ON bookings(pickup_partner_id)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_dropoff_partner ON bookings(dropoff_partner_id)",

		// Payment indexes
		"CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments(booking_id)",
		"CREATE INDEX IF NOT EXISTS idx_payments_payer ON payments(payer_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)",

		// Ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_transactions_partner ON transactions(partner_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_payment ON transactions(payment_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)",

		// Notification and audit indexes
		"CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// SeedInitialData creates the default admin plus a pair of demo partners
// with bikes so a fresh environment can exercise the full booking flow.
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	var adminCount int64
	db.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.User{
			Username: "admin",
			Email:    "admin@pedalgo.example",
			UserType: models.UserTypeAdmin,
			Status:   models.UserStatusActive,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("Default admin user created successfully")
	}

	var partnerCount int64
	db.Model(&models.Partner{}).Count(&partnerCount)
	if partnerCount > 0 {
		return nil
	}

	demoPartners := []struct {
		username string
		email    string
		company  string
		address  string
	}{
		{"station_central", "central@pedalgo.example", "Central Station Rentals", "1 Station Square"},
		{"station_harbor", "harbor@pedalgo.example", "Harbor Bikes", "42 Harbor Road"},
	}

	var partners []models.Partner
	for _, p := range demoPartners {
		user := &models.User{
			Username: p.username,
			Email:    p.email,
			UserType: models.UserTypePartner,
			Status:   models.UserStatusActive,
		}
		if err := user.SetPassword("partner123!@#"); err != nil {
			return fmt.Errorf("failed to set partner password: %w", err)
		}
		if err := db.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create partner user: %w", err)
		}

		partner := models.Partner{
			UserID:      user.ID,
			CompanyName: p.company,
			Address:     p.address,
			Status:      models.PartnerStatusActive,
		}
		if err := db.Create(&partner).Error; err != nil {
			return fmt.Errorf("failed to create partner: %w", err)
		}
		partners = append(partners, partner)
	}

	demoBikes := []models.Bike{
		{
			OwnerPartnerID:   partners[0].ID,
			CurrentPartnerID: partners[0].ID,
			Model:            "City Cruiser 7",
			Description:      "Comfortable 7-speed city bike",
			PricePerDay:      decimal.NewFromInt(25),
			PricePerHour:     decimal.NewFromInt(5),
			Availability:     models.AvailabilityAvailable,
		},
		{
			OwnerPartnerID:   partners[0].ID,
			CurrentPartnerID: partners[1].ID,
			Model:            "Trail Blazer MTB",
			Description:      "Hardtail mountain bike",
			PricePerDay:      decimal.NewFromInt(40),
			PricePerHour:     decimal.NewFromInt(8),
			Availability:     models.AvailabilityAvailable,
		},
		{
			OwnerPartnerID:   partners[1].ID,
			CurrentPartnerID: partners[1].ID,
			Model:            "E-Glide 500",
			Description:      "Electric commuter with 80km range",
			PricePerDay:      decimal.NewFromInt(60),
			PricePerHour:     decimal.NewFromInt(12),
			Availability:     models.AvailabilityAvailable,
		},
	}

	for i := range demoBikes {
		if err := db.Create(&demoBikes[i]).Error; err != nil {
			return fmt.Errorf("failed to create demo bike: %w", err)
		}
	}

	log.Println("Demo partners and bikes created successfully")
	return nil
}

// Database health check
func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
