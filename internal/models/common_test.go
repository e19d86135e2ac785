// internal/models/common_test.go
package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The model DDL must stay portable: tests run on sqlite, which has no
// server-side uuid function, so ids come from the BeforeCreate hook.
func TestModelsMigrateOnSqlite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&User{},
		&Partner{},
		&Bike{},
		&Booking{},
		&Payment{},
		&Transaction{},
		&Notification{},
		&AuditLog{},
	))

	user := User{
		Username: "hook_assigned_id",
		Email:    "ids@test.example",
		UserType: UserTypeRenter,
		Status:   UserStatusActive,
	}
	require.NoError(t, user.SetPassword("test-password-1!"))
	require.NoError(t, db.Create(&user).Error)
	assert.NotEqual(t, uuid.Nil, user.ID)

	preset := uuid.New()
	kept := User{
		BaseModel: BaseModel{ID: preset},
		Username:  "preset_id",
		Email:     "preset@test.example",
		UserType:  UserTypeRenter,
		Status:    UserStatusActive,
	}
	require.NoError(t, kept.SetPassword("test-password-1!"))
	require.NoError(t, db.Create(&kept).Error)
	assert.Equal(t, preset, kept.ID)
}

func TestBookingStatusIsTerminal(t *testing.T) {
	assert.True(t, BookingStatusCompleted.IsTerminal())
	assert.True(t, BookingStatusCancelled.IsTerminal())
	assert.False(t, BookingStatusRequested.IsTerminal())
	assert.False(t, BookingStatusConfirmed.IsTerminal())
	assert.False(t, BookingStatusActive.IsTerminal())
}
