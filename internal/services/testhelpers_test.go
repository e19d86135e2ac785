// internal/services/testhelpers_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/gateway"
	"github.com/pedalgo/pedalgo-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A fresh in-memory database per connection; keep the pool at one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Partner{},
		&models.Bike{},
		&models.Booking{},
		&models.Payment{},
		&models.Transaction{},
		&models.Notification{},
		&models.AuditLog{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			Currency:          "usd",
			SessionTTLMinutes: 30,
			InitialLegPercent: 20.0,
		},
		Settlement: config.SettlementConfig{
			OwnerSharePercent:  70.0,
			PickupSharePercent: 20.0,
		},
		Frontend: config.FrontendConfig{
			BaseURL: "http://localhost:3000",
		},
	}
}

// seqGenerator hands out deterministic booking numbers without Redis.
type seqGenerator struct {
	mtx sync.Mutex
	n   int
}

func (g *seqGenerator) Next(ctx context.Context) (string, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.n++
	return fmt.Sprintf("PG-2026-%06d", g.n), nil
}

// fakeGateway records sessions instead of calling out. Sessions can be
// completed through the same reconciliation path the webhook uses.
type fakeGateway struct {
	mtx      sync.Mutex
	n        int
	sessions []gateway.CreateSessionRequest
	failNext bool
	verify   map[string]gateway.SessionStatus
}

func (g *fakeGateway) CreateSession(ctx context.Context, req gateway.CreateSessionRequest) (*gateway.SessionRef, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if g.failNext {
		g.failNext = false
		return nil, fmt.Errorf("gateway unavailable")
	}
	g.n++
	g.sessions = append(g.sessions, req)
	return &gateway.SessionRef{
		ID:        fmt.Sprintf("cs_test_%03d", g.n),
		URL:       fmt.Sprintf("https://checkout.test/session/%03d", g.n),
		ExpiresAt: req.ExpiresAt,
	}, nil
}

func (g *fakeGateway) VerifySession(ctx context.Context, sessionID string) (gateway.SessionStatus, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if status, ok := g.verify[sessionID]; ok {
		return status, nil
	}
	return gateway.SessionStatusOpen, nil
}

func (g *fakeGateway) setVerifyStatus(sessionID string, status gateway.SessionStatus) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if g.verify == nil {
		g.verify = make(map[string]gateway.SessionStatus)
	}
	g.verify[sessionID] = status
}

func (g *fakeGateway) lastSessionID() string {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return fmt.Sprintf("cs_test_%03d", g.n)
}

// captureSink collects notification events synchronously.
type captureSink struct {
	mtx    sync.Mutex
	events []NotificationEvent
}

func (c *captureSink) Notify(event NotificationEvent) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) byKind(kind models.NotificationKind) []NotificationEvent {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	var out []NotificationEvent
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fixture bundles the persistent actors most tests need: a renter, two
// partners with one user each, and a bike owned by the first partner and
// parked at the second.
type fixture struct {
	db        *gorm.DB
	renter    models.User
	owner     models.Partner
	ownerUsr  models.User
	pickup    models.Partner
	pickupUsr models.User
	bike      models.Bike
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	f := &fixture{db: db}

	f.renter = createUser(t, db, "renter", models.UserTypeRenter)
	f.ownerUsr = createUser(t, db, "owner_station", models.UserTypePartner)
	f.pickupUsr = createUser(t, db, "pickup_station", models.UserTypePartner)
	f.owner = createPartner(t, db, f.ownerUsr.ID, "Owner Station")
	f.pickup = createPartner(t, db, f.pickupUsr.ID, "Pickup Station")
	f.bike = createBike(t, db, f.owner.ID, f.pickup.ID, decimal.NewFromInt(50))

	return f
}

func createUser(t *testing.T, db *gorm.DB, username string, userType models.UserType) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@test.example",
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("test-password-1!"))
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPartner(t *testing.T, db *gorm.DB, userID uuid.UUID, company string) models.Partner {
	t.Helper()
	partner := models.Partner{
		UserID:      userID,
		CompanyName: company,
		Status:      models.PartnerStatusActive,
	}
	require.NoError(t, db.Create(&partner).Error)
	return partner
}

func createBike(t *testing.T, db *gorm.DB, ownerID, currentID uuid.UUID, pricePerDay decimal.Decimal) models.Bike {
	t.Helper()
	bike := models.Bike{
		OwnerPartnerID:   ownerID,
		CurrentPartnerID: currentID,
		Model:            "Test Cruiser",
		PricePerDay:      pricePerDay,
		Availability:     models.AvailabilityAvailable,
	}
	require.NoError(t, db.Create(&bike).Error)
	return bike
}

// newBookingService wires a BookingService over the fixture database with
// deterministic collaborators, returning the sink for assertions.
func newBookingService(db *gorm.DB) (*BookingService, *captureSink) {
	sink := &captureSink{}
	catalog := NewCatalogService(db)
	svc := NewBookingService(db, testConfig(), catalog, catalog, &seqGenerator{}, sink)
	return svc, sink
}

// newPaymentStack wires the full payment path over one database.
func newPaymentStack(db *gorm.DB, cfg *config.Config) (*BookingService, *PaymentService, *SettlementService, *fakeGateway, *captureSink) {
	sink := &captureSink{}
	catalog := NewCatalogService(db)
	bookings := NewBookingService(db, cfg, catalog, catalog, &seqGenerator{}, sink)
	settlement := NewSettlementService(db, NewRevenuePolicy(cfg.Settlement))
	gw := &fakeGateway{}
	payments := NewPaymentService(db, cfg, gw, bookings, settlement, sink)
	return bookings, payments, settlement, gw, sink
}

// bookingWindow returns a clean future window [start, start+days).
func bookingWindow(daysFromNow, days int) (time.Time, time.Time) {
	start := time.Now().AddDate(0, 0, daysFromNow).Truncate(24 * time.Hour)
	return start, start.AddDate(0, 0, days)
}

// createRequestedBooking admits a booking through the real service.
func createRequestedBooking(t *testing.T, svc *BookingService, f *fixture, daysFromNow, days int) *models.Booking {
	t.Helper()
	start, end := bookingWindow(daysFromNow, days)
	booking, err := svc.CreateBooking(context.Background(), f.renter.ID, &CreateBookingRequest{
		BikeID:           f.bike.ID,
		DropoffPartnerID: f.pickup.ID,
		StartDate:        start,
		EndDate:          end,
	})
	require.NoError(t, err)
	return booking
}

// confirmedBooking runs requested -> confirmed as the owner partner.
func confirmedBooking(t *testing.T, svc *BookingService, f *fixture, daysFromNow, days int) *models.Booking {
	t.Helper()
	booking := createRequestedBooking(t, svc, f, daysFromNow, days)
	confirmed, err := svc.ConfirmBooking(context.Background(), f.ownerUsr.ID, booking.ID)
	require.NoError(t, err)
	return confirmed
}
