// internal/tests/booking_flow_test.go
package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pedalgo/pedalgo-backend/internal/config"
	"github.com/pedalgo/pedalgo-backend/internal/gateway"
	"github.com/pedalgo/pedalgo-backend/internal/handlers"
	"github.com/pedalgo/pedalgo-backend/internal/middleware"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

// stubGateway satisfies the gateway interface; dev mode keeps it uncalled.
type stubGateway struct{}

func (stubGateway) CreateSession(ctx context.Context, req gateway.CreateSessionRequest) (*gateway.SessionRef, error) {
	return nil, fmt.Errorf("gateway must not be called in dev mode")
}

func (stubGateway) VerifySession(ctx context.Context, sessionID string) (gateway.SessionStatus, error) {
	return gateway.SessionStatusOpen, nil
}

type stubNumbers struct {
	mtx sync.Mutex
	n   int
}

func (g *stubNumbers) Next(ctx context.Context) (string, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.n++
	return fmt.Sprintf("PG-2026-%06d", g.n), nil
}

type dropSink struct{}

func (dropSink) Notify(services.NotificationEvent) {}

// BookingFlowTestSuite drives the whole lifecycle through the HTTP surface
// with dev-mode payments, which settle without a gateway round trip.
type BookingFlowTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine

	renter    models.User
	ownerUsr  models.User
	owner     models.Partner
	pickupUsr models.User
	pickup    models.Partner
	bike      models.Bike

	renterToken string
	ownerToken  string
}

func (s *BookingFlowTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(
		&models.User{},
		&models.Partner{},
		&models.Bike{},
		&models.Booking{},
		&models.Payment{},
		&models.Transaction{},
		&models.Notification{},
	))
	s.db = db

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "flow-test-secret", AccessTokenTTL: 24},
		Payment: config.PaymentConfig{
			Currency:          "usd",
			SessionTTLMinutes: 30,
			InitialLegPercent: 20.0,
			DevMode:           true,
		},
		Settlement: config.SettlementConfig{
			OwnerSharePercent:  70.0,
			PickupSharePercent: 20.0,
		},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	catalog := services.NewCatalogService(db)
	bookings := services.NewBookingService(db, cfg, catalog, catalog, &stubNumbers{}, dropSink{})
	settlement := services.NewSettlementService(db, services.NewRevenuePolicy(cfg.Settlement))
	payments := services.NewPaymentService(db, cfg, stubGateway{}, bookings, settlement, dropSink{})

	bookingHandler := handlers.NewBookingHandler(bookings)
	paymentHandler := handlers.NewPaymentHandler(payments)
	partnerHandler := handlers.NewPartnerHandler(settlement)

	r := gin.New()
	r.Use(middleware.I18nMiddleware())
	v1 := r.Group("/v1")
	{
		protected := v1.Group("/bookings")
		protected.Use(middleware.AuthRequired())
		{
			protected.POST("", bookingHandler.CreateBooking)
			protected.GET("/:id", bookingHandler.GetBooking)
			protected.PUT("/:id/confirm", bookingHandler.ConfirmBooking)
			protected.PUT("/:id/cancel", bookingHandler.CancelBooking)
			protected.POST("/:id/payments/initial", paymentHandler.StartInitialPayment)
			protected.POST("/:id/payments/remaining", paymentHandler.StartRemainingPayment)
		}

		partners := v1.Group("/partners")
		partners.Use(middleware.AuthRequired())
		{
			partners.GET("/:id/balance", partnerHandler.GetBalance)
			partners.GET("/:id/transactions", partnerHandler.GetTransactions)
		}
	}
	s.router = r

	s.seedActors(cfg)
}

func (s *BookingFlowTestSuite) seedActors(cfg *config.Config) {
	s.renter = models.User{Username: "flow_renter", Email: "flow_renter@test.example", UserType: models.UserTypeRenter, Status: models.UserStatusActive}
	s.Require().NoError(s.renter.SetPassword("pw-renter-1!"))
	s.Require().NoError(s.db.Create(&s.renter).Error)

	s.ownerUsr = models.User{Username: "flow_owner", Email: "flow_owner@test.example", UserType: models.UserTypePartner, Status: models.UserStatusActive}
	s.Require().NoError(s.ownerUsr.SetPassword("pw-owner-1!"))
	s.Require().NoError(s.db.Create(&s.ownerUsr).Error)

	s.pickupUsr = models.User{Username: "flow_pickup", Email: "flow_pickup@test.example", UserType: models.UserTypePartner, Status: models.UserStatusActive}
	s.Require().NoError(s.pickupUsr.SetPassword("pw-pickup-1!"))
	s.Require().NoError(s.db.Create(&s.pickupUsr).Error)

	s.owner = models.Partner{UserID: s.ownerUsr.ID, CompanyName: "Flow Owner Station", Status: models.PartnerStatusActive}
	s.Require().NoError(s.db.Create(&s.owner).Error)
	s.pickup = models.Partner{UserID: s.pickupUsr.ID, CompanyName: "Flow Pickup Station", Status: models.PartnerStatusActive}
	s.Require().NoError(s.db.Create(&s.pickup).Error)

	s.bike = models.Bike{
		OwnerPartnerID:   s.owner.ID,
		CurrentPartnerID: s.pickup.ID,
		Model:            "Flow Tester",
		PricePerDay:      decimal.NewFromInt(100),
		Availability:     models.AvailabilityAvailable,
	}
	s.Require().NoError(s.db.Create(&s.bike).Error)

	var err error
	s.renterToken, err = utils.GenerateJWT(s.renter.ID, s.renter.Username, string(s.renter.UserType), cfg.JWT.AccessTokenTTL)
	s.Require().NoError(err)
	s.ownerToken, err = utils.GenerateJWT(s.ownerUsr.ID, s.ownerUsr.Username, string(s.ownerUsr.UserType), cfg.JWT.AccessTokenTTL)
	s.Require().NoError(err)
}

func (s *BookingFlowTestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *BookingFlowTestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func (s *BookingFlowTestSuite) TestFullLifecycle() {
	start := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 5) // 5 days * 100 = 500

	// Renter requests
	w := s.request("POST", "/v1/bookings", s.renterToken, map[string]interface{}{
		"bike_id":            s.bike.ID,
		"dropoff_partner_id": s.pickup.ID,
		"start_date":         start.Format(time.RFC3339),
		"end_date":           end.Format(time.RFC3339),
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	response := s.decode(w)
	s.Require().True(response["success"].(bool))
	data := response["data"].(map[string]interface{})
	booking := data["booking"].(map[string]interface{})
	bookingID := booking["id"].(string)
	s.Equal("requested", booking["status"])

	// Overlapping request bounces with 409
	w = s.request("POST", "/v1/bookings", s.renterToken, map[string]interface{}{
		"bike_id":            s.bike.ID,
		"dropoff_partner_id": s.pickup.ID,
		"start_date":         start.AddDate(0, 0, 1).Format(time.RFC3339),
		"end_date":           end.AddDate(0, 0, 1).Format(time.RFC3339),
	})
	s.Equal(http.StatusConflict, w.Code, w.Body.String())

	// Partner confirms
	w = s.request("PUT", "/v1/bookings/"+bookingID+"/confirm", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// Renter cannot confirm
	w = s.request("PUT", "/v1/bookings/"+bookingID+"/confirm", s.renterToken, nil)
	s.Equal(http.StatusForbidden, w.Code, w.Body.String())

	// Initial payment (20% of 500) activates the booking in dev mode
	w = s.request("POST", "/v1/bookings/"+bookingID+"/payments/initial", s.renterToken, map[string]interface{}{
		"amount": 100,
		"method": "card",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.request("GET", "/v1/bookings/"+bookingID, s.renterToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	data = s.decode(w)["data"].(map[string]interface{})
	s.Equal("active", data["status"])

	// Remaining payment completes the booking
	w = s.request("POST", "/v1/bookings/"+bookingID+"/payments/remaining", s.renterToken, map[string]interface{}{
		"method": "cash",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.request("GET", "/v1/bookings/"+bookingID, s.renterToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	data = s.decode(w)["data"].(map[string]interface{})
	s.Equal("completed", data["status"])

	// Terminal booking rejects further transitions
	w = s.request("PUT", "/v1/bookings/"+bookingID+"/cancel", s.renterToken, nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code, w.Body.String())

	// Owner's ledger carries 70% of both legs: 0.7 * 500 = 350
	w = s.request("GET", "/v1/partners/"+s.owner.ID.String()+"/balance", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	balance := s.decode(w)["data"].(map[string]interface{})["balance"].(map[string]interface{})
	s.Equal("350", balance["total_earnings"])

	// Two legs, two earning rows for the owner
	w = s.request("GET", "/v1/partners/"+s.owner.ID.String()+"/transactions", s.ownerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var listed struct {
		Data []models.Transaction `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &listed))
	s.Len(listed.Data, 2)
}

func (s *BookingFlowTestSuite) TestAuthRequired() {
	w := s.request("POST", "/v1/bookings", "", map[string]interface{}{
		"bike_id": uuid.New(),
	})
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}

func (s *BookingFlowTestSuite) TestUnknownBookingIs404() {
	w := s.request("GET", "/v1/bookings/"+uuid.NewString(), s.renterToken, nil)
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func TestBookingFlowSuite(t *testing.T) {
	suite.Run(t, new(BookingFlowTestSuite))
}
