// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAccessDenied     = "auth.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Bookings
	KeyBookingCreated           = "booking.created"
	KeyBookingNotFound          = "booking.not_found"
	KeyBookingConflict          = "booking.window_conflict"
	KeyBookingConfirmed         = "booking.confirmed"
	KeyBookingCancelled         = "booking.cancelled"
	KeyBookingCompleted         = "booking.completed"
	KeyBookingInvalidTransition = "booking.invalid_transition"

	// Bikes / partners
	KeyBikeNotFound        = "bike.not_found"
	KeyBikeUnavailable     = "bike.unavailable"
	KeyPartnerNotFound     = "partner.not_found"
	KeyPartnerBalanceReady = "partner.balance_ready"

	// Payments
	KeyPaymentRequired      = "payment.required"
	KeyPaymentSuccess       = "payment.success"
	KeyPaymentNotFound      = "payment.not_found"
	KeyPaymentInvalidAmount = "payment.invalid_amount"
	KeyPaymentInvalidState  = "payment.invalid_state"
	KeyPaymentGatewayError  = "payment.gateway_error"
	KeyPaymentSessionOpened = "payment.session_opened"
	KeyPaymentAlreadyPaid   = "payment.already_paid"
)
