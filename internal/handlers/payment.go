// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pedalgo/pedalgo-backend/internal/i18n"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /bookings/:id/payments/initial
func (h *PaymentHandler) StartInitialPayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID", nil)
		return
	}

	var req services.StartInitialPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.StartInitialPayment(c.Request.Context(), userID, bookingID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	message := i18n.T(lang, i18n.KeyPaymentSessionOpened)
	if resp.CheckoutURL == "" {
		message = i18n.T(lang, i18n.KeyPaymentSuccess)
	}

	utils.CreatedResponse(c, gin.H{
		"message":      message,
		"payment":      resp.Payment,
		"checkout_url": resp.CheckoutURL,
		"session_id":   resp.SessionID,
		"expires_at":   resp.ExpiresAt,
	})
}

// POST /bookings/:id/payments/remaining
func (h *PaymentHandler) StartRemainingPayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID", nil)
		return
	}

	var req services.StartRemainingPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.StartRemainingPayment(c.Request.Context(), userID, bookingID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	message := i18n.T(lang, i18n.KeyPaymentSessionOpened)
	if resp.CheckoutURL == "" {
		message = i18n.T(lang, i18n.KeyPaymentSuccess)
	}

	utils.CreatedResponse(c, gin.H{
		"message":      message,
		"payment":      resp.Payment,
		"checkout_url": resp.CheckoutURL,
		"session_id":   resp.SessionID,
		"expires_at":   resp.ExpiresAt,
	})
}

// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid payment ID", nil)
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, payment)
}

// GET /payments
func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	payments, total, err := h.paymentService.GetPaymentHistory(c.Request.Context(), userID, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(payments, total, params)
	utils.PaginatedResponse(c, result)
}
