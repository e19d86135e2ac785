// internal/handlers/booking.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pedalgo/pedalgo-backend/internal/i18n"
	"github.com/pedalgo/pedalgo-backend/internal/models"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

type BookingHandler struct {
	bookingService *services.BookingService
}

func NewBookingHandler(bookingService *services.BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

// POST /bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	renterID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), renterID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBookingCreated),
		"booking": booking,
	})
}

// GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID", nil)
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, booking)
}

// GET /bookings
func (h *BookingHandler) GetBookings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	var renterID, partnerID *uuid.UUID
	userType, _ := utils.GetUserTypeFromContext(c)
	switch models.UserType(userType) {
	case models.UserTypePartner:
		pid, err := uuid.Parse(c.Query("partner_id"))
		if err != nil {
			utils.BadRequestResponse(c, "partner_id query parameter is required for partner users", nil)
			return
		}
		partnerID = &pid
	case models.UserTypeAdmin:
		// Admins see everything unless they filter.
		if raw := c.Query("renter_id"); raw != "" {
			rid, err := uuid.Parse(raw)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid renter_id", nil)
				return
			}
			renterID = &rid
		}
	default:
		renterID = &userID
	}

	bookings, total, err := h.bookingService.ListBookings(c.Request.Context(), renterID, partnerID, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(bookings, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
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

	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBookingConfirmed),
		"booking": booking,
	})
}

// PUT /bookings/:id/decline
func (h *BookingHandler) DeclineBooking(c *gin.Context) {
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

	booking, err := h.bookingService.DeclineBooking(c.Request.Context(), userID, bookingID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBookingCancelled),
		"booking": booking,
	})
}

// PUT /bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
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

	userType, _ := utils.GetUserTypeFromContext(c)
	isAdmin := models.UserType(userType) == models.UserTypeAdmin

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), userID, isAdmin, bookingID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBookingCancelled),
		"booking": booking,
	})
}

// GET /bikes/:id/availability
func (h *BookingHandler) CheckAvailability(c *gin.Context) {
	bikeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid bike ID", nil)
		return
	}

	var query struct {
		StartDate string `form:"start_date" binding:"required"`
		EndDate   string `form:"end_date" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "start_date and end_date are required", err.Error())
		return
	}

	start, end, err := utils.ParseDateRange(query.StartDate, query.EndDate)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	conflict, err := h.bookingService.CheckConflict(c.Request.Context(), bikeID, start, end)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"bike_id":    bikeID,
		"start_date": start,
		"end_date":   end,
		"available":  !conflict,
	})
}

// currentUserID pulls the authenticated user out of the Gin context and
// writes the error response itself when absent.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}
