// internal/handlers/partner.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pedalgo/pedalgo-backend/internal/i18n"
	"github.com/pedalgo/pedalgo-backend/internal/services"
	"github.com/pedalgo/pedalgo-backend/internal/utils"
)

type PartnerHandler struct {
	settlementService *services.SettlementService
}

func NewPartnerHandler(settlementService *services.SettlementService) *PartnerHandler {
	return &PartnerHandler{
		settlementService: settlementService,
	}
}

// GET /partners/:id/balance
func (h *PartnerHandler) GetBalance(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid partner ID", nil)
		return
	}

	balance, err := h.settlementService.GetPartnerBalance(c.Request.Context(), partnerID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPartnerBalanceReady),
		"balance": balance,
	})
}

// GET /partners/:id/earnings
func (h *PartnerHandler) GetEarnings(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid partner ID", nil)
		return
	}

	// Default window is the trailing twelve months.
	now := time.Now()
	from := now.AddDate(-1, 0, 0)
	to := now

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid from date, expected YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid to date, expected YYYY-MM-DD", nil)
			return
		}
		to = parsed
	}

	series, err := h.settlementService.GetPartnerEarningsSeries(c.Request.Context(), partnerID, from, to)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"partner_id": partnerID,
		"from":       from.Format("2006-01-02"),
		"to":         to.Format("2006-01-02"),
		"earnings":   series,
	})
}

// GET /partners/:id/transactions
func (h *PartnerHandler) GetTransactions(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid partner ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)

	transactions, total, err := h.settlementService.ListPartnerTransactions(c.Request.Context(), partnerID, params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/transactions/adjustments
func (h *PartnerHandler) RecordAdjustment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ManualAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	transaction, err := h.settlementService.RecordManualAdjustment(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"transaction": transaction,
	})
}
