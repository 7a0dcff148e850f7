package handler

import (
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/botapi"

	"github.com/gin-gonic/gin"
)

// ExchangeHandler handles exchange credential endpoints
type ExchangeHandler struct {
	exchangeService *service.ExchangeService
}

func NewExchangeHandler(exchangeService *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeService: exchangeService}
}

// List handles GET /api/v1/exchange/accounts
func (h *ExchangeHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	accounts, err := h.exchangeService.List(c.Request.Context(), p)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, accounts)
}

// Add handles POST /api/v1/exchange/accounts
func (h *ExchangeHandler) Add(c *gin.Context) {
	var req botapi.AddExchangeAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	p, ok := principal(c)
	if !ok {
		return
	}

	account, err := h.exchangeService.Add(c.Request.Context(), p, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, account, "Exchange account added successfully!")
}

// Delete handles DELETE /api/v1/exchange/accounts/:id?confirm=true
func (h *ExchangeHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.exchangeService.Delete(c.Request.Context(), p, c.Param("id"), confirmed(c)); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, nil, "Exchange account deleted successfully")
}

// Test handles POST /api/v1/exchange/accounts/:id/test
func (h *ExchangeHandler) Test(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	result, err := h.exchangeService.Test(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, result)
}
