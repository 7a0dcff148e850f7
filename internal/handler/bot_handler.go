package handler

import (
	"botdeck/backend/internal/lifecycle"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// BotHandler serves bot views and lifecycle actions
type BotHandler struct {
	botService    *service.BotService
	actionService *service.BotActionService
}

func NewBotHandler(botService *service.BotService, actionService *service.BotActionService) *BotHandler {
	return &BotHandler{
		botService:    botService,
		actionService: actionService,
	}
}

// ListBots handles GET /api/v1/bots
func (h *BotHandler) ListBots(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	bots, err := h.botService.List(c.Request.Context(), p)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, bots)
}

// GetBot handles GET /api/v1/bots/:id
func (h *BotHandler) GetBot(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	detail, err := h.botService.Detail(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, detail)
}

// CreateOptions handles GET /api/v1/bots/new
func (h *BotHandler) CreateOptions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	opts, err := h.botService.CreateOptions(c.Request.Context(), p)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, opts)
}

// CreateBot handles POST /api/v1/bots
func (h *BotHandler) CreateBot(c *gin.Context) {
	var req model.CreateBotInput
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	p, ok := principal(c)
	if !ok {
		return
	}

	bot, err := h.botService.Create(c.Request.Context(), p, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, bot, "Trading bot created successfully!")
}

type actionBody struct {
	Status string `json:"status"`
}

// PerformAction handles POST /api/v1/bots/:id/actions/:action?scope=list|detail
// The optional body {"status": "..."} is the status the caller rendered the controls for.
func (h *BotHandler) PerformAction(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	action, err := lifecycle.ParseAction(c.Param("action"))
	if err != nil {
		util.SendError(c, util.ErrBadRequest(err.Error()))
		return
	}

	var body actionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			util.SendValidationError(c, err.Error())
			return
		}
	}

	result, err := h.actionService.PerformByID(c.Request.Context(), p, service.ActionRequest{
		BotID:       c.Param("id"),
		Action:      action,
		KnownStatus: body.Status,
		Scope:       model.ParseActionScope(c.Query("scope")),
	})
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, result, result.Message)
}

// DeleteBot handles DELETE /api/v1/bots/:id?confirm=true&from=detail
func (h *BotHandler) DeleteBot(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	result, err := h.actionService.Delete(c.Request.Context(), p, c.Param("id"), service.DeleteOptions{
		Confirmed:  confirmed(c),
		FromDetail: c.Query("from") == string(model.ScopeDetail),
	})
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, result, result.Message)
}

// GetControls handles GET /api/v1/bots/:id/controls
func (h *BotHandler) GetControls(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	controls, err := h.actionService.ControlsByID(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, controls)
}

// ListStrategies handles GET /api/v1/strategies
func (h *BotHandler) ListStrategies(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	strategies, err := h.botService.Strategies(c.Request.Context(), p)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, strategies)
}

// GetStrategy handles GET /api/v1/strategies/:id
func (h *BotHandler) GetStrategy(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	strategy, err := h.botService.Strategy(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, gin.H{
		"strategy":         strategy,
		"default_settings": strategy.DefaultSettings(),
	})
}
