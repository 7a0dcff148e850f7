package handler

import (
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

type emailSettingsRequest struct {
	EmailNotifications *bool `json:"email_notifications" binding:"required"`
}

// UpdateEmail handles PUT /api/v1/settings/email
func (h *SettingsHandler) UpdateEmail(c *gin.Context) {
	var req emailSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.settingsService.UpdateEmail(c.Request.Context(), p, *req.EmailNotifications); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, gin.H{"email_notifications": *req.EmailNotifications}, "Email settings updated successfully")
}

// TestEmail handles POST /api/v1/settings/email/test
func (h *SettingsHandler) TestEmail(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.settingsService.TestEmail(c.Request.Context(), p); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, nil, "Test email sent successfully! Check your inbox.")
}
