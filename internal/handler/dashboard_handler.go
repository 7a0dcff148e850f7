package handler

import (
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService *service.DashboardService
}

func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	view, err := h.dashboardService.Load(c.Request.Context(), p)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, view)
}
