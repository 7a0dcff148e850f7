package handler

import (
	"botdeck/backend/internal/notification"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// NotificationHandler exposes the notification queue over HTTP for clients without a socket
type NotificationHandler struct {
	bus *notification.Bus
}

func NewNotificationHandler(bus *notification.Bus) *NotificationHandler {
	return &NotificationHandler{bus: bus}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	util.SendSuccess(c, h.bus.ListFor(p.UserID))
}

// Dismiss handles DELETE /api/v1/notifications/:id. Unknown ids succeed.
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if n, found := h.bus.Get(id); found {
		if n.UserID != "" && n.UserID != p.UserID {
			util.SendError(c, util.ErrNotFound("Notification not found"))
			return
		}
		h.bus.Dismiss(id)
	}

	util.SendSuccessWithMessage(c, nil, "Notification dismissed")
}
