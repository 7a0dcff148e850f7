package handler

import (
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// principal returns the authenticated caller or writes a 401 and returns false
func principal(c *gin.Context) (model.Principal, bool) {
	v, exists := c.Get(service.PrincipalKey)
	p, ok := v.(*model.Principal)
	if !exists || !ok || p == nil {
		util.SendError(c, util.ErrUnauthorized("User not authenticated"))
		return model.Principal{}, false
	}
	return *p, true
}

// confirmed reads the ?confirm=true flag destructive endpoints require
func confirmed(c *gin.Context) bool {
	switch c.Query("confirm") {
	case "true", "1", "yes":
		return true
	}
	return false
}
