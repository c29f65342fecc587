package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/services"
)

type AppHandler struct {
	apps services.AppService
}

func NewAppHandler(apps services.AppService) *AppHandler {
	return &AppHandler{apps: apps}
}

// GET /api/apps
func (h *AppHandler) ListApps(c *gin.Context) {
	apps, err := h.apps.ListApps(dbcOf(c))
	if err != nil {
		response.RespondServiceError(c, "list_apps_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"apps": apps})
}

// GET /api/apps/:id
func (h *AppHandler) GetApp(c *gin.Context) {
	appID, ok := uuidParam(c, "id", "invalid_app_id")
	if !ok {
		return
	}
	detail, err := h.apps.GetAppDetail(dbcOf(c), appID)
	if err != nil {
		response.RespondServiceError(c, "get_app_failed", err)
		return
	}
	response.RespondOK(c, detail)
}
