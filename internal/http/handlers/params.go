package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

// uuidParam parses the path parameter name, writing a 400 on failure.
func uuidParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, code, errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func dbcOf(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}
