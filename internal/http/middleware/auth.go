package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/http/response"
	"github.com/yungbote/anything-backend/internal/platform/ctxutil"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type AuthMiddleware struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewAuthMiddleware(log *logger.Logger, users repos.UserRepo) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), users: users}
}

// RequireUser rejects requests without a known caller.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid "+HeaderUserID))
			c.Abort()
			return
		}
		u, err := am.users.GetByID(dbctx.Context{Ctx: c.Request.Context()}, rd.UserID)
		if err != nil {
			am.log.Error("User lookup failed", "user_id", rd.UserID, "error", err)
			response.RespondError(c, http.StatusInternalServerError, "user_lookup_failed", errors.New("internal server error"))
			c.Abort()
			return
		}
		if u == nil {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("unknown user"))
			c.Abort()
			return
		}
		c.Next()
	}
}
