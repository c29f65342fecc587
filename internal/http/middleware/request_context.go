package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/anything-backend/internal/platform/ctxutil"
)

const (
	HeaderUserID         = "X-User-Id"
	HeaderOrganizationID = "X-Organization-Id"
)

// AttachRequestContext copies the caller identity set by the gateway into
// the request context. Malformed ids are ignored.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{
			UserID:         headerUUID(c, HeaderUserID),
			OrganizationID: headerUUID(c, HeaderOrganizationID),
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func headerUUID(c *gin.Context, name string) uuid.UUID {
	v := strings.TrimSpace(c.GetHeader(name))
	if v == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil
	}
	return id
}
