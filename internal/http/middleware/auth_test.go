package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	"github.com/yungbote/anything-backend/internal/platform/ctxutil"
)

func TestRequireUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	u := testutil.SeedUser(t, context.Background(), db, 10)
	org := uuid.New()

	r := gin.New()
	r.Use(AttachRequestContext())
	r.Use(NewAuthMiddleware(log, repos.NewUserRepo(db, log)).RequireUser())
	var seen *ctxutil.RequestData
	r.GET("/api/apps", func(c *gin.Context) {
		seen = ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		userID string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "not-a-uuid", http.StatusUnauthorized},
		{"unknown", uuid.NewString(), http.StatusUnauthorized},
		{"known", u.ID.String(), http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
			if tc.userID != "" {
				req.Header.Set(HeaderUserID, tc.userID)
			}
			req.Header.Set(HeaderOrganizationID, org.String())
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, u.ID, seen.UserID)
	assert.Equal(t, org, seen.OrganizationID)
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var td *ctxutil.TraceData
	r.GET("/healthcheck", func(c *gin.Context) {
		td = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.NotNil(t, td)
	assert.Equal(t, "req-123", td.RequestID)
	assert.NotEmpty(t, td.TraceID)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}
