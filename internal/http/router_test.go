package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	httpH "github.com/yungbote/anything-backend/internal/http/handlers"
	httpMW "github.com/yungbote/anything-backend/internal/http/middleware"
	"github.com/yungbote/anything-backend/internal/services"
)

type apiFixture struct {
	db     *gorm.DB
	engine *gin.Engine
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	users := repos.NewUserRepo(db, log)
	appRepo := repos.NewAppRepo(db, log)
	pageRepo := repos.NewPageRepo(db, log)
	queryRepo := repos.NewContextQueryRepo(db, log)
	dataRepo := repos.NewDataStoreRepo(db, log)
	reqRepo := repos.NewGenerationRequestRepo(db, log)
	updRepo := repos.NewUpdateRequestRepo(db, log)

	ledger := services.NewTokenLedger(db, log, users, services.DefaultTokenCostConfig())
	apps := services.NewAppService(db, log, users, repos.NewOrganizationRepo(db, log), appRepo, pageRepo, queryRepo, repos.NewPermissionRepo(db, log), dataRepo, reqRepo, updRepo)
	jobs := services.NewJobService(db, log, repos.NewJobRunRepo(db, log), services.NewJobNotifier(log, nil), nil, "")
	gen := services.NewGenerationService(db, log, apps, ledger, jobs, reqRepo, updRepo)

	engine := NewRouter(RouterConfig{
		Log:               log,
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, users),
		HealthHandler:     httpH.NewHealthHandler(db),
		GenerationHandler: httpH.NewGenerationHandler(gen, jobs),
		AppHandler:        httpH.NewAppHandler(apps),
		DataHandler:       httpH.NewDataHandler(services.NewDataStoreService(db, log, apps, dataRepo, pageRepo, queryRepo)),
		JobHandler:        httpH.NewJobHandler(jobs),
		UserHandler:       httpH.NewUserHandler(services.NewUserService(db, log, users, ledger)),
	})
	return &apiFixture{db: db, engine: engine}
}

func (f *apiFixture) do(t *testing.T, method, path string, userID uuid.UUID, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set(httpMW.HeaderUserID, userID.String())
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPI(t)
	rec, _ := f.do(t, http.MethodGet, "/healthcheck", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/readyz", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresUser(t *testing.T) {
	f := newAPI(t)
	rec, body := f.do(t, http.MethodGet, "/api/apps", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unauthorized", errObj["code"])
}

func TestGenerateAndPoll(t *testing.T) {
	f := newAPI(t)
	u := testutil.SeedUser(t, context.Background(), f.db, 500)

	rec, body := f.do(t, http.MethodPost, "/api/apps/generate", u.ID, map[string]any{"prompt": "a habit tracker"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	reqID, _ := body["request_id"].(string)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, reqID)
	require.NotEmpty(t, jobID)
	assert.Equal(t, string(types.RequestPending), body["status"])

	rec, body = f.do(t, http.MethodGet, "/api/generation-requests/"+reqID, u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gr := body["generation_request"].(map[string]any)
	assert.Equal(t, reqID, gr["id"])
	job := body["job"].(map[string]any)
	assert.Equal(t, jobID, job["id"])

	rec, _ = f.do(t, http.MethodGet, "/api/jobs/"+jobID, u.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := testutil.SeedUser(t, context.Background(), f.db, 500)
	rec, _ = f.do(t, http.MethodGet, "/api/jobs/"+jobID, other.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/generation-requests/"+reqID, other.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	f := newAPI(t)
	poor := testutil.SeedUser(t, context.Background(), f.db, 1)

	rec, _ := f.do(t, http.MethodPost, "/api/apps/generate", poor.ID, map[string]any{"prompt": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, body := f.do(t, http.MethodPost, "/api/apps/generate", poor.ID, map[string]any{"prompt": "a todo app"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_tokens", body["error"].(map[string]any)["code"])
	rec, _ = f.do(t, http.MethodGet, "/api/jobs/not-a-uuid", poor.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataStoreEndpoints(t *testing.T) {
	f := newAPI(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, f.db, 0)
	org := testutil.SeedOrganization(t, ctx, f.db, u.ID)
	gr := testutil.SeedGenerationRequest(t, ctx, f.db, org.ID, u.ID, "contacts")
	app := testutil.SeedApp(t, ctx, f.db, org.ID, gr.ID, "Contacts")
	base := "/api/apps/" + app.ID.String() + "/data"

	rec, body := f.do(t, http.MethodPost, base, u.ID, map[string]any{"key": "count", "value": 3, "value_type": "int"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	itemID := body["id"].(string)
	assert.EqualValues(t, 3, body["value"])

	rec, _ = f.do(t, http.MethodPost, base, u.ID, map[string]any{"key": "count", "value": 4, "value_type": "int"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = f.do(t, http.MethodPatch, base+"/"+itemID, u.ID, map[string]any{"value": 7})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 7, body["value"])
	assert.Equal(t, "count", body["key"])

	rec, body = f.do(t, http.MethodGet, base+"?per_page=5&filter=int", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["per_page"])

	stranger := testutil.SeedUser(t, ctx, f.db, 0)
	rec, _ = f.do(t, http.MethodGet, base, stranger.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, base+"/"+itemID, u.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = f.do(t, http.MethodGet, base+"/"+itemID, u.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserTokensEndpoint(t *testing.T) {
	f := newAPI(t)
	u := testutil.SeedUser(t, context.Background(), f.db, 321)
	rec, body := f.do(t, http.MethodGet, "/api/users/me/tokens", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 321, body["token_balance"])
	assert.EqualValues(t, 100, body["min_request_cost"])
}
