package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
	"github.com/yungbote/anything-backend/internal/platform/apierr"
	"github.com/yungbote/anything-backend/internal/platform/ctxutil"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) JobCreated(uuid.UUID, *types.JobRun) { n.add(JobEventCreated) }
func (n *recordingNotifier) JobProgress(uuid.UUID, *types.JobRun, string, int, string) {
	n.add(JobEventProgress)
}
func (n *recordingNotifier) JobFailed(uuid.UUID, *types.JobRun, string, string) { n.add(JobEventFailed) }
func (n *recordingNotifier) JobDone(uuid.UUID, *types.JobRun)                   { n.add(JobEventDone) }

type harness struct {
	db     *gorm.DB
	ctx    context.Context
	users  repos.UserRepo
	orgs   repos.OrganizationRepo
	jobs   repos.JobRunRepo
	notify *recordingNotifier
	ledger TokenLedger
	apps   AppService
	gen    GenerationService
	data   DataStoreService
	jobSvc JobService
	user   UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{db: db, ctx: context.Background(), notify: &recordingNotifier{}}
	h.users = repos.NewUserRepo(db, log)
	h.orgs = repos.NewOrganizationRepo(db, log)
	h.jobs = repos.NewJobRunRepo(db, log)
	appRepo := repos.NewAppRepo(db, log)
	pageRepo := repos.NewPageRepo(db, log)
	queryRepo := repos.NewContextQueryRepo(db, log)
	dataRepo := repos.NewDataStoreRepo(db, log)
	reqRepo := repos.NewGenerationRequestRepo(db, log)
	updRepo := repos.NewUpdateRequestRepo(db, log)

	h.ledger = NewTokenLedger(db, log, h.users, DefaultTokenCostConfig())
	h.apps = NewAppService(db, log, h.users, h.orgs, appRepo, pageRepo, queryRepo, repos.NewPermissionRepo(db, log), dataRepo, reqRepo, updRepo)
	h.jobSvc = NewJobService(db, log, h.jobs, h.notify, nil, "")
	h.gen = NewGenerationService(db, log, h.apps, h.ledger, h.jobSvc, reqRepo, updRepo)
	h.data = NewDataStoreService(db, log, h.apps, dataRepo, pageRepo, queryRepo)
	h.user = NewUserService(db, log, h.users, h.ledger)
	return h
}

func (h *harness) as(userID uuid.UUID) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.WithRequestData(h.ctx, &ctxutil.RequestData{UserID: userID})}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	status, _ := apierr.StatusCode(err, http.StatusInternalServerError)
	return status
}

func TestTokenLedgerCostAndDeduct(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 250)
	dbc := dbctx.Context{Ctx: h.ctx}

	assert.EqualValues(t, 100, h.ledger.Cost("build me a todo app"))
	long := ""
	for i := 0; i < 1000; i++ {
		long += "word "
	}
	assert.EqualValues(t, 200, h.ledger.Cost(long))
	for i := 0; i < 20000; i++ {
		long += "word "
	}
	assert.EqualValues(t, 2000, h.ledger.Cost(long))

	ok, err := h.ledger.HasSufficientBalance(dbc, u.ID, 250)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.ledger.Deduct(dbc, u.ID, 200))
	err = h.ledger.Deduct(dbc, u.ID, 100)
	var ibe *InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.EqualValues(t, 100, ibe.Required)
	assert.EqualValues(t, 50, ibe.Balance)

	bal, err := h.ledger.Balance(dbc, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 50, bal)

	require.NoError(t, h.ledger.Credit(dbc, u.ID, 25))
	bal, err = h.ledger.Balance(dbc, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 75, bal)
	assert.Error(t, h.ledger.Credit(dbc, u.ID, 0))
}

func TestResolveOrganizationCreatesDefaultOnce(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 0)

	o1, err := h.apps.ResolveOrganization(h.as(u.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, "Test User's Organization", o1.Name)

	o2, err := h.apps.ResolveOrganization(h.as(u.ID), nil)
	require.NoError(t, err)
	assert.Equal(t, o1.ID, o2.ID)

	m, err := h.orgs.GetMember(dbctx.Context{Ctx: h.ctx}, o1.ID, u.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, types.RoleAdmin, m.Role)

	stranger := testutil.SeedUser(t, h.ctx, h.db, 0)
	_, err = h.apps.ResolveOrganization(h.as(stranger.ID), &o1.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = h.apps.ResolveOrganization(dbctx.Context{Ctx: h.ctx}, nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestSubmitGenerationEnqueuesJob(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 500)

	req, job, err := h.gen.Submit(h.as(u.ID), "  a contact list  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "a contact list", req.Content)
	assert.Equal(t, types.RequestPending, req.Status)
	assert.Equal(t, JobTypeAppGenerate, job.JobType)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	require.NotNil(t, job.EntityID)
	assert.Equal(t, req.ID, *job.EntityID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, req.ID.String(), payload["request_id"])

	stored, err := h.jobs.GetByID(dbctx.Context{Ctx: h.ctx}, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{JobEventCreated}, h.notify.events)

	got, err := h.gen.GetRequest(h.as(u.ID), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	other := testutil.SeedUser(t, h.ctx, h.db, 0)
	_, err = h.gen.GetRequest(h.as(other.ID), req.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	j, err := h.jobSvc.GetByIDForRequestUser(h.as(other.ID), job.ID)
	assert.Nil(t, j)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	j, err = h.jobSvc.GetByIDForRequestUser(h.as(u.ID), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, j.ID)

	latest, err := h.jobSvc.GetLatestForEntityForRequestUser(h.as(u.ID), EntityGenerationRequest, req.ID, JobTypeAppGenerate)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, job.ID, latest.ID)
}

func TestSubmitGenerationCarriesTraceIDs(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 500)
	dbc := h.as(u.ID)
	dbc.Ctx = ctxutil.WithTraceData(dbc.Ctx, &ctxutil.TraceData{TraceID: "trace-1", RequestID: "http-1"})

	req, job, err := h.gen.Submit(dbc, "a todo list", nil)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, req.ID.String(), payload["request_id"])
	assert.Equal(t, "trace-1", payload[ctxutil.PayloadTraceID])
	assert.Equal(t, "http-1", payload[ctxutil.PayloadHTTPRequestID])
}

func TestSubmitGenerationValidation(t *testing.T) {
	h := newHarness(t)
	poor := testutil.SeedUser(t, h.ctx, h.db, 10)

	_, _, err := h.gen.Submit(h.as(poor.ID), "   ", nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, _, err = h.gen.Submit(h.as(poor.ID), "a contact list", nil)
	assert.Equal(t, http.StatusPaymentRequired, statusOf(t, err))
	var ibe *InsufficientBalanceError
	assert.True(t, errors.As(err, &ibe))
}

func TestSubmitUpdateRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	admin := testutil.SeedUser(t, h.ctx, h.db, 500)
	viewer := testutil.SeedUser(t, h.ctx, h.db, 500)
	o := testutil.SeedOrganization(t, h.ctx, h.db, admin.ID)
	testutil.SeedMember(t, h.ctx, h.db, o.ID, viewer.ID, types.RoleViewer)
	req := testutil.SeedGenerationRequest(t, h.ctx, h.db, o.ID, admin.ID, "contacts")
	app := testutil.SeedApp(t, h.ctx, h.db, o.ID, req.ID, "Contacts")

	_, _, err := h.gen.SubmitUpdate(h.as(viewer.ID), app.ID, "add birthdays")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = h.apps.GetAppDetail(h.as(viewer.ID), app.ID)
	require.NoError(t, err)

	upd, job, err := h.gen.SubmitUpdate(h.as(admin.ID), app.ID, "add birthdays")
	require.NoError(t, err)
	assert.Equal(t, req.ID, upd.GenerationRequestID)
	assert.Equal(t, JobTypeAppUpdate, job.JobType)

	got, err := h.gen.GetUpdateRequest(h.as(admin.ID), upd.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestPending, got.Status)

	_, _, err = h.gen.SubmitUpdate(h.as(admin.ID), uuid.New(), "x")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestListAppsAndDetail(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 0)
	o := testutil.SeedOrganization(t, h.ctx, h.db, u.ID)
	req := testutil.SeedGenerationRequest(t, h.ctx, h.db, o.ID, u.ID, "contacts")
	app := testutil.SeedApp(t, h.ctx, h.db, o.ID, req.ID, "Contacts")
	home := testutil.SeedPage(t, h.ctx, h.db, app.ID, "home", 0)
	testutil.SeedPage(t, h.ctx, h.db, app.ID, "about", 1)
	testutil.SeedDataEntry(t, h.ctx, h.db, app.ID, "contacts", "alice", types.ValueStr, "Alice")
	seedQuery(t, h, home.ID, "total", querydsl.Query{Kind: querydsl.KindCount, Table: "contacts"})

	list, err := h.apps.ListApps(h.as(u.ID))
	require.NoError(t, err)
	require.Len(t, list, 1)

	other := testutil.SeedUser(t, h.ctx, h.db, 0)
	list, err = h.apps.ListApps(h.as(other.ID))
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = h.apps.GetAppDetail(h.as(other.ID), app.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	d, err := h.apps.GetAppDetail(h.as(u.ID), app.ID)
	require.NoError(t, err)
	require.Len(t, d.Pages, 2)
	assert.Equal(t, "home", d.Pages[0].Slug)
	require.Len(t, d.Pages[0].Queries, 1)
	assert.Equal(t, "total", d.Pages[0].Queries[0].Key)
	assert.Len(t, d.DataKeys, 1)
	require.NotNil(t, d.Generation)
	assert.Equal(t, req.ID, d.Generation.ID)
}

func seedQuery(t *testing.T, h *harness, pageID uuid.UUID, key string, q querydsl.Query) {
	t.Helper()
	q.Normalize()
	cq := &types.ContextQuery{
		ID:         uuid.New(),
		PageID:     pageID,
		Key:        key,
		QueryType:  types.QueryType(q.Kind),
		Expression: datatypes.JSON(q.JSON()),
	}
	require.NoError(t, h.db.WithContext(h.ctx).Create(cq).Error)
}

func strPtr(s string) *string { return &s }

func TestDataStoreCRUD(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 0)
	o := testutil.SeedOrganization(t, h.ctx, h.db, u.ID)
	req := testutil.SeedGenerationRequest(t, h.ctx, h.db, o.ID, u.ID, "contacts")
	app := testutil.SeedApp(t, h.ctx, h.db, o.ID, req.ID, "Contacts")
	dbc := h.as(u.ID)

	_, err := h.data.Create(dbc, app.ID, DataInput{Key: strPtr("age")})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = h.data.Create(dbc, app.ID, DataInput{Key: strPtr("age"), Value: json.RawMessage(`"old"`), ValueType: strPtr("int")})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	age, err := h.data.Create(dbc, app.ID, DataInput{Key: strPtr("age"), Value: json.RawMessage(`42`), ValueType: strPtr("int")})
	require.NoError(t, err)
	assert.Equal(t, int64(42), age.Value)
	assert.Equal(t, "default", age.Table)

	tags, err := h.data.Create(dbc, app.ID, DataInput{Key: strPtr("tags"), Value: json.RawMessage(`["a", "b"]`), ValueType: strPtr("json")})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, tags.Value)

	_, err = h.data.Create(dbc, app.ID, DataInput{Key: strPtr("age"), Value: json.RawMessage(`1`), ValueType: strPtr("int")})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = h.data.Update(dbc, app.ID, age.ID, DataInput{ValueType: strPtr("bool")})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	upd, err := h.data.Update(dbc, app.ID, age.ID, DataInput{ValueType: strPtr("float"), Value: json.RawMessage(`42.5`)})
	require.NoError(t, err)
	assert.Equal(t, 42.5, upd.Value)

	_, err = h.data.Update(dbc, app.ID, age.ID, DataInput{Key: strPtr("tags")})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	page, err := h.data.List(dbc, app.ID, repos.DataListParams{SortColumn: "key", PerPage: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "age", page.Items[0].Key)

	_, err = h.data.List(dbc, app.ID, repos.DataListParams{ValueType: "blob"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	require.NoError(t, h.data.Delete(dbc, app.ID, age.ID))
	assert.Equal(t, http.StatusNotFound, statusOf(t, h.data.Delete(dbc, app.ID, age.ID)))
	_, err = h.data.Get(dbc, app.ID, age.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	stranger := testutil.SeedUser(t, h.ctx, h.db, 0)
	_, err = h.data.Get(h.as(stranger.ID), app.ID, tags.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestRunContextQueries(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 0)
	o := testutil.SeedOrganization(t, h.ctx, h.db, u.ID)
	req := testutil.SeedGenerationRequest(t, h.ctx, h.db, o.ID, u.ID, "contacts")
	app := testutil.SeedApp(t, h.ctx, h.db, o.ID, req.ID, "Contacts")
	home := testutil.SeedPage(t, h.ctx, h.db, app.ID, "home", 0)
	testutil.SeedDataEntry(t, h.ctx, h.db, app.ID, "contacts", "alice", types.ValueStr, "Alice")
	testutil.SeedDataEntry(t, h.ctx, h.db, app.ID, "contacts", "bob", types.ValueStr, "Bob")
	testutil.SeedDataEntry(t, h.ctx, h.db, app.ID, "settings", "title", types.ValueStr, "My Contacts")

	seedQuery(t, h, home.ID, "total", querydsl.Query{Kind: querydsl.KindCount, Table: "contacts"})
	seedQuery(t, h, home.ID, "title", querydsl.Query{Kind: querydsl.KindLookup, Table: "settings", Key: "title"})
	dbc := h.as(u.ID)

	v, err := h.data.RunQuery(dbc, app.ID, "home", "total")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	ctxVals, err := h.data.PageContext(dbc, app.ID, "home")
	require.NoError(t, err)
	assert.Equal(t, "My Contacts", ctxVals["title"])
	assert.EqualValues(t, 2, ctxVals["total"])

	_, err = h.data.RunQuery(dbc, app.ID, "home", "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	_, err = h.data.RunQuery(dbc, app.ID, "nope", "total")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestUserTokens(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 321)

	sum, err := h.user.GetTokens(h.as(u.ID))
	require.NoError(t, err)
	assert.EqualValues(t, 321, sum.Balance)
	assert.EqualValues(t, 100, sum.MinRequestCost)

	_, err = h.user.GetMe(h.as(uuid.New()))
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestTokenLedgerConcurrentDeduct(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.ledger.Deduct(dbctx.Context{Ctx: h.ctx}, u.ID, 60)
		}()
	}
	wg.Wait()

	succeeded, refused := 0, 0
	for _, err := range errs {
		var ibe *InsufficientBalanceError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &ibe):
			refused++
			assert.EqualValues(t, 60, ibe.Required)
			assert.EqualValues(t, 40, ibe.Balance)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)

	bal, err := h.ledger.Balance(dbctx.Context{Ctx: h.ctx}, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 40, bal)
}

func TestEnqueueRejectsSecondRunnableJob(t *testing.T) {
	h := newHarness(t)
	u := testutil.SeedUser(t, h.ctx, h.db, 500)

	req, job, err := h.gen.Submit(h.as(u.ID), "a contact list", nil)
	require.NoError(t, err)

	dbc := dbctx.Context{Ctx: h.ctx}
	_, err = h.jobSvc.Enqueue(dbc, u.ID, JobTypeAppGenerate, EntityGenerationRequest, &req.ID, nil)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	require.NoError(t, h.jobs.UpdateFields(dbc, job.ID, map[string]interface{}{"status": types.JobStatusSucceeded}))
	again, err := h.jobSvc.Enqueue(dbc, u.ID, JobTypeAppGenerate, EntityGenerationRequest, &req.ID, nil)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, again.ID)
}

type undispatchableJobs struct {
	JobService
}

func (undispatchableJobs) Dispatch(dbctx.Context, uuid.UUID) error {
	return errors.New("temporal unavailable")
}

func TestSubmitMarksRequestFailedWhenDispatchFails(t *testing.T) {
	h := newHarness(t)
	log := testutil.Logger(t)
	reqRepo := repos.NewGenerationRequestRepo(h.db, log)
	updRepo := repos.NewUpdateRequestRepo(h.db, log)
	gen := NewGenerationService(h.db, log, h.apps, h.ledger, undispatchableJobs{h.jobSvc}, reqRepo, updRepo)
	u := testutil.SeedUser(t, h.ctx, h.db, 500)

	req, job, err := gen.Submit(h.as(u.ID), "a contact list", nil)
	require.Error(t, err)
	require.NotNil(t, req)
	require.NotNil(t, job)
	assert.Equal(t, types.RequestFailed, req.Status)

	stored, err := reqRepo.GetByID(dbctx.Context{Ctx: h.ctx}, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "temporal unavailable")
}
