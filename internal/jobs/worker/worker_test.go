package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/jobs/pipeline/app_generate"
	"github.com/yungbote/anything-backend/internal/jobs/runtime"
	"github.com/yungbote/anything-backend/internal/modules/appgen"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/services"
)

type fakeRunner struct {
	calls []uuid.UUID
	res   appgen.TaskResult
	err   error
}

func (f *fakeRunner) RunGenerate(_ context.Context, id uuid.UUID) (appgen.TaskResult, error) {
	f.calls = append(f.calls, id)
	return f.res, f.err
}

type funcHandler struct {
	typ string
	run func(jc *runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.typ }
func (h funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }

type fixture struct {
	db     *gorm.DB
	repo   repos.JobRunRepo
	reg    *runtime.Registry
	worker *Worker
	owner  uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{db: db, repo: repos.NewJobRunRepo(db, log), reg: runtime.NewRegistry(), owner: uuid.New()}
	exec := &runtime.Executor{Log: log, DB: db, Repo: f.repo, Registry: f.reg, Notify: services.NewJobNotifier(log, nil)}
	f.worker = NewWorker(log, f.repo, exec, Config{Concurrency: 1, MaxAttempts: 3})
	return f
}

func (f *fixture) enqueue(t *testing.T, jobType string, payload map[string]any) *types.JobRun {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: f.owner,
		JobType:     jobType,
		Status:      types.JobStatusQueued,
		Stage:       "queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = f.repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job})
	require.NoError(t, err)
	return job
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *types.JobRun {
	t.Helper()
	j, err := f.repo.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	require.NoError(t, err)
	require.NotNil(t, j)
	return j
}

func TestWorkerRunsGenerateJob(t *testing.T) {
	f := setup(t)
	appID := uuid.New()
	runner := &fakeRunner{res: appgen.TaskResult{Success: true, AppID: &appID, Message: "App generated successfully"}}
	require.NoError(t, f.reg.Register(app_generate.New(testutil.Logger(t), runner)))

	reqID := uuid.New()
	job := f.enqueue(t, services.JobTypeAppGenerate, map[string]any{"request_id": reqID.String()})

	ctx := context.Background()
	assert.True(t, f.worker.RunOnce(ctx, 1))
	assert.False(t, f.worker.RunOnce(ctx, 1))
	assert.Equal(t, []uuid.UUID{reqID}, runner.calls)

	got := f.reload(t, job.ID)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
	assert.Equal(t, 100, got.Progress)
	var res appgen.TaskResult
	require.NoError(t, json.Unmarshal(got.Result, &res))
	assert.True(t, res.Success)
	require.NotNil(t, res.AppID)
	assert.Equal(t, appID, *res.AppID)
}

func TestWorkerReportsPipelineFailureAsResult(t *testing.T) {
	f := setup(t)
	runner := &fakeRunner{res: appgen.TaskResult{Success: false, Error: "insufficient token balance: required 100, available 5"}}
	require.NoError(t, f.reg.Register(app_generate.New(testutil.Logger(t), runner)))
	job := f.enqueue(t, services.JobTypeAppGenerate, map[string]any{"request_id": uuid.NewString()})

	assert.True(t, f.worker.RunOnce(context.Background(), 1))
	got := f.reload(t, job.ID)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
	var res appgen.TaskResult
	require.NoError(t, json.Unmarshal(got.Result, &res))
	assert.False(t, res.Success)
}

func TestWorkerRetriesInfrastructureErrors(t *testing.T) {
	f := setup(t)
	runner := &fakeRunner{err: errors.New("connection refused")}
	require.NoError(t, f.reg.Register(app_generate.New(testutil.Logger(t), runner)))
	job := f.enqueue(t, services.JobTypeAppGenerate, map[string]any{"request_id": uuid.NewString()})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, f.worker.RunOnce(ctx, 1))
		got := f.reload(t, job.ID)
		assert.Equal(t, types.JobStatusFailed, got.Status)
		assert.Equal(t, "generate", got.Stage)
		assert.Equal(t, "connection refused", got.Error)
		assert.Equal(t, i+1, got.Attempts)
	}
	assert.False(t, f.worker.RunOnce(ctx, 1), "attempts exhausted")
	assert.Len(t, runner.calls, 3)
}

func TestWorkerFailsBadJobs(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.reg.Register(app_generate.New(testutil.Logger(t), &fakeRunner{})))
	require.NoError(t, f.reg.Register(funcHandler{typ: "boom", run: func(*runtime.Context) error { panic("kaboom") }}))
	require.NoError(t, f.reg.Register(funcHandler{typ: "quiet", run: func(jc *runtime.Context) error {
		jc.Progress("working", 50, "half way")
		return nil
	}}))
	ctx := context.Background()

	missing := f.enqueue(t, services.JobTypeAppGenerate, map[string]any{})
	require.True(t, f.worker.RunOnce(ctx, 1))
	got := f.reload(t, missing.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "validate", got.Stage)

	unknown := f.enqueue(t, "nope", nil)
	panicky := f.enqueue(t, "boom", nil)
	quiet := f.enqueue(t, "quiet", nil)
	for f.worker.RunOnce(ctx, 1) {
	}

	assert.Equal(t, "dispatch", f.reload(t, unknown.ID).Stage)
	got = f.reload(t, panicky.ID)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "panic", got.Stage)
	got = f.reload(t, quiet.ID)
	assert.Equal(t, types.JobStatusSucceeded, got.Status)
	assert.Equal(t, "working", got.Stage)
}
