package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/services"
)

type MissingHandlerError struct{ JobType string }

func (e *MissingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

// Executor runs claimed jobs through the registry. Both the polling worker
// and the Temporal activity go through it.
type Executor struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Repo     repos.JobRunRepo
	Registry *Registry
	Notify   services.JobNotifier
}

// Execute runs job, which must already be marked running. A panic or a
// returned error fails the run; a handler that returns nil without settling
// the run is marked succeeded.
func (e *Executor) Execute(ctx context.Context, job *types.JobRun) *Context {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "job.run",
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", job.JobType),
		attribute.Int("job.attempts", job.Attempts),
	)
	jc := NewContext(ctx, e.DB, job, e.Repo, e.Notify)

	var runErr error
	h, ok := e.Registry.Get(job.JobType)
	if !ok {
		e.Log.Warn("No handler registered for job_type", "job_type", job.JobType, "job_id", job.ID)
		runErr = &MissingHandlerError{JobType: job.JobType}
		jc.Fail("dispatch", runErr)
	} else {
		returnedNil := false
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.Log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", r)
					runErr = fmt.Errorf("panic: %v", r)
					jc.Fail("panic", fmt.Errorf("panic: unexpected error"))
				}
			}()
			if err := h.Run(jc); err != nil {
				runErr = err
				jc.Fail("run", err)
				return
			}
			returnedNil = true
		}()
		if returnedNil && jc.Job.Status == types.JobStatusRunning {
			e.Log.Warn("Job handler returned nil without terminal status; marking succeeded", "job_id", job.ID, "job_type", job.JobType, "stage", job.Stage)
			stage := strings.TrimSpace(jc.Job.Stage)
			if stage == "" || stage == "queued" {
				stage = "done"
			}
			var result any
			if len(jc.Job.Result) > 0 && string(jc.Job.Result) != "null" {
				result = json.RawMessage(jc.Job.Result)
			}
			jc.Succeed(stage, result)
		}
	}

	if runErr == nil && jc.Job.Status == types.JobStatusFailed {
		runErr = errors.New(jc.Job.Error)
	}
	observability.EndSpan(span, runErr)
	observability.Current().ObserveActivity("job_run", job.JobType, jc.Job.Status, time.Since(start))
	return jc
}
