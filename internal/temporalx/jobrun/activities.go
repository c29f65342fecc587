package jobrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	jobrt "github.com/yungbote/anything-backend/internal/jobs/runtime"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

type Activities struct {
	Exec *jobrt.Executor
}

func (a *Activities) repo() repos.JobRunRepo { return a.Exec.Repo }
func (a *Activities) db() *gorm.DB           { return a.Exec.DB }

// Tick runs the job once. A job that already succeeded is reported as is;
// anything else (queued, failed from an earlier workflow attempt, or running
// after a lost activity) is claimed and executed again.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Exec == nil || a.Exec.DB == nil || a.Exec.Repo == nil || a.Exec.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}

	parsedJobID, err := uuid.Parse(res.JobID)
	if err != nil || parsedJobID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id")
	}

	dbc := dbctx.Context{Ctx: ctx, Tx: a.db()}
	job, err := a.repo().GetByID(dbc, parsedJobID)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job not found")
	}
	if job.Status == types.JobStatusSucceeded {
		return fill(res, job), nil
	}

	now := time.Now().UTC()
	ok, err := a.repo().UpdateFieldsUnlessStatus(dbc, parsedJobID, []string{types.JobStatusSucceeded}, map[string]interface{}{
		"status":       types.JobStatusRunning,
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return res, err
	}
	if !ok {
		// Succeeded between the read and the claim.
		job.Status = types.JobStatusSucceeded
		return fill(res, job), nil
	}
	job.Status = types.JobStatusRunning
	job.Attempts++
	job.LockedAt = &now
	job.HeartbeatAt = &now
	job.UpdatedAt = now

	stopHB := a.startHeartbeat(ctx, parsedJobID)
	defer stopHB()

	jc := a.Exec.Execute(ctx, job)
	return fill(res, jc.Job), nil
}

func fill(res TickResult, job *types.JobRun) TickResult {
	res.Status = job.Status
	res.Stage = job.Stage
	res.Progress = job.Progress
	res.Message = job.Message
	res.Error = job.Error
	res.Attempts = job.Attempts
	return res
}

func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()

		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				_ = a.repo().Heartbeat(dbctx.Context{Ctx: ctx, Tx: a.db()}, jobID)
			}
		}
	}()
	return func() { close(done) }
}
