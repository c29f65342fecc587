package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

func newJob(owner uuid.UUID, jobType, status string, createdAt time.Time) *types.JobRun {
	entityID := uuid.New()
	return &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: owner,
		JobType:     jobType,
		EntityType:  "generation_request",
		EntityID:    &entityID,
		Status:      status,
		Stage:       status,
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	owner := uuid.New()

	queued := newJob(owner, "app_generate", types.JobStatusQueued, now.Add(-3*time.Hour))
	failed := newJob(owner, "app_generate", types.JobStatusFailed, now.Add(-2*time.Hour))
	failed.LastErrorAt = ptrTime(now.Add(-2 * time.Hour))
	staleRunning := newJob(owner, "app_generate", types.JobStatusRunning, now.Add(-1*time.Hour))
	staleRunning.HeartbeatAt = ptrTime(now.Add(-10 * time.Hour))
	exhausted := newJob(owner, "app_generate", types.JobStatusFailed, now.Add(-4*time.Hour))
	exhausted.Attempts = 3
	exhausted.LastErrorAt = ptrTime(now.Add(-4 * time.Hour))

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning, exhausted})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("Create: expected 4, got %d", len(created))
	}

	if got, err := repo.GetByID(dbc, queued.ID); err != nil || got == nil || got.ID != queued.ID {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got, err := repo.GetByID(dbc, uuid.New()); err != nil || got != nil {
		t.Fatalf("GetByID missing: err=%v got=%v", err, got)
	}

	entityID := uuid.New()
	older := newJob(owner, "app_update", types.JobStatusSucceeded, now.Add(-5*time.Hour))
	older.EntityType, older.EntityID = "app", &entityID
	newer := newJob(owner, "app_update", types.JobStatusSucceeded, now.Add(-4*time.Hour))
	newer.EntityType, newer.EntityID = "app", &entityID
	if _, err := repo.Create(dbc, []*types.JobRun{older, newer}); err != nil {
		t.Fatalf("seed latest: %v", err)
	}
	latest, err := repo.GetLatestByEntity(dbc, "app", entityID, "app_update")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: expected %v got %v", newer.ID, latest)
	}

	// Claims walk the runnable set oldest first and skip exhausted retries.
	for i, want := range []uuid.UUID{queued.ID, failed.ID, staleRunning.ID} {
		claim, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claim == nil || claim.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, want, claim)
		}
		if claim.Status != types.JobStatusRunning || claim.HeartbeatAt == nil {
			t.Fatalf("ClaimNextRunnable #%d: not marked running: %+v", i+1, claim)
		}
	}
	claim, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #4: %v", err)
	}
	if claim != nil {
		t.Fatalf("ClaimNextRunnable #4: expected nil, got %v", claim)
	}

	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": types.JobStatusSucceeded, "stage": "done"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{types.JobStatusSucceeded}, map[string]interface{}{"status": types.JobStatusFailed})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: terminal job was overwritten")
	}
	got, _ := repo.GetByID(dbc, queued.ID)
	if got.Status != types.JobStatusSucceeded || got.Stage != "done" {
		t.Fatalf("UpdateFields: got status=%s stage=%s", got.Status, got.Stage)
	}

	exists, err := repo.ExistsRunnable(dbc, "app_generate", "", nil)
	if err != nil {
		t.Fatalf("ExistsRunnable: %v", err)
	}
	if !exists {
		t.Fatalf("ExistsRunnable: expected true")
	}
	exists, err = repo.ExistsRunnable(dbc, "app_update", "app", &entityID)
	if err != nil {
		t.Fatalf("ExistsRunnable (scoped): %v", err)
	}
	if exists {
		t.Fatalf("ExistsRunnable (scoped): expected false")
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
