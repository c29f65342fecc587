package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/apierr"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

var errRequestNotFound = errors.New("request not found")

type GenerationService interface {
	// Submit records a PENDING generation request and enqueues the job that
	// runs it.
	Submit(dbc dbctx.Context, content string, orgID *uuid.UUID) (*types.GenerationRequest, *types.JobRun, error)
	GetRequest(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRequest, error)
	// SubmitUpdate records a PENDING update request against appID. Only
	// organization admins may update an app.
	SubmitUpdate(dbc dbctx.Context, appID uuid.UUID, content string) (*types.UpdateRequest, *types.JobRun, error)
	GetUpdateRequest(dbc dbctx.Context, id uuid.UUID) (*types.UpdateRequest, error)
}

type generationService struct {
	db       *gorm.DB
	log      *logger.Logger
	apps     AppService
	ledger   TokenLedger
	jobs     JobService
	requests repos.GenerationRequestRepo
	updates  repos.UpdateRequestRepo
}

func NewGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	apps AppService,
	ledger TokenLedger,
	jobs JobService,
	requests repos.GenerationRequestRepo,
	updates repos.UpdateRequestRepo,
) GenerationService {
	return &generationService{
		db:       db,
		log:      baseLog.With("service", "GenerationService"),
		apps:     apps,
		ledger:   ledger,
		jobs:     jobs,
		requests: requests,
		updates:  updates,
	}
}

// precheck refuses early when the balance cannot cover content. The job
// still deducts authoritatively.
func (s *generationService) precheck(dbc dbctx.Context, userID uuid.UUID, content string) error {
	cost := s.ledger.Cost(content)
	ok, err := s.ledger.HasSufficientBalance(dbc, userID, cost)
	if err != nil {
		return apierr.Unauthorized("unknown_user", err)
	}
	if ok {
		return nil
	}
	bal, _ := s.ledger.Balance(dbc, userID)
	return apierr.New(http.StatusPaymentRequired, "insufficient_tokens", &InsufficientBalanceError{UserID: userID, Required: cost, Balance: bal})
}

// failUndispatched records a dispatch failure on a request whose job never
// reached the queue, so pollers do not wait on it forever.
func (s *generationService) failUndispatched(dbc dbctx.Context, update func(dbctx.Context, map[string]interface{}) error, cause error, idKey string, id uuid.UUID) string {
	msg := fmt.Sprintf("could not schedule generation: %v", cause)
	if err := update(dbctx.Context{Ctx: context.WithoutCancel(dbc.Ctx)}, map[string]interface{}{
		"status":        types.RequestFailed,
		"error_message": msg,
	}); err != nil {
		s.log.Error("Failed to mark undispatched request failed", idKey, id, "error", err)
	}
	return msg
}

func (s *generationService) Submit(dbc dbctx.Context, content string, orgID *uuid.UUID) (*types.GenerationRequest, *types.JobRun, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apierr.BadRequest("missing_prompt", fmt.Errorf("prompt is required"))
	}
	o, err := s.apps.ResolveOrganization(dbc, orgID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.precheck(dbc, rd.UserID, content); err != nil {
		return nil, nil, err
	}

	req := &types.GenerationRequest{
		Content:        content,
		OrganizationID: o.ID,
		UserID:         rd.UserID,
		Status:         types.RequestPending,
	}
	var job *types.JobRun
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.requests.Create(inner, req); err != nil {
			return err
		}
		entityID := req.ID
		j, err := s.jobs.Enqueue(inner, rd.UserID, JobTypeAppGenerate, EntityGenerationRequest, &entityID, map[string]any{
			"request_id": req.ID.String(),
		})
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("submit generation: %w", err)
	}
	if err := s.jobs.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		msg := s.failUndispatched(dbc, func(inner dbctx.Context, fields map[string]interface{}) error {
			return s.requests.UpdateFields(inner, req.ID, fields)
		}, err, "request_id", req.ID)
		req.Status = types.RequestFailed
		req.ErrorMessage = &msg
		return req, job, err
	}
	s.log.Info("Generation request submitted", "request_id", req.ID, "job_id", job.ID, "organization_id", o.ID)
	return req, job, nil
}

func (s *generationService) GetRequest(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRequest, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apierr.NotFound("request_not_found", errRequestNotFound)
	}
	if req.UserID != rd.UserID {
		return nil, apierr.Forbidden("forbidden", fmt.Errorf("permission denied"))
	}
	return req, nil
}

func (s *generationService) SubmitUpdate(dbc dbctx.Context, appID uuid.UUID, content string) (*types.UpdateRequest, *types.JobRun, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apierr.BadRequest("missing_prompt", fmt.Errorf("update prompt is required"))
	}
	app, err := s.apps.RequireAppAccess(dbc, appID, types.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}
	if err := s.precheck(dbc, rd.UserID, content); err != nil {
		return nil, nil, err
	}

	upd := &types.UpdateRequest{
		GenerationRequestID: app.GenerationRequestID,
		AppID:               app.ID,
		UserID:              rd.UserID,
		Content:             content,
		Status:              types.RequestPending,
	}
	var job *types.JobRun
	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.updates.Create(inner, upd); err != nil {
			return err
		}
		entityID := upd.ID
		j, err := s.jobs.Enqueue(inner, rd.UserID, JobTypeAppUpdate, EntityUpdateRequest, &entityID, map[string]any{
			"update_request_id": upd.ID.String(),
			"app_id":            app.ID.String(),
		})
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("submit update: %w", err)
	}
	if err := s.jobs.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		msg := s.failUndispatched(dbc, func(inner dbctx.Context, fields map[string]interface{}) error {
			return s.updates.UpdateFields(inner, upd.ID, fields)
		}, err, "update_request_id", upd.ID)
		upd.Status = types.RequestFailed
		upd.ErrorMessage = &msg
		return upd, job, err
	}
	s.log.Info("Update request submitted", "update_request_id", upd.ID, "job_id", job.ID, "app_id", app.ID)
	return upd, job, nil
}

func (s *generationService) GetUpdateRequest(dbc dbctx.Context, id uuid.UUID) (*types.UpdateRequest, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	upd, err := s.updates.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if upd == nil {
		return nil, apierr.NotFound("request_not_found", errRequestNotFound)
	}
	if upd.UserID != rd.UserID {
		return nil, apierr.Forbidden("forbidden", fmt.Errorf("permission denied"))
	}
	return upd, nil
}
