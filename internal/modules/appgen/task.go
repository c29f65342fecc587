package appgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

// TaskResult is what a background task reports for one request.
type TaskResult struct {
	Success bool       `json:"success"`
	AppID   *uuid.UUID `json:"app_id,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func failed(appID *uuid.UUID, err error) TaskResult {
	return TaskResult{Success: false, AppID: appID, Error: err.Error()}
}

// RunGenerate charges the requesting user and runs Generate. Outcomes of
// the pipeline are reported in the TaskResult; a returned error means the
// task could not run and may be retried. Requests that already left
// PENDING are reported as-is and never charged twice.
func (g *Generator) RunGenerate(ctx context.Context, requestID uuid.UUID) (TaskResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	req, err := g.requests.GetByID(dbc, requestID)
	if err != nil {
		return TaskResult{}, fmt.Errorf("load generation request: %w", err)
	}
	if req == nil {
		return TaskResult{Error: fmt.Sprintf("generation request %s not found", requestID)}, nil
	}
	if req.Status != types.RequestPending {
		return settled(req.Status, req.AppID, req.ErrorMessage), nil
	}

	cost := g.ledger.Cost(req.Content)
	if err := g.ledger.Deduct(dbc, req.UserID, cost); err != nil {
		var ib *InsufficientBalanceError
		if !errors.As(err, &ib) {
			return TaskResult{}, err
		}
		msg := err.Error()
		if uerr := g.requests.UpdateFields(dbc, req.ID, map[string]interface{}{
			"status":        types.RequestFailed,
			"error_message": msg,
		}); uerr != nil {
			return TaskResult{}, uerr
		}
		return failed(nil, err), nil
	}
	g.log.Info("Charged generation request", "request_id", req.ID, "user_id", req.UserID, "cost", cost)

	app, err := g.Generate(ctx, req)
	if err != nil {
		if req.Status != types.RequestFailed {
			// Generate stopped before it could record the failure itself.
			if uerr := g.requests.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, req.ID, map[string]interface{}{
				"status":        types.RequestFailed,
				"error_message": err.Error(),
			}); uerr != nil {
				g.log.Error("Failed to mark request failed", "request_id", req.ID, "error", uerr)
			}
		}
		return failed(req.AppID, err), nil
	}
	return TaskResult{Success: true, AppID: &app.ID, Message: "App generated successfully"}, nil
}

// RunUpdate is RunGenerate for update requests.
func (g *Generator) RunUpdate(ctx context.Context, updateID uuid.UUID) (TaskResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	upd, err := g.updates.GetByID(dbc, updateID)
	if err != nil {
		return TaskResult{}, fmt.Errorf("load update request: %w", err)
	}
	if upd == nil {
		return TaskResult{Error: fmt.Sprintf("update request %s not found", updateID)}, nil
	}
	appID := upd.AppID
	if upd.Status != types.RequestPending {
		return settled(upd.Status, &appID, upd.ErrorMessage), nil
	}

	failUpdate := func(cause error) (TaskResult, error) {
		if uerr := g.updates.UpdateFields(dbc, upd.ID, map[string]interface{}{
			"status":        types.RequestFailed,
			"error_message": cause.Error(),
		}); uerr != nil {
			return TaskResult{}, uerr
		}
		return failed(&appID, cause), nil
	}

	app, err := g.apps.GetByID(dbc, upd.AppID)
	if err != nil {
		return TaskResult{}, fmt.Errorf("load app: %w", err)
	}
	if app == nil {
		return failUpdate(fmt.Errorf("app %s not found", upd.AppID))
	}

	cost := g.ledger.Cost(upd.Content)
	if err := g.ledger.Deduct(dbc, upd.UserID, cost); err != nil {
		var ib *InsufficientBalanceError
		if !errors.As(err, &ib) {
			return TaskResult{}, err
		}
		return failUpdate(err)
	}
	g.log.Info("Charged update request", "update_request_id", upd.ID, "user_id", upd.UserID, "cost", cost)

	if _, err := g.Update(ctx, app, upd); err != nil {
		if upd.Status != types.RequestFailed {
			return failUpdate(err)
		}
		return failed(&appID, err), nil
	}
	return TaskResult{Success: true, AppID: &appID, Message: "App updated successfully"}, nil
}

func settled(status types.RequestStatus, appID *uuid.UUID, errMsg *string) TaskResult {
	res := TaskResult{
		Success: status == types.RequestCompleted,
		AppID:   appID,
		Message: "request already " + string(status),
	}
	if errMsg != nil {
		res.Error = *errMsg
	}
	return res
}
