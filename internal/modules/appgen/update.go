package appgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/modules/appgen/reconcile"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

func appLockKey(appID uuid.UUID) string { return "app:" + appID.String() }

// Update applies upd to app. The app's lock is held for the whole run, so
// concurrent updates to one app apply one after another.
func (g *Generator) Update(ctx context.Context, app *types.App, upd *types.UpdateRequest) (*types.App, error) {
	if app == nil || upd == nil {
		return nil, fmt.Errorf("missing app or update request")
	}
	if upd.Status != types.RequestPending {
		return nil, ErrRequestNotPending
	}
	var err error
	ctx, span := observability.StartSpan(ctx, "appgen.update",
		attribute.String("app_id", app.ID.String()),
		attribute.String("update_request_id", upd.ID.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	unlock, err := g.locker.Acquire(ctx, appLockKey(app.ID))
	if err != nil {
		return nil, fmt.Errorf("acquire app lock: %w", err)
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			g.log.Warn("Failed to release app lock", "app_id", app.ID, "error", uerr)
		}
	}()

	log := g.log.With("pipeline", pipelineUpdate, "update_request_id", upd.ID, "app_id", app.ID)
	r := g.newRun(pipelineUpdate, log, func(ctx context.Context, delta int64) error {
		return g.updates.AddTokensUsed(dbctx.Context{Ctx: ctx}, upd.ID, delta)
	})

	// The app may have changed while we waited for the lock.
	current, err := g.apps.GetByID(dbctx.Context{Ctx: ctx}, app.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		err = fmt.Errorf("app %s not found", app.ID)
		return nil, err
	}
	*app = *current

	dbc := dbctx.Context{Ctx: ctx}
	if err = g.updates.UpdateFields(dbc, upd.ID, map[string]interface{}{
		"status":        types.RequestProcessing,
		"error_message": nil,
	}); err != nil {
		return nil, fmt.Errorf("mark update processing: %w", err)
	}
	upd.Status = types.RequestProcessing
	if err = g.apps.SetStatus(dbc, app.ID, types.AppUpdating); err != nil {
		return nil, fmt.Errorf("mark app updating: %w", err)
	}
	app.Status = types.AppUpdating

	err = g.update(ctx, r, app, upd)
	upd.TokensUsed += r.total()
	if err != nil {
		g.failRequest(ctx, log, app, err, func(dbc dbctx.Context, fields map[string]interface{}) error {
			return g.updates.UpdateFields(dbc, upd.ID, fields)
		})
		upd.Status = types.RequestFailed
		msg := err.Error()
		upd.ErrorMessage = &msg
		return nil, err
	}

	if err = g.updates.UpdateFields(dbc, upd.ID, map[string]interface{}{"status": types.RequestCompleted}); err != nil {
		return nil, fmt.Errorf("mark update completed: %w", err)
	}
	upd.Status = types.RequestCompleted
	log.Info("App updated", "version", app.Version, "pages", len(r.persisted), "tokens_used", r.total())
	return app, nil
}

func (g *Generator) update(ctx context.Context, r *run, app *types.App, upd *types.UpdateRequest) error {
	dbc := dbctx.Context{Ctx: ctx}
	pages, err := g.pages.ListByApp(dbc, app.ID)
	if err != nil {
		return err
	}
	entries, err := g.data.ListByApp(dbc, app.ID)
	if err != nil {
		return err
	}

	intent, err := r.updateIntent(ctx, map[string]any{
		"summary": bindingsSummary(app, pages, entries),
		"request": upd.Content,
	})
	if err != nil {
		return stageErr(string(prompts.PromptUpdateIntent), "", err)
	}

	tables := tablesFromEntries(entries)
	if intent.HasTables {
		if _, err := g.reconciler.ReconcileDataKeys(ctx, app, desiredKeys(intent.Tables)); err != nil {
			return stageErr("persist_data_keys", "", err)
		}
		tables = intent.Tables
	}

	regenerate := map[string]bool{}
	for _, p := range intent.Pages {
		regenerate[p.Slug] = true
	}
	var remove []string
	for _, slug := range intent.RemovePages {
		if !regenerate[slug] {
			remove = append(remove, slug)
		}
	}
	if len(remove) > 0 {
		if _, err := g.reconciler.ReconcilePages(ctx, app, nil, reconcile.PageOptions{Remove: remove}); err != nil {
			return stageErr("remove_pages", "", err)
		}
	}

	description := app.Description
	if strings.TrimSpace(intent.Description) != "" {
		description = strings.TrimSpace(intent.Description)
	}
	shared := map[string]any{
		"prompt":          upd.Content,
		"app_id":          app.ID.String(),
		"app_name":        app.Name,
		"app_description": description,
		"tables":          tables,
		"pages":           mergePageSpecs(pageSpecs(pages), intent.Pages, remove),
	}
	if err := g.buildPages(ctx, r, app, shared, intent.Pages); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"description": description,
		"version":     app.Version + 1,
		"status":      types.AppActive,
	}
	purpose := strings.TrimSpace(intent.Purpose)
	if purpose != "" && !sameText(purpose, app.Description) {
		css, err := r.appStylesheet(ctx, shared)
		if err != nil {
			return stageErr(string(prompts.PromptAppStylesheet), "", err)
		}
		fields["stylesheet"] = css
		app.Stylesheet = css
	}
	if err := g.apps.UpdateFields(dbc, app.ID, fields); err != nil {
		return stageErr("persist_app", "", err)
	}
	app.Description = description
	app.Version++
	app.Status = types.AppActive
	return nil
}

// mergePageSpecs is the page list after an update: existing pages minus
// removed ones, with regenerated pages replaced in place and new ones
// appended.
func mergePageSpecs(existing, changed []PageSpec, removed []string) []PageSpec {
	gone := map[string]bool{}
	for _, s := range removed {
		gone[s] = true
	}
	bySlug := map[string]PageSpec{}
	for _, p := range changed {
		bySlug[p.Slug] = p
	}
	out := make([]PageSpec, 0, len(existing)+len(changed))
	used := map[string]bool{}
	for _, p := range existing {
		if gone[p.Slug] {
			continue
		}
		if c, ok := bySlug[p.Slug]; ok {
			p = c
		}
		used[p.Slug] = true
		out = append(out, p)
	}
	for _, p := range changed {
		if !used[p.Slug] {
			out = append(out, p)
		}
	}
	return out
}
