package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

const (
	EntityPages    = "pages"
	EntityDataKeys = "data_keys"
)

type Result struct {
	PagesCreated   int `json:"pages_created"`
	PagesUpdated   int `json:"pages_updated"`
	PagesDeleted   int `json:"pages_deleted"`
	QueriesCreated int `json:"queries_created"`
	QueriesUpdated int `json:"queries_updated"`
	QueriesDeleted int `json:"queries_deleted"`
	KeysCreated    int `json:"keys_created"`
	KeysUpdated    int `json:"keys_updated"`
	KeysDeleted    int `json:"keys_deleted"`
}

func (r *Result) add(o Result) {
	r.PagesCreated += o.PagesCreated
	r.PagesUpdated += o.PagesUpdated
	r.PagesDeleted += o.PagesDeleted
	r.QueriesCreated += o.QueriesCreated
	r.QueriesUpdated += o.QueriesUpdated
	r.QueriesDeleted += o.QueriesDeleted
	r.KeysCreated += o.KeysCreated
	r.KeysUpdated += o.KeysUpdated
	r.KeysDeleted += o.KeysDeleted
}

type PageOptions struct {
	// Prune deletes existing pages absent from the desired list and assigns
	// positions by list order. Without it, untouched pages keep their
	// positions and new pages are appended.
	Prune bool
	// Remove lists slugs to delete.
	Remove []string
}

type Engine struct {
	db      *gorm.DB
	log     *logger.Logger
	apps    repos.AppRepo
	pages   repos.PageRepo
	queries repos.ContextQueryRepo
	data    repos.DataStoreRepo
}

func NewEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	appRepo repos.AppRepo,
	pageRepo repos.PageRepo,
	queryRepo repos.ContextQueryRepo,
	dataRepo repos.DataStoreRepo,
) *Engine {
	return &Engine{
		db:      db,
		log:     baseLog.With("component", "Reconciler"),
		apps:    appRepo,
		pages:   pageRepo,
		queries: queryRepo,
		data:    dataRepo,
	}
}

// Reconcile replaces the app's full page set and data key set. Each entity
// type commits in its own transaction; a failure in the second leaves the
// first applied.
func (e *Engine) Reconcile(ctx context.Context, app *types.App, pages []DesiredPage, keys []DesiredKey) (Result, error) {
	var total Result
	pr, err := e.ReconcilePages(ctx, app, pages, PageOptions{Prune: true})
	total.add(pr)
	if err != nil {
		return total, err
	}
	kr, err := e.ReconcileDataKeys(ctx, app, keys)
	total.add(kr)
	return total, err
}

func (e *Engine) ReconcilePages(ctx context.Context, app *types.App, desired []DesiredPage, opts PageOptions) (Result, error) {
	var res Result
	if app == nil || app.ID == uuid.Nil {
		return res, fmt.Errorf("reconcile pages: missing app")
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := e.pages.ListByApp(dbc, app.ID)
		if err != nil {
			return err
		}
		desired = assignPositions(existing, desired, opts.Prune)
		plan := PlanPages(existing, desired)
		if !opts.Prune {
			plan.Delete = pagesToRemove(existing, desired, opts.Remove)
		}

		if len(plan.Delete) > 0 {
			ids := make([]uuid.UUID, 0, len(plan.Delete))
			for _, p := range plan.Delete {
				ids = append(ids, p.ID)
			}
			if err := e.pages.DeleteByIDs(dbc, ids); err != nil {
				return fmt.Errorf("delete pages: %w", err)
			}
			res.PagesDeleted = len(ids)
		}

		for _, d := range plan.Create {
			page := &types.Page{
				AppID:      app.ID,
				Name:       d.Name,
				Slug:       d.Slug,
				Purpose:    d.Purpose,
				Template:   d.Template,
				Script:     d.Script,
				Stylesheet: d.Stylesheet,
				Position:   d.Position,
			}
			if err := e.pages.Create(dbc, []*types.Page{page}); err != nil {
				return fmt.Errorf("create page %q: %w", d.Slug, err)
			}
			res.PagesCreated++
			qr, err := e.reconcileQueries(dbc, page, nil, d.Queries)
			res.add(qr)
			if err != nil {
				return err
			}
		}

		for _, c := range plan.Update {
			d := c.Desired
			if err := e.pages.UpdateFields(dbc, c.Existing.ID, map[string]interface{}{
				"name":       d.Name,
				"purpose":    d.Purpose,
				"template":   d.Template,
				"script":     d.Script,
				"stylesheet": d.Stylesheet,
				"position":   d.Position,
			}); err != nil {
				return fmt.Errorf("update page %q: %w", d.Slug, err)
			}
			res.PagesUpdated++
		}

		// Queries are diffed for every desired page that survived, changed or not.
		kept := make([]*types.Page, 0, len(plan.Update)+len(plan.Unchanged))
		for _, c := range plan.Update {
			kept = append(kept, c.Existing)
		}
		kept = append(kept, plan.Unchanged...)
		if len(kept) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(kept))
		for _, p := range kept {
			ids = append(ids, p.ID)
		}
		current, err := e.queries.ListByPages(dbc, ids)
		if err != nil {
			return err
		}
		byPage := map[uuid.UUID][]*types.ContextQuery{}
		for _, q := range current {
			byPage[q.PageID] = append(byPage[q.PageID], q)
		}
		bySlug := make(map[string]DesiredPage, len(desired))
		for _, d := range desired {
			if _, ok := bySlug[d.Slug]; !ok {
				bySlug[d.Slug] = d
			}
		}
		for _, p := range kept {
			qr, err := e.reconcileQueries(dbc, p, byPage[p.ID], bySlug[p.Slug].Queries)
			res.add(qr)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, e.fail(ctx, app, EntityPages, err)
	}
	e.log.Debug("Reconciled pages",
		"app_id", app.ID,
		"created", res.PagesCreated,
		"updated", res.PagesUpdated,
		"deleted", res.PagesDeleted,
		"queries_created", res.QueriesCreated,
		"queries_updated", res.QueriesUpdated,
		"queries_deleted", res.QueriesDeleted,
	)
	return res, nil
}

func (e *Engine) reconcileQueries(dbc dbctx.Context, page *types.Page, existing []*types.ContextQuery, desired []DesiredQuery) (Result, error) {
	var res Result
	plan := PlanQueries(existing, resolveOrders(desired))
	if len(plan.Delete) > 0 {
		ids := make([]uuid.UUID, 0, len(plan.Delete))
		for _, q := range plan.Delete {
			ids = append(ids, q.ID)
		}
		if err := e.queries.DeleteByIDs(dbc, ids); err != nil {
			return res, fmt.Errorf("delete queries of page %q: %w", page.Slug, err)
		}
		res.QueriesDeleted = len(ids)
	}
	if len(plan.Create) > 0 {
		rows := make([]*types.ContextQuery, 0, len(plan.Create))
		for _, d := range plan.Create {
			rows = append(rows, &types.ContextQuery{
				PageID:     page.ID,
				Key:        d.Key,
				Order:      orderOf(d),
				QueryType:  types.QueryType(d.Query.Kind),
				Expression: d.Query.JSON(),
			})
		}
		if err := e.queries.Create(dbc, rows); err != nil {
			return res, fmt.Errorf("create queries of page %q: %w", page.Slug, err)
		}
		res.QueriesCreated = len(rows)
	}
	for _, c := range plan.Update {
		if err := e.queries.UpdateFields(dbc, c.Existing.ID, map[string]interface{}{
			"sort_order": orderOf(c.Desired),
			"query_type": string(c.Desired.Query.Kind),
			"expression": datatypes.JSON(c.Desired.Query.JSON()),
		}); err != nil {
			return res, fmt.Errorf("update query %q of page %q: %w", c.Desired.Key, page.Slug, err)
		}
		res.QueriesUpdated++
	}
	return res, nil
}

// ReconcileDataKeys replaces the app's data key set. Values survive per
// CarriedValue.
func (e *Engine) ReconcileDataKeys(ctx context.Context, app *types.App, desired []DesiredKey) (Result, error) {
	var res Result
	if app == nil || app.ID == uuid.Nil {
		return res, fmt.Errorf("reconcile data keys: missing app")
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := e.data.ListByApp(dbc, app.ID)
		if err != nil {
			return err
		}
		plan := PlanDataKeys(existing, normalizeKeys(desired))

		if len(plan.Delete) > 0 {
			ids := make([]uuid.UUID, 0, len(plan.Delete))
			for _, d := range plan.Delete {
				ids = append(ids, d.ID)
			}
			if err := e.data.DeleteByIDs(dbc, ids); err != nil {
				return fmt.Errorf("delete data keys: %w", err)
			}
			res.KeysDeleted = len(ids)
		}
		if len(plan.Create) > 0 {
			rows := make([]*types.DataStoreEntry, 0, len(plan.Create))
			for _, d := range plan.Create {
				rows = append(rows, &types.DataStoreEntry{
					AppID:       app.ID,
					Table:       d.Table,
					Key:         d.Key,
					Value:       "",
					ValueType:   d.ValueType,
					Description: d.Description,
				})
			}
			if err := e.data.Create(dbc, rows); err != nil {
				return fmt.Errorf("create data keys: %w", err)
			}
			res.KeysCreated = len(rows)
		}
		for _, c := range plan.Update {
			ok, err := e.data.UpdateFields(dbc, app.ID, c.Existing.ID, map[string]interface{}{
				"value_type":  string(c.Desired.ValueType),
				"description": c.Desired.Description,
				"value":       CarriedValue(c.Existing, c.Desired.ValueType),
			})
			if err != nil {
				return fmt.Errorf("update data key %s.%s: %w", c.Desired.Table, c.Desired.Key, err)
			}
			if ok {
				res.KeysUpdated++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, e.fail(ctx, app, EntityDataKeys, err)
	}
	e.log.Debug("Reconciled data keys",
		"app_id", app.ID,
		"created", res.KeysCreated,
		"updated", res.KeysUpdated,
		"deleted", res.KeysDeleted,
	)
	return res, nil
}

// fail wraps err and marks the app ERROR. A failure to mark is logged and
// never replaces err.
func (e *Engine) fail(ctx context.Context, app *types.App, entity string, err error) error {
	rerr := &ReconciliationError{AppID: app.ID, Entity: entity, Err: err}
	e.log.Error("Reconciliation failed", "app_id", app.ID, "entity", entity, "error", err)
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := e.apps.SetStatus(dbctx.Context{Ctx: markCtx}, app.ID, types.AppError); serr != nil {
		e.log.Warn("Failed to mark app as errored", "app_id", app.ID, "error", serr)
	} else {
		app.Status = types.AppError
	}
	return rerr
}

func assignPositions(existing []*types.Page, desired []DesiredPage, prune bool) []DesiredPage {
	out := make([]DesiredPage, len(desired))
	copy(out, desired)
	if prune {
		for i := range out {
			out[i].Position = i
		}
		return out
	}
	current := make(map[string]int, len(existing))
	next := 0
	for _, p := range existing {
		current[p.Slug] = p.Position
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	for i := range out {
		if pos, ok := current[out[i].Slug]; ok {
			out[i].Position = pos
			continue
		}
		out[i].Position = next
		current[out[i].Slug] = next
		next++
	}
	return out
}

// pagesToRemove returns existing pages named in remove that are not also
// desired.
func pagesToRemove(existing []*types.Page, desired []DesiredPage, remove []string) []*types.Page {
	if len(remove) == 0 {
		return nil
	}
	want := map[string]bool{}
	for _, s := range remove {
		want[s] = true
	}
	for _, d := range desired {
		delete(want, d.Slug)
	}
	var out []*types.Page
	for _, p := range existing {
		if want[p.Slug] {
			out = append(out, p)
		}
	}
	return out
}
