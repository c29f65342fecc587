// Package appgen turns a natural-language app request into a persisted app
// through a fixed sequence of model calls, and applies update requests to
// existing apps.
package appgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/parse"
	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/modules/appgen/reconcile"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/applock"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/llm"
	"github.com/yungbote/anything-backend/internal/platform/logger"
	"github.com/yungbote/anything-backend/internal/services"
)

type Deps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Prompts     prompts.Source
	LLM         llm.Client
	Ledger      services.TokenLedger
	Locker      applock.Locker
	Requests    repos.GenerationRequestRepo
	Updates     repos.UpdateRequestRepo
	Apps        repos.AppRepo
	Pages       repos.PageRepo
	Queries     repos.ContextQueryRepo
	Permissions repos.PermissionRepo
	Data        repos.DataStoreRepo
}

type Generator struct {
	cfg         Config
	db          *gorm.DB
	log         *logger.Logger
	prompts     prompts.Source
	llm         llm.Client
	ledger      services.TokenLedger
	locker      applock.Locker
	requests    repos.GenerationRequestRepo
	updates     repos.UpdateRequestRepo
	apps        repos.AppRepo
	pages       repos.PageRepo
	permissions repos.PermissionRepo
	data        repos.DataStoreRepo
	reconciler  *reconcile.Engine
}

func NewGenerator(cfg Config, deps Deps) (*Generator, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("appgen: missing db")
	case deps.Log == nil:
		return nil, fmt.Errorf("appgen: missing logger")
	case deps.Prompts == nil:
		return nil, fmt.Errorf("appgen: missing prompt store")
	case deps.LLM == nil:
		return nil, fmt.Errorf("appgen: missing llm client")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("appgen: missing token ledger")
	case deps.Requests == nil || deps.Updates == nil || deps.Apps == nil || deps.Pages == nil ||
		deps.Queries == nil || deps.Permissions == nil || deps.Data == nil:
		return nil, fmt.Errorf("appgen: missing repo")
	}
	locker := deps.Locker
	if locker == nil {
		locker = applock.NewLocal()
	}
	return &Generator{
		cfg:         cfg.withDefaults(),
		db:          deps.DB,
		log:         deps.Log.With("component", "AppGenerator"),
		prompts:     deps.Prompts,
		llm:         deps.LLM,
		ledger:      deps.Ledger,
		locker:      locker,
		requests:    deps.Requests,
		updates:     deps.Updates,
		apps:        deps.Apps,
		pages:       deps.Pages,
		permissions: deps.Permissions,
		data:        deps.Data,
		reconciler:  reconcile.NewEngine(deps.DB, deps.Log, deps.Apps, deps.Pages, deps.Queries, deps.Data),
	}, nil
}

// Generate runs every generation stage for req. On failure the request is
// FAILED with the error message, the app (if one was created) is ERROR, and
// whatever was persisted stays.
func (g *Generator) Generate(ctx context.Context, req *types.GenerationRequest) (*types.App, error) {
	if req == nil {
		return nil, fmt.Errorf("missing generation request")
	}
	if req.Status != types.RequestPending {
		return nil, ErrRequestNotPending
	}
	var err error
	ctx, span := observability.StartSpan(ctx, "appgen.generate", attribute.String("request_id", req.ID.String()))
	defer func() { observability.EndSpan(span, err) }()

	log := g.log.With("pipeline", pipelineGenerate, "request_id", req.ID)
	r := g.newRun(pipelineGenerate, log, func(ctx context.Context, delta int64) error {
		return g.requests.AddTokensUsed(dbctx.Context{Ctx: ctx}, req.ID, delta)
	})

	if err = g.requests.UpdateFields(dbctx.Context{Ctx: ctx}, req.ID, map[string]interface{}{
		"status":        types.RequestProcessing,
		"error_message": nil,
	}); err != nil {
		return nil, fmt.Errorf("mark request processing: %w", err)
	}
	req.Status = types.RequestProcessing

	var app *types.App
	app, err = g.generate(ctx, r, req)
	req.TokensUsed += r.total()
	if err != nil {
		g.failRequest(ctx, log, app, err, func(dbc dbctx.Context, fields map[string]interface{}) error {
			return g.requests.UpdateFields(dbc, req.ID, fields)
		})
		req.Status = types.RequestFailed
		msg := err.Error()
		req.ErrorMessage = &msg
		return nil, err
	}

	if err = g.requests.UpdateFields(dbctx.Context{Ctx: ctx}, req.ID, map[string]interface{}{
		"status": types.RequestCompleted,
	}); err != nil {
		return nil, fmt.Errorf("mark request completed: %w", err)
	}
	req.Status = types.RequestCompleted
	log.Info("App generated", "app_id", app.ID, "pages", len(r.persisted), "tokens_used", r.total())
	return app, nil
}

// generate returns the app as soon as it exists, even alongside an error,
// so the caller can mark it.
func (g *Generator) generate(ctx context.Context, r *run, req *types.GenerationRequest) (*types.App, error) {
	identity, err := r.identity(ctx, req.Content)
	if err != nil {
		return nil, stageErr(string(prompts.PromptAppIdentity), "", err)
	}
	shared := map[string]any{
		"prompt":          req.Content,
		"app_name":        identity.Name,
		"app_description": identity.Description,
	}

	tables, err := r.schema(ctx, shared)
	if err != nil {
		return nil, stageErr(string(prompts.PromptDataSchema), "", err)
	}
	shared["tables"] = tables

	app, err := g.createApp(ctx, req, identity)
	if err != nil {
		return nil, stageErr("persist_app", "", err)
	}
	shared["app_id"] = app.ID.String()

	if _, err := g.reconciler.ReconcileDataKeys(ctx, app, desiredKeys(tables)); err != nil {
		return app, stageErr("persist_data_keys", "", err)
	}

	specs, err := r.pageList(ctx, shared)
	if err != nil {
		return app, stageErr(string(prompts.PromptPageList), "", err)
	}
	shared["pages"] = specs

	if err := g.buildPages(ctx, r, app, shared, specs); err != nil {
		return app, err
	}

	css, err := r.appStylesheet(ctx, shared)
	if err != nil {
		return app, stageErr(string(prompts.PromptAppStylesheet), "", err)
	}
	if err := g.apps.UpdateFields(dbctx.Context{Ctx: ctx}, app.ID, map[string]interface{}{"stylesheet": css}); err != nil {
		return app, stageErr("persist_stylesheet", "", err)
	}
	app.Stylesheet = css
	return app, nil
}

// createApp persists the app with its default permissions and links it to
// the request in one transaction.
func (g *Generator) createApp(ctx context.Context, req *types.GenerationRequest, identity Identity) (*types.App, error) {
	app := &types.App{
		OrganizationID:      req.OrganizationID,
		GenerationRequestID: req.ID,
		Name:                identity.Name,
		Description:         identity.Description,
		Version:             1,
		Status:              types.AppActive,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := g.apps.Create(dbc, app); err != nil {
			return err
		}
		if _, err := g.permissions.CreateDefaults(dbc, app.ID); err != nil {
			return err
		}
		return g.requests.UpdateFields(dbc, req.ID, map[string]interface{}{"app_id": app.ID})
	})
	if err != nil {
		return nil, err
	}
	req.AppID = &app.ID
	return app, nil
}

// buildPages generates and persists each page. With PageConcurrency > 1 the
// model calls overlap but pages are still persisted in list order.
func (g *Generator) buildPages(ctx context.Context, r *run, app *types.App, shared map[string]any, specs []PageSpec) error {
	persist := func(c PageContent) error {
		if _, err := g.reconciler.ReconcilePages(ctx, app, []reconcile.DesiredPage{c.desired()}, reconcile.PageOptions{}); err != nil {
			return stageErr("persist_page", c.Spec.Slug, err)
		}
		r.markPersisted(c.Spec.Slug)
		return nil
	}

	if g.cfg.PageConcurrency <= 1 || len(specs) <= 1 {
		for _, spec := range specs {
			c, err := r.page(ctx, shared, spec)
			if err != nil {
				return err
			}
			if err := persist(c); err != nil {
				return err
			}
		}
		return nil
	}

	results := make([]PageContent, len(specs))
	done := make([]bool, len(specs))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.PageConcurrency)
	for i, spec := range specs {
		eg.Go(func() error {
			c, err := r.page(ectx, shared, spec)
			if err != nil {
				return err
			}
			results[i] = c
			done[i] = true
			return nil
		})
	}
	genErr := eg.Wait()
	// On failure, pages ahead of the first unfinished one were paid for and
	// are kept, as a sequential run would have kept them.
	for i, c := range results {
		if !done[i] {
			break
		}
		if err := persist(c); err != nil {
			return err
		}
	}
	return genErr
}

// failRequest records cause on the request and marks app ERROR. Neither
// write may replace cause.
func (g *Generator) failRequest(ctx context.Context, log *logger.Logger, app *types.App, cause error, update func(dbctx.Context, map[string]interface{}) error) {
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	msg := cause.Error()

	var pe *parse.ParseError
	if errors.As(cause, &pe) {
		raw := pe.Raw
		if !g.cfg.Verbose {
			raw = llm.Fragment(raw, 2000)
		}
		log.Warn("Unparseable model output", "parse_stage", pe.Stage, "raw", raw)
	}
	log.Error("Pipeline failed", "error", cause)

	if err := update(dbc, map[string]interface{}{
		"status":        types.RequestFailed,
		"error_message": msg,
	}); err != nil {
		log.Error("Failed to mark request failed", "error", err)
	}
	if app != nil && app.ID != uuid.Nil && app.Status != types.AppError {
		if err := g.apps.SetStatus(dbc, app.ID, types.AppError); err != nil {
			log.Error("Failed to mark app errored", "app_id", app.ID, "error", err)
		} else {
			app.Status = types.AppError
		}
	}
}

// bindingsSummary keeps the update prompt bounded: no templates, scripts or
// values, and at most maxSummaryItems pages and keys.
const maxSummaryItems = 200

func bindingsSummary(app *types.App, pages []*types.Page, entries []*types.DataStoreEntry) map[string]any {
	pageList := make([]map[string]string, 0, len(pages))
	for i, p := range pages {
		if i == maxSummaryItems {
			break
		}
		pageList = append(pageList, map[string]string{"name": p.Name, "slug": p.Slug})
	}
	keys := make([]map[string]string, 0, len(entries))
	for i, e := range entries {
		if i == maxSummaryItems {
			break
		}
		keys = append(keys, map[string]string{"table": e.Table, "key": e.Key, "value_type": string(e.ValueType)})
	}
	return map[string]any{
		"name":        app.Name,
		"description": app.Description,
		"pages":       pageList,
		"data":        keys,
	}
}

// tablesFromEntries rebuilds the table list from stored keys, in first-seen
// order.
func tablesFromEntries(entries []*types.DataStoreEntry) []Table {
	var out []Table
	index := map[string]int{}
	for _, e := range entries {
		i, ok := index[e.Table]
		if !ok {
			out = append(out, Table{Name: e.Table})
			i = len(out) - 1
			index[e.Table] = i
		}
		out[i].Columns = append(out[i].Columns, Column{Name: e.Key, Type: string(e.ValueType), Description: e.Description})
	}
	return out
}

func pageSpecs(pages []*types.Page) []PageSpec {
	out := make([]PageSpec, 0, len(pages))
	for _, p := range pages {
		out = append(out, PageSpec{Name: p.Name, Slug: p.Slug, Purpose: p.Purpose})
	}
	return out
}

func sameText(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
