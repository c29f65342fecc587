package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

func slugs(pages []*types.Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Slug)
	}
	return out
}

func TestPlanPages(t *testing.T) {
	existing := []*types.Page{
		{Slug: "a", Name: "A", Position: 0},
		{Slug: "b", Name: "B", Position: 1},
		{Slug: "c", Name: "C", Position: 2},
	}
	desired := []DesiredPage{
		{Slug: "b", Name: "B", Position: 1},
		{Slug: "c", Name: "C v2", Position: 2},
		{Slug: "d", Name: "D", Position: 3},
		{Slug: "d", Name: "D duplicate", Position: 4},
	}
	plan := PlanPages(existing, desired)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, "D", plan.Create[0].Name)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, "c", plan.Update[0].Existing.Slug)
	assert.Equal(t, []string{"a"}, slugs(plan.Delete))
	assert.Equal(t, []string{"b"}, slugs(plan.Unchanged))
	assert.False(t, plan.Empty())

	assert.True(t, PlanPages(existing[:1], []DesiredPage{{Slug: "a", Name: "A"}}).Empty())
}

func TestPlanDataKeysAndCarriedValue(t *testing.T) {
	existing := []*types.DataStoreEntry{
		{Table: "contacts", Key: "name", ValueType: types.ValueStr, Value: "Ada"},
		{Table: "contacts", Key: "age", ValueType: types.ValueStr, Value: "36"},
		{Table: "contacts", Key: "email", ValueType: types.ValueStr, Value: "ada@example.com"},
	}
	desired := normalizeKeys([]DesiredKey{
		{Table: "contacts", Key: "name", ValueType: "string"},
		{Table: "contacts", Key: "age", ValueType: types.ValueInt},
		{Table: "contacts", Key: "email", ValueType: types.ValueBool},
		{Key: "notes", ValueType: types.ValueStr},
		{Table: "contacts", Key: "  "},
	})
	plan := PlanDataKeys(existing, desired)
	require.Len(t, plan.Create, 1)
	assert.Equal(t, "default", plan.Create[0].Table)
	require.Len(t, plan.Unchanged, 1)
	assert.Equal(t, "name", plan.Unchanged[0].Key)
	require.Len(t, plan.Update, 2)

	carried := map[string]string{}
	for _, c := range plan.Update {
		carried[c.Existing.Key] = CarriedValue(c.Existing, c.Desired.ValueType)
	}
	assert.Equal(t, "36", carried["age"])
	assert.Equal(t, "", carried["email"])
}

func TestResolveOrders(t *testing.T) {
	five := 5
	out := resolveOrders([]DesiredQuery{
		{Key: "a", Query: &querydsl.Query{Kind: "SELECT", Table: "t"}},
		{Key: "b", Order: &five, Query: &querydsl.Query{Kind: querydsl.KindCount}},
		{Key: "", Query: &querydsl.Query{}},
		{Key: "c"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, 0, *out[0].Order)
	assert.Equal(t, querydsl.KindSelect, out[0].Query.Kind)
	assert.Equal(t, 5, *out[1].Order)
}

type engineFixture struct {
	db     *gorm.DB
	dbc    dbctx.Context
	app    *types.App
	pages  repos.PageRepo
	cqs    repos.ContextQueryRepo
	data   repos.DataStoreRepo
	apps   repos.AppRepo
	engine *Engine
}

func setup(t *testing.T) engineFixture {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	u := testutil.SeedUser(t, ctx, db, 1000)
	o := testutil.SeedOrganization(t, ctx, db, u.ID)
	req := testutil.SeedGenerationRequest(t, ctx, db, o.ID, u.ID, "contacts")
	app := testutil.SeedApp(t, ctx, db, o.ID, req.ID, "Contacts")
	f := engineFixture{
		db:    db,
		dbc:   dbctx.Context{Ctx: ctx},
		app:   app,
		pages: repos.NewPageRepo(db, log),
		cqs:   repos.NewContextQueryRepo(db, log),
		data:  repos.NewDataStoreRepo(db, log),
		apps:  repos.NewAppRepo(db, log),
	}
	f.engine = NewEngine(db, log, f.apps, f.pages, f.cqs, f.data)
	return f
}

func selectQuery(table string) *querydsl.Query {
	q := &querydsl.Query{Kind: querydsl.KindSelect, Table: table}
	q.Normalize()
	return q
}

func TestReconcilePagesReplacesSet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedPage(t, ctx, f.db, f.app.ID, "a", 0)
	b := testutil.SeedPage(t, ctx, f.db, f.app.ID, "b", 1)
	c := testutil.SeedPage(t, ctx, f.db, f.app.ID, "c", 2)

	desired := []DesiredPage{
		{Slug: "b", Name: b.Name, Purpose: b.Purpose, Template: b.Template},
		{Slug: "c", Name: c.Name, Purpose: c.Purpose, Template: "<h1>new c</h1>",
			Queries: []DesiredQuery{{Key: "rows", Query: selectQuery("contacts")}}},
		{Slug: "d", Name: "D", Purpose: "new page", Template: "<p>d</p>",
			Queries: []DesiredQuery{{Key: "total", Query: &querydsl.Query{Kind: querydsl.KindCount, Table: "contacts"}}}},
	}
	res, err := f.engine.ReconcilePages(ctx, f.app, desired, PageOptions{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesCreated)
	assert.Equal(t, 2, res.PagesUpdated) // b moved 1->0, c changed
	assert.Equal(t, 1, res.PagesDeleted)
	assert.Equal(t, 2, res.QueriesCreated)

	pages, err := f.pages.ListByApp(f.dbc, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, slugs(pages))
	assert.Equal(t, b.ID, pages[0].ID)
	assert.Equal(t, c.ID, pages[1].ID)
	assert.Equal(t, "<h1>new c</h1>", pages[1].Template)

	qs, err := f.cqs.ListByPage(f.dbc, pages[2].ID)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, types.QueryCount, qs[0].QueryType)

	// second pass with the same input is a no-op
	res, err = f.engine.ReconcilePages(ctx, f.app, desired, PageOptions{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestReconcilePagesQueryUpsertByKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	page := testutil.SeedPage(t, ctx, f.db, f.app.ID, "home", 0)
	other := testutil.SeedPage(t, ctx, f.db, f.app.ID, "other", 1)
	require.NoError(t, f.cqs.Create(f.dbc, []*types.ContextQuery{
		{PageID: page.ID, Key: "keep", Order: 0, QueryType: types.QuerySelect, Expression: selectQuery("a").JSON()},
		{PageID: page.ID, Key: "change", Order: 1, QueryType: types.QuerySelect, Expression: selectQuery("a").JSON()},
		{PageID: page.ID, Key: "drop", Order: 2, QueryType: types.QuerySelect, Expression: selectQuery("a").JSON()},
		{PageID: other.ID, Key: "untouched", Order: 0, QueryType: types.QuerySelect, Expression: selectQuery("a").JSON()},
	}))
	before, err := f.cqs.ListByPage(f.dbc, page.ID)
	require.NoError(t, err)

	desired := []DesiredPage{{
		Slug: "home", Name: page.Name, Purpose: page.Purpose, Template: page.Template,
		Queries: []DesiredQuery{
			{Key: "keep", Query: selectQuery("a")},
			{Key: "change", Query: selectQuery("b")},
			{Key: "fresh", Query: selectQuery("c")},
		},
	}}
	res, err := f.engine.ReconcilePages(ctx, f.app, desired, PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.PagesUpdated)
	assert.Equal(t, 1, res.QueriesCreated)
	assert.Equal(t, 1, res.QueriesUpdated)
	assert.Equal(t, 1, res.QueriesDeleted)

	after, err := f.cqs.ListByPage(f.dbc, page.ID)
	require.NoError(t, err)
	byKey := map[string]*types.ContextQuery{}
	for _, q := range after {
		byKey[q.Key] = q
	}
	require.Len(t, byKey, 3)
	assert.Equal(t, before[0].ID, byKey["keep"].ID)
	assert.Equal(t, before[1].ID, byKey["change"].ID)
	assert.JSONEq(t, string(selectQuery("b").JSON()), string(byKey["change"].Expression))
	assert.Equal(t, 2, byKey["fresh"].Order)

	untouched, err := f.cqs.ListByPage(f.dbc, other.ID)
	require.NoError(t, err)
	assert.Len(t, untouched, 1)
	pages, _ := f.pages.ListByApp(f.dbc, f.app.ID)
	assert.Equal(t, []string{"home", "other"}, slugs(pages))
}

func TestReconcilePagesTargeted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedPage(t, ctx, f.db, f.app.ID, "home", 0)
	testutil.SeedPage(t, ctx, f.db, f.app.ID, "list", 1)
	testutil.SeedPage(t, ctx, f.db, f.app.ID, "old", 2)

	res, err := f.engine.ReconcilePages(ctx, f.app, []DesiredPage{
		{Slug: "report", Name: "Report", Template: "<p>r</p>"},
	}, PageOptions{Remove: []string{"old", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesCreated)
	assert.Equal(t, 1, res.PagesDeleted)

	pages, err := f.pages.ListByApp(f.dbc, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "list", "report"}, slugs(pages))
	assert.Equal(t, 3, pages[2].Position)
}

func TestReconcileDataKeys(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedDataEntry(t, ctx, f.db, f.app.ID, "contacts", "name", types.ValueStr, "Ada")
	testutil.SeedDataEntry(t, ctx, f.db, f.app.ID, "contacts", "age", types.ValueStr, "36")
	testutil.SeedDataEntry(t, ctx, f.db, f.app.ID, "contacts", "active", types.ValueStr, "maybe")
	testutil.SeedDataEntry(t, ctx, f.db, f.app.ID, "contacts", "legacy", types.ValueStr, "x")

	res, err := f.engine.ReconcileDataKeys(ctx, f.app, []DesiredKey{
		{Table: "contacts", Key: "name", ValueType: types.ValueStr},
		{Table: "contacts", Key: "age", ValueType: types.ValueInt},
		{Table: "contacts", Key: "active", ValueType: types.ValueBool},
		{Table: "contacts", Key: "phone", ValueType: types.ValueStr, Description: "mobile"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.KeysCreated)
	assert.Equal(t, 2, res.KeysUpdated)
	assert.Equal(t, 1, res.KeysDeleted)

	entries, err := f.data.ListByApp(f.dbc, f.app.ID)
	require.NoError(t, err)
	got := map[string]*types.DataStoreEntry{}
	for _, e := range entries {
		got[e.Key] = e
	}
	require.Len(t, got, 4)
	assert.Equal(t, "Ada", got["name"].Value)
	assert.Equal(t, "36", got["age"].Value)
	assert.Equal(t, types.ValueInt, got["age"].ValueType)
	assert.Equal(t, "", got["active"].Value)
	assert.Equal(t, "", got["phone"].Value)
	assert.Equal(t, "mobile", got["phone"].Description)
}

type failingPageRepo struct {
	repos.PageRepo
}

var errBoom = errors.New("boom")

func (failingPageRepo) Create(dbc dbctx.Context, pages []*types.Page) error { return errBoom }

func TestReconcileFailureMarksAppError(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.SeedPage(t, ctx, f.db, f.app.ID, "home", 0)
	engine := NewEngine(f.db, testutil.Logger(t), f.apps, failingPageRepo{f.pages}, f.cqs, f.data)

	_, err := engine.Reconcile(ctx, f.app, []DesiredPage{{Slug: "new", Name: "New"}}, nil)
	var rerr *ReconciliationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, EntityPages, rerr.Entity)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, types.AppError, f.app.Status)

	// the delete of "home" was rolled back with the failed create
	pages, err := f.pages.ListByApp(f.dbc, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, slugs(pages))

	stored, err := f.apps.GetByID(f.dbc, f.app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AppError, stored.Status)
}
