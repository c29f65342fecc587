package requests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/anything-backend/internal/data/repos/testutil"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
)

func TestGenerationRequestRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewGenerationRequestRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, 1000)
	o := testutil.SeedOrganization(t, ctx, tx, u.ID)

	req := &types.GenerationRequest{Content: "A simple contact list app", OrganizationID: o.ID, UserID: u.ID}
	require.NoError(t, repo.Create(dbc, req))
	assert.Equal(t, types.RequestPending, req.Status)

	require.NoError(t, repo.AddTokensUsed(dbc, req.ID, 120))
	require.NoError(t, repo.AddTokensUsed(dbc, req.ID, 30))
	require.NoError(t, repo.AddTokensUsed(dbc, req.ID, -50))

	msg := "boom"
	require.NoError(t, repo.UpdateFields(dbc, req.ID, map[string]interface{}{
		"status":        types.RequestFailed,
		"error_message": msg,
	}))

	got, err := repo.GetByID(dbc, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 150, got.TokensUsed)
	assert.Equal(t, types.RequestFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.True(t, got.Status.Terminal())
}

func TestUpdateRequestRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUpdateRequestRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, 1000)
	o := testutil.SeedOrganization(t, ctx, tx, u.ID)
	gen := testutil.SeedGenerationRequest(t, ctx, tx, o.ID, u.ID, "todo app")
	app := testutil.SeedApp(t, ctx, tx, o.ID, gen.ID, "Todo")

	upd := &types.UpdateRequest{GenerationRequestID: gen.ID, AppID: app.ID, UserID: u.ID, Content: "add a due date"}
	require.NoError(t, repo.Create(dbc, upd))
	require.NoError(t, repo.AddTokensUsed(dbc, upd.ID, 42))
	require.NoError(t, repo.UpdateFields(dbc, upd.ID, map[string]interface{}{"status": types.RequestCompleted}))

	list, err := repo.ListByApp(dbc, app.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 42, list[0].TokensUsed)
	assert.Equal(t, types.RequestCompleted, list[0].Status)
}
