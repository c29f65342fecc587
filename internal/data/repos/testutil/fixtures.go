package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, balance int64) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		DisplayName:  "Test User",
		TokenBalance: balance,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedOrganization creates an organization owned by ownerID with the owner
// as its ADMIN member.
func SeedOrganization(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) *types.Organization {
	tb.Helper()
	o := &types.Organization{
		ID:          uuid.New(),
		Name:        "Test Org",
		OwnerUserID: ownerID,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	m := &types.OrganizationMember{
		ID:             uuid.New(),
		OrganizationID: o.ID,
		UserID:         ownerID,
		Role:           types.RoleAdmin,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed organization member: %v", err)
	}
	return o
}

func SeedGenerationRequest(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID, content string) *types.GenerationRequest {
	tb.Helper()
	r := &types.GenerationRequest{
		ID:             uuid.New(),
		Content:        content,
		OrganizationID: orgID,
		UserID:         userID,
		Status:         types.RequestPending,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed generation request: %v", err)
	}
	return r
}

func SeedApp(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, requestID uuid.UUID, name string) *types.App {
	tb.Helper()
	a := &types.App{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		GenerationRequestID: requestID,
		Name:                name,
		Description:         name + " description",
		Version:             1,
		Status:              types.AppActive,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed app: %v", err)
	}
	return a
}

func SeedPage(tb testing.TB, ctx context.Context, tx *gorm.DB, appID uuid.UUID, slug string, position int) *types.Page {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Page{
		ID:        uuid.New(),
		AppID:     appID,
		Name:      slug,
		Slug:      slug,
		Purpose:   "purpose of " + slug,
		Template:  "<h1>" + slug + "</h1>",
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed page: %v", err)
	}
	return p
}

func SeedDataEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, appID uuid.UUID, table, key string, vt types.ValueType, value string) *types.DataStoreEntry {
	tb.Helper()
	e := &types.DataStoreEntry{
		ID:        uuid.New(),
		AppID:     appID,
		Table:     table,
		Key:       key,
		Value:     value,
		ValueType: vt,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed data entry: %v", err)
	}
	return e
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID, role types.MemberRole) *types.OrganizationMember {
	tb.Helper()
	m := &types.OrganizationMember{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}
