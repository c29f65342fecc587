package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/apierr"
	"github.com/yungbote/anything-backend/internal/platform/ctxutil"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

var (
	errAppNotFound  = errors.New("app not found")
	errNotOrgMember = errors.New("not a member of this organization")
	errRoleTooLow   = errors.New("insufficient role for this action")
)

// AppDetail is an app with everything it owns, pages carrying their context
// queries.
type AppDetail struct {
	App         *types.App               `json:"app"`
	Pages       []*types.Page            `json:"pages"`
	DataKeys    []*types.DataStoreEntry  `json:"data_keys"`
	Permissions []*types.Permission      `json:"permissions"`
	Generation  *types.GenerationRequest `json:"generation_request,omitempty"`
	Updates     []*types.UpdateRequest   `json:"update_requests"`
}

type AppService interface {
	// ResolveOrganization returns the organization a new app goes into. With
	// orgID nil it picks the caller's own organization, creating one if
	// the caller owns none.
	ResolveOrganization(dbc dbctx.Context, orgID *uuid.UUID) (*types.Organization, error)
	// RequireAppAccess loads appID and checks that the caller is a member of
	// its organization, holding one of roles when any are given.
	RequireAppAccess(dbc dbctx.Context, appID uuid.UUID, roles ...types.MemberRole) (*types.App, error)
	ListApps(dbc dbctx.Context) ([]*types.App, error)
	GetAppDetail(dbc dbctx.Context, appID uuid.UUID) (*AppDetail, error)
}

type appService struct {
	db          *gorm.DB
	log         *logger.Logger
	users       repos.UserRepo
	orgs        repos.OrganizationRepo
	apps        repos.AppRepo
	pages       repos.PageRepo
	queries     repos.ContextQueryRepo
	permissions repos.PermissionRepo
	data        repos.DataStoreRepo
	requests    repos.GenerationRequestRepo
	updates     repos.UpdateRequestRepo
}

func NewAppService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	orgs repos.OrganizationRepo,
	apps repos.AppRepo,
	pages repos.PageRepo,
	queries repos.ContextQueryRepo,
	permissions repos.PermissionRepo,
	data repos.DataStoreRepo,
	requests repos.GenerationRequestRepo,
	updates repos.UpdateRequestRepo,
) AppService {
	return &appService{
		db:          db,
		log:         baseLog.With("service", "AppService"),
		users:       users,
		orgs:        orgs,
		apps:        apps,
		pages:       pages,
		queries:     queries,
		permissions: permissions,
		data:        data,
		requests:    requests,
		updates:     updates,
	}
}

func requestUser(dbc dbctx.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthenticated", fmt.Errorf("not authenticated"))
	}
	return rd, nil
}

func (s *appService) ResolveOrganization(dbc dbctx.Context, orgID *uuid.UUID) (*types.Organization, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	if orgID == nil && rd.OrganizationID != uuid.Nil {
		id := rd.OrganizationID
		orgID = &id
	}
	if orgID != nil {
		o, err := s.orgs.GetByID(dbc, *orgID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, apierr.NotFound("organization_not_found", fmt.Errorf("organization not found"))
		}
		member, err := s.orgs.IsMember(dbc, o.ID, rd.UserID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, apierr.Forbidden("forbidden", errNotOrgMember)
		}
		return o, nil
	}

	orgs, err := s.orgs.ListForUser(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		if o != nil && o.OwnerUserID == rd.UserID {
			return o, nil
		}
	}

	u, err := s.users.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apierr.Unauthorized("unknown_user", fmt.Errorf("user %s not found", rd.UserID))
	}
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = u.Email
	}
	o := &types.Organization{Name: name + "'s Organization", OwnerUserID: u.ID}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.orgs.Create(inner, o); err != nil {
			return err
		}
		return s.orgs.AddMember(inner, &types.OrganizationMember{
			OrganizationID: o.ID,
			UserID:         u.ID,
			Role:           types.RoleAdmin,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create default organization: %w", err)
	}
	s.log.Info("Created default organization", "organization_id", o.ID, "user_id", u.ID)
	return o, nil
}

func (s *appService) RequireAppAccess(dbc dbctx.Context, appID uuid.UUID, roles ...types.MemberRole) (*types.App, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.GetByID(dbc, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apierr.NotFound("app_not_found", errAppNotFound)
	}
	m, err := s.orgs.GetMember(dbc, app.OrganizationID, rd.UserID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apierr.Forbidden("forbidden", errNotOrgMember)
	}
	if len(roles) == 0 {
		return app, nil
	}
	for _, r := range roles {
		if m.Role == r {
			return app, nil
		}
	}
	return nil, apierr.Forbidden("forbidden", errRoleTooLow)
}

func (s *appService) ListApps(dbc dbctx.Context) ([]*types.App, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		return nil, err
	}
	orgs, err := s.orgs.ListForUser(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(orgs))
	for _, o := range orgs {
		ids = append(ids, o.ID)
	}
	if len(ids) == 0 {
		return []*types.App{}, nil
	}
	return s.apps.ListByOrganizations(dbc, ids)
}

func (s *appService) GetAppDetail(dbc dbctx.Context, appID uuid.UUID) (*AppDetail, error) {
	app, err := s.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, err
	}
	out := &AppDetail{App: app}
	if out.Pages, err = s.pages.ListByApp(dbc, app.ID); err != nil {
		return nil, err
	}
	pageIDs := make([]uuid.UUID, 0, len(out.Pages))
	byPage := make(map[uuid.UUID]*types.Page, len(out.Pages))
	for _, p := range out.Pages {
		pageIDs = append(pageIDs, p.ID)
		byPage[p.ID] = p
	}
	qs, err := s.queries.ListByPages(dbc, pageIDs)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		if p := byPage[q.PageID]; p != nil {
			p.Queries = append(p.Queries, q)
		}
	}
	if out.DataKeys, err = s.data.ListByApp(dbc, app.ID); err != nil {
		return nil, err
	}
	if out.Permissions, err = s.permissions.ListByApp(dbc, app.ID); err != nil {
		return nil, err
	}
	if out.Generation, err = s.requests.GetByID(dbc, app.GenerationRequestID); err != nil {
		return nil, err
	}
	if out.Updates, err = s.updates.ListByApp(dbc, app.ID); err != nil {
		return nil, err
	}
	return out, nil
}
