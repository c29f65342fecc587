package apps

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type PermissionRepo interface {
	CreateDefaults(dbc dbctx.Context, appID uuid.UUID) ([]*types.Permission, error)
	ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.Permission, error)
}

type permissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPermissionRepo(db *gorm.DB, baseLog *logger.Logger) PermissionRepo {
	return &permissionRepo{db: db, log: baseLog.With("repo", "PermissionRepo")}
}

func (r *permissionRepo) CreateDefaults(dbc dbctx.Context, appID uuid.UUID) ([]*types.Permission, error) {
	if appID == uuid.Nil {
		return nil, nil
	}
	perms := make([]*types.Permission, 0, len(types.DefaultPermissions))
	for _, p := range types.DefaultPermissions {
		perms = append(perms, &types.Permission{
			ID:       uuid.New(),
			AppID:    appID,
			Name:     p.Name,
			Codename: p.Codename,
		})
	}
	if err := dbc.DB(r.db).Create(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepo) ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.Permission, error) {
	var out []*types.Permission
	if appID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("app_id = ?", appID).Order("codename ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
