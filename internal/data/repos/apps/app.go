package apps

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type AppRepo interface {
	Create(dbc dbctx.Context, app *types.App) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.App, error)
	ListByOrganizations(dbc dbctx.Context, orgIDs []uuid.UUID) ([]*types.App, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetStatus(dbc dbctx.Context, id uuid.UUID, status types.AppStatus) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type appRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAppRepo(db *gorm.DB, baseLog *logger.Logger) AppRepo {
	return &appRepo{db: db, log: baseLog.With("repo", "AppRepo")}
}

func (r *appRepo) Create(dbc dbctx.Context, app *types.App) error {
	if app == nil {
		return nil
	}
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Version == 0 {
		app.Version = 1
	}
	if app.Status == "" {
		app.Status = types.AppActive
	}
	return dbc.DB(r.db).Create(app).Error
}

func (r *appRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.App, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.App
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appRepo) ListByOrganizations(dbc dbctx.Context, orgIDs []uuid.UUID) ([]*types.App, error) {
	var out []*types.App
	if len(orgIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("organization_id IN ?", orgIDs).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *appRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.App{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *appRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status types.AppStatus) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"status": status})
}

// Delete removes the app and everything it owns. Run it inside a
// transaction; children are deleted explicitly rather than by FK cascade.
func (r *appRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	db := dbc.DB(r.db)
	pageIDs := db.Model(&types.Page{}).Select("id").Where("app_id = ?", id)
	if err := db.Where("page_id IN (?)", pageIDs).Delete(&types.ContextQuery{}).Error; err != nil {
		return err
	}
	if err := db.Where("app_id = ?", id).Delete(&types.Page{}).Error; err != nil {
		return err
	}
	if err := db.Where("app_id = ?", id).Delete(&types.DataStoreEntry{}).Error; err != nil {
		return err
	}
	if err := db.Where("app_id = ?", id).Delete(&types.Permission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&types.App{}).Error
}
