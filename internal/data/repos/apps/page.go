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

type PageRepo interface {
	Create(dbc dbctx.Context, pages []*types.Page) error
	ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.Page, error)
	GetBySlug(dbc dbctx.Context, appID uuid.UUID, slug string) (*types.Page, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type pageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageRepo(db *gorm.DB, baseLog *logger.Logger) PageRepo {
	return &pageRepo{db: db, log: baseLog.With("repo", "PageRepo")}
}

func (r *pageRepo) Create(dbc dbctx.Context, pages []*types.Page) error {
	if len(pages) == 0 {
		return nil
	}
	for _, p := range pages {
		if p != nil && p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
	}
	return dbc.DB(r.db).Create(&pages).Error
}

func (r *pageRepo) ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.Page, error) {
	var out []*types.Page
	if appID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("app_id = ?", appID).
		Order("position ASC").
		Order("slug ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *pageRepo) GetBySlug(dbc dbctx.Context, appID uuid.UUID, slug string) (*types.Page, error) {
	if appID == uuid.Nil || slug == "" {
		return nil, nil
	}
	var out types.Page
	err := dbc.DB(r.db).Where("app_id = ? AND slug = ?", appID, slug).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *pageRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Page{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteByIDs removes pages together with their context queries.
func (r *pageRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := dbc.DB(r.db)
	if err := db.Where("page_id IN ?", ids).Delete(&types.ContextQuery{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&types.Page{}).Error
}
