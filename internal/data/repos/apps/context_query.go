package apps

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type ContextQueryRepo interface {
	Create(dbc dbctx.Context, queries []*types.ContextQuery) error
	ListByPage(dbc dbctx.Context, pageID uuid.UUID) ([]*types.ContextQuery, error)
	ListByPages(dbc dbctx.Context, pageIDs []uuid.UUID) ([]*types.ContextQuery, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type contextQueryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContextQueryRepo(db *gorm.DB, baseLog *logger.Logger) ContextQueryRepo {
	return &contextQueryRepo{db: db, log: baseLog.With("repo", "ContextQueryRepo")}
}

func (r *contextQueryRepo) Create(dbc dbctx.Context, queries []*types.ContextQuery) error {
	if len(queries) == 0 {
		return nil
	}
	for _, q := range queries {
		if q != nil && q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
	}
	return dbc.DB(r.db).Create(&queries).Error
}

func (r *contextQueryRepo) ListByPage(dbc dbctx.Context, pageID uuid.UUID) ([]*types.ContextQuery, error) {
	if pageID == uuid.Nil {
		return []*types.ContextQuery{}, nil
	}
	return r.ListByPages(dbc, []uuid.UUID{pageID})
}

func (r *contextQueryRepo) ListByPages(dbc dbctx.Context, pageIDs []uuid.UUID) ([]*types.ContextQuery, error) {
	var out []*types.ContextQuery
	if len(pageIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("page_id IN ?", pageIDs).
		Order("sort_order ASC").
		Order("key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contextQueryRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ContextQuery{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *contextQueryRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.ContextQuery{}).Error
}
