package requests

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type UpdateRequestRepo interface {
	Create(dbc dbctx.Context, req *types.UpdateRequest) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UpdateRequest, error)
	ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.UpdateRequest, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AddTokensUsed(dbc dbctx.Context, id uuid.UUID, delta int64) error
}

type updateRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUpdateRequestRepo(db *gorm.DB, baseLog *logger.Logger) UpdateRequestRepo {
	return &updateRequestRepo{db: db, log: baseLog.With("repo", "UpdateRequestRepo")}
}

func (r *updateRequestRepo) Create(dbc dbctx.Context, req *types.UpdateRequest) error {
	if req == nil {
		return nil
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = types.RequestPending
	}
	return dbc.DB(r.db).Create(req).Error
}

func (r *updateRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UpdateRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.UpdateRequest
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *updateRequestRepo) ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.UpdateRequest, error) {
	var out []*types.UpdateRequest
	if appID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("app_id = ?", appID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *updateRequestRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.UpdateRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *updateRequestRepo) AddTokensUsed(dbc dbctx.Context, id uuid.UUID, delta int64) error {
	if id == uuid.Nil || delta <= 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.UpdateRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tokens_used": gorm.Expr("tokens_used + ?", delta),
			"updated_at":  time.Now(),
		}).Error
}
