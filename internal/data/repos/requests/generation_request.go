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

type GenerationRequestRepo interface {
	Create(dbc dbctx.Context, req *types.GenerationRequest) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRequest, error)
	GetByAppID(dbc dbctx.Context, appID uuid.UUID) (*types.GenerationRequest, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AddTokensUsed(dbc dbctx.Context, id uuid.UUID, delta int64) error
}

type generationRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRequestRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRequestRepo {
	return &generationRequestRepo{db: db, log: baseLog.With("repo", "GenerationRequestRepo")}
}

func (r *generationRequestRepo) Create(dbc dbctx.Context, req *types.GenerationRequest) error {
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

func (r *generationRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.GenerationRequest
	err := dbc.DB(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *generationRequestRepo) GetByAppID(dbc dbctx.Context, appID uuid.UUID) (*types.GenerationRequest, error) {
	if appID == uuid.Nil {
		return nil, nil
	}
	var out types.GenerationRequest
	err := dbc.DB(r.db).Where("app_id = ?", appID).Order("created_at ASC").First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *generationRequestRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.GenerationRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// AddTokensUsed increments tokens_used; negative deltas are ignored so the
// counter only ever grows.
func (r *generationRequestRepo) AddTokensUsed(dbc dbctx.Context, id uuid.UUID, delta int64) error {
	if id == uuid.Nil || delta <= 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.GenerationRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tokens_used": gorm.Expr("tokens_used + ?", delta),
			"updated_at":  time.Now(),
		}).Error
}
