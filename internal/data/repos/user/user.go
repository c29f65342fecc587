package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type UserRepo interface {
	Create(dbc dbctx.Context, u *types.User) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	DeductTokens(dbc dbctx.Context, id uuid.UUID, amount int64) (bool, error)
	CreditTokens(dbc dbctx.Context, id uuid.UUID, amount int64) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, u *types.User) error {
	if u == nil {
		return nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(u).Error
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var u types.User
	err := dbc.DB(r.db).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeductTokens subtracts amount in a single conditional UPDATE. It reports
// false, without changing anything, when the balance is below amount.
func (r *userRepo) DeductTokens(dbc dbctx.Context, id uuid.UUID, amount int64) (bool, error) {
	if id == uuid.Nil || amount < 0 {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.User{}).
		Where("id = ? AND token_balance >= ?", id, amount).
		Updates(map[string]interface{}{
			"token_balance": gorm.Expr("token_balance - ?", amount),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepo) CreditTokens(dbc dbctx.Context, id uuid.UUID, amount int64) error {
	if id == uuid.Nil || amount <= 0 {
		return nil
	}
	res := dbc.DB(r.db).
		Model(&types.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"token_balance": gorm.Expr("token_balance + ?", amount),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
