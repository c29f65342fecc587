package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/apierr"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

// TokenSummary is what the caller sees of their own budget.
type TokenSummary struct {
	Balance        int64 `json:"token_balance"`
	MinRequestCost int64 `json:"min_request_cost"`
}

type UserService interface {
	GetMe(dbc dbctx.Context) (*types.User, error)
	GetTokens(dbc dbctx.Context) (*TokenSummary, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	ledger   TokenLedger
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, ledger TokenLedger) UserService {
	return &userService{
		db:       db,
		log:      baseLog.With("service", "UserService"),
		userRepo: userRepo,
		ledger:   ledger,
	}
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd, err := requestUser(dbc)
	if err != nil {
		us.log.Warn("Request data not set in context")
		return nil, err
	}
	u, err := us.userRepo.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if u == nil {
		return nil, apierr.NotFound("user_not_found", fmt.Errorf("user does not exist"))
	}
	return u, nil
}

func (us *userService) GetTokens(dbc dbctx.Context) (*TokenSummary, error) {
	u, err := us.GetMe(dbc)
	if err != nil {
		return nil, err
	}
	return &TokenSummary{Balance: u.TokenBalance, MinRequestCost: us.ledger.Cost("")}, nil
}
