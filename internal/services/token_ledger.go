package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/observability"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/envutil"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type TokenCostConfig struct {
	WordDivisor int64
	Min         int64
	Max         int64
}

func DefaultTokenCostConfig() TokenCostConfig {
	return TokenCostConfig{WordDivisor: 5, Min: 100, Max: 2000}
}

func TokenCostConfigFromEnv() TokenCostConfig {
	def := DefaultTokenCostConfig()
	return TokenCostConfig{
		WordDivisor: envutil.Int64("TOKEN_COST_WORD_DIVISOR", def.WordDivisor),
		Min:         envutil.Int64("TOKEN_COST_MIN", def.Min),
		Max:         envutil.Int64("TOKEN_COST_MAX", def.Max),
	}
}

// InsufficientBalanceError means a deduction was refused. The balance was
// left untouched.
type InsufficientBalanceError struct {
	UserID   uuid.UUID
	Required int64
	Balance  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient token balance: required %d, available %d", e.Required, e.Balance)
}

type TokenLedger interface {
	// Cost estimates the charge for a request from its text.
	Cost(text string) int64
	Balance(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	HasSufficientBalance(dbc dbctx.Context, userID uuid.UUID, cost int64) (bool, error)
	// Deduct removes cost atomically or fails with *InsufficientBalanceError.
	Deduct(dbc dbctx.Context, userID uuid.UUID, cost int64) error
	Credit(dbc dbctx.Context, userID uuid.UUID, amount int64) error
}

type tokenLedger struct {
	db    *gorm.DB
	log   *logger.Logger
	users repos.UserRepo
	cfg   TokenCostConfig
}

func NewTokenLedger(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, cfg TokenCostConfig) TokenLedger {
	def := DefaultTokenCostConfig()
	if cfg.WordDivisor <= 0 {
		cfg.WordDivisor = def.WordDivisor
	}
	if cfg.Min < 0 {
		cfg.Min = 0
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	return &tokenLedger{
		db:    db,
		log:   baseLog.With("service", "TokenLedger"),
		users: users,
		cfg:   cfg,
	}
}

func (l *tokenLedger) Cost(text string) int64 {
	words := int64(len(strings.Fields(text)))
	cost := words / l.cfg.WordDivisor
	if cost < l.cfg.Min {
		cost = l.cfg.Min
	}
	if cost > l.cfg.Max {
		cost = l.cfg.Max
	}
	return cost
}

func (l *tokenLedger) Balance(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	u, err := l.users.GetByID(dbc, userID)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	return u.TokenBalance, nil
}

func (l *tokenLedger) HasSufficientBalance(dbc dbctx.Context, userID uuid.UUID, cost int64) (bool, error) {
	bal, err := l.Balance(dbc, userID)
	if err != nil {
		return false, err
	}
	return bal >= cost, nil
}

func (l *tokenLedger) Deduct(dbc dbctx.Context, userID uuid.UUID, cost int64) error {
	if cost <= 0 {
		return nil
	}
	ok, err := l.users.DeductTokens(dbc, userID, cost)
	if err != nil {
		return fmt.Errorf("deduct tokens: %w", err)
	}
	if !ok {
		bal, berr := l.Balance(dbc, userID)
		if berr != nil {
			return berr
		}
		l.log.Info("Token deduction refused", "user_id", userID, "required", cost, "balance", bal)
		return &InsufficientBalanceError{UserID: userID, Required: cost, Balance: bal}
	}
	observability.Current().AddTokensCharged("deduct", cost)
	return nil
}

func (l *tokenLedger) Credit(dbc dbctx.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	if err := l.users.CreditTokens(dbc, userID, amount); err != nil {
		return fmt.Errorf("credit tokens: %w", err)
	}
	observability.Current().AddTokensCharged("credit", amount)
	return nil
}
