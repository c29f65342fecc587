package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/anything-backend/internal/app"
	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/services"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user and print its id",
	RunE:  runUsersCreate,
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage token balances",
}

var tokensCreditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Add tokens to a user's balance",
	RunE:  runTokensCredit,
}

var (
	userEmail   string
	userName    string
	userBalance int64
	creditUser  string
	creditCount int64
)

func init() {
	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	usersCreateCmd.Flags().Int64Var(&userBalance, "balance", 0, "Starting token balance")
	_ = usersCreateCmd.MarkFlagRequired("email")
	usersCmd.AddCommand(usersCreateCmd)

	tokensCreditCmd.Flags().StringVar(&creditUser, "user", "", "User id (required)")
	tokensCreditCmd.Flags().Int64Var(&creditCount, "amount", 0, "Tokens to add (required)")
	_ = tokensCreditCmd.MarkFlagRequired("user")
	_ = tokensCreditCmd.MarkFlagRequired("amount")
	tokensCmd.AddCommand(tokensCreditCmd)
}

func runUsersCreate(cmd *cobra.Command, _ []string) error {
	email := strings.TrimSpace(userEmail)
	if email == "" {
		return fmt.Errorf("--email is required")
	}
	if userBalance < 0 {
		return fmt.Errorf("--balance must not be negative")
	}
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	cfg := app.LoadConfig()
	log, err := app.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()
	pg, err := app.OpenDB(log, cfg, true)
	if err != nil {
		return err
	}
	defer pg.Close()

	u := &types.User{Email: email, DisplayName: strings.TrimSpace(userName), TokenBalance: userBalance}
	if err := repos.NewUserRepo(pg.DB(), log).Create(dbctx.Context{Ctx: ctx}, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), u.ID.String())
	return nil
}

func runTokensCredit(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(strings.TrimSpace(creditUser))
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	if creditCount <= 0 {
		return fmt.Errorf("--amount must be positive")
	}
	ctx, stop := withSignals(cmd.Context())
	defer stop()

	cfg := app.LoadConfig()
	log, err := app.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()
	pg, err := app.OpenDB(log, cfg, false)
	if err != nil {
		return err
	}
	defer pg.Close()

	users := repos.NewUserRepo(pg.DB(), log)
	ledger := services.NewTokenLedger(pg.DB(), log, users, cfg.TokenCost)
	dbc := dbctx.Context{Ctx: ctx}
	if err := ledger.Credit(dbc, userID, creditCount); err != nil {
		return err
	}
	balance, err := ledger.Balance(dbc, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", balance)
	return nil
}
