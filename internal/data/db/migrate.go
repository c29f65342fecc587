package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		// Identity + tenancy
		&types.User{},
		&types.Organization{},
		&types.OrganizationMember{},

		// Audit records
		&types.GenerationRequest{},
		&types.UpdateRequest{},

		// Generated apps
		&types.App{},
		&types.Page{},
		&types.Permission{},
		&types.DataStoreEntry{},
		&types.ContextQuery{},

		// Jobs
		&types.JobRun{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
