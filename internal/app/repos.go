package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type Repos struct {
	User         repos.UserRepo
	Organization repos.OrganizationRepo
	Generation   repos.GenerationRequestRepo
	Update       repos.UpdateRequestRepo
	App          repos.AppRepo
	Page         repos.PageRepo
	ContextQuery repos.ContextQueryRepo
	Permission   repos.PermissionRepo
	DataStore    repos.DataStoreRepo
	JobRun       repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		Organization: repos.NewOrganizationRepo(db, log),
		Generation:   repos.NewGenerationRequestRepo(db, log),
		Update:       repos.NewUpdateRequestRepo(db, log),
		App:          repos.NewAppRepo(db, log),
		Page:         repos.NewPageRepo(db, log),
		ContextQuery: repos.NewContextQueryRepo(db, log),
		Permission:   repos.NewPermissionRepo(db, log),
		DataStore:    repos.NewDataStoreRepo(db, log),
		JobRun:       repos.NewJobRunRepo(db, log),
	}
}
