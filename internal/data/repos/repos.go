package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos/apps"
	"github.com/yungbote/anything-backend/internal/data/repos/jobs"
	"github.com/yungbote/anything-backend/internal/data/repos/org"
	"github.com/yungbote/anything-backend/internal/data/repos/requests"
	"github.com/yungbote/anything-backend/internal/data/repos/user"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type OrganizationRepo = org.OrganizationRepo

type GenerationRequestRepo = requests.GenerationRequestRepo
type UpdateRequestRepo = requests.UpdateRequestRepo

type AppRepo = apps.AppRepo
type PageRepo = apps.PageRepo
type ContextQueryRepo = apps.ContextQueryRepo
type PermissionRepo = apps.PermissionRepo
type DataStoreRepo = apps.DataStoreRepo
type DataListParams = apps.ListParams

const (
	DataDefaultPerPage = apps.DefaultPerPage
	DataMaxPerPage     = apps.MaxPerPage
)

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return org.NewOrganizationRepo(db, baseLog)
}

func NewGenerationRequestRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRequestRepo {
	return requests.NewGenerationRequestRepo(db, baseLog)
}
func NewUpdateRequestRepo(db *gorm.DB, baseLog *logger.Logger) UpdateRequestRepo {
	return requests.NewUpdateRequestRepo(db, baseLog)
}

func NewAppRepo(db *gorm.DB, baseLog *logger.Logger) AppRepo { return apps.NewAppRepo(db, baseLog) }
func NewPageRepo(db *gorm.DB, baseLog *logger.Logger) PageRepo { return apps.NewPageRepo(db, baseLog) }
func NewContextQueryRepo(db *gorm.DB, baseLog *logger.Logger) ContextQueryRepo {
	return apps.NewContextQueryRepo(db, baseLog)
}
func NewPermissionRepo(db *gorm.DB, baseLog *logger.Logger) PermissionRepo {
	return apps.NewPermissionRepo(db, baseLog)
}
func NewDataStoreRepo(db *gorm.DB, baseLog *logger.Logger) DataStoreRepo {
	return apps.NewDataStoreRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
