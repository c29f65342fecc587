package apps

import (
	"time"

	"github.com/google/uuid"
)

type AppStatus string

const (
	AppActive   AppStatus = "ACTIVE"
	AppUpdating AppStatus = "UPDATING"
	AppError    AppStatus = "ERROR"
)

type App struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID      uuid.UUID `gorm:"type:uuid;column:organization_id;not null;index" json:"organization_id"`
	GenerationRequestID uuid.UUID `gorm:"type:uuid;column:generation_request_id;not null;index" json:"generation_request_id"`
	Name                string    `gorm:"column:name;not null" json:"name"`
	Description         string    `gorm:"column:description;type:text" json:"description"`
	Version             int       `gorm:"column:version;not null;default:1" json:"version"`
	Status              AppStatus `gorm:"column:status;not null;index" json:"status"`
	Stylesheet          string    `gorm:"column:stylesheet;type:text" json:"stylesheet,omitempty"`
	CreatedAt           time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (App) TableName() string { return "app" }

type Page struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID      uuid.UUID `gorm:"type:uuid;column:app_id;not null;uniqueIndex:idx_page_app_slug" json:"app_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	Slug       string    `gorm:"column:slug;not null;uniqueIndex:idx_page_app_slug" json:"slug"`
	Purpose    string    `gorm:"column:purpose;type:text" json:"purpose"`
	Template   string    `gorm:"column:template;type:text" json:"template"`
	Script     string    `gorm:"column:script;type:text" json:"script,omitempty"`
	Stylesheet string    `gorm:"column:stylesheet;type:text" json:"stylesheet,omitempty"`
	Position   int       `gorm:"column:position;not null;default:0" json:"position"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`

	Queries []*ContextQuery `gorm:"-" json:"queries,omitempty"`
}

func (Page) TableName() string { return "page" }

type Permission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AppID     uuid.UUID `gorm:"type:uuid;column:app_id;not null;uniqueIndex:idx_permission_app_codename" json:"app_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Codename  string    `gorm:"column:codename;not null;uniqueIndex:idx_permission_app_codename" json:"codename"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Permission) TableName() string { return "permission" }

// DefaultPermissions are granted to every generated app.
var DefaultPermissions = []struct {
	Codename string
	Name     string
}{
	{"view_app", "Can view app"},
	{"edit_app", "Can edit app"},
	{"delete_app", "Can delete app"},
	{"manage_users", "Can manage app users"},
}
