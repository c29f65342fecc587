package org

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
	RoleViewer MemberRole = "VIEWER"
)

type Organization struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Organization) TableName() string { return "organization" }

type OrganizationMember struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;column:organization_id;not null;uniqueIndex:idx_org_member" json:"organization_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_org_member;index" json:"user_id"`
	Role           MemberRole `gorm:"column:role;not null;default:'MEMBER'" json:"role"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (OrganizationMember) TableName() string { return "organization_member" }
