package org

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

type OrganizationRepo interface {
	Create(dbc dbctx.Context, o *types.Organization) error
	AddMember(dbc dbctx.Context, m *types.OrganizationMember) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error)
	IsMember(dbc dbctx.Context, orgID, userID uuid.UUID) (bool, error)
	GetMember(dbc dbctx.Context, orgID, userID uuid.UUID) (*types.OrganizationMember, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Organization, error)
}

type organizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) Create(dbc dbctx.Context, o *types.Organization) error {
	if o == nil {
		return nil
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(o).Error
}

func (r *organizationRepo) AddMember(dbc dbctx.Context, m *types.OrganizationMember) error {
	if m == nil {
		return nil
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Role == "" {
		m.Role = types.RoleMember
	}
	return dbc.DB(r.db).Create(m).Error
}

func (r *organizationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var o types.Organization
	err := dbc.DB(r.db).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *organizationRepo) IsMember(dbc dbctx.Context, orgID, userID uuid.UUID) (bool, error) {
	if orgID == uuid.Nil || userID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := dbc.DB(r.db).
		Model(&types.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *organizationRepo) GetMember(dbc dbctx.Context, orgID, userID uuid.UUID) (*types.OrganizationMember, error) {
	if orgID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var m types.OrganizationMember
	err := dbc.DB(r.db).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns the organizations userID belongs to, oldest
// membership first.
func (r *organizationRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Organization, error) {
	var out []*types.Organization
	if userID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Model(&types.Organization{}).
		Joins("JOIN organization_member ON organization_member.organization_id = organization.id").
		Where("organization_member.user_id = ?", userID).
		Order("organization_member.created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
