package apps

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

var sortColumns = map[string]string{
	"id":         "id",
	"key":        "key",
	"value":      "value",
	"value_type": "value_type",
	"table":      "table_name",
	"table_name": "table_name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ListParams drives the paginated data store listing. Unknown sort columns
// fall back to created_at.
type ListParams struct {
	Table         string
	ValueType     string
	Search        string
	SortColumn    string
	SortDirection string
	Page          int
	PerPage       int
}

func (p *ListParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if _, ok := sortColumns[p.SortColumn]; !ok {
		p.SortColumn = "created_at"
	}
	if !strings.EqualFold(p.SortDirection, "desc") {
		p.SortDirection = "asc"
	} else {
		p.SortDirection = "desc"
	}
}

type DataStoreRepo interface {
	Create(dbc dbctx.Context, entries []*types.DataStoreEntry) error
	GetByID(dbc dbctx.Context, appID, id uuid.UUID) (*types.DataStoreEntry, error)
	GetByKey(dbc dbctx.Context, appID uuid.UUID, table, key string) (*types.DataStoreEntry, error)
	ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.DataStoreEntry, error)
	List(dbc dbctx.Context, appID uuid.UUID, params ListParams) ([]*types.DataStoreEntry, int64, error)
	UpdateFields(dbc dbctx.Context, appID, id uuid.UUID, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, appID, id uuid.UUID) (bool, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	RunQuery(dbc dbctx.Context, appID uuid.UUID, q *querydsl.Query) (*querydsl.Result, error)
}

type dataStoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataStoreRepo(db *gorm.DB, baseLog *logger.Logger) DataStoreRepo {
	return &dataStoreRepo{db: db, log: baseLog.With("repo", "DataStoreRepo")}
}

func (r *dataStoreRepo) Create(dbc dbctx.Context, entries []*types.DataStoreEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Table == "" {
			e.Table = "default"
		}
		if e.ValueType == "" {
			e.ValueType = types.ValueStr
		}
	}
	return dbc.DB(r.db).Create(&entries).Error
}

func (r *dataStoreRepo) GetByID(dbc dbctx.Context, appID, id uuid.UUID) (*types.DataStoreEntry, error) {
	if appID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var out types.DataStoreEntry
	err := dbc.DB(r.db).Where("app_id = ? AND id = ?", appID, id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *dataStoreRepo) GetByKey(dbc dbctx.Context, appID uuid.UUID, table, key string) (*types.DataStoreEntry, error) {
	if appID == uuid.Nil || key == "" {
		return nil, nil
	}
	if table == "" {
		table = "default"
	}
	var out types.DataStoreEntry
	err := dbc.DB(r.db).
		Where("app_id = ? AND table_name = ? AND key = ?", appID, table, key).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *dataStoreRepo) ListByApp(dbc dbctx.Context, appID uuid.UUID) ([]*types.DataStoreEntry, error) {
	var out []*types.DataStoreEntry
	if appID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("app_id = ?", appID).
		Order("table_name ASC").
		Order("key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dataStoreRepo) List(dbc dbctx.Context, appID uuid.UUID, params ListParams) ([]*types.DataStoreEntry, int64, error) {
	params.normalize()
	var out []*types.DataStoreEntry
	if appID == uuid.Nil {
		return out, 0, nil
	}
	q := dbc.DB(r.db).Model(&types.DataStoreEntry{}).Where("app_id = ?", appID)
	if params.Table != "" {
		q = q.Where("table_name = ?", params.Table)
	}
	if params.ValueType != "" {
		q = q.Where("value_type = ?", params.ValueType)
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(key) LIKE ? OR LOWER(value) LIKE ?)", like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.
		Order(sortColumns[params.SortColumn] + " " + strings.ToUpper(params.SortDirection)).
		Order("id ASC").
		Limit(params.PerPage).
		Offset((params.Page - 1) * params.PerPage).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *dataStoreRepo) UpdateFields(dbc dbctx.Context, appID, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if appID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.DB(r.db).
		Model(&types.DataStoreEntry{}).
		Where("app_id = ? AND id = ?", appID, id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *dataStoreRepo) Delete(dbc dbctx.Context, appID, id uuid.UUID) (bool, error) {
	if appID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Where("app_id = ? AND id = ?", appID, id).Delete(&types.DataStoreEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *dataStoreRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.DataStoreEntry{}).Error
}

func (r *dataStoreRepo) RunQuery(dbc dbctx.Context, appID uuid.UUID, q *querydsl.Query) (*querydsl.Result, error) {
	if q == nil {
		return nil, errors.New("RunQuery: nil query")
	}
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	res := &querydsl.Result{Kind: q.Kind}
	base := dbc.DB(r.db).Model(&types.DataStoreEntry{}).Where("app_id = ?", appID).Scopes(querydsl.Scope(q))
	if q.Kind == querydsl.KindCount {
		if err := base.Count(&res.Count).Error; err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := base.Find(&res.Entries).Error; err != nil {
		return nil, err
	}
	res.Count = int64(len(res.Entries))
	return res, nil
}
