package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/anything-backend/internal/data/repos"
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
	"github.com/yungbote/anything-backend/internal/platform/apierr"
	"github.com/yungbote/anything-backend/internal/platform/dbctx"
	"github.com/yungbote/anything-backend/internal/platform/logger"
)

var (
	errItemNotFound  = errors.New("item not found")
	errPageNotFound  = errors.New("page not found")
	errQueryNotFound = errors.New("context query not found")
)

// DataItem is the API shape of a data store entry; Value is typed.
type DataItem struct {
	ID          uuid.UUID `json:"id"`
	Table       string    `json:"table_name"`
	Key         string    `json:"key"`
	Value       any       `json:"value"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewDataItem(e *types.DataStoreEntry) DataItem {
	return DataItem{
		ID:          e.ID,
		Table:       e.Table,
		Key:         e.Key,
		Value:       e.TypedValue(),
		ValueType:   string(e.ValueType),
		Description: e.Description,
		UpdatedAt:   e.UpdatedAt,
	}
}

type DataPage struct {
	Items      []DataItem `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TotalPages int        `json:"total_pages"`
}

// DataInput is a create or partial update. A nil field is left unchanged;
// Value is the JSON the client sent.
type DataInput struct {
	Table       *string         `json:"table_name"`
	Key         *string         `json:"key"`
	Value       json.RawMessage `json:"value"`
	ValueType   *string         `json:"value_type"`
	Description *string         `json:"description"`
}

type DataStoreService interface {
	List(dbc dbctx.Context, appID uuid.UUID, params repos.DataListParams) (*DataPage, error)
	Get(dbc dbctx.Context, appID, itemID uuid.UUID) (*DataItem, error)
	Create(dbc dbctx.Context, appID uuid.UUID, in DataInput) (*DataItem, error)
	Update(dbc dbctx.Context, appID, itemID uuid.UUID, in DataInput) (*DataItem, error)
	Delete(dbc dbctx.Context, appID, itemID uuid.UUID) error
	// RunQuery evaluates the context query key of the page slug.
	RunQuery(dbc dbctx.Context, appID uuid.UUID, slug, key string) (any, error)
	// PageContext evaluates every context query of the page slug, keyed by
	// query key.
	PageContext(dbc dbctx.Context, appID uuid.UUID, slug string) (map[string]any, error)
}

type dataStoreService struct {
	db      *gorm.DB
	log     *logger.Logger
	apps    AppService
	data    repos.DataStoreRepo
	pages   repos.PageRepo
	queries repos.ContextQueryRepo
}

func NewDataStoreService(
	db *gorm.DB,
	baseLog *logger.Logger,
	apps AppService,
	data repos.DataStoreRepo,
	pages repos.PageRepo,
	queries repos.ContextQueryRepo,
) DataStoreService {
	return &dataStoreService{
		db:      db,
		log:     baseLog.With("service", "DataStoreService"),
		apps:    apps,
		data:    data,
		pages:   pages,
		queries: queries,
	}
}

func (s *dataStoreService) List(dbc dbctx.Context, appID uuid.UUID, params repos.DataListParams) (*DataPage, error) {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, err
	}
	if params.ValueType != "" && !types.ValueType(params.ValueType).Valid() {
		return nil, apierr.BadRequest("invalid_filter", fmt.Errorf("unknown value type %q", params.ValueType))
	}
	rows, total, err := s.data.List(dbc, app.ID, params)
	if err != nil {
		return nil, err
	}
	// Echo the paging the repo applied.
	page, perPage := params.Page, params.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = repos.DataDefaultPerPage
	}
	if perPage > repos.DataMaxPerPage {
		perPage = repos.DataMaxPerPage
	}
	out := &DataPage{
		Items:      make([]DataItem, 0, len(rows)),
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
	for _, r := range rows {
		out.Items = append(out.Items, NewDataItem(r))
	}
	return out, nil
}

func (s *dataStoreService) Get(dbc dbctx.Context, appID, itemID uuid.UUID) (*DataItem, error) {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, err
	}
	e, err := s.data.GetByID(dbc, app.ID, itemID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierr.NotFound("item_not_found", errItemNotFound)
	}
	item := NewDataItem(e)
	return &item, nil
}

func (s *dataStoreService) Create(dbc dbctx.Context, appID uuid.UUID, in DataInput) (*DataItem, error) {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, err
	}
	if in.Key == nil || strings.TrimSpace(*in.Key) == "" || len(in.Value) == 0 || in.ValueType == nil {
		return nil, apierr.BadRequest("missing_fields", fmt.Errorf("key, value and value_type are required"))
	}
	e := &types.DataStoreEntry{
		AppID: app.ID,
		Table: "default",
		Key:   strings.TrimSpace(*in.Key),
	}
	if in.Table != nil && strings.TrimSpace(*in.Table) != "" {
		e.Table = strings.TrimSpace(*in.Table)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if err := applyTypedValue(e, in.ValueType, in.Value); err != nil {
		return nil, err
	}

	existing, err := s.data.GetByKey(dbc, app.ID, e.Table, e.Key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierr.Conflict("duplicate_key", fmt.Errorf("key %q already exists in table %q", e.Key, e.Table))
	}
	if err := s.data.Create(dbc, []*types.DataStoreEntry{e}); err != nil {
		return nil, fmt.Errorf("create data entry: %w", err)
	}
	item := NewDataItem(e)
	return &item, nil
}

func (s *dataStoreService) Update(dbc dbctx.Context, appID, itemID uuid.UUID, in DataInput) (*DataItem, error) {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, err
	}
	e, err := s.data.GetByID(dbc, app.ID, itemID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierr.NotFound("item_not_found", errItemNotFound)
	}

	moved := false
	if in.Key != nil {
		k := strings.TrimSpace(*in.Key)
		if k == "" {
			return nil, apierr.BadRequest("invalid_key", fmt.Errorf("key must not be empty"))
		}
		moved = moved || k != e.Key
		e.Key = k
	}
	if in.Table != nil {
		t := strings.TrimSpace(*in.Table)
		if t == "" {
			t = "default"
		}
		moved = moved || t != e.Table
		e.Table = t
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.ValueType != nil || len(in.Value) > 0 {
		if err := applyTypedValue(e, in.ValueType, in.Value); err != nil {
			return nil, err
		}
	}
	if moved {
		clash, err := s.data.GetByKey(dbc, app.ID, e.Table, e.Key)
		if err != nil {
			return nil, err
		}
		if clash != nil && clash.ID != e.ID {
			return nil, apierr.Conflict("duplicate_key", fmt.Errorf("key %q already exists in table %q", e.Key, e.Table))
		}
	}

	e.UpdatedAt = time.Now()
	ok, err := s.data.UpdateFields(dbc, app.ID, e.ID, map[string]interface{}{
		"table_name":  e.Table,
		"key":         e.Key,
		"value":       e.Value,
		"value_type":  e.ValueType,
		"description": e.Description,
		"updated_at":  e.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("update data entry: %w", err)
	}
	if !ok {
		return nil, apierr.NotFound("item_not_found", errItemNotFound)
	}
	item := NewDataItem(e)
	return &item, nil
}

func (s *dataStoreService) Delete(dbc dbctx.Context, appID, itemID uuid.UUID) error {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return err
	}
	ok, err := s.data.Delete(dbc, app.ID, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.NotFound("item_not_found", errItemNotFound)
	}
	return nil
}

func (s *dataStoreService) RunQuery(dbc dbctx.Context, appID uuid.UUID, slug, key string) (any, error) {
	app, page, qs, err := s.pageQueries(dbc, appID, slug)
	if err != nil {
		return nil, err
	}
	for _, cq := range qs {
		if cq.Key == key {
			return s.evaluate(dbc, app.ID, page, cq)
		}
	}
	return nil, apierr.NotFound("query_not_found", errQueryNotFound)
}

func (s *dataStoreService) PageContext(dbc dbctx.Context, appID uuid.UUID, slug string) (map[string]any, error) {
	app, page, qs, err := s.pageQueries(dbc, appID, slug)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(qs))
	for _, cq := range qs {
		v, err := s.evaluate(dbc, app.ID, page, cq)
		if err != nil {
			return nil, err
		}
		out[cq.Key] = v
	}
	return out, nil
}

func (s *dataStoreService) pageQueries(dbc dbctx.Context, appID uuid.UUID, slug string) (*types.App, *types.Page, []*types.ContextQuery, error) {
	app, err := s.apps.RequireAppAccess(dbc, appID)
	if err != nil {
		return nil, nil, nil, err
	}
	page, err := s.pages.GetBySlug(dbc, app.ID, slug)
	if err != nil {
		return nil, nil, nil, err
	}
	if page == nil {
		return nil, nil, nil, apierr.NotFound("page_not_found", errPageNotFound)
	}
	qs, err := s.queries.ListByPage(dbc, page.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, page, qs, nil
}

func (s *dataStoreService) evaluate(dbc dbctx.Context, appID uuid.UUID, page *types.Page, cq *types.ContextQuery) (any, error) {
	q, err := querydsl.Parse(cq.Expression)
	if err != nil {
		s.log.Warn("Stored context query is invalid", "page_id", page.ID, "key", cq.Key, "error", err)
		return nil, apierr.New(http.StatusUnprocessableEntity, "invalid_query", err)
	}
	res, err := s.data.RunQuery(dbc, appID, q)
	if err != nil {
		return nil, fmt.Errorf("run context query %s: %w", cq.Key, err)
	}
	return res.Value(), nil
}

// applyTypedValue sets e's type and raw value from client input, keeping
// whichever of the two is absent. The result must parse as the type.
func applyTypedValue(e *types.DataStoreEntry, valueType *string, raw json.RawMessage) error {
	vt := e.ValueType
	if valueType != nil {
		vt = types.ValueType(strings.ToLower(strings.TrimSpace(*valueType)))
		if !vt.Valid() {
			return apierr.BadRequest("invalid_value_type", fmt.Errorf("unknown value type %q", *valueType))
		}
	}
	value := e.Value
	if len(raw) > 0 {
		v, err := rawValueString(raw)
		if err != nil {
			return apierr.BadRequest("invalid_value", err)
		}
		value = v
	}
	if !types.ValidValue(vt, value) {
		return apierr.BadRequest("invalid_value", fmt.Errorf("value %q is not a valid %s", value, vt))
	}
	e.ValueType = vt
	e.Value = value
	return nil
}

// rawValueString stores JSON strings unquoted, null as empty and any other
// JSON compacted.
func rawValueString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}
