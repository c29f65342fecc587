package querydsl

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/anything-backend/internal/domain"
)

// Scope compiles q into parameterized clauses over data_store_entry. The
// caller scopes by app_id. Count queries carry no ordering or paging.
func Scope(q *Query) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q == nil {
			return db
		}
		if q.Table != "" {
			db = db.Where("table_name = ?", q.Table)
		}
		if q.Key != "" {
			db = db.Where("key = ?", q.Key)
		}
		for _, f := range q.Filters {
			db = applyFilter(db, f)
		}
		if q.Kind == KindCount {
			return db
		}
		for _, s := range q.Sort {
			dir := " ASC"
			if s.Desc {
				dir = " DESC"
			}
			col := fields[s.Field]
			if col == "value" {
				db = db.Order(numericValue + dir)
			}
			db = db.Order(col + dir)
		}
		db = db.Order("table_name ASC").Order("key ASC")
		return db.Limit(q.Limit).Offset(q.Offset)
	}
}

func applyFilter(db *gorm.DB, f Filter) *gorm.DB {
	col, ok := fields[f.Field]
	if !ok {
		return db
	}
	op, ok := ops[f.Op]
	if !ok {
		return db
	}
	switch f.Op {
	case OpContains:
		return db.Where(col+" LIKE ? ESCAPE '\\'", "%"+escapeLike(stringify(f.Value))+"%")
	case OpPrefix:
		return db.Where(col+" LIKE ? ESCAPE '\\'", escapeLike(stringify(f.Value))+"%")
	case OpIn:
		list, _ := f.Value.([]any)
		vals := make([]string, 0, len(list))
		for _, v := range list {
			vals = append(vals, stringify(v))
		}
		return db.Where(col+" IN ?", vals)
	case OpGt, OpGte, OpLt, OpLte:
		if n, ok := number(f.Value); ok && col == "value" {
			return db.Where(numericValue+" "+op+" ?", n)
		}
		return db.Where(col+" "+op+" ?", stringify(f.Value))
	default:
		return db.Where(col+" "+op+" ?", stringify(f.Value))
	}
}

// numericValue is the value column as a number for int and float entries
// and NULL for everything else, so a NULL never matches a range filter.
const numericValue = "(CASE WHEN value_type IN ('int', 'float') AND value <> '' THEN CAST(value AS NUMERIC) END)"

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// stringify renders scalars the way they are stored in the text value column.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Result is the raw outcome of running a Query.
type Result struct {
	Kind    Kind
	Count   int64
	Entries []*types.DataStoreEntry
}

// Value shapes r for template binding: lookup yields the typed value (or
// nil), select yields a list of rows, count yields the number.
func (r *Result) Value() any {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case KindCount:
		return r.Count
	case KindLookup:
		if len(r.Entries) == 0 {
			return nil
		}
		return r.Entries[0].TypedValue()
	default:
		rows := make([]map[string]any, 0, len(r.Entries))
		for _, e := range r.Entries {
			rows = append(rows, map[string]any{
				"table":      e.Table,
				"key":        e.Key,
				"value":      e.TypedValue(),
				"value_type": string(e.ValueType),
			})
		}
		return rows
	}
}
