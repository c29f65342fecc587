// Package querydsl is the declarative query language for page context
// queries. A Query is plain data: it is validated against a field whitelist
// and compiled to parameterized gorm clauses, never evaluated as code.
package querydsl

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindLookup Kind = "lookup"
	KindSelect Kind = "select"
	KindCount  Kind = "count"
)

func (k Kind) Valid() bool {
	switch k {
	case KindLookup, KindSelect, KindCount:
		return true
	}
	return false
}

type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	OpPrefix   Op = "prefix"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
)

var ops = map[Op]string{
	OpEq:       "=",
	OpNe:       "<>",
	OpContains: "LIKE",
	OpPrefix:   "LIKE",
	OpGt:       ">",
	OpGte:      ">=",
	OpLt:       "<",
	OpLte:      "<=",
	OpIn:       "IN",
}

// fields maps query field names to data_store_entry columns.
var fields = map[string]string{
	"key":        "key",
	"value":      "value",
	"value_type": "value_type",
	"table":      "table_name",
	"table_name": "table_name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

type Sort struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

type Query struct {
	Kind    Kind     `json:"kind"`
	Table   string   `json:"table,omitempty"`
	Key     string   `json:"key,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
	Sort    []Sort   `json:"sort,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

type Error struct {
	Msg string
}

func (e *Error) Error() string { return "querydsl: " + e.Msg }

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Parse decodes a query from its JSON form, falling back to the compact
// text form (see ParseText). The result is normalized and validated.
func Parse(raw []byte) (*Query, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, errorf("empty query")
	}
	if strings.HasPrefix(s, "{") {
		var q Query
		if err := json.Unmarshal([]byte(s), &q); err != nil {
			return nil, errorf("decode: %v", err)
		}
		q.Normalize()
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return &q, nil
	}
	return ParseText(s)
}

// Normalize lowercases identifiers and clamps Limit/Offset.
func (q *Query) Normalize() {
	if q == nil {
		return
	}
	q.Kind = Kind(strings.ToLower(strings.TrimSpace(string(q.Kind))))
	if q.Kind == "" {
		q.Kind = KindSelect
	}
	q.Table = strings.TrimSpace(q.Table)
	q.Key = strings.TrimSpace(q.Key)
	for i := range q.Filters {
		q.Filters[i].Field = strings.ToLower(strings.TrimSpace(q.Filters[i].Field))
		q.Filters[i].Op = Op(strings.ToLower(strings.TrimSpace(string(q.Filters[i].Op))))
		if q.Filters[i].Op == "" {
			q.Filters[i].Op = OpEq
		}
	}
	for i := range q.Sort {
		q.Sort[i].Field = strings.ToLower(strings.TrimSpace(q.Sort[i].Field))
	}
	switch {
	case q.Kind == KindLookup:
		q.Limit = 1
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

func (q *Query) Validate() error {
	if q == nil {
		return errorf("nil query")
	}
	if !q.Kind.Valid() {
		return errorf("unknown kind %q", q.Kind)
	}
	if q.Kind == KindLookup && q.Key == "" && len(q.Filters) == 0 {
		return errorf("lookup needs a key or at least one filter")
	}
	for _, f := range q.Filters {
		if _, ok := fields[f.Field]; !ok {
			return errorf("unknown field %q", f.Field)
		}
		if _, ok := ops[f.Op]; !ok {
			return errorf("unknown op %q", f.Op)
		}
		if err := checkValue(f); err != nil {
			return err
		}
	}
	for _, s := range q.Sort {
		if _, ok := fields[s.Field]; !ok {
			return errorf("unknown sort field %q", s.Field)
		}
	}
	return nil
}

func checkValue(f Filter) error {
	if f.Op == OpIn {
		list, ok := f.Value.([]any)
		if !ok || len(list) == 0 {
			return errorf("%s in: value must be a non-empty list", f.Field)
		}
		for _, v := range list {
			if !scalar(v) {
				return errorf("%s in: list items must be scalars", f.Field)
			}
		}
		return nil
	}
	if !scalar(f.Value) {
		return errorf("%s %s: value must be a scalar", f.Field, f.Op)
	}
	return nil
}

func scalar(v any) bool {
	switch v.(type) {
	case string, float64, int, int64, bool:
		return true
	}
	return false
}

// JSON is the canonical stored form.
func (q *Query) JSON() []byte {
	b, _ := json.Marshal(q)
	return b
}
