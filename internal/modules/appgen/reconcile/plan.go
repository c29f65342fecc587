// Package reconcile brings an app's persisted pages, context queries and
// data keys in line with a desired set, touching only what differs.
package reconcile

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
)

type DesiredPage struct {
	Name       string
	Slug       string
	Purpose    string
	Template   string
	Script     string
	Stylesheet string
	Position   int
	Queries    []DesiredQuery
}

type DesiredQuery struct {
	Key string
	// Order defaults to the query's index in its list.
	Order *int
	Query *querydsl.Query
}

type DesiredKey struct {
	Table       string
	Key         string
	ValueType   types.ValueType
	Description string
}

// Change pairs a persisted row with the desired state replacing it.
type Change[E, D any] struct {
	Existing E
	Desired  D
}

type Plan[E, D any] struct {
	Create    []D
	Update    []Change[E, D]
	Delete    []E
	Unchanged []E
}

func (p Plan[E, D]) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Diff matches existing and desired by key. Desired entries are kept in
// their given order; a repeated desired key keeps its first occurrence.
func Diff[E, D any](existing []E, desired []D, existingKey func(E) string, desiredKey func(D) string, same func(E, D) bool) Plan[E, D] {
	var plan Plan[E, D]
	byKey := make(map[string]E, len(existing))
	for _, e := range existing {
		byKey[existingKey(e)] = e
	}
	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		k := desiredKey(d)
		if seen[k] {
			continue
		}
		seen[k] = true
		e, ok := byKey[k]
		switch {
		case !ok:
			plan.Create = append(plan.Create, d)
		case same(e, d):
			plan.Unchanged = append(plan.Unchanged, e)
		default:
			plan.Update = append(plan.Update, Change[E, D]{Existing: e, Desired: d})
		}
	}
	for _, e := range existing {
		if !seen[existingKey(e)] {
			plan.Delete = append(plan.Delete, e)
		}
	}
	return plan
}

type PagePlan = Plan[*types.Page, DesiredPage]
type QueryPlan = Plan[*types.ContextQuery, DesiredQuery]
type KeyPlan = Plan[*types.DataStoreEntry, DesiredKey]

func PlanPages(existing []*types.Page, desired []DesiredPage) PagePlan {
	return Diff(existing, desired,
		func(p *types.Page) string { return p.Slug },
		func(d DesiredPage) string { return d.Slug },
		samePage,
	)
}

func samePage(p *types.Page, d DesiredPage) bool {
	return p.Name == d.Name &&
		p.Purpose == d.Purpose &&
		p.Template == d.Template &&
		p.Script == d.Script &&
		p.Stylesheet == d.Stylesheet &&
		p.Position == d.Position
}

// PlanQueries diffs one page's queries. Desired orders must already be
// resolved (see resolveOrders).
func PlanQueries(existing []*types.ContextQuery, desired []DesiredQuery) QueryPlan {
	return Diff(existing, desired,
		func(q *types.ContextQuery) string { return q.Key },
		func(d DesiredQuery) string { return d.Key },
		func(q *types.ContextQuery, d DesiredQuery) bool {
			return q.Order == orderOf(d) &&
				q.QueryType == types.QueryType(d.Query.Kind) &&
				sameJSON(q.Expression, d.Query.JSON())
		},
	)
}

func PlanDataKeys(existing []*types.DataStoreEntry, desired []DesiredKey) KeyPlan {
	return Diff(existing, desired,
		func(e *types.DataStoreEntry) string { return dataKey(e.Table, e.Key) },
		func(d DesiredKey) string { return dataKey(d.Table, d.Key) },
		func(e *types.DataStoreEntry, d DesiredKey) bool {
			return e.ValueType == d.ValueType && e.Description == d.Description
		},
	)
}

// CarriedValue decides what value survives a value_type change: the old
// value when it is still valid under the new type, otherwise empty.
func CarriedValue(e *types.DataStoreEntry, newType types.ValueType) string {
	if e.ValueType == newType {
		return e.Value
	}
	if types.ValidValue(newType, e.Value) {
		return e.Value
	}
	return ""
}

// sameJSON compares documents by value; stored jsonb may be reformatted.
func sameJSON(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func dataKey(table, key string) string {
	return normalizeTable(table) + "\x00" + key
}

func normalizeTable(table string) string {
	table = strings.TrimSpace(table)
	if table == "" {
		return "default"
	}
	return table
}

func orderOf(d DesiredQuery) int {
	if d.Order == nil {
		return 0
	}
	return *d.Order
}

// resolveOrders fills missing orders with the query's position in the list
// and normalizes each query.
func resolveOrders(in []DesiredQuery) []DesiredQuery {
	out := make([]DesiredQuery, 0, len(in))
	for i, d := range in {
		if d.Query == nil || strings.TrimSpace(d.Key) == "" {
			continue
		}
		if d.Order == nil {
			n := i
			d.Order = &n
		}
		d.Query.Normalize()
		out = append(out, d)
	}
	return out
}

func normalizeKeys(in []DesiredKey) []DesiredKey {
	out := make([]DesiredKey, 0, len(in))
	for _, d := range in {
		d.Key = strings.TrimSpace(d.Key)
		if d.Key == "" {
			continue
		}
		d.Table = normalizeTable(d.Table)
		if !d.ValueType.Valid() {
			d.ValueType = types.NormalizeValueType(string(d.ValueType))
		}
		out = append(out, d)
	}
	return out
}
