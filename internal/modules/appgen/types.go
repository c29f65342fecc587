package appgen

import (
	types "github.com/yungbote/anything-backend/internal/domain"
	"github.com/yungbote/anything-backend/internal/modules/appgen/reconcile"
)

type Identity struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type PageSpec struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Purpose string `json:"purpose"`
}

// PageContent is everything generated for one page.
type PageContent struct {
	Spec       PageSpec
	Template   string
	Stylesheet string
	Script     string
	Queries    []reconcile.DesiredQuery
}

func (c PageContent) desired() reconcile.DesiredPage {
	return reconcile.DesiredPage{
		Name:       c.Spec.Name,
		Slug:       c.Spec.Slug,
		Purpose:    c.Spec.Purpose,
		Template:   c.Template,
		Script:     c.Script,
		Stylesheet: c.Stylesheet,
		Queries:    c.Queries,
	}
}

type UpdateIntent struct {
	Description string     `json:"description"`
	Purpose     string     `json:"purpose"`
	Tables      []Table    `json:"tables,omitempty"`
	Pages       []PageSpec `json:"pages"`
	RemovePages []string   `json:"remove_pages"`

	// HasTables is set when the model returned a tables field, even an
	// empty one.
	HasTables bool `json:"-"`
}

// desiredKeys flattens tables into one data key per column.
func desiredKeys(tables []Table) []reconcile.DesiredKey {
	var out []reconcile.DesiredKey
	for _, t := range tables {
		for _, c := range t.Columns {
			out = append(out, reconcile.DesiredKey{
				Table:       t.Name,
				Key:         c.Name,
				ValueType:   types.NormalizeValueType(c.Type),
				Description: c.Description,
			})
		}
	}
	return out
}
