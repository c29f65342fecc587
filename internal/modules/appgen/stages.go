package appgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/anything-backend/internal/modules/appgen/parse"
	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/modules/appgen/querydsl"
	"github.com/yungbote/anything-backend/internal/modules/appgen/reconcile"
)

const stageKeyValues = "key_values"

func contentError(raw string, err error) error {
	return &parse.ParseError{Raw: raw, Stage: stageKeyValues, Err: err}
}

// firstErr prefers the structured-parse error, which carries the raw text.
func firstErr(structured error, raw string, fallback error) error {
	if structured != nil {
		return structured
	}
	return contentError(raw, fallback)
}

func (r *run) identity(ctx context.Context, prompt string) (Identity, error) {
	text, err := r.call(ctx, prompts.PromptAppIdentity, map[string]any{"prompt": prompt})
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	jerr := parse.ExtractInto(text, &id)
	if jerr == nil && strings.TrimSpace(id.Name) != "" {
		id.Name = strings.TrimSpace(id.Name)
		id.Description = strings.TrimSpace(id.Description)
		return id, nil
	}
	for _, rec := range parse.ScanKeyValues(text, "NAME", "DESCRIPTION") {
		if name := rec.Get("NAME"); name != "" {
			return Identity{Name: name, Description: rec.Get("DESCRIPTION")}, nil
		}
	}
	return Identity{}, firstErr(jerr, text, errors.New("no app name in response"))
}

func (r *run) schema(ctx context.Context, bindings map[string]any) ([]Table, error) {
	text, err := r.call(ctx, prompts.PromptDataSchema, bindings)
	if err != nil {
		return nil, err
	}
	tables, jerr := decodeList[Table](text, "tables")
	if jerr == nil {
		return normalizeTables(tables), nil
	}
	for _, rec := range parse.ScanKeyValues(text, "TABLE", "COLUMNS") {
		tables = append(tables, Table{Name: rec.Get("TABLE"), Columns: parseColumns(rec.Get("COLUMNS"))})
	}
	tables = normalizeTables(tables)
	if len(tables) == 0 {
		// Neither format yielded a table; keep the structured parse failure
		// as the detail.
		return nil, contentError(text, fmt.Errorf("%w: %v", ErrEmptySchema, jerr))
	}
	return tables, nil
}

// parseColumns reads "a:str, b:int - description".
func parseColumns(raw string) []Column {
	var out []Column
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var c Column
		if i := strings.Index(part, " - "); i >= 0 {
			c.Description = strings.TrimSpace(part[i+3:])
			part = strings.TrimSpace(part[:i])
		}
		name, typ, _ := strings.Cut(part, ":")
		c.Name = strings.TrimSpace(name)
		c.Type = strings.TrimSpace(typ)
		out = append(out, c)
	}
	return out
}

func (r *run) pageList(ctx context.Context, bindings map[string]any) ([]PageSpec, error) {
	text, err := r.call(ctx, prompts.PromptPageList, bindings)
	if err != nil {
		return nil, err
	}
	pages, jerr := decodeList[PageSpec](text, "pages")
	if jerr != nil {
		for _, rec := range parse.ScanKeyValues(text, "PAGE", "SLUG", "PURPOSE") {
			pages = append(pages, PageSpec{Name: rec.Get("PAGE"), Slug: rec.Get("SLUG"), Purpose: rec.Get("PURPOSE")})
		}
	}
	pages = normalizePages(pages)
	if len(pages) == 0 {
		return nil, firstErr(jerr, text, ErrEmptyPageList)
	}
	return pages, nil
}

// page generates template, script and queries for one page, in that order.
func (r *run) page(ctx context.Context, shared map[string]any, spec PageSpec) (PageContent, error) {
	out := PageContent{Spec: spec}
	bindings := with(shared, map[string]any{"page": spec})

	tpl, css, err := r.pageTemplate(ctx, bindings)
	if err != nil {
		return out, stageErr(string(prompts.PromptPageTemplate), spec.Slug, err)
	}
	out.Template, out.Stylesheet = tpl, css
	bindings["template"] = tpl

	script, err := r.pageScript(ctx, bindings)
	if err != nil {
		return out, stageErr(string(prompts.PromptPageScript), spec.Slug, err)
	}
	out.Script = script

	queries, err := r.pageQueries(ctx, bindings)
	if err != nil {
		return out, stageErr(string(prompts.PromptPageQueries), spec.Slug, err)
	}
	out.Queries = queries
	return out, nil
}

func (r *run) pageTemplate(ctx context.Context, bindings map[string]any) (string, string, error) {
	text, err := r.call(ctx, prompts.PromptPageTemplate, bindings)
	if err != nil {
		return "", "", err
	}
	obj, jerr := parse.ExtractObject(text)
	if jerr == nil {
		tpl, _ := obj["template"].(string)
		css, _ := obj["stylesheet"].(string)
		if strings.TrimSpace(tpl) != "" {
			return tpl, css, nil
		}
	}
	if secs, err := parse.ParseSections(text); err == nil {
		if tpl, ok := secs.Get(parse.SectionTemplate); ok && tpl != "" {
			css, _ := secs.Get("STYLESHEET")
			if css == "" {
				css, _ = secs.Get("CSS")
			}
			return tpl, parse.StripFences(css), nil
		}
	}
	if tpl, ok := parse.ExtractFenced(text, "html", "django", "jinja", "htmldjango"); ok && strings.TrimSpace(tpl) != "" {
		css, _ := parse.ExtractFenced(text, "css")
		return tpl, css, nil
	}
	return "", "", firstErr(jerr, text, ErrEmptyTemplate)
}

func (r *run) pageScript(ctx context.Context, bindings map[string]any) (string, error) {
	text, err := r.call(ctx, prompts.PromptPageScript, bindings)
	if err != nil {
		return "", err
	}
	if js, ok := parse.ExtractFenced(text, "javascript", "js"); ok {
		return strings.TrimSpace(js), nil
	}
	return parse.StripFences(text), nil
}

type queryItem struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Order       *int            `json:"order"`
	Query       json.RawMessage `json:"query"`
}

// pageQueries never fails on content: a response with no usable query
// yields none, and individual invalid queries are dropped.
func (r *run) pageQueries(ctx context.Context, bindings map[string]any) ([]reconcile.DesiredQuery, error) {
	text, err := r.call(ctx, prompts.PromptPageQueries, bindings)
	if err != nil {
		return nil, err
	}
	var out []reconcile.DesiredQuery
	seen := map[string]bool{}
	add := func(key, name string, order *int, raw []byte) {
		key = snakeCase(key)
		if key == "" {
			key = snakeCase(name)
		}
		if key == "" || seen[key] {
			return
		}
		q, err := querydsl.Parse(raw)
		if err != nil {
			r.log.Warn("Dropping invalid context query", "key", key, "query", string(raw), "error", err)
			return
		}
		seen[key] = true
		out = append(out, reconcile.DesiredQuery{Key: key, Order: order, Query: q})
	}

	items, jerr := decodeList[queryItem](text, "queries")
	if jerr == nil {
		for _, it := range items {
			raw := []byte(it.Query)
			var s string
			if json.Unmarshal(raw, &s) == nil {
				raw = []byte(s)
			}
			add(it.Key, it.Name, it.Order, raw)
		}
		return out, nil
	}
	for _, rec := range parse.ScanKeyValues(text, "QUERY NAME", "QUERY", "KEY") {
		name := rec.Get("QUERY NAME")
		key := rec.Get("KEY")
		add(key, name, nil, []byte(rec.Get("QUERY")))
	}
	if len(out) == 0 {
		r.log.Warn("No context queries recovered", "error", jerr)
	}
	return out, nil
}

func (r *run) appStylesheet(ctx context.Context, bindings map[string]any) (string, error) {
	text, err := r.call(ctx, prompts.PromptAppStylesheet, bindings)
	if err != nil {
		return "", err
	}
	if css, ok := parse.ExtractFenced(text, "css"); ok {
		return strings.TrimSpace(css), nil
	}
	return parse.StripFences(text), nil
}

func (r *run) updateIntent(ctx context.Context, bindings map[string]any) (UpdateIntent, error) {
	text, err := r.call(ctx, prompts.PromptUpdateIntent, bindings)
	if err != nil {
		return UpdateIntent{}, err
	}
	obj, err := parse.ExtractObject(text)
	if err != nil {
		return UpdateIntent{}, err
	}
	var intent UpdateIntent
	if err := remarshal(obj, &intent); err != nil {
		return UpdateIntent{}, &parse.ParseError{Raw: text, Stage: parse.StageDecode, Err: err}
	}
	if t, ok := obj["tables"]; ok && t != nil {
		intent.HasTables = true
	}
	intent.Tables = normalizeTables(intent.Tables)
	intent.Pages = normalizePages(intent.Pages)
	for i, s := range intent.RemovePages {
		intent.RemovePages[i] = Slugify(s)
	}
	return intent, nil
}

// decodeList accepts either {"<field>": [...]} or a bare array.
func decodeList[T any](text, field string) ([]T, error) {
	v, err := parse.ExtractStructured(text)
	if err != nil {
		return nil, err
	}
	var list any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		inner, ok := t[field]
		if !ok {
			return nil, &parse.ParseError{Raw: text, Stage: parse.StageDecode, Err: fmt.Errorf("missing %q field", field)}
		}
		list = inner
	default:
		return nil, &parse.ParseError{Raw: text, Stage: parse.StageDecode, Err: fmt.Errorf("unexpected %T", v)}
	}
	var out []T
	if err := remarshal(list, &out); err != nil {
		return nil, &parse.ParseError{Raw: text, Stage: parse.StageDecode, Err: err}
	}
	return out, nil
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// with returns a copy of base overlaid with extra.
func with(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
