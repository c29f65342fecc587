package appgen

import (
	"strconv"
	"strings"
)

// Slugify lowercases s and reduces it to [a-z0-9-].
func Slugify(s string) string {
	return reduce(s, '-', "page")
}

// snakeCase reduces s to [a-z0-9_] for table, column and query keys.
func snakeCase(s string) string {
	return reduce(s, '_', "")
}

func reduce(s string, sep byte, fallback string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte(sep)
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// slugSet hands out unique slugs, suffixing repeats with -2, -3, ...
type slugSet map[string]bool

func (s slugSet) claim(raw string) string {
	base := Slugify(raw)
	slug := base
	for n := 2; s[slug]; n++ {
		slug = base + "-" + strconv.Itoa(n)
	}
	s[slug] = true
	return slug
}

// normalizePages fills names and slugs and de-duplicates slugs in order.
func normalizePages(in []PageSpec) []PageSpec {
	seen := slugSet{}
	out := make([]PageSpec, 0, len(in))
	for _, p := range in {
		p.Name = strings.TrimSpace(p.Name)
		p.Purpose = strings.TrimSpace(p.Purpose)
		src := p.Slug
		if strings.TrimSpace(src) == "" {
			src = p.Name
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		p.Slug = seen.claim(src)
		if p.Name == "" {
			p.Name = p.Slug
		}
		out = append(out, p)
	}
	return out
}

// normalizeTables snake-cases names, drops empty entries and merges
// repeated tables and columns.
func normalizeTables(in []Table) []Table {
	var out []Table
	index := map[string]int{}
	for _, t := range in {
		name := snakeCase(t.Name)
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			out = append(out, Table{Name: name})
			i = len(out) - 1
			index[name] = i
		}
		seen := map[string]bool{}
		for _, c := range out[i].Columns {
			seen[c.Name] = true
		}
		for _, c := range t.Columns {
			c.Name = snakeCase(c.Name)
			if c.Name == "" || seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			c.Type = strings.TrimSpace(c.Type)
			c.Description = strings.TrimSpace(c.Description)
			out[i].Columns = append(out[i].Columns, c)
		}
	}
	return out
}
