package querydsl

import (
	"strconv"
	"strings"
)

// ParseText parses the compact text form:
//
//	<kind> [<table>[.<key>]] [where <field> <op> <value> [and ...]] [order by <field> [desc]] [limit <n>] [offset <n>]
//
// Values may be single or double quoted; `in` takes a comma separated list.
func ParseText(s string) (*Query, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errorf("empty query")
	}
	q := &Query{Kind: Kind(strings.ToLower(toks[0].text))}
	i := 1
	if i < len(toks) && !toks[i].quoted && !isKeyword(toks[i].text) {
		target := toks[i].text
		if dot := strings.Index(target, "."); dot >= 0 {
			q.Table, q.Key = target[:dot], target[dot+1:]
		} else {
			q.Table = target
		}
		i++
	}
	for i < len(toks) {
		switch strings.ToLower(toks[i].text) {
		case "where", "and":
			if i+2 >= len(toks) {
				return nil, errorf("incomplete condition")
			}
			f := Filter{Field: toks[i+1].text, Op: Op(strings.ToLower(toks[i+2].text))}
			if i+3 >= len(toks) {
				return nil, errorf("condition on %q has no value", f.Field)
			}
			f.Value = textValue(toks[i+3], f.Op)
			q.Filters = append(q.Filters, f)
			i += 4
		case "order":
			if i+2 >= len(toks) || strings.ToLower(toks[i+1].text) != "by" {
				return nil, errorf("expected 'order by <field>'")
			}
			s := Sort{Field: toks[i+2].text}
			i += 3
			if i < len(toks) && strings.EqualFold(toks[i].text, "desc") {
				s.Desc = true
				i++
			} else if i < len(toks) && strings.EqualFold(toks[i].text, "asc") {
				i++
			}
			q.Sort = append(q.Sort, s)
		case "limit", "offset":
			if i+1 >= len(toks) {
				return nil, errorf("%s needs a number", toks[i].text)
			}
			n, err := strconv.Atoi(toks[i+1].text)
			if err != nil {
				return nil, errorf("%s: %v", toks[i].text, err)
			}
			if strings.EqualFold(toks[i].text, "limit") {
				q.Limit = n
			} else {
				q.Offset = n
			}
			i += 2
		default:
			return nil, errorf("unexpected %q", toks[i].text)
		}
	}
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

type token struct {
	text   string
	quoted bool
}

func tokenize(s string) ([]token, error) {
	var out []token
	var b strings.Builder
	var quote rune
	inTok := false
	flush := func(quoted bool) {
		if inTok || quoted {
			out = append(out, token{text: b.String(), quoted: quoted})
		}
		b.Reset()
		inTok = false
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				flush(true)
				continue
			}
			b.WriteRune(r)
		case r == '"' || r == '\'':
			flush(false)
			quote = r
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush(false)
		default:
			b.WriteRune(r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, errorf("unterminated quote")
	}
	flush(false)
	return out, nil
}

func isKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "where", "and", "order", "limit", "offset":
		return true
	}
	return false
}

func textValue(t token, op Op) any {
	if op == OpIn {
		var list []any
		for _, part := range strings.Split(t.text, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return list
	}
	if t.quoted {
		return t.text
	}
	switch strings.ToLower(t.text) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(t.text, 64); err == nil {
		return n
	}
	return t.text
}
