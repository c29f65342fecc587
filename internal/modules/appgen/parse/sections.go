package parse

import (
	"regexp"
	"strings"
)

const (
	SectionTemplate = "TEMPLATE"
	SectionMetadata = "METADATA"
)

// Sections holds the blocks of a `--- NAME ---` delimited response in the
// order they first appeared. Metadata is the decoded METADATA block, if any.
type Sections struct {
	Order    []string
	Text     map[string]string
	Metadata any
}

func (s *Sections) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.Text[strings.ToUpper(strings.TrimSpace(name))]
	return v, ok
}

var sectionMarkerRe = regexp.MustCompile(`^\s*-{3,}\s*([A-Za-z][A-Za-z0-9 _-]*?)\s*-{3,}\s*$`)

// ParseSections splits raw on marker lines. Text before the first marker is
// dropped; repeated markers append to the same section.
func ParseSections(raw string) (*Sections, error) {
	out := &Sections{Text: map[string]string{}}
	lines := strings.Split(normalizeLineEndings(raw), "\n")
	buf := map[string][]string{}
	current := ""
	for _, line := range lines {
		if m := sectionMarkerRe.FindStringSubmatch(line); m != nil {
			current = strings.ToUpper(strings.TrimSpace(m[1]))
			if _, seen := buf[current]; !seen {
				buf[current] = nil
				out.Order = append(out.Order, current)
			}
			continue
		}
		if current == "" {
			continue
		}
		buf[current] = append(buf[current], line)
	}
	for _, name := range out.Order {
		out.Text[name] = strings.TrimSpace(strings.Join(buf[name], "\n"))
	}
	if tpl, ok := out.Text[SectionTemplate]; ok {
		out.Text[SectionTemplate] = RestoreTemplateSyntax(tpl)
	}
	if meta, ok := out.Text[SectionMetadata]; ok && meta != "" {
		v, err := ExtractStructured(meta)
		if err != nil {
			return nil, err
		}
		out.Metadata = v
	}
	return out, nil
}

var (
	altVarRe  = regexp.MustCompile(`\(\(\s*(.*?)\s*\)\)`)
	altTagRe  = regexp.MustCompile(`\(%\s*(.*?)\s*%\)`)
	altAttrRe = regexp.MustCompile(`=\|([^|\n]*)\|`)
)

// RestoreTemplateSyntax converts the transport-safe template spelling back:
// ((var)) to {{ var }}, (% tag %) to {% tag %} and attr=|x| to attr="x".
func RestoreTemplateSyntax(s string) string {
	s = altVarRe.ReplaceAllString(s, "{{ $1 }}")
	s = altTagRe.ReplaceAllString(s, "{% $1 %}")
	return altAttrRe.ReplaceAllString(s, `="$1"`)
}
