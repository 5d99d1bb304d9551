package pipeline

import (
	"strconv"
	"strings"

	"wikignome/internal"
)

// Templates is a read-only structural view of every top-level template
// invocation on a page. It goes stale the moment a rule rewrites the text;
// the engine rebuilds it after each change.
type Templates struct {
	invs []internal.TemplateInvocation
}

// ExtractTemplates scans wikitext for {{Name|field=value|...}} invocations.
// An invocation with no matching closing braces is skipped and the scan
// continues; extraction never fails.
func ExtractTemplates(text string) Templates {
	var invs []internal.TemplateInvocation

	for i := 0; i+1 < len(text); {
		if text[i] != '{' || text[i+1] != '{' {
			i++
			continue
		}
		end, ok := matchBraces(text, i)
		if !ok {
			i += 2
			continue
		}
		inv := parseInvocation(text[i+2 : end-2])
		if inv.Name != "" {
			invs = append(invs, inv)
		}
		i = end
	}

	return Templates{invs: invs}
}

func (t Templates) All() []internal.TemplateInvocation {
	return t.invs
}

func (t Templates) Has(name string) bool {
	_, ok := t.First(name)
	return ok
}

// First returns the first invocation of the named template; callers that care
// about later occurrences disambiguate by position via All.
func (t Templates) First(name string) (internal.TemplateInvocation, bool) {
	for _, inv := range t.invs {
		if inv.Name == name {
			return inv, true
		}
	}
	return internal.TemplateInvocation{}, false
}

func (t Templates) Get(template, field string) (string, bool) {
	inv, ok := t.First(template)
	if !ok {
		return "", false
	}
	return inv.Get(field)
}

// Require is the mandatory-field lookup: absence of the template or the field
// is a MissingFieldError, which aborts the page run.
func (t Templates) Require(template, field string) (string, error) {
	value, ok := t.Get(template, field)
	if !ok {
		return "", &internal.MissingFieldError{Template: template, Field: field}
	}
	return value, nil
}

// matchBraces finds the end of the invocation opening at start, tracking
// nested {{...}} pairs. Returns the index just past the closing braces.
func matchBraces(s string, start int) (int, bool) {
	depth := 0
	for i := start; i+1 < len(s); i++ {
		switch {
		case s[i] == '{' && s[i+1] == '{':
			depth++
			i++
		case s[i] == '}' && s[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func parseInvocation(body string) internal.TemplateInvocation {
	segments := splitTopLevel(body, '|')
	inv := internal.TemplateInvocation{Name: strings.TrimSpace(segments[0])}

	position := 0
	for _, segment := range segments[1:] {
		segment = strings.TrimRight(segment, "\r\n")
		if eq := indexTopLevel(segment, '='); eq >= 0 {
			inv.Fields = append(inv.Fields, internal.Field{
				Name:  strings.TrimSpace(segment[:eq]),
				Value: segment[eq+1:],
			})
			continue
		}
		position++
		inv.Fields = append(inv.Fields, internal.Field{
			Name:  strconv.Itoa(position),
			Value: segment,
		})
	}

	return inv
}

// splitTopLevel splits on sep outside of nested {{...}} and [[...]] pairs.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) {
			pair := s[i : i+2]
			if pair == "{{" || pair == "[[" {
				depth++
				i++
				continue
			}
			if pair == "}}" || pair == "]]" {
				depth--
				i++
				continue
			}
		}
		if depth == 0 && s[i] == sep {
			out = append(out, s[last:i])
			last = i + 1
		}
	}
	out = append(out, s[last:])
	return out
}

func indexTopLevel(s string, sep byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) {
			pair := s[i : i+2]
			if pair == "{{" || pair == "[[" {
				depth++
				i++
				continue
			}
			if pair == "}}" || pair == "]]" {
				depth--
				i++
				continue
			}
		}
		if depth == 0 && s[i] == sep {
			return i
		}
	}
	return -1
}
