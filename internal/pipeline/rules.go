package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one predicate-guarded text transform. Label goes into the edit
// summary verbatim when the transform changes the text. When is optional
// (nil means always); Apply returns the rewritten text, and the engine, not
// the rule body, decides whether the rule fired.
type Rule struct {
	Label string
	When  func(text string, tpls Templates) bool
	Apply func(text string, tpls Templates) (string, error)
}

// Engine applies rules strictly in registration order. Predicates are
// re-evaluated against the latest text immediately before each rule, because
// earlier rules may change the conditions later rules check. There is no
// rollback: a rule that cannot match simply does not fire.
type Engine struct {
	rules []Rule
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Run rewrites text through the rule sequence and reports the labels of
// rules that changed it, in firing order. A rule error aborts the run and
// the partially rewritten text is discarded by the caller.
func (e *Engine) Run(text string) (string, []string, error) {
	tpls := ExtractTemplates(text)
	fired := make([]string, 0)

	for _, rule := range e.rules {
		if rule.When != nil && !rule.When(text, tpls) {
			continue
		}
		out, err := rule.Apply(text, tpls)
		if err != nil {
			return text, fired, fmt.Errorf("rule %q: %w", rule.Label, err)
		}
		if out == text {
			continue
		}
		text = out
		tpls = ExtractTemplates(text)
		fired = append(fired, rule.Label)
	}

	return text, fired, nil
}

// Summarize is the change gate: unchanged text yields no summary and the
// caller must not persist.
func Summarize(original, final string, fired []string) (bool, string) {
	if final == original {
		return false, ""
	}
	return true, strings.Join(fired, ", ")
}

// escapeRepl escapes a literal string for use in a regexp replacement.
func escapeRepl(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// applyUntilStable reruns a transform until it stops changing the text, so
// rules built from single-pass substitutions stay idempotent on pathological
// input (e.g. long newline runs).
func applyUntilStable(text string, transform func(string) string) string {
	for {
		out := transform(text)
		if out == text {
			return out
		}
		text = out
	}
}

// PageChecker answers "does this page exist" for rules whose branch depends
// on another page. It is injected, never reached through shared state, so
// the rule sets stay testable without a live wiki.
type PageChecker interface {
	PageExists(title string) (bool, error)
}

// NeverExists backs offline one-shot runs where no wiki is reachable.
type NeverExists struct{}

func (NeverExists) PageExists(string) (bool, error) { return false, nil }

var (
	reEOLWhitespace = regexp.MustCompile(`[ \t]+\n`)
	reNewlineSkip   = regexp.MustCompile(`\n\n\s`)
	reTripleNewline = regexp.MustCompile(`\n\n\n`)
	reIndentPipe    = regexp.MustCompile(`\n\s\|`)
	reIndentClose   = regexp.MustCompile(`\n\s\}\}`)
	reIndentOpen    = regexp.MustCompile(`\n\s\{\{`)
)

// ruleStripEOLWhitespace removes trailing spaces and tabs on every line.
// It runs early so later exact-equality field comparisons see clean values.
func ruleStripEOLWhitespace() Rule {
	return Rule{
		Label: "Removed end-of-line whitespaces",
		Apply: func(text string, _ Templates) (string, error) {
			return reEOLWhitespace.ReplaceAllString(text, "\n"), nil
		},
	}
}

func ruleCollapseNewlines() Rule {
	return Rule{
		Label: "Removed excessive newline skips",
		Apply: func(text string, _ Templates) (string, error) {
			return applyUntilStable(text, func(s string) string {
				s = reNewlineSkip.ReplaceAllString(s, "\n")
				return reTripleNewline.ReplaceAllString(s, "\n\n")
			}), nil
		},
	}
}

func ruleStripIndentation() Rule {
	return Rule{
		Label: "Removed template indentation",
		Apply: func(text string, _ Templates) (string, error) {
			return applyUntilStable(text, func(s string) string {
				s = reIndentPipe.ReplaceAllString(s, "\n|")
				s = reIndentClose.ReplaceAllString(s, "\n}}")
				return reIndentOpen.ReplaceAllString(s, "\n{{")
			}), nil
		},
	}
}
