package pipeline

import (
	"strings"
	"testing"
)

func replaceRule(label, from, to string) Rule {
	return Rule{
		Label: label,
		Apply: func(text string, _ Templates) (string, error) {
			return strings.ReplaceAll(text, from, to), nil
		},
	}
}

func TestEngineRecordsOnlyRulesThatChangeText(t *testing.T) {
	engine := NewEngine([]Rule{
		replaceRule("first", "a", "b"),
		replaceRule("noop", "zzz", "q"),
		replaceRule("second", "b", "c"),
	})

	out, fired, err := engine.Run("a")
	if err != nil {
		t.Fatal(err)
	}
	if out != "c" {
		t.Fatalf("out=%q", out)
	}
	if len(fired) != 2 || fired[0] != "first" || fired[1] != "second" {
		t.Fatalf("fired=%v", fired)
	}
}

func TestEngineOrderMatters(t *testing.T) {
	forward := NewEngine([]Rule{
		replaceRule("a->b", "a", "b"),
		replaceRule("b->c", "b", "c"),
	})
	backward := NewEngine([]Rule{
		replaceRule("b->c", "b", "c"),
		replaceRule("a->b", "a", "b"),
	})

	out1, _, err := forward.Run("a")
	if err != nil {
		t.Fatal(err)
	}
	out2, _, err := backward.Run("a")
	if err != nil {
		t.Fatal(err)
	}
	if out1 != "c" || out2 != "b" {
		t.Fatalf("forward=%q backward=%q", out1, out2)
	}
}

func TestEnginePredicateSeesLatestText(t *testing.T) {
	engine := NewEngine([]Rule{
		replaceRule("mark", "start", "marker"),
		{
			Label: "guarded",
			When: func(text string, _ Templates) bool {
				return strings.Contains(text, "marker")
			},
			Apply: func(text string, _ Templates) (string, error) {
				return text + "!", nil
			},
		},
	})

	out, fired, err := engine.Run("start")
	if err != nil {
		t.Fatal(err)
	}
	if out != "marker!" {
		t.Fatalf("out=%q", out)
	}
	if len(fired) != 2 {
		t.Fatalf("fired=%v", fired)
	}
}

func TestSummarize(t *testing.T) {
	if changed, summary := Summarize("same", "same", []string{"x"}); changed || summary != "" {
		t.Fatalf("changed=%v summary=%q", changed, summary)
	}
	changed, summary := Summarize("old", "new", []string{"first", "second"})
	if !changed || summary != "first, second" {
		t.Fatalf("changed=%v summary=%q", changed, summary)
	}
}

func TestCollapseNewlines(t *testing.T) {
	rule := ruleCollapseNewlines()

	out, err := rule.Apply("a\n\n\n\n\n\nb", Templates{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "a\n\nb" {
		t.Fatalf("out=%q", out)
	}

	// Stable on its own output.
	again, _ := rule.Apply(out, Templates{})
	if again != out {
		t.Fatalf("not idempotent: %q -> %q", out, again)
	}
}

func TestStripIndentation(t *testing.T) {
	rule := ruleStripIndentation()

	out, err := rule.Apply("{{Foo\n |bar=1\n }}\n", Templates{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "{{Foo\n|bar=1\n}}\n" {
		t.Fatalf("out=%q", out)
	}
}

func TestStripEOLWhitespace(t *testing.T) {
	rule := ruleStripEOLWhitespace()

	out, err := rule.Apply("a  \nb\t\nc\n", Templates{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "a\nb\nc\n" {
		t.Fatalf("out=%q", out)
	}
}
