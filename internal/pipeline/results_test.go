package pipeline

import (
	"strings"
	"testing"

	"wikignome/internal"
)

const resultsInput = `{{Tabs static
|name1=Overview
|link1=John Doe
|name2=Results
|link2=John Doe/Results
}}
{{DISPLAYTITLE:John Doe/Results}}
__NOTOC__
==Results==
{{Player results table}}
==Detailed Results==`

func normalizeResults(t *testing.T, text string, checker PageChecker) Result {
	t.Helper()
	page := internal.Page{Title: "John Doe/Results", Text: text, OriginalText: text}
	result, err := Normalize(internal.KindResults, page, checker)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestResultsNormalize(t *testing.T) {
	result := normalizeResults(t, resultsInput, NeverExists{})

	if !strings.HasPrefix(result.Text, "{{DISPLAYTITLE:John Doe/Results}}\n") {
		t.Fatalf("DISPLAYTITLE not at top:\n%s", result.Text)
	}
	if strings.Contains(result.Text, "__NOTOC__") {
		t.Fatal("__NOTOC__ not removed")
	}
	if !strings.Contains(result.Text, "{{PlayerTabsHeader}}") {
		t.Fatalf("tabs not replaced:\n%s", result.Text)
	}
	if !strings.Contains(result.Text, "{{Player results table}}\n\n==Detailed Results==") {
		t.Fatalf("no gap before the detailed section:\n%s", result.Text)
	}

	for _, label := range []string{
		`Switched tabs to "PlayerTabsHeader" template`,
		"Moved DISPLAYTITLE to top",
		"Removed __NOTOC__",
		"Added newline before section header",
	} {
		if !containsLabel(result.Fired, label) {
			t.Fatalf("missing %q in fired=%v", label, result.Fired)
		}
	}
}

func TestResultsNormalizeIdempotent(t *testing.T) {
	first := normalizeResults(t, resultsInput, NeverExists{})
	second := normalizeResults(t, first.Text, NeverExists{})

	if second.Changed {
		t.Fatalf("second pass changed text, fired=%v", second.Fired)
	}
}

func TestResultsTabsBroadcaster(t *testing.T) {
	input := `{{Tabs static
|name1=Overview
|link1=John Doe
|name2=Results
|link2=John Doe/Results
|name3=Broadcasts
}}
page body`

	checker := &fakeChecker{exists: map[string]bool{"John Doe/Broadcasts": true}}
	result := normalizeResults(t, input, checker)

	if !strings.Contains(result.Text, "{{PlayerTabsHeader|broadcaster=yes}}") {
		t.Fatalf("broadcaster tab not kept:\n%s", result.Text)
	}
	if len(checker.asked) != 1 || checker.asked[0] != "John Doe/Broadcasts" {
		t.Fatalf("asked=%v", checker.asked)
	}
}
