package pipeline

import (
	"reflect"
	"strings"
	"testing"

	"wikignome/internal"
)

type fakeChecker struct {
	exists map[string]bool
	asked  []string
}

func (f *fakeChecker) PageExists(title string) (bool, error) {
	f.asked = append(f.asked, title)
	return f.exists[title], nil
}

const playerInput = `{{DISPLAYTITLE:John Doe}}
{{Tabs static
|name1=Overview
|link1=John Doe
|name2=Results
|link2=John Doe/Results
}}
{{Infobox player
|id=John Doe
|twitch=https://www.twitch.tv/johndoe
|youtube=www.youtube.com/channel/UC123
|twitter=https://twitter.com/johndoe
}}

The player John Doe is a trading card game player from the United States.

[[Category:Players]] player`

func normalizePlayer(t *testing.T, text string, checker PageChecker) Result {
	t.Helper()
	page := internal.Page{Title: "John Doe", Text: text, OriginalText: text}
	result, err := Normalize(internal.KindPlayer, page, checker)
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestPlayerNormalize(t *testing.T) {
	result := normalizePlayer(t, playerInput, NeverExists{})

	wantFired := []string{
		`Switched tabs to "PlayerTabsHeader" template`,
		"Removed DISPLAYTITLE",
		"Identified TCG player",
		"Bold player name/alias",
		"Removed social media URL prefix",
		"Added reference section",
	}
	if !reflect.DeepEqual(result.Fired, wantFired) {
		t.Fatalf("fired=%v", result.Fired)
	}

	for _, want := range []string{
		"{{PlayerTabsHeader}}\n",
		"|twitch=johndoe\n",
		"|twitter=johndoe\n",
		"|youtube=www.youtube.com/channel/UC123\n",
		"The player '''John Doe''' is a trading card game player",
		"[[Category:Players]] Pokémon TCG player",
		"==References== \n{{Reflist}}",
	} {
		if !strings.Contains(result.Text, want) {
			t.Fatalf("output missing %q\n----\n%s", want, result.Text)
		}
	}

	if strings.Contains(result.Text, "DISPLAYTITLE") {
		t.Fatal("DISPLAYTITLE not removed")
	}
	if strings.Contains(result.Text, "Tabs static") {
		t.Fatal("tabs not replaced")
	}
}

func TestPlayerNormalizeIdempotent(t *testing.T) {
	first := normalizePlayer(t, playerInput, NeverExists{})
	second := normalizePlayer(t, first.Text, NeverExists{})

	if second.Changed {
		t.Fatalf("second pass changed text, fired=%v", second.Fired)
	}
}

func TestPlayerTabsBroadcaster(t *testing.T) {
	input := `{{Tabs static
|name1=Overview
|link1=Jane Roe
|name2=Results
|link2=Jane Roe/Results
|name3=Broadcasts
|link3=Jane Roe/Broadcasts
}}
{{Infobox player
|id=JaneRoe
}}`

	checker := &fakeChecker{exists: map[string]bool{"Jane Roe/Broadcasts": true}}
	result := normalizePlayer(t, input, checker)

	if !strings.Contains(result.Text, "{{PlayerTabsHeader|broadcaster=yes}}") {
		t.Fatalf("broadcaster tab not kept:\n%s", result.Text)
	}
	if len(checker.asked) != 1 || checker.asked[0] != "Jane Roe/Broadcasts" {
		t.Fatalf("asked=%v", checker.asked)
	}
}

func TestPlayerTabsThirdTabTargetMissing(t *testing.T) {
	input := `{{Tabs static
|name1=Overview
|link1=Jane Roe
|name2=Results
|link2=Jane Roe/Results
|name3=Broadcasts
|link3=Jane Roe/Broadcasts
}}
{{Infobox player
|id=JaneRoe
}}`

	result := normalizePlayer(t, input, NeverExists{})

	if !strings.Contains(result.Text, "{{PlayerTabsHeader}}") {
		t.Fatalf("tabs not replaced:\n%s", result.Text)
	}
	if strings.Contains(result.Text, "broadcaster=yes") {
		t.Fatal("broadcaster flag set without a live target")
	}
}

func TestPlayerYoutubeWithoutChannelIsStripped(t *testing.T) {
	input := `{{Infobox player
|id=JaneRoe
|youtube=www.youtube.com/janeroe
}}`

	result := normalizePlayer(t, input, NeverExists{})

	if !strings.Contains(result.Text, "|youtube=janeroe\n") {
		t.Fatalf("youtube prefix kept:\n%s", result.Text)
	}
}

func TestPlayerSingularReferenceHeaderRenamed(t *testing.T) {
	input := `{{Infobox player
|id=JaneRoe
}}

==Reference==
{{Reflist}}`

	result := normalizePlayer(t, input, NeverExists{})

	if !strings.Contains(result.Text, "==References==\n{{Reflist}}") {
		t.Fatalf("header not renamed:\n%s", result.Text)
	}
	if containsLabel(result.Fired, "Added reference section") {
		t.Fatalf("fired=%v", result.Fired)
	}
	if !containsLabel(result.Fired, "Update References") {
		t.Fatalf("fired=%v", result.Fired)
	}
}
