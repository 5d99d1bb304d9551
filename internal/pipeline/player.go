package pipeline

import (
	"regexp"
	"strings"
)

const (
	infoboxPlayer = "Infobox player"
	tabsStatic    = "Tabs static"
)

var (
	reTabsShort = regexp.MustCompile(`\{\{Tabs static(?:.*\n){5,7}\}\}`)
	reTabsMid   = regexp.MustCompile(`\{\{Tabs static(?:.*\n){6,8}\}\}`)
	reTabsLong  = regexp.MustCompile(`\{\{Tabs static(?:.*\n){7,9}\}\}`)

	reDisplayTitle     = regexp.MustCompile(`\{\{DISPLAYTITLE:(.*)\}\}`)
	reDisplayTitleLine = regexp.MustCompile(`\{\{DISPLAYTITLE:(.*)\}\}\n`)

	reCategoryPlayer   = regexp.MustCompile(`(\[\[(.*?)Category(.*?)\]\]) player`)
	reTrailingSpace    = regexp.MustCompile(`\s+$`)
)

// socialFields is the fixed catalog of external-profile fields whose values
// may carry a URL prefix. Checked in this order, stripped to the last /
// segment.
var socialFields = []string{
	"askfm", "azubu", "douyu", "facebook", "gplus",
	"instagram", "reddit", "steam", "tencent", "twitch",
	"twitter", "vk", "weibo", "youtube",
}

func hasInfoboxPlayer(_ string, tpls Templates) bool {
	return tpls.Has(infoboxPlayer)
}

// PlayerRules is the player-page cleanup set.
func PlayerRules(checker PageChecker) []Rule {
	return []Rule{
		ruleCollapseNewlines(),
		ruleStripIndentation(),
		rulePlayerTabs(checker),
		{
			Label: "Removed DISPLAYTITLE",
			When:  hasInfoboxPlayer,
			Apply: func(text string, tpls Templates) (string, error) {
				id, err := tpls.Require(infoboxPlayer, "id")
				if err != nil {
					return text, err
				}
				m := reDisplayTitle.FindStringSubmatch(text)
				if m == nil || m[1] != id {
					return text, nil
				}
				return reDisplayTitleLine.ReplaceAllString(text, ""), nil
			},
		},
		{
			// A multi-fragment id is usually a real name, which marks a TCG
			// player rather than a video game handle.
			Label: "Identified TCG player",
			When:  hasInfoboxPlayer,
			Apply: func(text string, tpls Templates) (string, error) {
				id, err := tpls.Require(infoboxPlayer, "id")
				if err != nil {
					return text, err
				}
				if !strings.Contains(strings.TrimSpace(id), " ") {
					return text, nil
				}
				return reCategoryPlayer.ReplaceAllString(text, "${1} Pokémon TCG player"), nil
			},
		},
		{
			Label: "Bold player name/alias",
			When:  hasInfoboxPlayer,
			Apply: func(text string, tpls Templates) (string, error) {
				id, err := tpls.Require(infoboxPlayer, "id")
				if err != nil {
					return text, err
				}
				idClean := reTrailingSpace.ReplaceAllString(id, "")
				if idClean == "" || strings.Contains(text, "'''"+idClean+"'''") {
					return text, nil
				}
				reLead, err := regexp.Compile(`(\n[^|].*)` + regexp.QuoteMeta(idClean) + `(.* is a)`)
				if err != nil {
					return text, err
				}
				return reLead.ReplaceAllString(text, "${1}'''"+escapeRepl(idClean)+"'''${2}"), nil
			},
		},
		{
			Label: "Removed social media URL prefix",
			When:  hasInfoboxPlayer,
			Apply: func(text string, tpls Templates) (string, error) {
				out := text
				for _, field := range socialFields {
					value, ok := tpls.Get(infoboxPlayer, field)
					if !ok {
						continue
					}
					frag := strings.Split(strings.TrimSpace(value), "/")
					if len(frag) < 2 {
						continue
					}
					// youtube "channel/<id>" routes by raw identifier and
					// cannot be collapsed to the last segment.
					if field == "youtube" && containsSegment(frag, "channel") {
						continue
					}
					reField, err := regexp.Compile(`(\|` + field + `=)(.*)`)
					if err != nil {
						return text, err
					}
					out = reField.ReplaceAllString(out, "${1}"+escapeRepl(frag[len(frag)-1]))
				}
				return out, nil
			},
		},
		{
			Label: "Added reference section",
			When: func(text string, _ Templates) bool {
				return !reRefsHeaderExact.MatchString(text) && !reRefHeaderExact.MatchString(text)
			},
			Apply: func(text string, _ Templates) (string, error) {
				return text + "\n\n==References== \n{{Reflist}}", nil
			},
		},
		{
			Label: "Update References",
			When: func(text string, _ Templates) bool {
				return !reRefsHeaderExact.MatchString(text) && reRefHeaderExact.MatchString(text)
			},
			Apply: func(text string, _ Templates) (string, error) {
				return strings.ReplaceAll(text, "==Reference==", "==References=="), nil
			},
		},
	}
}

func rulePlayerTabs(checker PageChecker) Rule {
	return Rule{
		Label: `Switched tabs to "PlayerTabsHeader" template`,
		When: func(_ string, tpls Templates) bool {
			return tpls.Has(tabsStatic)
		},
		Apply: func(text string, tpls Templates) (string, error) {
			link3, ok := tpls.Get(tabsStatic, "link3")
			if !ok {
				return reTabsShort.ReplaceAllString(text, "{{PlayerTabsHeader}}"), nil
			}
			// A third tab means the player may be a broadcaster; that tab is
			// kept only when its target actually exists.
			name3, err := tpls.Require(tabsStatic, "name3")
			if err != nil {
				return text, err
			}
			exists, err := checker.PageExists(strings.TrimSpace(link3))
			if err != nil {
				return text, err
			}
			if name3 == "Broadcasts" && exists {
				return reTabsLong.ReplaceAllString(text, "{{PlayerTabsHeader|broadcaster=yes}}"), nil
			}
			return reTabsLong.ReplaceAllString(text, "{{PlayerTabsHeader}}"), nil
		},
	}
}

func containsSegment(frags []string, want string) bool {
	for _, f := range frags {
		if f == want {
			return true
		}
	}
	return false
}
