package pipeline

import (
	"regexp"
	"strings"
)

var (
	reNotoc         = regexp.MustCompile(`(\n*)__NOTOC__(\n*)`)
	reDetailedGap   = regexp.MustCompile(`([}_])(\n==Detailed)`)
)

// ResultsRules is the player-results-page cleanup set.
func ResultsRules(title string, checker PageChecker) []Rule {
	return []Rule{
		ruleCollapseNewlines(),
		ruleStripIndentation(),
		ruleStripEOLWhitespace(),
		ruleResultsTabs(title, checker),
		{
			Label: "Moved DISPLAYTITLE to top",
			Apply: func(text string, _ Templates) (string, error) {
				header := reDisplayTitle.FindString(text)
				if header == "" {
					return text, nil
				}
				stripped := reDisplayTitleLine.ReplaceAllString(text, "")
				return header + "\n" + stripped, nil
			},
		},
		{
			Label: "Removed __NOTOC__",
			When: func(text string, _ Templates) bool {
				return strings.Contains(text, "__NOTOC__")
			},
			Apply: func(text string, _ Templates) (string, error) {
				return reNotoc.ReplaceAllString(text, "\n\n"), nil
			},
		},
		{
			Label: "Added newline before section header",
			Apply: func(text string, _ Templates) (string, error) {
				return reDetailedGap.ReplaceAllString(text, "${1}\n${2}"), nil
			},
		},
	}
}

// ruleResultsTabs keys the broadcaster variant off the base page's
// /Broadcasts subpage rather than the tab list itself, since results pages
// inherit their tabs from the player page.
func ruleResultsTabs(title string, checker PageChecker) Rule {
	base := strings.SplitN(title, "/", 2)[0]
	return Rule{
		Label: `Switched tabs to "PlayerTabsHeader" template`,
		When: func(_ string, tpls Templates) bool {
			return tpls.Has(tabsStatic)
		},
		Apply: func(text string, _ Templates) (string, error) {
			exists, err := checker.PageExists(base + "/Broadcasts")
			if err != nil {
				return text, err
			}
			if exists {
				return reTabsMid.ReplaceAllString(text, "{{PlayerTabsHeader|broadcaster=yes}}"), nil
			}
			return reTabsShort.ReplaceAllString(text, "{{PlayerTabsHeader}}"), nil
		},
	}
}
