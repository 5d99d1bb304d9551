package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const infoboxLeague = "Infobox league"

var (
	reLeagueCupName = regexp.MustCompile(`League Cup - (.*) [0-9]{2}-[0-9]{2}-[0-9]{4}`)
	reCityField     = regexp.MustCompile(`\|city=(.*)\n`)
	reShortname     = regexp.MustCompile(`\|shortname=(.*)\n`)
	reTickername    = regexp.MustCompile(`\|tickername=(.*)\n`)
	reGameField     = regexp.MustCompile(`\|game=(.*)\n`)
	reFormatLine    = regexp.MustCompile(`(\|format=.*\n)(\|.*)`)
	reTierWeekly    = regexp.MustCompile(`\|liquipediatier=(.*)Weekly(.*)\n`)

	reFormatHeader = regexp.MustCompile(`\n==Format==\n`)
	reResultsSwiss = regexp.MustCompile(`===?Results?===?\n\{\{Swiss`)
	reDescAnchor   = regexp.MustCompile(`(\}*\n*)(==Tournament Details==)`)

	reLocalPrize      = regexp.MustCompile(`\|localprize=([0-9]{1,3})[^0-9|\n]*([|\n])`)
	reSpaceBeforeBar  = regexp.MustCompile(`[ ]+([|}])`)
	reSwissRow        = regexp.MustCompile(`\|place=(.*)\|flag=(.*)\|(.*)\|win_m=(.*)\|lose_m=(.*)\|tie_m=(.*)\|opw%=([^%]*)%?\|oopw%=([^%]*)%?\}\}`)
	reAnyRefHeader    = regexp.MustCompile(`=References?=`)
	reRefsHeaderExact = regexp.MustCompile(`(?m)^=+ *References *=+ *$`)
	reRefHeaderExact  = regexp.MustCompile(`(?m)^=+ *Reference *=+ *$`)
)

func hostedInNorthAmerica(country string) bool {
	return country == "United States" || country == "Canada"
}

func hasInfoboxLeague(_ string, tpls Templates) bool {
	return tpls.Has(infoboxLeague)
}

// LeagueCupRules is the weekly-tournament cleanup set. Order is load-bearing:
// the section restructure creates the header the description rule anchors on,
// and the reference append must see the final header layout.
func LeagueCupRules(title string) []Rule {
	return []Rule{
		ruleStripEOLWhitespace(),
		{
			Label: "Updated city with state",
			When:  hasInfoboxLeague,
			Apply: func(text string, tpls Templates) (string, error) {
				name, err := tpls.Require(infoboxLeague, "name")
				if err != nil {
					return text, err
				}
				country, err := tpls.Require(infoboxLeague, "country")
				if err != nil {
					return text, err
				}
				if !hostedInNorthAmerica(country) {
					return text, nil
				}
				m := reLeagueCupName.FindStringSubmatch(name)
				if m == nil {
					return text, nil
				}
				city, err := tpls.Require(infoboxLeague, "city")
				if err != nil {
					return text, err
				}
				// Only rewrite when the current value is a fragment of the
				// parsed locality; anything else risks clobbering data the
				// event name does not describe.
				if !strings.Contains(m[1], city) {
					return text, nil
				}
				return reCityField.ReplaceAllString(text, "|city="+escapeRepl(m[1])+"\n"), nil
			},
		},
		{
			Label: "Removed shortname",
			When:  hasInfoboxLeague,
			Apply: func(text string, tpls Templates) (string, error) {
				name, err := tpls.Require(infoboxLeague, "name")
				if err != nil {
					return text, err
				}
				short, ok := tpls.Get(infoboxLeague, "shortname")
				if !ok || short != name {
					return text, nil
				}
				return reShortname.ReplaceAllString(text, ""), nil
			},
		},
		{
			Label: "Removed tickername",
			When:  hasInfoboxLeague,
			Apply: func(text string, tpls Templates) (string, error) {
				name, err := tpls.Require(infoboxLeague, "name")
				if err != nil {
					return text, err
				}
				ticker, ok := tpls.Get(infoboxLeague, "tickername")
				if !ok || ticker != name {
					return text, nil
				}
				return reTickername.ReplaceAllString(text, ""), nil
			},
		},
		{
			Label: "Set game=TCG",
			When:  hasInfoboxLeague,
			Apply: func(text string, _ Templates) (string, error) {
				return reGameField.ReplaceAllString(text, "|game=TCG\n"), nil
			},
		},
		{
			Label: "Added series name",
			When: func(text string, tpls Templates) bool {
				return tpls.Has(infoboxLeague) && !strings.Contains(text, "|series=")
			},
			Apply: func(text string, _ Templates) (string, error) {
				return reFormatLine.ReplaceAllString(text, "${1}|series=Pokémon League Cup\n${2}"), nil
			},
		},
		{
			Label: "Changed to Tier 3",
			When:  hasInfoboxLeague,
			Apply: func(text string, _ Templates) (string, error) {
				return reTierWeekly.ReplaceAllString(text, "|liquipediatier=3\n"), nil
			},
		},
		{
			Label: "Sectioned 'Tournament Details'",
			Apply: func(text string, _ Templates) (string, error) {
				return reFormatHeader.ReplaceAllString(text, "\n==Tournament Details==\n===Format===\n"), nil
			},
		},
		{
			Label: "Updated Results section headers",
			Apply: func(text string, _ Templates) (string, error) {
				out := strings.ReplaceAll(text, "===Swiss Results===", "===Swiss Rounds Standings===")
				if !strings.Contains(text, "==Results==") {
					out = strings.ReplaceAll(out, "===Masters Top 8===", "==Results==\n===Single Elimination Finals Bracket===")
				}
				return reResultsSwiss.ReplaceAllString(out, "==Results==\n===Swiss Rounds Standings===\n{{Swiss"), nil
			},
		},
		ruleAddDescription(title),
		{
			Label: "Updated prize pool templates",
			Apply: func(text string, _ Templates) (string, error) {
				out := strings.ReplaceAll(text, "|localcurrency=points", "|points=CP")
				out = reLocalPrize.ReplaceAllString(out, "|points=${1}${2}")
				// Space trimming stays on prize pool lines; swiss rows carry
				// a deliberate blank column that must survive.
				lines := strings.Split(out, "\n")
				for i, line := range lines {
					if strings.Contains(line, "prize") {
						lines[i] = reSpaceBeforeBar.ReplaceAllString(line, "${1}")
					}
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			Label: "Updated swiss standings table",
			Apply: func(text string, _ Templates) (string, error) {
				out := strings.ReplaceAll(text, "Swiss table/start|rounds=0", "Swiss table/start")
				// One all-or-nothing match over the whole row: a record with
				// the wrong field count simply does not match.
				return reSwissRow.ReplaceAllString(out, "|${1}| |${2}|${3}|${4}|${5}|${6}|${7}|${8}}}"), nil
			},
		},
		{
			Label: "Appended reference section",
			When: func(text string, _ Templates) bool {
				return !reAnyRefHeader.MatchString(text)
			},
			Apply: func(text string, _ Templates) (string, error) {
				return text + "\n\n==References==\n{{Reflist}}", nil
			},
		},
	}
}

// ruleAddDescription synthesizes the lead sentence from the title locality
// and three infobox fields, and inserts it right before the Tournament
// Details header. When that header is absent the description goes to the end
// of the page instead of being dropped.
func ruleAddDescription(title string) Rule {
	return Rule{
		Label: "Added description",
		Apply: func(text string, tpls Templates) (string, error) {
			parts := strings.Split(title, "/")
			if len(parts) != 3 {
				return text, fmt.Errorf("title %q does not split into event/location/date", title)
			}
			locality := parts[1]

			if strings.Contains(text, "'''"+locality+" League Cup'''") {
				return text, nil
			}

			dateRaw, err := tpls.Require(infoboxLeague, "date")
			if err != nil {
				return text, err
			}
			country, err := tpls.Require(infoboxLeague, "country")
			if err != nil {
				return text, err
			}
			city, err := tpls.Require(infoboxLeague, "city")
			if err != nil {
				return text, err
			}

			day, err := time.Parse("2006-01-02", strings.TrimSpace(dateRaw))
			if err != nil {
				return text, fmt.Errorf("parse date field: %w", err)
			}

			location := fmt.Sprintf("%s, %s", city, country)
			if hostedInNorthAmerica(country) {
				location = fmt.Sprintf("%s of the %s", city, country)
			}
			when := fmt.Sprintf("%d %s %d", day.Day(), day.Month(), day.Year())

			desc := fmt.Sprintf("The '''%s League Cup''' was a trading card game tournament "+
				"held at %s on %s. The event was part of the Pokémon Championship Series "+
				"where players earn Championship Points (CP) in order to qualify for the "+
				"{{series|worlds|Pokémon World Championships}}.", locality, location, when)

			out := reDescAnchor.ReplaceAllString(text, "${1}"+escapeRepl(desc)+"\n\n${2}")
			if out == text {
				out = strings.TrimRight(text, "\n") + "\n\n" + desc + "\n"
			}
			return out, nil
		},
	}
}
