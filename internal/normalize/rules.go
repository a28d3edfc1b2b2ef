package normalize

import (
	"regexp"
	"strconv"

	"jobmate/etl-service/internal/model"
)

// maxPlausibleYears bounds captured numbers; "100 years of history" is not a requirement.
const maxPlausibleYears = 50

const yearsUnit = `(?:years?|yrs?)`

// yearsRule is one entry of the ordered years-of-experience table.
// Rules are evaluated top to bottom against lowercased text and the first rule
// that produces a value wins. Within a rule the leftmost plausible match is used.
type yearsRule struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string) (min, max int, ok bool)
}

// yearsRules is evaluated in order. New patterns go where their priority belongs,
// not at the end by default.
var yearsRules = []yearsRule{
	{
		// "3-5 years", "3 to 5 yrs", "3–5+ years"
		name:    "range",
		pattern: regexp.MustCompile(`\b(\d{1,2})\s*(?:-|–|—|to)\s*(\d{1,2})\s*\+?\s*` + yearsUnit + `\b`),
		extract: func(m []string) (int, int, bool) {
			lo, hi := atoi(m[1]), atoi(m[2])
			if lo > hi {
				lo, hi = hi, lo
			}
			return lo, hi, plausible(hi)
		},
	},
	{
		// "5+ years"
		name:    "plus",
		pattern: regexp.MustCompile(`\b(\d{1,2})\s*\+\s*` + yearsUnit + `\b`),
		extract: single,
	},
	{
		// "minimum 2 years", "minimum of 2 years", "at least 2 yrs", "min. 2 years"
		name:    "minimum",
		pattern: regexp.MustCompile(`\b(?:minimum(?:\s+of)?|min\.?|at\s+least)\s*(\d{1,2})\s*\+?\s*` + yearsUnit + `\b`),
		extract: single,
	},
	{
		// "3 years"
		name:    "single",
		pattern: regexp.MustCompile(`\b(\d{1,2})\s*` + yearsUnit + `\b`),
		extract: single,
	},
}

func single(m []string) (int, int, bool) {
	n := atoi(m[1])
	return n, n, plausible(n)
}

func plausible(n int) bool { return n >= 0 && n <= maxPlausibleYears }

// captures are \d{1,2}, so Atoi cannot fail.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// extractYears applies yearsRules to lower (already lowercased) and reports the
// name of the rule that matched, or "" when none did.
func extractYears(lower string) (min, max *int, rule string) {
	for _, r := range yearsRules {
		for _, m := range r.pattern.FindAllStringSubmatch(lower, -1) {
			lo, hi, ok := r.extract(m)
			if !ok {
				continue
			}
			return &lo, &hi, r.name
		}
	}
	return nil, nil, ""
}

// ── Levels ──────────────────────────────────────────────────────────────────

type levelRule struct {
	level   model.ExperienceLevel
	pattern *regexp.Regexp
}

// levelRules is ordered by priority: the first level with any keyword hit wins.
var levelRules = []levelRule{
	{model.LevelExecutive, regexp.MustCompile(`\b(?:executive|director|head of|chief|vp|vice president|cto|cio|ceo|cfo)\b`)},
	{model.LevelSenior, regexp.MustCompile(`\b(?:senior|sr|lead|principal)\b`)},
	{model.LevelMid, regexp.MustCompile(`\b(?:mid[\s-]?level|mid[\s-]career|intermediate)\b`)},
	{model.LevelEntry, regexp.MustCompile(`\b(?:entry[\s-]?level|junior|jr|graduate|fresher|intern|internship|trainee)\b`)},
}

func extractLevel(lower string) model.ExperienceLevel {
	for _, r := range levelRules {
		if r.pattern.MatchString(lower) {
			return r.level
		}
	}
	return model.LevelUnspecified
}
