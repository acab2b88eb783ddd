package scoring

import (
	"strings"
	"unicode"
)

type seniorityTier struct {
	score    int
	keywords []string
}

// Tiers are checked highest first; the first keyword hit wins.
var seniorityTiers = []seniorityTier{
	{100, []string{"ceo", "cfo", "coo", "cto", "cio", "cmo", "chro", "cro", "chief", "president", "founder", "owner", "c-level", "c-suite"}},
	{85, []string{"vp", "svp", "evp", "director", "executive"}},
	{70, []string{"manager", "head", "senior", "sr", "lead", "principal"}},
	{50, []string{"coordinator", "specialist", "analyst", "mid"}},
	{30, []string{"associate", "assistant", "junior", "jr", "entry", "intern"}},
}

// Seniority ranks a title and free-form seniority text. Keywords are
// matched as whole words so "cto" does not hit inside "director".
func Seniority(title, seniority string) int {
	text := strings.ToLower(strings.TrimSpace(title + " " + seniority))
	if text == "" {
		return MissingSeniority
	}
	text = strings.ReplaceAll(text, "vice president", "vp")
	text = strings.ReplaceAll(text, "vice-president", "vp")

	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	}) {
		words[w] = true
		for _, part := range strings.Split(w, "-") {
			words[part] = true
		}
	}

	for _, tier := range seniorityTiers {
		for _, kw := range tier.keywords {
			if words[kw] {
				return tier.score
			}
		}
	}
	return UnmatchedSeniority
}
