package normalize

import (
	"regexp"
	"strings"
)

var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "prof": true,
}

var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true,
}

func bareToken(tok string) string {
	return strings.ToLower(strings.Trim(tok, ".,"))
}

// PersonName returns title-cased first and last names. When first and last
// are both empty the full name is split, using the last remaining token as
// the last name. Honorific prefixes and generational suffixes are dropped.
func PersonName(full, first, last string) (string, string) {
	if strings.TrimSpace(first) != "" || strings.TrimSpace(last) != "" {
		return titleCase(cleanName(first)), titleCase(cleanName(last))
	}

	toks := nameTokens(full)
	switch len(toks) {
	case 0:
		return "", ""
	case 1:
		return titleCase(toks[0]), ""
	}
	return titleCase(strings.Join(toks[:len(toks)-1], " ")), titleCase(toks[len(toks)-1])
}

func cleanName(s string) string {
	return strings.Join(nameTokens(s), " ")
}

func nameTokens(s string) []string {
	toks := strings.Fields(s)
	for len(toks) > 0 && honorifics[bareToken(toks[0])] {
		toks = toks[1:]
	}
	for len(toks) > 0 && nameSuffixes[bareToken(toks[len(toks)-1])] {
		toks = toks[:len(toks)-1]
	}
	for i, t := range toks {
		toks[i] = strings.TrimSuffix(t, ",")
	}
	return toks
}

type titleSynonym struct {
	re  *regexp.Regexp
	out string
}

// Order matters: "vice president of" must be tried before "vice president".
var titleSynonyms = []titleSynonym{
	{regexp.MustCompile(`(?i)\b(vice[\s-]+president|v\.\s?p\.?|vp)\s+of\b`), "VP"},
	{regexp.MustCompile(`(?i)\bvice[\s-]+president\b`), "VP"},
	{regexp.MustCompile(`(?i)\bv\.\s?p\.?`), "VP"},
	{regexp.MustCompile(`(?i)\bchief\s+executive(\s+officer)?\b`), "CEO"},
	{regexp.MustCompile(`(?i)\bc\.e\.o\.?`), "CEO"},
	{regexp.MustCompile(`(?i)\bchief\s+financial(\s+officer)?\b`), "CFO"},
	{regexp.MustCompile(`(?i)\bc\.f\.o\.?`), "CFO"},
	{regexp.MustCompile(`(?i)\bdir\b\.?`), "Director"},
}

var upperTokens = map[string]bool{
	"VP": true, "SVP": true, "EVP": true, "CEO": true, "CFO": true, "COO": true,
	"CTO": true, "CIO": true, "CMO": true, "CHRO": true, "HR": true, "IT": true,
}

// Title maps synonym sets to canonical abbreviations, then title-cases the
// result while keeping known abbreviations upper case.
func Title(title string) string {
	t := collapse(title)
	if t == "" {
		return ""
	}
	for _, syn := range titleSynonyms {
		t = syn.re.ReplaceAllString(t, syn.out)
	}
	toks := strings.Fields(titleCase(collapse(t)))
	for i, tok := range toks {
		if up := strings.ToUpper(tok); upperTokens[strings.Trim(up, ",&/")] {
			toks[i] = up
		}
	}
	return strings.Join(toks, " ")
}
