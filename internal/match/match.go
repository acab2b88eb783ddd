// Package match resolves incoming company and person records to existing
// entities. Perfect (exact key) rules are tried first; fuzzy name
// similarity is only consulted when no perfect rule hits.
package match

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/normalize"
)

// Default auto-match thresholds.
const (
	DefaultCompanyThreshold = 0.90
	DefaultPersonThreshold  = 0.88
)

// Type is the kind of match found.
type Type string

const (
	TypePerfect Type = "perfect"
	TypeFuzzy   Type = "fuzzy"
	TypeNone    Type = "none"
)

// Rule names the rule that produced a match.
type Rule string

const (
	RuleDomain          Rule = "domain"
	RuleLinkedIn        Rule = "linkedin_url"
	RuleEmail           Rule = "email"
	RuleEmailDomainName Rule = "email_domain_name"
	RuleFuzzyName       Rule = "fuzzy_name"
)

// Result is the outcome of matching one record against a candidate pool.
// Attempts holds every fuzzy comparison made, best first.
type Result struct {
	Type       Type               `json:"match_type"`
	MatchedID  string             `json:"matched_id,omitempty"`
	Confidence float64            `json:"confidence"`
	Rule       Rule               `json:"rule,omitempty"`
	Attempts   []model.Comparison `json:"attempts,omitempty"`
}

// Matched reports whether the result may be auto-applied.
func (r Result) Matched() bool {
	return r.Type == TypePerfect || r.Type == TypeFuzzy
}

// Unresolved reports whether the result belongs in the fallout queue:
// candidates were compared but none reached the threshold.
func (r Result) Unresolved() bool {
	return r.Type == TypeNone && len(r.Attempts) > 0
}

// Similarity returns a 0..1 edit-distance ratio between two strings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

func perfect(id string, rule Rule) Result {
	return Result{Type: TypePerfect, MatchedID: id, Confidence: 1, Rule: rule}
}

// Company matches rec against pool. The only perfect rule for companies is
// exact domain equality.
func Company(rec model.Company, pool []model.Company, threshold float64) Result {
	domain := normalize.Domain(firstNonEmpty(rec.Domain, rec.Website), rec.Email)
	if domain != "" {
		for _, c := range pool {
			if normalize.Domain(firstNonEmpty(c.Domain, c.Website), c.Email) == domain {
				return perfect(c.ID, RuleDomain)
			}
		}
	}

	key := normalize.MatchKey(rec.Name)
	var attempts []model.Comparison
	for _, c := range pool {
		ck := normalize.MatchKey(c.Name)
		if key == "" || ck == "" {
			continue
		}
		attempts = append(attempts, model.Comparison{CandidateID: c.ID, CandidateName: c.Name, Confidence: Similarity(key, ck)})
	}
	return fuzzyResult(attempts, threshold)
}

// Person matches rec against pool. Perfect rules in order: LinkedIn URL,
// email, then email domain plus exact first and last name. Fuzzy
// comparison only considers candidates with the same company domain.
func Person(rec model.Person, pool []model.Person, threshold float64) Result {
	if li := linkedInKey(rec.LinkedInURL); li != "" {
		for _, p := range pool {
			if linkedInKey(p.LinkedInURL) == li {
				return perfect(p.ID, RuleLinkedIn)
			}
		}
	}

	email := normalize.Email(rec.Email)
	if email != "" {
		for _, p := range pool {
			if normalize.Email(p.Email) == email {
				return perfect(p.ID, RuleEmail)
			}
		}
	}

	emailDomain := normalize.EmailDomain(email)
	if emailDomain != "" && rec.FirstName != "" && rec.LastName != "" {
		for _, p := range pool {
			if normalize.EmailDomain(p.Email) == emailDomain &&
				strings.EqualFold(p.FirstName, rec.FirstName) &&
				strings.EqualFold(p.LastName, rec.LastName) {
				return perfect(p.ID, RuleEmailDomainName)
			}
		}
	}

	domain := personDomain(rec)
	if domain == "" {
		return Result{Type: TypeNone}
	}
	key := personKey(rec)
	var attempts []model.Comparison
	for _, p := range pool {
		if personDomain(p) != domain {
			continue
		}
		pk := personKey(p)
		if key == "" || pk == "" {
			continue
		}
		attempts = append(attempts, model.Comparison{CandidateID: p.ID, CandidateName: p.DisplayName(), Confidence: Similarity(key, pk)})
	}
	return fuzzyResult(attempts, threshold)
}

func fuzzyResult(attempts []model.Comparison, threshold float64) Result {
	if len(attempts) == 0 {
		return Result{Type: TypeNone}
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].Confidence > attempts[j].Confidence
	})

	best := attempts[0]
	res := Result{Confidence: best.Confidence, Attempts: attempts}
	if best.Confidence >= threshold {
		res.Type = TypeFuzzy
		res.MatchedID = best.CandidateID
		res.Rule = RuleFuzzyName
		return res
	}
	res.Type = TypeNone
	return res
}

// Fallout builds the fallout entry for an unresolved result.
func (r Result) Fallout(kind model.EntityKind, name, key string) *model.Fallout {
	if !r.Unresolved() {
		return nil
	}
	f := &model.Fallout{
		Kind:           kind,
		InputName:      name,
		InputKey:       key,
		BestConfidence: r.Confidence,
		Attempts:       r.Attempts,
	}
	f.BestCandidate = r.Attempts[0].CandidateID
	return f
}

func personKey(p model.Person) string {
	first, last := normalize.PersonName(p.FullName, p.FirstName, p.LastName)
	return strings.ToLower(strings.TrimSpace(first + " " + last))
}

func personDomain(p model.Person) string {
	if d := normalize.Domain(p.CompanyDomain, ""); d != "" {
		return d
	}
	return normalize.EmailDomain(p.Email)
}

func linkedInKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, "/")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
