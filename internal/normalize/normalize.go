// Package normalize cleans raw company and person field values before
// matching and validation. Every function is pure and never fails: the
// worst case is the input returned with whitespace tidied.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
)

var multiSpace = regexp.MustCompile(`\s{2,}`)

var legalSuffix = regexp.MustCompile(
	`(?i)[\s,]+(INC\.?|INCORPORATED|LLC|L\.L\.C\.?|LTD\.?|LIMITED|CORP\.?|CORPORATION|COMPANY|CO\.|GROUP)\s*\.?\s*$`)

// collapse trims and collapses runs of whitespace to a single space.
func collapse(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(strings.TrimSpace(s), " "))
}

// titleCase title-cases s. A Caser is stateful, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// nameStopwords cannot stand alone as a company name.
var nameStopwords = map[string]bool{"the": true, "a": true, "an": true, "and": true, "of": true, "&": true}

// CompanyName strips trailing legal suffixes (repeatedly, so "Acme Group
// Inc" becomes "Acme"), collapses whitespace and title-cases the result.
// A suffix is kept when stripping it would leave nothing or a lone
// stopword ("The Company").
func CompanyName(name string) string {
	n := collapse(name)
	for {
		stripped := strings.TrimSpace(legalSuffix.ReplaceAllString(n, ""))
		if stripped == n || stripped == "" || nameStopwords[strings.ToLower(stripped)] {
			break
		}
		n = stripped
	}
	return titleCase(collapse(n))
}

// MatchKey is the lowercase normalized company name used for similarity.
func MatchKey(name string) string {
	return strings.ToLower(CompanyName(name))
}

// Domain derives a bare lowercase host from a website, falling back to the
// domain part of email.
func Domain(website, email string) string {
	if d := hostOf(website); d != "" {
		return d
	}
	return EmailDomain(email)
}

func hostOf(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, ".")
}

// EmailDomain returns the lowercase domain part of an email address.
func EmailDomain(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	i := strings.LastIndex(e, "@")
	if i < 0 || i == len(e)-1 {
		return ""
	}
	return e[i+1:]
}

// Company returns a normalized copy of c. Status, ID and locked fields are
// carried through untouched.
func Company(c model.Company) model.Company {
	out := c
	out.Name = CompanyName(c.Name)
	out.Website = strings.TrimSpace(c.Website)
	out.Email = Email(c.Email)
	if out.Domain = hostOf(c.Domain); out.Domain == "" {
		out.Domain = Domain(c.Website, out.Email)
	}
	out.LinkedInURL = strings.TrimSpace(c.LinkedInURL)
	out.Industry = collapse(c.Industry)
	out.Location = collapse(c.Location)
	if p := Phone(c.Phone); p.Valid {
		out.Phone = p.Value
	}
	return out
}

// Person returns a normalized copy of p.
func Person(p model.Person) model.Person {
	out := p
	out.FirstName, out.LastName = PersonName(p.FullName, p.FirstName, p.LastName)
	out.FullName = strings.TrimSpace(out.FirstName + " " + out.LastName)
	out.Title = Title(p.Title)
	out.Seniority = collapse(p.Seniority)
	out.Department = collapse(p.Department)
	out.Email = Email(p.Email)
	out.LinkedInURL = strings.TrimSpace(p.LinkedInURL)
	out.Location = collapse(p.Location)
	out.CompanyDomain = hostOf(p.CompanyDomain)
	if out.CompanyDomain == "" {
		out.CompanyDomain = EmailDomain(out.Email)
	}
	if ph := Phone(p.Phone); ph.Valid {
		out.Phone = ph.Value
	}
	return out
}
