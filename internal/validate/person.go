package validate

import (
	"regexp"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type personRule func(p *model.Person) *model.ValidationFailure

var personRules = []personRule{
	checkPersonName,
	checkEmail,
	checkPersonLinkedIn,
	checkTitle,
}

// Person validates a contact record.
func Person(p *model.Person) Result {
	var failures []model.ValidationFailure
	for _, rule := range personRules {
		if f := rule(p); f != nil {
			failures = append(failures, *f)
		}
	}
	return fold(stamp(failures, p.ID, model.KindPerson))
}

func checkPersonName(p *model.Person) *model.ValidationFailure {
	if strings.TrimSpace(p.FirstName) != "" && strings.TrimSpace(p.LastName) != "" {
		return nil
	}
	return failure("name", model.RulePersonName, model.SeverityCritical,
		"first and last name are required", p.DisplayName())
}

func checkEmail(p *model.Person) *model.ValidationFailure {
	if emailPattern.MatchString(strings.TrimSpace(p.Email)) {
		return nil
	}
	return failure("email", model.RuleEmailFormat, model.SeverityError,
		"email is missing or malformed", p.Email)
}

// A missing LinkedIn URL is allowed; a present one must be a profile URL.
func checkPersonLinkedIn(p *model.Person) *model.ValidationFailure {
	if p.LinkedInURL == "" || strings.Contains(strings.ToLower(p.LinkedInURL), "linkedin.com/in/") {
		return nil
	}
	return failure("linkedin_url", model.RulePersonLinkedIn, model.SeverityWarning,
		"linkedin url must contain linkedin.com/in/", p.LinkedInURL)
}

func checkTitle(p *model.Person) *model.ValidationFailure {
	if strings.TrimSpace(p.Title) != "" {
		return nil
	}
	return failure("title", model.RuleTitlePresent, model.SeverityWarning, "title is required", "")
}
