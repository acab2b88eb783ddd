package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/outreach-cli/internal/model"
)

// MinEmployeeCount is exclusive: a company with exactly this many
// employees fails.
const MinEmployeeCount = 50

type companyRule func(c *model.Company) *model.ValidationFailure

// companyRules run in this order; the first failure becomes the reason.
var companyRules = []companyRule{
	checkCompanyName,
	checkWebsite,
	checkEmployeeCount,
	checkCompanyLinkedIn,
}

// Company validates c against its slot rows. Every rule runs; nothing
// short-circuits.
func Company(c *model.Company, slots []model.Slot) Result {
	var failures []model.ValidationFailure
	for _, rule := range companyRules {
		if f := rule(c); f != nil {
			failures = append(failures, *f)
		}
	}
	failures = append(failures, checkSlots(slots)...)
	return fold(stamp(failures, c.ID, model.KindCompany))
}

func checkCompanyName(c *model.Company) *model.ValidationFailure {
	if utf8.RuneCountInString(strings.TrimSpace(c.Name)) >= 3 {
		return nil
	}
	return failure("name", model.RuleCompanyName, model.SeverityCritical,
		"company name must be at least 3 characters", c.Name)
}

func checkWebsite(c *model.Company) *model.ValidationFailure {
	if validWebsite(c.Website) {
		return nil
	}
	return failure("website", model.RuleWebsite, model.SeverityError,
		"website must start with http:// or https:// and contain a domain", c.Website)
}

func validWebsite(raw string) bool {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	default:
		return false
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || strings.ContainsAny(l, " \t") {
			return false
		}
	}
	return true
}

func checkEmployeeCount(c *model.Company) *model.ValidationFailure {
	if c.EmployeeCount != nil && *c.EmployeeCount > MinEmployeeCount {
		return nil
	}
	return failure("employee_count", model.RuleEmployeeCount, model.SeverityError,
		fmt.Sprintf("employee count must be greater than %d", MinEmployeeCount), intValue(c.EmployeeCount))
}

func checkCompanyLinkedIn(c *model.Company) *model.ValidationFailure {
	if strings.Contains(strings.ToLower(c.LinkedInURL), "linkedin.com/company/") {
		return nil
	}
	return failure("linkedin_url", model.RuleCompanyLinkedIn, model.SeverityError,
		"linkedin url must contain linkedin.com/company/", c.LinkedInURL)
}

// checkSlots emits one failure per missing slot row. Fill status is not
// considered here.
func checkSlots(slots []model.Slot) []model.ValidationFailure {
	present := model.SlotsByType(slots)
	var out []model.ValidationFailure
	for _, st := range model.SlotTypes {
		if _, ok := present[st]; ok {
			continue
		}
		out = append(out, *failure("slot_"+string(st), model.RuleSlotPresence, model.SeverityError,
			fmt.Sprintf("missing %s slot", st), ""))
	}
	return out
}
