package ingest

import (
	"strconv"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Header aliases accepted for each field, in priority order. Headers are
// compared after normalizeCol.
var (
	companyColumns = map[string][]string{
		"id":             {"id", "company_id"},
		"name":           {"name", "company", "company_name", "account_name"},
		"domain":         {"domain", "company_domain"},
		"website":        {"website", "url", "company_website"},
		"employee_count": {"employee_count", "employees", "headcount", "number_of_employees"},
		"linkedin_url":   {"linkedin_url", "linkedin", "company_linkedin_url"},
		"industry":       {"industry"},
		"phone":          {"phone", "company_phone"},
		"email":          {"email", "company_email"},
		"location":       {"location", "city", "hq_location"},
	}
	personColumns = map[string][]string{
		"id":             {"id", "person_id", "contact_id"},
		"company_id":     {"company_id", "account_id"},
		"company_domain": {"company_domain", "domain"},
		"first_name":     {"first_name", "firstname", "given_name"},
		"last_name":      {"last_name", "lastname", "surname"},
		"full_name":      {"full_name", "name", "contact_name"},
		"title":          {"title", "job_title"},
		"seniority":      {"seniority"},
		"department":     {"department"},
		"email":          {"email", "work_email"},
		"phone":          {"phone", "mobile_phone", "direct_phone"},
		"linkedin_url":   {"linkedin_url", "linkedin", "person_linkedin_url"},
		"location":       {"location", "city"},
		"industry":       {"industry"},
		"employee_count": {"employee_count", "employees", "company_employees"},
	}
)

// normalizeCol lowercases a header and folds spaces and dashes to underscores.
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"`)
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(s)
}

func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// The first occurrence of a duplicated header wins.
		if _, ok := m[normalizeCol(col)]; !ok {
			m[normalizeCol(col)] = i
		}
	}
	return m
}

// row is one data record addressed by header name.
type row struct {
	cols map[string]int
	rec  []string
}

// get returns the first non-empty value among the field's aliases.
func (r row) get(aliases map[string][]string, field string) string {
	for _, name := range aliases[field] {
		idx, ok := r.cols[name]
		if !ok || idx >= len(r.rec) {
			continue
		}
		if v := strings.TrimSpace(r.rec[idx]); v != "" {
			return v
		}
	}
	return ""
}

// parseIntPtr parses counts such as "1,200" or "120.0". Blank or
// unparseable values yield nil so validation reports them as missing.
func parseIntPtr(s string) *int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v := int(f)
		return &v
	}
	return nil
}

func companyFromRow(r row) model.Company {
	get := func(f string) string { return r.get(companyColumns, f) }
	return model.Company{
		ID:            get("id"),
		Name:          get("name"),
		Domain:        get("domain"),
		Website:       get("website"),
		EmployeeCount: parseIntPtr(get("employee_count")),
		LinkedInURL:   get("linkedin_url"),
		Industry:      get("industry"),
		Phone:         get("phone"),
		Email:         get("email"),
		Location:      get("location"),
	}
}

func personFromRow(r row) model.Person {
	get := func(f string) string { return r.get(personColumns, f) }
	return model.Person{
		ID:            get("id"),
		CompanyID:     get("company_id"),
		CompanyDomain: get("company_domain"),
		FirstName:     get("first_name"),
		LastName:      get("last_name"),
		FullName:      get("full_name"),
		Title:         get("title"),
		Seniority:     get("seniority"),
		Department:    get("department"),
		Email:         get("email"),
		Phone:         get("phone"),
		LinkedInURL:   get("linkedin_url"),
		Location:      get("location"),
		Industry:      get("industry"),
		EmployeeCount: parseIntPtr(get("employee_count")),
	}
}
