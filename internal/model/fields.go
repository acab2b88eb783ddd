package model

import (
	"sort"
	"strconv"
)

// Fields returns the writable company fields keyed by column name.
func (c *Company) Fields() map[string]string {
	return map[string]string{
		"name":           c.Name,
		"domain":         c.Domain,
		"website":        c.Website,
		"employee_count": intString(c.EmployeeCount),
		"linkedin_url":   c.LinkedInURL,
		"industry":       c.Industry,
		"phone":          c.Phone,
		"email":          c.Email,
		"location":       c.Location,
	}
}

// SetField writes one field by column name. Unknown keys are ignored and
// reported as false.
func (c *Company) SetField(key, value string) bool {
	switch key {
	case "name":
		c.Name = value
	case "domain":
		c.Domain = value
	case "website":
		c.Website = value
	case "employee_count":
		c.EmployeeCount = parseInt(value)
	case "linkedin_url":
		c.LinkedInURL = value
	case "industry":
		c.Industry = value
	case "phone":
		c.Phone = value
	case "email":
		c.Email = value
	case "location":
		c.Location = value
	default:
		return false
	}
	return true
}

// Fields returns the writable person fields keyed by column name.
func (p *Person) Fields() map[string]string {
	return map[string]string{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"full_name":    p.FullName,
		"title":        p.Title,
		"seniority":    p.Seniority,
		"department":   p.Department,
		"email":        p.Email,
		"phone":        p.Phone,
		"linkedin_url": p.LinkedInURL,
		"location":     p.Location,
	}
}

// SetField writes one field by column name.
func (p *Person) SetField(key, value string) bool {
	switch key {
	case "first_name":
		p.FirstName = value
	case "last_name":
		p.LastName = value
	case "full_name":
		p.FullName = value
	case "title":
		p.Title = value
	case "seniority":
		p.Seniority = value
	case "department":
		p.Department = value
	case "email":
		p.Email = value
	case "phone":
		p.Phone = value
	case "linkedin_url":
		p.LinkedInURL = value
	case "location":
		p.Location = value
	default:
		return false
	}
	return true
}

// UpdatePlan is the outcome of diffing a requested update against the
// current field values.
type UpdatePlan struct {
	Next    map[string]string
	Before  map[string]string
	Changed []string
	Skipped []string
}

// ApplyUpdate merges requested into current. Locked fields keep their
// current value and are reported in Skipped when the request would have
// changed them. Empty requested values never overwrite. Changed and
// Skipped are sorted.
func ApplyUpdate(current, requested map[string]string, locked []string) UpdatePlan {
	next := make(map[string]string, len(current))
	for k, v := range current {
		next[k] = v
	}

	plan := UpdatePlan{Before: map[string]string{}}
	for k, v := range requested {
		if v == "" || current[k] == v {
			continue
		}
		if IsLocked(locked, k) {
			plan.Skipped = append(plan.Skipped, k)
			continue
		}
		next[k] = v
		plan.Before[k] = current[k]
		plan.Changed = append(plan.Changed, k)
	}
	sort.Strings(plan.Changed)
	sort.Strings(plan.Skipped)
	plan.Next = next
	return plan
}

func intString(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func parseInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
