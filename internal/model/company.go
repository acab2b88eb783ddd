package model

import (
	"time"
)

// Status is the lifecycle status of a Company or Person.
type Status string

const (
	StatusPending Status = "pending"
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// EntityKind distinguishes companies from people in shared tables.
type EntityKind string

const (
	KindCompany EntityKind = "company"
	KindPerson  EntityKind = "person"
)

// Company is a master company record keyed by its Barton ID.
type Company struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Domain        string    `json:"domain,omitempty"`
	Website       string    `json:"website,omitempty"`
	EmployeeCount *int      `json:"employee_count,omitempty"`
	LinkedInURL   string    `json:"linkedin_url,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Location      string    `json:"location,omitempty"`
	Status        Status    `json:"status"`
	LockedFields  []string  `json:"locked_fields,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Person is a contact record. CompanyDomain is denormalized from the
// owning company and used as a co-filter during fuzzy matching.
type Person struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id,omitempty"`
	CompanyDomain string    `json:"company_domain,omitempty"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	FullName      string    `json:"full_name,omitempty"`
	Title         string    `json:"title,omitempty"`
	Seniority     string    `json:"seniority,omitempty"`
	Department    string    `json:"department,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	LinkedInURL   string    `json:"linkedin_url,omitempty"`
	Location      string    `json:"location,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	EmployeeCount *int      `json:"employee_count,omitempty"`
	Status        Status    `json:"status"`
	LockedFields  []string  `json:"locked_fields,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName returns the full name, falling back to first + last.
func (p *Person) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// IsLocked reports whether field is in the locked set.
func IsLocked(locked []string, field string) bool {
	for _, f := range locked {
		if f == field {
			return true
		}
	}
	return false
}
