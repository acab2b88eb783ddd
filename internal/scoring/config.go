// Package scoring computes lead scores for companies and people from field
// completeness, seniority and engagement potential, and maps behavioral
// signal counts to an engagement tier.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ContactWeights weight the contact-completeness presence checks.
type ContactWeights struct {
	Email    int `json:"email" yaml:"email"`
	Phone    int `json:"phone" yaml:"phone"`
	LinkedIn int `json:"linkedin" yaml:"linkedin"`
	Name     int `json:"name" yaml:"name"`
}

// Sum returns the total weight.
func (w ContactWeights) Sum() int { return w.Email + w.Phone + w.LinkedIn + w.Name }

// RichnessWeights weight the descriptive-field presence checks.
type RichnessWeights struct {
	Industry      int `json:"industry" yaml:"industry"`
	EmployeeCount int `json:"employee_count" yaml:"employee_count"`
	Title         int `json:"title" yaml:"title"`
	Department    int `json:"department" yaml:"department"`
	Location      int `json:"location" yaml:"location"`
}

// Sum returns the total weight.
func (w RichnessWeights) Sum() int {
	return w.Industry + w.EmployeeCount + w.Title + w.Department + w.Location
}

// Weights holds the distinct person and company weight sets.
type Weights struct {
	PersonContact   ContactWeights  `json:"person_contact" yaml:"person_contact"`
	CompanyContact  ContactWeights  `json:"company_contact" yaml:"company_contact"`
	PersonRichness  RichnessWeights `json:"person_richness" yaml:"person_richness"`
	CompanyRichness RichnessWeights `json:"company_richness" yaml:"company_richness"`
}

// DefaultWeights returns the standard weight sets. Each set sums to 100.
func DefaultWeights() Weights {
	return Weights{
		PersonContact:  ContactWeights{Email: 35, Phone: 20, LinkedIn: 25, Name: 20},
		CompanyContact: ContactWeights{Email: 25, Phone: 30, LinkedIn: 25, Name: 20},
		PersonRichness: RichnessWeights{
			Title: 25, Department: 20, Location: 20, Industry: 20, EmployeeCount: 15,
		},
		CompanyRichness: RichnessWeights{Industry: 35, EmployeeCount: 35, Location: 30},
	}
}

// LoadWeights reads a YAML weights file:
//
//	person_contact:
//	  email: 40
//	  phone: 15
//	company_richness:
//	  industry: 50
//
// Sets and fields the file leaves out keep their default values.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scoring: read %s", path)
	}
	return ParseWeights(data)
}

// ParseWeights overlays YAML onto DefaultWeights and validates the result.
func ParseWeights(data []byte) (Weights, error) {
	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrap(err, "scoring: parse weights")
	}
	if err := ValidateWeights(w); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// ValidateWeights checks that every weight is non-negative and each set
// sums to a positive number.
func ValidateWeights(w Weights) error {
	var errs []string

	contact := map[string]ContactWeights{"person_contact": w.PersonContact, "company_contact": w.CompanyContact}
	for name, c := range contact {
		if c.Email < 0 || c.Phone < 0 || c.LinkedIn < 0 || c.Name < 0 {
			errs = append(errs, fmt.Sprintf("%s weights must be >= 0", name))
		}
		if c.Sum() <= 0 {
			errs = append(errs, fmt.Sprintf("%s weight sum must be > 0", name))
		}
	}

	richness := map[string]RichnessWeights{"person_richness": w.PersonRichness, "company_richness": w.CompanyRichness}
	for name, r := range richness {
		if r.Industry < 0 || r.EmployeeCount < 0 || r.Title < 0 || r.Department < 0 || r.Location < 0 {
			errs = append(errs, fmt.Sprintf("%s weights must be >= 0", name))
		}
		if r.Sum() <= 0 {
			errs = append(errs, fmt.Sprintf("%s weight sum must be > 0", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
