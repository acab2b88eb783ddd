// Package readiness decides whether a validated company is ready for
// outreach: every executive slot must be filled by an existing, enriched,
// verified person whose title matches the role.
package readiness

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// CheckKind is one of the five per-slot checks.
type CheckKind string

const (
	CheckSlotFilled    CheckKind = "slot_filled"
	CheckPersonExists  CheckKind = "person_exists"
	CheckEnrichment    CheckKind = "enrichment_success"
	CheckEmailVerified CheckKind = "email_verified"
	CheckTitleMatch    CheckKind = "title_match"
)

// CheckKinds lists the per-slot checks in evaluation order.
var CheckKinds = []CheckKind{CheckSlotFilled, CheckPersonExists, CheckEnrichment, CheckEmailVerified, CheckTitleMatch}

// TotalChecks is the number of atomic checks per company.
var TotalChecks = len(CheckKinds) * len(model.SlotTypes)

// ReasonNoLinkedPerson marks checks that were not attempted.
const ReasonNoLinkedPerson = "skipped: no linked person"

// titleKeywords are matched as case-insensitive substrings.
var titleKeywords = map[model.SlotType][]string{
	model.SlotCEO: {"ceo", "chief executive"},
	model.SlotCFO: {"cfo", "chief financial"},
	model.SlotHR:  {"hr", "human resources", "people", "talent"},
}

// Check is one atomic check result.
type Check struct {
	Kind   CheckKind `json:"kind"`
	Passed bool      `json:"passed"`
	Reason string    `json:"reason,omitempty"`
}

// SlotResult groups the checks for one slot.
type SlotResult struct {
	Slot     model.SlotType `json:"slot"`
	PersonID string         `json:"person_id,omitempty"`
	Checks   []Check        `json:"checks"`
	Passed   int            `json:"passed"`
}

// Result is the readiness verdict for one company.
type Result struct {
	CompanyID    string       `json:"company_id"`
	Ready        bool         `json:"ready"`
	Reason       string       `json:"reason,omitempty"`
	PassedChecks int          `json:"passed_checks"`
	TotalChecks  int          `json:"total_checks"`
	Slots        []SlotResult `json:"slots"`
}

// Input carries everything the evaluator reads. Attempts are keyed by
// person ID.
type Input struct {
	Company       *model.Company
	Slots         []model.Slot
	People        map[string]*model.Person
	Enrichments   map[string][]model.Enrichment
	Verifications map[string][]model.Verification
}

// Evaluate runs all 15 checks. Checks are recorded without short-circuit
// except when a slot has no linked person, in which case checks 2 to 5
// fail for that slot without being attempted.
func Evaluate(in Input) Result {
	res := Result{TotalChecks: TotalChecks}
	if in.Company != nil {
		res.CompanyID = in.Company.ID
	}

	bySlot := model.SlotsByType(in.Slots)
	for _, st := range model.SlotTypes {
		sr := evaluateSlot(st, bySlot, in)
		res.PassedChecks += sr.Passed
		if res.Reason == "" {
			for _, c := range sr.Checks {
				if !c.Passed {
					res.Reason = fmt.Sprintf("%s: %s", st, c.Reason)
					break
				}
			}
		}
		res.Slots = append(res.Slots, sr)
	}

	res.Ready = res.PassedChecks == res.TotalChecks
	return res
}

func evaluateSlot(st model.SlotType, bySlot map[model.SlotType]model.Slot, in Input) SlotResult {
	sr := SlotResult{Slot: st}
	slot, ok := bySlot[st]

	var personID string
	if ok && slot.PersonID != nil && *slot.PersonID != "" {
		personID = *slot.PersonID
	}
	sr.PersonID = personID

	filled := ok && slot.Filled && personID != ""
	sr.add(CheckSlotFilled, filled, "slot not filled")

	if personID == "" {
		for _, k := range CheckKinds[1:] {
			sr.Checks = append(sr.Checks, Check{Kind: k, Reason: ReasonNoLinkedPerson})
		}
		return sr
	}

	person := in.People[personID]
	sr.add(CheckPersonExists, person != nil, "linked person not found")

	enr := model.LatestEnrichment(in.Enrichments[personID])
	sr.add(CheckEnrichment, enr != nil && enr.Status == model.EnrichmentSuccess, enrichmentReason(enr))

	ver := model.LatestVerification(in.Verifications[personID])
	sr.add(CheckEmailVerified, ver != nil && ver.Status == model.VerificationValid, verificationReason(ver))

	title := ""
	if person != nil {
		title = person.Title
	}
	sr.add(CheckTitleMatch, TitleMatches(st, title), fmt.Sprintf("title %q does not match %s", title, st))

	return sr
}

func (sr *SlotResult) add(kind CheckKind, passed bool, reason string) {
	c := Check{Kind: kind, Passed: passed}
	if passed {
		sr.Passed++
	} else {
		c.Reason = reason
	}
	sr.Checks = append(sr.Checks, c)
}

// TitleMatches reports whether title contains one of the role's keywords.
func TitleMatches(st model.SlotType, title string) bool {
	t := strings.ToLower(title)
	if t == "" {
		return false
	}
	for _, kw := range titleKeywords[st] {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func enrichmentReason(e *model.Enrichment) string {
	if e == nil {
		return "no enrichment attempt"
	}
	return "latest enrichment " + string(e.Status)
}

func verificationReason(v *model.Verification) string {
	if v == nil {
		return "no email verification attempt"
	}
	return "latest email verification " + string(v.Status)
}
