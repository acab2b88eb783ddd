// Package validate applies the structural rules that gate a record's
// progression past intake. Each rule is a pure function returning an
// optional failure; results are folded in fixed order.
package validate

import (
	"strconv"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Result is the verdict for one record. Reason is the message of the first
// failure in rule order. Severity is the highest severity present.
type Result struct {
	Valid         bool                      `json:"valid"`
	Reason        string                    `json:"reason,omitempty"`
	Severity      model.Severity            `json:"severity,omitempty"`
	MissingFields []string                  `json:"missing_fields,omitempty"`
	Failures      []model.ValidationFailure `json:"failures,omitempty"`
}

// Status maps the verdict to an entity lifecycle status.
func (r Result) Status() model.Status {
	if r.Valid {
		return model.StatusValid
	}
	return model.StatusInvalid
}

func fold(failures []model.ValidationFailure) Result {
	res := Result{Valid: len(failures) == 0, Failures: failures}
	for i, f := range failures {
		if i == 0 {
			res.Reason = f.Message
		}
		if f.Severity.Rank() > res.Severity.Rank() {
			res.Severity = f.Severity
		}
		res.MissingFields = append(res.MissingFields, f.Field)
	}
	return res
}

func failure(field string, rule model.RuleKind, sev model.Severity, msg, value string) *model.ValidationFailure {
	return &model.ValidationFailure{
		Field:    field,
		Rule:     rule,
		Severity: sev,
		Message:  msg,
		Value:    value,
		Status:   model.FailurePending,
	}
}

func stamp(failures []model.ValidationFailure, id string, kind model.EntityKind) []model.ValidationFailure {
	for i := range failures {
		failures[i].EntityID = id
		failures[i].EntityKind = kind
	}
	return failures
}

func intValue(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
