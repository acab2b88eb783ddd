package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Default sub-scores used when the input gives nothing to rank.
const (
	CompanySeniority   = 50
	UnmatchedSeniority = 40
	MissingSeniority   = 20
	EngagementBase     = 50
	maxSubScore        = 100
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Engine computes scores with a fixed weight configuration. It is safe for
// concurrent use.
type Engine struct {
	weights Weights
	now     func() time.Time
}

// NewEngine creates an engine. Invalid weights fall back to the defaults.
func NewEngine(w Weights) *Engine {
	if ValidateWeights(w) != nil {
		w = DefaultWeights()
	}
	return &Engine{weights: w, now: time.Now}
}

// Person scores a contact.
func (e *Engine) Person(p *model.Person) model.Score {
	b := model.Breakdown{
		ContactCompleteness: contact(e.weights.PersonContact,
			validEmail(p.Email), p.Phone != "", p.LinkedInURL != "", p.FirstName != "" && p.LastName != ""),
		DataRichness: richness(e.weights.PersonRichness, presence{
			industry:   p.Industry != "",
			employees:  p.EmployeeCount != nil && *p.EmployeeCount > 0,
			title:      p.Title != "",
			department: p.Department != "",
			location:   p.Location != "",
		}),
		Seniority:  Seniority(p.Title, p.Seniority),
		Engagement: Engagement(p.Industry, p.EmployeeCount),
	}
	return e.finish(p.ID, model.KindPerson, b)
}

// Company scores a company. Seniority is the neutral company default.
func (e *Engine) Company(c *model.Company) model.Score {
	b := model.Breakdown{
		ContactCompleteness: contact(e.weights.CompanyContact,
			validEmail(c.Email), c.Phone != "", c.LinkedInURL != "", strings.TrimSpace(c.Name) != ""),
		DataRichness: richness(e.weights.CompanyRichness, presence{
			industry:  c.Industry != "",
			employees: c.EmployeeCount != nil && *c.EmployeeCount > 0,
			location:  c.Location != "",
		}),
		Seniority:  CompanySeniority,
		Engagement: Engagement(c.Industry, c.EmployeeCount),
	}
	return e.finish(c.ID, model.KindCompany, b)
}

func (e *Engine) finish(id string, kind model.EntityKind, b model.Breakdown) model.Score {
	total := Total(b)
	return model.Score{
		EntityID:   id,
		EntityKind: kind,
		Total:      total,
		Breakdown:  b,
		Segment:    Segment(total, b),
		ScoredAt:   e.now().UTC(),
	}
}

// Total is the unweighted mean of the four sub-scores, rounded.
func Total(b model.Breakdown) int {
	sum := b.ContactCompleteness + b.DataRichness + b.Seniority + b.Engagement
	return clamp(int(math.Round(float64(sum) / 4)))
}

// Segment assigns the lead bucket. Rules are evaluated in order.
func Segment(total int, b model.Breakdown) model.Segment {
	switch {
	case total >= 80 && b.Seniority >= 70 && b.ContactCompleteness >= 60:
		return model.SegmentHot
	case total >= 60 && b.ContactCompleteness >= 40:
		return model.SegmentWarm
	case b.ContactCompleteness >= 30:
		return model.SegmentCold
	default:
		return model.SegmentNurture
	}
}

func contact(w ContactWeights, email, phone, linkedin, name bool) int {
	score := 0
	if email {
		score += w.Email
	}
	if phone {
		score += w.Phone
	}
	if linkedin {
		score += w.LinkedIn
	}
	if name {
		score += w.Name
	}
	return clamp(score)
}

type presence struct {
	industry, employees, title, department, location bool
}

func richness(w RichnessWeights, p presence) int {
	score := 0
	if p.industry {
		score += w.Industry
	}
	if p.employees {
		score += w.EmployeeCount
	}
	if p.title {
		score += w.Title
	}
	if p.department {
		score += w.Department
	}
	if p.location {
		score += w.Location
	}
	return clamp(score)
}

func validEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > maxSubScore:
		return maxSubScore
	}
	return n
}
