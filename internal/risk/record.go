package risk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is returned when a draft cannot become a Record at all.
var ErrInvalidRecord = errors.New("invalid risk record")

var validate = validator.New()

// Mitigation describes the planned response to a risk.
type Mitigation struct {
	Effectiveness float64 `json:"effectiveness"`
	Confidence    float64 `json:"confidence"`
}

// Record is the canonical, sanitised risk input to the engine. Every numeric
// field is finite and non-negative.
type Record struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	Probability           float64     `json:"probability"`
	CostImpact            float64     `json:"costImpact"`
	ScheduleImpactDays    float64     `json:"scheduleImpactDays"`
	EscalationPersistence float64     `json:"escalationPersistence"`
	Sensitivity           float64     `json:"sensitivity"`
	Mitigation            *Mitigation `json:"mitigation,omitempty"`
}

// ExpectedCost is probability x most-likely cost.
func (r Record) ExpectedCost() float64 {
	return r.Probability * r.CostImpact
}

// ExpectedDays is probability x most-likely schedule impact.
func (r Record) ExpectedDays() float64 {
	return r.Probability * r.ScheduleImpactDays
}

// Name returns the title, falling back to the ID.
func (r Record) Name() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.ID
}

// MitigationDraft is the loosely typed mitigation profile of a Draft.
type MitigationDraft struct {
	Effectiveness *float64 `json:"effectiveness,omitempty" yaml:"effectiveness,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Draft is a risk as supplied by the risk store, before validation.
type Draft struct {
	ID                    string           `json:"id" yaml:"id" validate:"required"`
	Title                 string           `json:"title,omitempty" yaml:"title,omitempty"`
	Probability           *float64         `json:"probability,omitempty" yaml:"probability,omitempty"`
	BaseCostImpact        *float64         `json:"baseCostImpact,omitempty" yaml:"baseCostImpact,omitempty"`
	CostImpact            *float64         `json:"costImpact,omitempty" yaml:"costImpact,omitempty"`
	Consequence           *int             `json:"consequence,omitempty" yaml:"consequence,omitempty" validate:"omitempty,min=1,max=5"`
	ScheduleImpactDays    *float64         `json:"scheduleImpactDays,omitempty" yaml:"scheduleImpactDays,omitempty"`
	EscalationPersistence *float64         `json:"escalationPersistence,omitempty" yaml:"escalationPersistence,omitempty"`
	Sensitivity           *float64         `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Mitigation            *MitigationDraft `json:"mitigation,omitempty" yaml:"mitigation,omitempty"`
}

// Issue is a non-fatal sanitisation note produced while parsing a draft.
type Issue struct {
	RiskID string `json:"riskId"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Rejection is a draft that could not be turned into a Record.
type Rejection struct {
	Index  int    `json:"index"`
	RiskID string `json:"riskId,omitempty"`
	Reason string `json:"reason"`
}

// Parse validates a draft and coerces it into a Record. Only a structurally
// broken draft (no ID) fails; numeric problems are coerced to safe defaults
// and reported as issues.
func Parse(d Draft) (Record, []Issue, error) {
	if err := validate.Struct(d); err != nil {
		return Record{}, nil, fmt.Errorf("%w: %s", ErrInvalidRecord, describeValidation(err))
	}

	rec := Record{
		ID:    strings.TrimSpace(d.ID),
		Title: strings.TrimSpace(d.Title),
	}
	if rec.ID == "" {
		return Record{}, nil, fmt.Errorf("%w: id is blank", ErrInvalidRecord)
	}

	var issues []Issue
	note := func(field string, r Result[float64]) float64 {
		if !r.IsValid() {
			issues = append(issues, Issue{RiskID: rec.ID, Field: field, Reason: r.Reason()})
		}
		return r.OrElse(0)
	}

	if d.Probability != nil {
		rec.Probability = note("probability", ParseProbability(*d.Probability))
	}

	rec.CostImpact = resolveCost(d, note)

	if d.ScheduleImpactDays != nil {
		rec.ScheduleImpactDays = note("scheduleImpactDays", ParseAmount("scheduleImpactDays", *d.ScheduleImpactDays))
	}
	if d.EscalationPersistence != nil {
		rec.EscalationPersistence = note("escalationPersistence", ParseUnit("escalationPersistence", *d.EscalationPersistence))
	}
	if d.Sensitivity != nil {
		rec.Sensitivity = note("sensitivity", ParseUnit("sensitivity", *d.Sensitivity))
	}

	if d.Mitigation != nil {
		m := Mitigation{}
		if d.Mitigation.Effectiveness != nil {
			m.Effectiveness = note("mitigation.effectiveness", ParseUnit("mitigation.effectiveness", *d.Mitigation.Effectiveness))
		}
		if d.Mitigation.Confidence != nil {
			m.Confidence = note("mitigation.confidence", ParseUnit("mitigation.confidence", *d.Mitigation.Confidence))
		}
		rec.Mitigation = &m
	}

	return rec, issues, nil
}

// resolveCost picks the explicit costImpact, then baseCostImpact, then the
// consequence lookup. The first valid source wins.
func resolveCost(d Draft, note func(string, Result[float64]) float64) float64 {
	if d.CostImpact != nil {
		r := ParseAmount("costImpact", *d.CostImpact)
		if r.IsValid() {
			return r.OrElse(0)
		}
		note("costImpact", r)
	}
	if d.BaseCostImpact != nil {
		r := ParseAmount("baseCostImpact", *d.BaseCostImpact)
		if r.IsValid() {
			return r.OrElse(0)
		}
		note("baseCostImpact", r)
	}
	if d.Consequence != nil {
		return note("consequence", ParseConsequence(*d.Consequence))
	}
	return 0
}

// ParseAll converts a batch of drafts. Rejected drafts are listed separately;
// duplicate IDs after the first are rejected.
func ParseAll(drafts []Draft) ([]Record, []Issue, []Rejection) {
	records := make([]Record, 0, len(drafts))
	var issues []Issue
	var rejected []Rejection
	seen := make(map[string]bool, len(drafts))

	for i, d := range drafts {
		rec, recIssues, err := Parse(d)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, RiskID: d.ID, Reason: err.Error()})
			continue
		}
		if seen[rec.ID] {
			rejected = append(rejected, Rejection{Index: i, RiskID: rec.ID, Reason: "duplicate risk id"})
			continue
		}
		seen[rec.ID] = true
		records = append(records, rec)
		issues = append(issues, recIssues...)
	}

	return records, issues, rejected
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
