// Package validate re-checks extracted festival data before persistence:
// structural constraints, business rules, and soft quality signals merged
// into a single report with its own confidence figure.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/swingradar/festival-crawler/internal/festival"
)

// Severity orders validation issues. Error and above block import.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

// blocking is the threshold at or above which an issue fails validation.
const blocking = SeverityError

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Blocks reports whether an issue of this severity prevents import.
func (s Severity) Blocks() bool {
	return s >= blocking
}

// Issue is a single validation finding, tied to the field that caused it.
type Issue struct {
	Field    string
	Code     string
	Message  string
	Severity Severity
}

// Issue codes, stable for callers that branch on them.
const (
	CodeMissingField     = "missing_field"
	CodeInvalidDateRange = "invalid_date_range"
	CodeInvalidEnum      = "invalid_enum"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidDeadline  = "invalid_deadline"
	CodeStaleEvent       = "stale_event"
	CodeExcessiveLength  = "excessive_duration"
	CodeEmptyCollection  = "empty_collection"
	CodeLowCompleteness  = "low_completeness"
	CodeSuspectName      = "suspect_name"
	CodeMissingContact   = "missing_contact"
)

// Report is the merged outcome of all three validation layers.
type Report struct {
	Issues     []Issue
	IsValid    bool
	Confidence float64
	Normalized festival.FestivalData
}

// Errors returns the messages of all blocking issues.
func (r Report) Errors() []string {
	return r.messages(true)
}

// Warnings returns the messages of all non-blocking issues.
func (r Report) Warnings() []string {
	return r.messages(false)
}

func (r Report) messages(blockingOnly bool) []string {
	var out []string
	for _, is := range r.Issues {
		if is.Severity.Blocks() == blockingOnly {
			out = append(out, fmt.Sprintf("%s: %s", is.Field, is.Message))
		}
	}
	return out
}

// Validator applies the rule set. now is injectable for the staleness rule.
type Validator struct {
	now func() time.Time
}

func New() *Validator {
	return &Validator{now: time.Now}
}

// NewWithClock fixes the reference time, for tests.
func NewWithClock(now func() time.Time) *Validator {
	return &Validator{now: now}
}

// Validate runs structural, business, and quality checks and returns the
// merged report together with a lower-cased normalized copy of the input.
func (v *Validator) Validate(data festival.FestivalData) Report {
	var issues []Issue

	issues = append(issues, structural(data)...)
	issues = append(issues, business(data, v.now())...)
	issues = append(issues, quality(data)...)

	r := Report{
		Issues:     issues,
		IsValid:    true,
		Normalized: normalizedCopy(data),
	}
	for _, is := range issues {
		if is.Severity.Blocks() {
			r.IsValid = false
			break
		}
	}
	r.Confidence = confidence(data, issues)
	return r
}

func structural(data festival.FestivalData) []Issue {
	var issues []Issue

	if data.Name == "" {
		issues = append(issues, Issue{"name", CodeMissingField, "festival name is required", SeverityError})
	}
	if data.StartDate.IsZero() {
		issues = append(issues, Issue{"startDate", CodeMissingField, "start date is required", SeverityError})
	}
	if data.EndDate.IsZero() {
		issues = append(issues, Issue{"endDate", CodeMissingField, "end date is required", SeverityError})
	}
	if !data.StartDate.IsZero() && !data.EndDate.IsZero() && data.EndDate.Before(data.StartDate) {
		issues = append(issues, Issue{"endDate", CodeInvalidDateRange, "end date is before start date", SeverityError})
	}

	if ven := data.Venue; ven != nil {
		if ven.Name == "" {
			issues = append(issues, Issue{"venue.name", CodeMissingField, "venue name is required", SeverityError})
		}
		if ven.Country == "" {
			issues = append(issues, Issue{"venue.country", CodeMissingField, "venue country is required", SeverityError})
		}
	}

	for i, p := range data.Prices {
		field := fmt.Sprintf("prices[%d]", i)
		if !festival.ValidPriceType(string(p.Type)) {
			issues = append(issues, Issue{field + ".type", CodeInvalidEnum,
				fmt.Sprintf("unknown price type %q", p.Type), SeverityError})
		}
		if !festival.ValidCurrency(p.Currency) {
			issues = append(issues, Issue{field + ".currency", CodeInvalidEnum,
				fmt.Sprintf("unknown currency %q", p.Currency), SeverityError})
		}
	}
	return issues
}

func business(data festival.FestivalData, now time.Time) []Issue {
	var issues []Issue

	if !data.StartDate.IsZero() && data.StartDate.Before(now.AddDate(-1, 0, 0)) {
		issues = append(issues, Issue{"startDate", CodeStaleEvent,
			"start date is more than one year in the past", SeverityWarning})
	}
	if !data.StartDate.IsZero() && !data.EndDate.IsZero() &&
		data.EndDate.Sub(data.StartDate) > 30*24*time.Hour {
		issues = append(issues, Issue{"endDate", CodeExcessiveLength,
			"festival duration exceeds 30 days", SeverityWarning})
	}

	for i, t := range data.Teachers {
		if len(t.Specialties) == 0 {
			issues = append(issues, Issue{fmt.Sprintf("teachers[%d].specialties", i), CodeEmptyCollection,
				fmt.Sprintf("teacher %q has no specialties", t.Name), SeverityWarning})
		}
	}
	for i, m := range data.Musicians {
		if len(m.Genres) == 0 {
			issues = append(issues, Issue{fmt.Sprintf("musicians[%d].genres", i), CodeEmptyCollection,
				fmt.Sprintf("musician %q has no genres", m.Name), SeverityWarning})
		}
	}

	for i, p := range data.Prices {
		field := fmt.Sprintf("prices[%d]", i)
		if p.Amount <= 0 && p.Type != festival.PriceDonation {
			issues = append(issues, Issue{field + ".amount", CodeInvalidAmount,
				"price amount must be positive", SeverityError})
		}
		if p.Deadline != nil && !data.StartDate.IsZero() && p.Deadline.After(data.StartDate) {
			issues = append(issues, Issue{field + ".deadline", CodeInvalidDeadline,
				"price deadline is after the festival start date", SeverityError})
		}
	}
	return issues
}

func quality(data festival.FestivalData) []Issue {
	var issues []Issue

	if data.Venue != nil && data.Venue.City == "" {
		issues = append(issues, Issue{"venue.city", CodeMissingField,
			"venue city is missing", SeverityWarning})
	}
	if data.Website == "" && data.RegistrationURL == "" {
		issues = append(issues, Issue{"website", CodeMissingContact,
			"no website or registration URL", SeverityWarning})
	}
	if completeness(data) < 0.5 {
		issues = append(issues, Issue{"", CodeLowCompleteness,
			"less than half of the expected fields are populated", SeverityWarning})
	}
	if strings.Contains(strings.ToLower(data.Name), "test") {
		issues = append(issues, Issue{"name", CodeSuspectName,
			"festival name contains \"test\"", SeverityWarning})
	}
	return issues
}

// completeness is the fraction of populated fields over everything the data
// model can carry: top-level scalars, venue sub-fields, and one slot per
// collection.
func completeness(data festival.FestivalData) float64 {
	present := 0
	total := 0

	count := func(ok bool) {
		total++
		if ok {
			present++
		}
	}

	count(data.Name != "")
	count(data.Description != "")
	count(!data.StartDate.IsZero())
	count(!data.EndDate.IsZero())
	count(data.Timezone != "")
	count(data.RegistrationDeadline != nil)
	count(data.Website != "")
	count(data.RegistrationURL != "")
	count(data.Email != "")
	count(data.Phone != "")
	count(data.SourceURL != "")

	if ven := data.Venue; ven != nil {
		count(ven.Name != "")
		count(ven.Address != "")
		count(ven.City != "")
		count(ven.State != "")
		count(ven.Country != "")
		count(ven.PostalCode != "")
		count(ven.Latitude != nil)
		count(ven.Longitude != nil)
	} else {
		total += 8
	}

	count(len(data.Teachers) > 0)
	count(len(data.Musicians) > 0)
	count(len(data.Prices) > 0)
	count(len(data.Tags) > 0)

	return float64(present) / float64(total)
}

// Confidence tuning. Distinct from the extraction-time score: this one is
// driven by rule violations rather than field weights.
const (
	penaltyCritical   = 0.30
	penaltyError      = 0.15
	penaltyWarning    = 0.05
	completenessBonus = 0.10
	requiredBonus     = 0.05
)

func confidence(data festival.FestivalData, issues []Issue) float64 {
	conf := 1.0
	for _, is := range issues {
		switch is.Severity {
		case SeverityCritical:
			conf -= penaltyCritical
		case SeverityError:
			conf -= penaltyError
		case SeverityWarning:
			conf -= penaltyWarning
		}
	}

	conf += completeness(data) * completenessBonus
	if data.Name != "" && !data.StartDate.IsZero() && !data.EndDate.IsZero() && data.Venue != nil {
		conf += requiredBonus
	}

	switch {
	case conf < 0:
		return 0
	case conf > 1:
		return 1
	}
	return conf
}

// normalizedCopy lower-cases tag-like strings and trims whitespace without
// touching the caller's value.
func normalizedCopy(data festival.FestivalData) festival.FestivalData {
	out := data.Clone()

	out.Name = strings.TrimSpace(out.Name)
	out.Description = strings.TrimSpace(out.Description)
	for i := range out.Teachers {
		out.Teachers[i].Name = strings.TrimSpace(out.Teachers[i].Name)
		out.Teachers[i].Specialties = lowerAll(out.Teachers[i].Specialties)
	}
	for i := range out.Musicians {
		out.Musicians[i].Name = strings.TrimSpace(out.Musicians[i].Name)
		out.Musicians[i].Genres = lowerAll(out.Musicians[i].Genres)
	}
	out.Tags = lowerAll(out.Tags)
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
