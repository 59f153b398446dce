// Package schedule evaluates job schedule rules against wall-clock instants.
//
// A rule fires either on fixed weekdays at a given time, or on the Nth
// business/calendar day of a month, quarter, half-year, or year. Matching is
// a pure function of the rule, the instant, and the holiday calendar; callers
// are expected to poll at minute granularity and fire at most once per
// matching minute (duplicate suppression is the trigger loop's concern).
package schedule

import (
	"errors"
	"fmt"
	"regexp"
)

// DayKind selects which days count toward a custom rule's ordinal.
type DayKind string

const (
	// DayBusiness counts weekdays that are not holidays.
	DayBusiness DayKind = "business_day"

	// DayCalendar counts every day.
	DayCalendar DayKind = "calendar_day"
)

// Period is the recurrence window a custom rule's ordinal is counted within.
type Period string

const (
	PeriodMonth    Period = "month"
	PeriodQuarter  Period = "quarter"
	PeriodHalfYear Period = "half_year"
	PeriodYear     Period = "year"
)

// CustomRule defines an "Nth (business) day of period" recurrence.
//
// X is the 1-based ordinal within the period. Y selects the sub-period:
// quarter number 1-4 or half number 1-2. It is ignored for month and year.
type CustomRule struct {
	Kind   DayKind `json:"kind"`
	Period Period  `json:"period"`
	X      int     `json:"x"`
	Y      int     `json:"y,omitempty"`
}

// Rule is a persisted schedule definition.
//
// Exactly one of Weekdays or Custom must be set. Time is "HH:MM" in the
// rule's timezone. These values are part of the stable on-disk contract.
type Rule struct {
	ID       string      `json:"id"`
	JobID    string      `json:"jobId"`
	Name     string      `json:"name,omitempty"`
	Timezone string      `json:"timezone"`
	Time     string      `json:"time"`
	Weekdays []string    `json:"weekdays,omitempty"`
	Custom   *CustomRule `json:"customRule,omitempty"`
	Region   string      `json:"region,omitempty"`
	Paused   bool        `json:"paused"`
}

// Errors returned by rule validation.
var (
	// ErrNoMode is returned when neither weekdays nor a custom rule is set.
	ErrNoMode = errors.New("rule must set weekdays or a custom rule")

	// ErrModeConflict is returned when both weekdays and a custom rule are set.
	ErrModeConflict = errors.New("rule cannot set both weekdays and a custom rule")
)

// RuleError wraps a validation failure with the offending rule id.
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

var timeOfDayRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validate checks that the rule is well formed.
func (r *Rule) Validate() error {
	if len(r.Weekdays) == 0 && r.Custom == nil {
		return &RuleError{RuleID: r.ID, Err: ErrNoMode}
	}
	if len(r.Weekdays) > 0 && r.Custom != nil {
		return &RuleError{RuleID: r.ID, Err: ErrModeConflict}
	}
	if !timeOfDayRe.MatchString(r.Time) {
		return &RuleError{RuleID: r.ID, Err: fmt.Errorf("invalid time %q, want HH:MM", r.Time)}
	}
	if c := r.Custom; c != nil {
		switch c.Kind {
		case DayBusiness, DayCalendar:
		default:
			return &RuleError{RuleID: r.ID, Err: fmt.Errorf("invalid day kind %q", c.Kind)}
		}
		if c.X < 1 {
			return &RuleError{RuleID: r.ID, Err: fmt.Errorf("ordinal x must be >= 1, got %d", c.X)}
		}
		switch c.Period {
		case PeriodMonth, PeriodYear:
		case PeriodQuarter:
			if c.Y < 1 || c.Y > 4 {
				return &RuleError{RuleID: r.ID, Err: fmt.Errorf("quarter y must be 1-4, got %d", c.Y)}
			}
		case PeriodHalfYear:
			if c.Y < 1 || c.Y > 2 {
				return &RuleError{RuleID: r.ID, Err: fmt.Errorf("half-year y must be 1-2, got %d", c.Y)}
			}
		default:
			return &RuleError{RuleID: r.ID, Err: fmt.Errorf("invalid period %q", c.Period)}
		}
	}
	return nil
}
