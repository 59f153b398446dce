package schedule

import (
	"fmt"
	"time"
)

// HolidayCalendar reports region-specific non-working days.
//
// Only the business-day branch of custom rules consults the calendar.
// Implementations must be safe for concurrent use.
type HolidayCalendar interface {
	IsHoliday(date time.Time, region string) bool
}

// Resolver evaluates schedule rules. It is stateless apart from the holiday
// calendar and safe to call concurrently for different rules.
type Resolver struct {
	Holidays HolidayCalendar
}

// NewResolver returns a Resolver backed by the given calendar.
// A nil calendar treats no days as holidays.
func NewResolver(cal HolidayCalendar) *Resolver {
	return &Resolver{Holidays: cal}
}

// Matches reports whether instant satisfies the rule. The instant is
// converted to the rule's timezone before evaluation; matching is at minute
// resolution.
func (r *Resolver) Matches(rule Rule, instant time.Time) (bool, error) {
	if err := rule.Validate(); err != nil {
		return false, err
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return false, &RuleError{RuleID: rule.ID, Err: fmt.Errorf("invalid timezone %q: %w", rule.Timezone, err)}
	}
	local := instant.In(loc)
	if local.Format("15:04") != rule.Time {
		return false, nil
	}

	if rule.Custom == nil {
		weekday := local.Weekday().String()
		for _, d := range rule.Weekdays {
			if d == weekday {
				return true, nil
			}
		}
		return false, nil
	}

	target, ok, err := r.TargetDate(rule, local)
	if err != nil || !ok {
		return false, err
	}
	y, m, d := local.Date()
	ty, tm, td := target.Date()
	return y == ty && m == tm && d == td, nil
}

// TargetDate resolves the single date a custom rule fires on within the
// period containing ref. ok is false when ref falls outside the selected
// sub-period, or when the ordinal exceeds the number of qualifying days.
func (r *Resolver) TargetDate(rule Rule, ref time.Time) (time.Time, bool, error) {
	c := rule.Custom
	if c == nil {
		return time.Time{}, false, &RuleError{RuleID: rule.ID, Err: fmt.Errorf("rule has no custom recurrence")}
	}
	start, end, err := periodBounds(c, ref)
	if err != nil {
		return time.Time{}, false, &RuleError{RuleID: rule.ID, Err: err}
	}

	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	if refDay.Before(start) || !refDay.Before(end) {
		return time.Time{}, false, nil
	}

	count := 0
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if c.Kind == DayBusiness && !r.isBusinessDay(day, rule.Region) {
			continue
		}
		count++
		if count == c.X {
			return day, true, nil
		}
	}
	// Ordinal exceeds qualifying days; no instant in this period matches.
	return time.Time{}, false, nil
}

func (r *Resolver) isBusinessDay(day time.Time, region string) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if r.Holidays != nil && r.Holidays.IsHoliday(day, region) {
		return false
	}
	return true
}

// periodBounds returns the half-open [start, end) day range of the period
// the rule counts within, anchored to ref's year.
func periodBounds(c *CustomRule, ref time.Time) (time.Time, time.Time, error) {
	year := ref.Year()
	loc := ref.Location()
	switch c.Period {
	case PeriodMonth:
		start := time.Date(year, ref.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case PeriodQuarter:
		startMonth := time.Month(3*(c.Y-1) + 1)
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0), nil
	case PeriodHalfYear:
		startMonth := time.January
		if c.Y == 2 {
			startMonth = time.July
		}
		start := time.Date(year, startMonth, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 6, 0), nil
	case PeriodYear:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", c.Period)
	}
}
