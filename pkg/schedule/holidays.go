package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StaticCalendar is an in-memory holiday calendar keyed by region.
//
// Dates registered under the empty region apply to every region.
// StaticCalendar is immutable after construction and safe for concurrent use.
type StaticCalendar struct {
	dates map[string]map[string]struct{}
}

// NewStaticCalendar builds a calendar from region -> "2006-01-02" date lists.
func NewStaticCalendar(regions map[string][]string) (*StaticCalendar, error) {
	cal := &StaticCalendar{dates: make(map[string]map[string]struct{}, len(regions))}
	for region, days := range regions {
		set := make(map[string]struct{}, len(days))
		for _, d := range days {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return nil, fmt.Errorf("holiday calendar: region %q: invalid date %q: %w", region, d, err)
			}
			set[d] = struct{}{}
		}
		cal.dates[region] = set
	}
	return cal, nil
}

// IsHoliday implements HolidayCalendar.
func (c *StaticCalendar) IsHoliday(date time.Time, region string) bool {
	key := date.Format("2006-01-02")
	if set, ok := c.dates[region]; ok {
		if _, hit := set[key]; hit {
			return true
		}
	}
	if region == "" {
		return false
	}
	if set, ok := c.dates[""]; ok {
		_, hit := set[key]
		return hit
	}
	return false
}

// calendarFile is the on-disk YAML layout:
//
//	regions:
//	  us:
//	    - 2026-01-01
//	    - 2026-07-03
type calendarFile struct {
	Regions map[string][]string `yaml:"regions"`
}

// LoadCalendar reads a YAML holiday calendar from path.
func LoadCalendar(path string) (*StaticCalendar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	var f calendarFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse holiday calendar %s: %w", path, err)
	}
	return NewStaticCalendar(f.Regions)
}
