package policy

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleRunType is how often a schedule policy runs.
type ScheduleRunType int

const (
	UnknownFrequency ScheduleRunType = iota
	Daily
	Weekly
)

func (f ScheduleRunType) String() string {
	switch f {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	}
	return "Unknown"
}

// ParseScheduleRunType parses "daily" or "weekly", ignoring case.
func ParseScheduleRunType(s string) (ScheduleRunType, error) {
	switch strings.ToLower(s) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	}
	return UnknownFrequency, fmt.Errorf("unknown schedule frequency %q", s)
}

// SchedulePolicy defines when backups run. SimpleSchedulePolicy is the only
// variant.
type SchedulePolicy interface {
	Validate() error
	isSchedulePolicy()
}

// SimpleSchedulePolicy runs backups daily or on selected week days, at the
// given times of day.
type SimpleSchedulePolicy struct {
	Frequency ScheduleRunType `json:"schedule_run_frequency"`
	RunTimes  []time.Time     `json:"schedule_run_times"`
	RunDays   []time.Weekday  `json:"schedule_run_days,omitempty"`
}

var _ SchedulePolicy = (*SimpleSchedulePolicy)(nil)

func (*SimpleSchedulePolicy) isSchedulePolicy() {}

// Validate checks the schedule on its own. Run times must already be in UTC.
func (s *SimpleSchedulePolicy) Validate() error {
	if s.Frequency != Daily && s.Frequency != Weekly {
		return invalidf("schedule run frequency %v", s.Frequency)
	}
	if len(s.RunTimes) == 0 {
		return invalidf("schedule run times are empty")
	}
	seen := make(map[time.Duration]bool, len(s.RunTimes))
	for _, t := range s.RunTimes {
		if t.Location() != time.UTC {
			return invalidf("schedule run time %s is not in UTC", t.Format(time.RFC3339))
		}
		if (t.Minute() != 0 && t.Minute() != 30) || t.Second() != 0 || t.Nanosecond() != 0 {
			return invalidf("schedule run time %s is not on a half hour", t.Format("15:04:05"))
		}
		tod := timeOfDay(t)
		if seen[tod] {
			return invalidf("duplicate schedule run time %s", t.Format("15:04"))
		}
		seen[tod] = true
	}
	if s.Frequency == Weekly {
		if len(s.RunDays) == 0 {
			return invalidf("schedule run days are empty for a weekly schedule")
		}
		if err := checkWeekdays("schedule run days", s.RunDays); err != nil {
			return err
		}
	}
	return nil
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func checkWeekdays(what string, days []time.Weekday) error {
	seen := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return invalidf("%s: invalid day %d", what, d)
		}
		if seen[d] {
			return invalidf("%s: duplicate day %s", what, d)
		}
		seen[d] = true
	}
	return nil
}

// ParseRunTime parses an "HH:MM" time of day as UTC.
func ParseRunTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("run time %q: %w", s, err)
	}
	return t, nil
}

// ParseWeekday parses an English day name, ignoring case.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown week day %q", s)
}

// ParseWeekdays parses a list of day names with ParseWeekday. An empty list
// gives nil.
func ParseWeekdays(in []string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, v := range in {
		d, err := ParseWeekday(v)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseMonths parses a list of English month names, ignoring case.
func ParseMonths(in []string) ([]time.Month, error) {
	var out []time.Month
next:
	for _, v := range in {
		for m := time.January; m <= time.December; m++ {
			if strings.EqualFold(m.String(), v) {
				out = append(out, m)
				continue next
			}
		}
		return nil, fmt.Errorf("unknown month %q", v)
	}
	return out, nil
}
