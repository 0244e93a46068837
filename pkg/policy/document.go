package policy

import (
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// ScheduleDocument is the YAML form of a simple schedule policy.
//
//	frequency: weekly
//	run_times: ["02:00"]
//	run_days: [sunday]
type ScheduleDocument struct {
	Frequency string   `yaml:"frequency"`
	RunTimes  []string `yaml:"run_times"`
	RunDays   []string `yaml:"run_days,omitempty"`
}

// SelectorDocument picks the retained day of a monthly or yearly tier.
type SelectorDocument struct {
	Format       string   `yaml:"format"`
	DaysOfMonth  []string `yaml:"days_of_month,omitempty"`
	DaysOfWeek   []string `yaml:"days_of_week,omitempty"`
	WeeksOfMonth []string `yaml:"weeks_of_month,omitempty"`
}

// TierDocument is one retention tier. A tier is enabled when present.
type TierDocument struct {
	Duration   int      `yaml:"duration"`
	Times      []string `yaml:"times,omitempty"`
	DaysOfWeek []string `yaml:"days_of_week,omitempty"`
	Months     []string `yaml:"months,omitempty"`

	// Selector is required for the monthly and yearly tiers.
	Selector *SelectorDocument `yaml:"selector,omitempty"`
}

// RetentionDocument is the YAML form of a long term retention policy.
type RetentionDocument struct {
	Daily   *TierDocument `yaml:"daily,omitempty"`
	Weekly  *TierDocument `yaml:"weekly,omitempty"`
	Monthly *TierDocument `yaml:"monthly,omitempty"`
	Yearly  *TierDocument `yaml:"yearly,omitempty"`
}

// ParseScheduleYAML decodes a schedule document. Run times are read as UTC.
func ParseScheduleYAML(data []byte) (*SimpleSchedulePolicy, error) {
	var doc ScheduleDocument
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Annotate(err, "decode schedule document")
	}
	freq, err := ParseScheduleRunType(doc.Frequency)
	if err != nil {
		return nil, errors.Trace(err)
	}
	times, err := parseTimes(doc.RunTimes)
	if err != nil {
		return nil, err
	}
	days, err := ParseWeekdays(doc.RunDays)
	if err != nil {
		return nil, err
	}
	return &SimpleSchedulePolicy{Frequency: freq, RunTimes: times, RunDays: days}, nil
}

// ParseRetentionYAML decodes a retention document. Tiers that list no times
// get a copy of fallback, which is normally the schedule run times.
func ParseRetentionYAML(data []byte, fallback []time.Time) (*LongTermRetentionPolicy, error) {
	var doc RetentionDocument
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Annotate(err, "decode retention document")
	}

	tierTimes := func(t *TierDocument) ([]time.Time, error) {
		if len(t.Times) == 0 {
			out := make([]time.Time, len(fallback))
			copy(out, fallback)
			return out, nil
		}
		return parseTimes(t.Times)
	}

	ret := &LongTermRetentionPolicy{}
	if t := doc.Daily; t != nil {
		times, err := tierTimes(t)
		if err != nil {
			return nil, err
		}
		ret.IsDailyScheduleEnabled = true
		ret.DailySchedule = &DailyRetentionSchedule{DurationCountInDays: t.Duration, RetentionTimes: times}
	}
	if t := doc.Weekly; t != nil {
		times, err := tierTimes(t)
		if err != nil {
			return nil, err
		}
		days, err := ParseWeekdays(t.DaysOfWeek)
		if err != nil {
			return nil, err
		}
		ret.IsWeeklyScheduleEnabled = true
		ret.WeeklySchedule = &WeeklyRetentionSchedule{DurationCountInWeeks: t.Duration, DaysOfTheWeek: days, RetentionTimes: times}
	}
	if t := doc.Monthly; t != nil {
		times, err := tierTimes(t)
		if err != nil {
			return nil, err
		}
		format, daily, weekly, err := t.Selector.decode()
		if err != nil {
			return nil, err
		}
		ret.IsMonthlyScheduleEnabled = true
		ret.MonthlySchedule = &MonthlyRetentionSchedule{
			DurationCountInMonths:       t.Duration,
			RetentionScheduleFormatType: format,
			RetentionScheduleDaily:      daily,
			RetentionScheduleWeekly:     weekly,
			RetentionTimes:              times,
		}
	}
	if t := doc.Yearly; t != nil {
		times, err := tierTimes(t)
		if err != nil {
			return nil, err
		}
		format, daily, weekly, err := t.Selector.decode()
		if err != nil {
			return nil, err
		}
		months, err := ParseMonths(t.Months)
		if err != nil {
			return nil, err
		}
		ret.IsYearlyScheduleEnabled = true
		ret.YearlySchedule = &YearlyRetentionSchedule{
			DurationCountInYears:        t.Duration,
			RetentionScheduleFormatType: format,
			MonthsOfYear:                months,
			RetentionScheduleDaily:      daily,
			RetentionScheduleWeekly:     weekly,
			RetentionTimes:              times,
		}
	}
	return ret, nil
}

func (s *SelectorDocument) decode() (RetentionScheduleFormat, *DailyRetentionFormat, *WeeklyRetentionFormat, error) {
	if s == nil {
		return UnknownFormat, nil, nil, invalidf("retention selector is missing")
	}
	format, err := ParseRetentionScheduleFormat(s.Format)
	if err != nil {
		return UnknownFormat, nil, nil, errors.Trace(err)
	}
	var daily *DailyRetentionFormat
	if len(s.DaysOfMonth) > 0 {
		daily = &DailyRetentionFormat{}
		for _, v := range s.DaysOfMonth {
			if strings.EqualFold(v, "last") {
				daily.DaysOfTheMonth = append(daily.DaysOfTheMonth, Day{IsLast: true})
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return UnknownFormat, nil, nil, errors.Annotatef(err, "day of month %q", v)
			}
			daily.DaysOfTheMonth = append(daily.DaysOfTheMonth, Day{Date: n})
		}
	}
	var weekly *WeeklyRetentionFormat
	if len(s.DaysOfWeek) > 0 || len(s.WeeksOfMonth) > 0 {
		days, err := ParseWeekdays(s.DaysOfWeek)
		if err != nil {
			return UnknownFormat, nil, nil, err
		}
		weekly = &WeeklyRetentionFormat{DaysOfTheWeek: days}
		for _, v := range s.WeeksOfMonth {
			w, err := ParseWeekOfMonth(v)
			if err != nil {
				return UnknownFormat, nil, nil, errors.Trace(err)
			}
			weekly.WeeksOfTheMonth = append(weekly.WeeksOfTheMonth, w)
		}
	}
	return format, daily, weekly, nil
}

// MarshalScheduleYAML encodes a schedule as a ScheduleDocument.
func MarshalScheduleYAML(s *SimpleSchedulePolicy) ([]byte, error) {
	doc := ScheduleDocument{Frequency: strings.ToLower(s.Frequency.String())}
	for _, t := range s.RunTimes {
		doc.RunTimes = append(doc.RunTimes, t.UTC().Format("15:04"))
	}
	if s.Frequency == Weekly {
		for _, d := range s.RunDays {
			doc.RunDays = append(doc.RunDays, strings.ToLower(d.String()))
		}
	}
	return yaml.Marshal(doc)
}

func parseTimes(in []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(in))
	for _, v := range in {
		t, err := ParseRunTime(v)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, t)
	}
	return out, nil
}
