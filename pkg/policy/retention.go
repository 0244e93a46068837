package policy

import (
	"fmt"
	"strings"
	"time"
)

// RetentionScheduleFormat selects how monthly and yearly tiers pick their day:
// by day of month or by day of week within a week of the month.
type RetentionScheduleFormat int

const (
	UnknownFormat RetentionScheduleFormat = iota
	FormatDaily
	FormatWeekly
)

func (f RetentionScheduleFormat) String() string {
	switch f {
	case FormatDaily:
		return "Daily"
	case FormatWeekly:
		return "Weekly"
	}
	return "Unknown"
}

// ParseRetentionScheduleFormat parses "daily" or "weekly", ignoring case.
func ParseRetentionScheduleFormat(s string) (RetentionScheduleFormat, error) {
	switch strings.ToLower(s) {
	case "daily":
		return FormatDaily, nil
	case "weekly":
		return FormatWeekly, nil
	}
	return UnknownFormat, fmt.Errorf("unknown retention schedule format %q", s)
}

// WeekOfMonth is a week selector inside a month.
type WeekOfMonth int

const (
	First WeekOfMonth = iota + 1
	Second
	Third
	Fourth
	Last
)

var weekOfMonthNames = map[WeekOfMonth]string{
	First:  "First",
	Second: "Second",
	Third:  "Third",
	Fourth: "Fourth",
	Last:   "Last",
}

func (w WeekOfMonth) String() string {
	if n, ok := weekOfMonthNames[w]; ok {
		return n
	}
	return "Invalid"
}

// ParseWeekOfMonth parses a week selector name, ignoring case.
func ParseWeekOfMonth(s string) (WeekOfMonth, error) {
	for w, n := range weekOfMonthNames {
		if strings.EqualFold(n, s) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown week of month %q", s)
}

// Day is a day-of-month selector. IsLast selects the last day whatever Date holds.
type Day struct {
	Date   int  `json:"date"`
	IsLast bool `json:"is_last"`
}

// DailyRetentionFormat selects days of the month.
type DailyRetentionFormat struct {
	DaysOfTheMonth []Day `json:"days_of_the_month"`
}

// WeeklyRetentionFormat selects days of week within weeks of the month.
type WeeklyRetentionFormat struct {
	DaysOfTheWeek   []time.Weekday `json:"days_of_the_week"`
	WeeksOfTheMonth []WeekOfMonth  `json:"weeks_of_the_month"`
}

// DailyRetentionSchedule keeps daily recovery points.
type DailyRetentionSchedule struct {
	DurationCountInDays int         `json:"duration_count_in_days"`
	RetentionTimes      []time.Time `json:"retention_times"`
}

// WeeklyRetentionSchedule keeps recovery points taken on the given week days.
type WeeklyRetentionSchedule struct {
	DurationCountInWeeks int            `json:"duration_count_in_weeks"`
	DaysOfTheWeek        []time.Weekday `json:"days_of_the_week"`
	RetentionTimes       []time.Time    `json:"retention_times"`
}

// MonthlyRetentionSchedule keeps one recovery point per month.
type MonthlyRetentionSchedule struct {
	DurationCountInMonths       int                     `json:"duration_count_in_months"`
	RetentionScheduleFormatType RetentionScheduleFormat `json:"retention_schedule_format_type"`
	RetentionScheduleDaily      *DailyRetentionFormat   `json:"retention_schedule_daily,omitempty"`
	RetentionScheduleWeekly     *WeeklyRetentionFormat  `json:"retention_schedule_weekly,omitempty"`
	RetentionTimes              []time.Time             `json:"retention_times"`
}

// YearlyRetentionSchedule keeps one recovery point per selected month of year.
type YearlyRetentionSchedule struct {
	DurationCountInYears        int                     `json:"duration_count_in_years"`
	RetentionScheduleFormatType RetentionScheduleFormat `json:"retention_schedule_format_type"`
	MonthsOfYear                []time.Month            `json:"months_of_year"`
	RetentionScheduleDaily      *DailyRetentionFormat   `json:"retention_schedule_daily,omitempty"`
	RetentionScheduleWeekly     *WeeklyRetentionFormat  `json:"retention_schedule_weekly,omitempty"`
	RetentionTimes              []time.Time             `json:"retention_times"`
}

// RetentionPolicy defines how long recovery points are kept.
// LongTermRetentionPolicy is the only variant.
type RetentionPolicy interface {
	Validate() error
	isRetentionPolicy()
}

// LongTermRetentionPolicy has four independently enabled tiers.
type LongTermRetentionPolicy struct {
	IsDailyScheduleEnabled   bool                      `json:"is_daily_schedule_enabled"`
	IsWeeklyScheduleEnabled  bool                      `json:"is_weekly_schedule_enabled"`
	IsMonthlyScheduleEnabled bool                      `json:"is_monthly_schedule_enabled"`
	IsYearlyScheduleEnabled  bool                      `json:"is_yearly_schedule_enabled"`
	DailySchedule            *DailyRetentionSchedule   `json:"daily_schedule,omitempty"`
	WeeklySchedule           *WeeklyRetentionSchedule  `json:"weekly_schedule,omitempty"`
	MonthlySchedule          *MonthlyRetentionSchedule `json:"monthly_schedule,omitempty"`
	YearlySchedule           *YearlyRetentionSchedule  `json:"yearly_schedule,omitempty"`
}

var _ RetentionPolicy = (*LongTermRetentionPolicy)(nil)

func (*LongTermRetentionPolicy) isRetentionPolicy() {}

// tier is a view over one enabled retention tier.
type tier struct {
	name  string
	times *[]time.Time
}

// enabledTiers returns the enabled tiers that carry a schedule, in
// daily, weekly, monthly, yearly order.
func (r *LongTermRetentionPolicy) enabledTiers() []tier {
	var tiers []tier
	if r.IsDailyScheduleEnabled && r.DailySchedule != nil {
		tiers = append(tiers, tier{"daily", &r.DailySchedule.RetentionTimes})
	}
	if r.IsWeeklyScheduleEnabled && r.WeeklySchedule != nil {
		tiers = append(tiers, tier{"weekly", &r.WeeklySchedule.RetentionTimes})
	}
	if r.IsMonthlyScheduleEnabled && r.MonthlySchedule != nil {
		tiers = append(tiers, tier{"monthly", &r.MonthlySchedule.RetentionTimes})
	}
	if r.IsYearlyScheduleEnabled && r.YearlySchedule != nil {
		tiers = append(tiers, tier{"yearly", &r.YearlySchedule.RetentionTimes})
	}
	return tiers
}

// Validate checks the retention policy on its own.
func (r *LongTermRetentionPolicy) Validate() error {
	if !r.IsDailyScheduleEnabled && !r.IsWeeklyScheduleEnabled &&
		!r.IsMonthlyScheduleEnabled && !r.IsYearlyScheduleEnabled {
		return invalidf("no retention schedule is enabled")
	}
	if r.IsDailyScheduleEnabled {
		if r.DailySchedule == nil {
			return invalidf("daily retention schedule is enabled but empty")
		}
		if r.DailySchedule.DurationCountInDays <= 0 {
			return invalidf("daily retention duration %d", r.DailySchedule.DurationCountInDays)
		}
		if len(r.DailySchedule.RetentionTimes) == 0 {
			return invalidf("daily retention times are empty")
		}
	}
	if r.IsWeeklyScheduleEnabled {
		if r.WeeklySchedule == nil {
			return invalidf("weekly retention schedule is enabled but empty")
		}
		if r.WeeklySchedule.DurationCountInWeeks <= 0 {
			return invalidf("weekly retention duration %d", r.WeeklySchedule.DurationCountInWeeks)
		}
		if len(r.WeeklySchedule.RetentionTimes) == 0 {
			return invalidf("weekly retention times are empty")
		}
		if len(r.WeeklySchedule.DaysOfTheWeek) == 0 {
			return invalidf("weekly retention days are empty")
		}
		if err := checkWeekdays("weekly retention days", r.WeeklySchedule.DaysOfTheWeek); err != nil {
			return err
		}
	}
	if r.IsMonthlyScheduleEnabled {
		m := r.MonthlySchedule
		if m == nil {
			return invalidf("monthly retention schedule is enabled but empty")
		}
		if m.DurationCountInMonths <= 0 {
			return invalidf("monthly retention duration %d", m.DurationCountInMonths)
		}
		if len(m.RetentionTimes) == 0 {
			return invalidf("monthly retention times are empty")
		}
		if err := validateFormat("monthly", m.RetentionScheduleFormatType, m.RetentionScheduleDaily, m.RetentionScheduleWeekly); err != nil {
			return err
		}
	}
	if r.IsYearlyScheduleEnabled {
		y := r.YearlySchedule
		if y == nil {
			return invalidf("yearly retention schedule is enabled but empty")
		}
		if y.DurationCountInYears <= 0 {
			return invalidf("yearly retention duration %d", y.DurationCountInYears)
		}
		if len(y.RetentionTimes) == 0 {
			return invalidf("yearly retention times are empty")
		}
		if len(y.MonthsOfYear) == 0 {
			return invalidf("yearly retention months are empty")
		}
		for _, month := range y.MonthsOfYear {
			if month < time.January || month > time.December {
				return invalidf("yearly retention month %d", month)
			}
		}
		if err := validateFormat("yearly", y.RetentionScheduleFormatType, y.RetentionScheduleDaily, y.RetentionScheduleWeekly); err != nil {
			return err
		}
	}
	return nil
}

func validateFormat(name string, format RetentionScheduleFormat, daily *DailyRetentionFormat, weekly *WeeklyRetentionFormat) error {
	switch format {
	case FormatDaily:
		if daily == nil || len(daily.DaysOfTheMonth) == 0 {
			return invalidf("%s retention days of the month are empty", name)
		}
		for _, d := range daily.DaysOfTheMonth {
			if !d.IsLast && (d.Date < 1 || d.Date > 28) {
				return invalidf("%s retention day of month %d", name, d.Date)
			}
		}
	case FormatWeekly:
		if weekly == nil || len(weekly.DaysOfTheWeek) == 0 || len(weekly.WeeksOfTheMonth) == 0 {
			return invalidf("%s retention week based selector is empty", name)
		}
		if err := checkWeekdays(name+" retention days", weekly.DaysOfTheWeek); err != nil {
			return err
		}
		for _, w := range weekly.WeeksOfTheMonth {
			if w < First || w > Last {
				return invalidf("%s retention week of month %d", name, w)
			}
		}
	default:
		return invalidf("%s retention schedule format %v", name, format)
	}
	return nil
}
