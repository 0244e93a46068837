package policy

import (
	"math/rand"
	"time"
)

// Default retention durations, one per tier.
const (
	DefaultDailyRetentionDays     = 180
	DefaultWeeklyRetentionWeeks   = 104
	DefaultMonthlyRetentionMonths = 60
	DefaultYearlyRetentionYears   = 10
)

// RandomRunTime returns a UTC time on now's date at a random half hour.
// Spreading default run times keeps clients from hitting the service at once.
func RandomRunTime(r *rand.Rand, now time.Time) time.Time {
	now = now.UTC()
	hour := r.Intn(24)
	minute := r.Intn(2) * 30
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
}

// DefaultSchedulePolicy returns a daily schedule with one random run time.
func DefaultSchedulePolicy(r *rand.Rand, now time.Time) *SimpleSchedulePolicy {
	return &SimpleSchedulePolicy{
		Frequency: Daily,
		RunTimes:  []time.Time{RandomRunTime(r, now)},
		RunDays:   []time.Weekday{time.Sunday},
	}
}

// DefaultRetentionPolicy returns a retention policy with all four tiers
// enabled and one random retention time shared by every tier.
func DefaultRetentionPolicy(r *rand.Rand, now time.Time) *LongTermRetentionPolicy {
	runTime := RandomRunTime(r, now)
	times := func() []time.Time { return []time.Time{runTime} }
	daily := func() *DailyRetentionFormat {
		return &DailyRetentionFormat{DaysOfTheMonth: []Day{{Date: 1}}}
	}
	weekly := func() *WeeklyRetentionFormat {
		return &WeeklyRetentionFormat{
			DaysOfTheWeek:   []time.Weekday{time.Sunday},
			WeeksOfTheMonth: []WeekOfMonth{First},
		}
	}

	return &LongTermRetentionPolicy{
		IsDailyScheduleEnabled:   true,
		IsWeeklyScheduleEnabled:  true,
		IsMonthlyScheduleEnabled: true,
		IsYearlyScheduleEnabled:  true,
		DailySchedule: &DailyRetentionSchedule{
			DurationCountInDays: DefaultDailyRetentionDays,
			RetentionTimes:      times(),
		},
		WeeklySchedule: &WeeklyRetentionSchedule{
			DurationCountInWeeks: DefaultWeeklyRetentionWeeks,
			DaysOfTheWeek:        []time.Weekday{time.Sunday},
			RetentionTimes:       times(),
		},
		MonthlySchedule: &MonthlyRetentionSchedule{
			DurationCountInMonths:       DefaultMonthlyRetentionMonths,
			RetentionScheduleFormatType: FormatWeekly,
			RetentionScheduleDaily:      daily(),
			RetentionScheduleWeekly:     weekly(),
			RetentionTimes:              times(),
		},
		YearlySchedule: &YearlyRetentionSchedule{
			DurationCountInYears:        DefaultYearlyRetentionYears,
			RetentionScheduleFormatType: FormatWeekly,
			MonthsOfYear:                []time.Month{time.January},
			RetentionScheduleDaily:      daily(),
			RetentionScheduleWeekly:     weekly(),
			RetentionTimes:              times(),
		},
	}
}
