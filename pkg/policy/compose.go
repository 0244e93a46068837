package policy

import (
	"time"

	"github.com/juju/errors"
)

// Composed is a schedule and retention policy pair that passed composition.
type Composed struct {
	Schedule  *SimpleSchedulePolicy
	Retention *LongTermRetentionPolicy
}

// Compose validates both policies, copies the schedule run times into every
// enabled retention tier and validates the pair together. The retention policy
// is modified in place, and left as it was when composition fails.
func Compose(schedule SchedulePolicy, retention RetentionPolicy) (*Composed, error) {
	sch, err := simpleSchedule(schedule)
	if err != nil {
		return nil, err
	}
	ret, err := longTermRetention(retention)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ret.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	tiers := ret.enabledTiers()
	saved := make([][]time.Time, len(tiers))
	for i, t := range tiers {
		saved[i] = *t.times
	}
	CopyRunTimes(ret, sch)

	if err := Reconcile(ret, sch); err != nil {
		for i, t := range tiers {
			*t.times = saved[i]
		}
		return nil, errors.Trace(err)
	}
	return &Composed{Schedule: sch, Retention: ret}, nil
}

func simpleSchedule(s SchedulePolicy) (*SimpleSchedulePolicy, error) {
	switch v := s.(type) {
	case nil:
		return nil, ErrMissingSchedule
	case *SimpleSchedulePolicy:
		if v == nil {
			return nil, ErrMissingSchedule
		}
		return v, nil
	default:
		return nil, errors.Annotatef(ErrUnsupportedPolicyType, "schedule policy %T", s)
	}
}

func longTermRetention(r RetentionPolicy) (*LongTermRetentionPolicy, error) {
	switch v := r.(type) {
	case nil:
		return nil, ErrMissingRetention
	case *LongTermRetentionPolicy:
		if v == nil {
			return nil, ErrMissingRetention
		}
		return v, nil
	default:
		return nil, errors.Annotatef(ErrUnsupportedPolicyType, "retention policy %T", r)
	}
}

// CopyRunTimes overwrites the retention times of every enabled tier with the
// schedule run times. Each tier gets its own copy of the slice.
func CopyRunTimes(ret *LongTermRetentionPolicy, sch *SimpleSchedulePolicy) {
	for _, t := range ret.enabledTiers() {
		times := make([]time.Time, len(sch.RunTimes))
		copy(times, sch.RunTimes)
		*t.times = times
	}
}

// Reconcile validates a retention policy against the schedule it belongs to.
func Reconcile(ret *LongTermRetentionPolicy, sch *SimpleSchedulePolicy) error {
	switch sch.Frequency {
	case Daily:
		if !ret.IsDailyScheduleEnabled || ret.DailySchedule == nil {
			return invalidf("daily retention schedule is required for a daily backup schedule")
		}
	case Weekly:
		if ret.IsDailyScheduleEnabled {
			return invalidf("daily retention schedule is not allowed for a weekly backup schedule")
		}
		if !ret.IsWeeklyScheduleEnabled || ret.WeeklySchedule == nil {
			return invalidf("weekly retention schedule is required for a weekly backup schedule")
		}
		if !sameWeekdays(ret.WeeklySchedule.DaysOfTheWeek, sch.RunDays) {
			return invalidf("weekly retention days must match the schedule run days")
		}
		if ret.IsMonthlyScheduleEnabled && ret.MonthlySchedule != nil {
			m := ret.MonthlySchedule
			if err := weeklyFormatWithin("monthly", m.RetentionScheduleFormatType, m.RetentionScheduleWeekly, sch.RunDays); err != nil {
				return err
			}
		}
		if ret.IsYearlyScheduleEnabled && ret.YearlySchedule != nil {
			y := ret.YearlySchedule
			if err := weeklyFormatWithin("yearly", y.RetentionScheduleFormatType, y.RetentionScheduleWeekly, sch.RunDays); err != nil {
				return err
			}
		}
	default:
		return invalidf("schedule run frequency %v", sch.Frequency)
	}

	for _, t := range ret.enabledTiers() {
		if !sameTimes(*t.times, sch.RunTimes) {
			return invalidf("%s retention times must match the schedule run times", t.name)
		}
	}
	return nil
}

func weeklyFormatWithin(name string, format RetentionScheduleFormat, weekly *WeeklyRetentionFormat, runDays []time.Weekday) error {
	if format != FormatWeekly {
		return invalidf("%s retention must use the weekly format for a weekly backup schedule", name)
	}
	if weekly == nil {
		return invalidf("%s retention week based selector is empty", name)
	}
	allowed := make(map[time.Weekday]bool, len(runDays))
	for _, d := range runDays {
		allowed[d] = true
	}
	for _, d := range weekly.DaysOfTheWeek {
		if !allowed[d] {
			return invalidf("%s retention day %s is not a schedule run day", name, d)
		}
	}
	return nil
}

func sameWeekdays(a, b []time.Weekday) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[time.Weekday]bool, len(a))
	for _, d := range a {
		set[d] = true
	}
	for _, d := range b {
		if !set[d] {
			return false
		}
	}
	return true
}

func sameTimes(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
