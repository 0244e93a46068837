package policy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weeklyScheduleYAML = `
frequency: weekly
run_times: ["02:00", "14:30"]
run_days: [sunday, Wednesday]
`

const retentionYAML = `
weekly:
  duration: 104
  days_of_week: [sunday, wednesday]
monthly:
  duration: 60
  selector:
    format: weekly
    days_of_week: [sunday]
    weeks_of_month: [first, last]
yearly:
  duration: 10
  months: [january, july]
  selector:
    format: weekly
    days_of_week: [wednesday]
    weeks_of_month: [second]
`

func TestParseScheduleYAML(t *testing.T) {
	sch, err := ParseScheduleYAML([]byte(weeklyScheduleYAML))
	require.NoError(t, err)
	assert.Equal(t, Weekly, sch.Frequency)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Wednesday}, sch.RunDays)
	require.Len(t, sch.RunTimes, 2)
	assert.Equal(t, "14:30", sch.RunTimes[1].Format("15:04"))
	require.NoError(t, sch.Validate())

	out, err := MarshalScheduleYAML(sch)
	require.NoError(t, err)
	again, err := ParseScheduleYAML(out)
	require.NoError(t, err)
	assert.Equal(t, sch, again)
}

func TestParseScheduleYAMLErrors(t *testing.T) {
	for _, doc := range []string{
		"frequency: hourly\nrun_times: [\"02:00\"]\n",
		"frequency: daily\nrun_times: [\"2am\"]\n",
		"frequency: weekly\nrun_times: [\"02:00\"]\nrun_days: [someday]\n",
		"frequency: daily\nunknown: true\n",
	} {
		_, err := ParseScheduleYAML([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestParseRetentionYAMLComposes(t *testing.T) {
	sch, err := ParseScheduleYAML([]byte(weeklyScheduleYAML))
	require.NoError(t, err)

	ret, err := ParseRetentionYAML([]byte(retentionYAML), sch.RunTimes)
	require.NoError(t, err)
	assert.False(t, ret.IsDailyScheduleEnabled)
	assert.True(t, ret.IsWeeklyScheduleEnabled)
	assert.True(t, ret.IsMonthlyScheduleEnabled)
	assert.True(t, ret.IsYearlyScheduleEnabled)
	assert.Equal(t, []time.Month{time.January, time.July}, ret.YearlySchedule.MonthsOfYear)
	assert.Equal(t, []WeekOfMonth{First, Last}, ret.MonthlySchedule.RetentionScheduleWeekly.WeeksOfTheMonth)

	_, err = Compose(sch, ret)
	require.NoError(t, err)
	assert.Equal(t, sch.RunTimes, ret.YearlySchedule.RetentionTimes)
}

func TestParseRetentionYAMLDayOfMonth(t *testing.T) {
	doc := `
monthly:
  duration: 12
  times: ["03:00"]
  selector:
    format: daily
    days_of_month: ["1", "15", "last"]
`
	ret, err := ParseRetentionYAML([]byte(doc), nil)
	require.NoError(t, err)
	require.NoError(t, ret.Validate())
	assert.Equal(t, []Day{{Date: 1}, {Date: 15}, {IsLast: true}}, ret.MonthlySchedule.RetentionScheduleDaily.DaysOfTheMonth)
	assert.Equal(t, "03:00", ret.MonthlySchedule.RetentionTimes[0].Format("15:04"))
}

func TestParseRetentionYAMLMissingSelector(t *testing.T) {
	_, err := ParseRetentionYAML([]byte("monthly:\n  duration: 12\n"), nil)
	assert.Error(t, err)
}

func TestPolicyJSONNames(t *testing.T) {
	sch, err := ParseScheduleYAML([]byte(weeklyScheduleYAML))
	require.NoError(t, err)
	ret, err := ParseRetentionYAML([]byte(retentionYAML), sch.RunTimes)
	require.NoError(t, err)

	b, err := json.Marshal(sch)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"schedule_run_frequency":"Weekly"`)

	b, err = json.Marshal(ret)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"retention_schedule_format_type":"Weekly"`)
	assert.Contains(t, string(b), `"weeks_of_the_month":["First","Last"]`)

	var back LongTermRetentionPolicy
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ret, &back)
}
