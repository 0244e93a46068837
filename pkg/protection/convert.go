package protection

import (
	"time"

	"github.com/juju/errors"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/resourceid"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

const (
	backupManagementType = workload.ProviderType
	schedulePolicyType   = "SimpleSchedulePolicy"
	retentionPolicyType  = "LongTermRetentionPolicy"
)

// itemFromWire converts a protected item. Unknown enumeration values map to
// the zero value so they never match a filter. The generation is computed
// here, once.
func itemFromWire(p backupapi.ProtectedItem) *IaasVMItem {
	item := &IaasVMItem{
		ID:            p.ID,
		Name:          p.Name,
		ContainerType: workload.AzureVMContainer,
	}
	if props := p.Properties; props != nil {
		item.FriendlyName = props.FriendlyName
		item.ContainerName = props.ContainerName
		item.VirtualMachineID = props.VirtualMachineID
		item.PolicyName = props.PolicyName
		item.LastBackupTime = props.LastBackupTime
		item.WorkloadType, _ = workload.ParseType(props.WorkloadType)
		item.ProtectionState, _ = workload.ParseProtectionState(props.ProtectionState)
		item.ProtectionStatus, _ = workload.ParseProtectionStatus(props.ProtectionStatus)
	}
	if item.ContainerName == "" {
		if id, err := resourceid.Parse(p.ID); err == nil {
			item.ContainerName, _ = id.ContainerName()
		}
	}
	item.Generation = workload.GenerationFromID(item.VirtualMachineID)
	return item
}

// containerFromWire converts a container. Containers are always listed with
// the IaaS VM provider type.
func containerFromWire(c backupapi.Container) *Container {
	out := &Container{ID: c.ID, Name: c.Name, ContainerType: workload.AzureVMContainer}
	if props := c.Properties; props != nil {
		out.FriendlyName = props.FriendlyName
		out.ResourceGroup = props.ResourceGroup
		out.HealthStatus = props.HealthStatus
		out.RegistrationStatus, _ = workload.ParseRegistrationStatus(props.RegistrationStatus)
	}
	return out
}

func recoveryPointFromWire(rp backupapi.RecoveryPoint, containerName, itemName string) *IaasVMRecoveryPoint {
	out := &IaasVMRecoveryPoint{
		ID:            rp.ID,
		Name:          rp.Name,
		ContainerName: containerName,
		ItemName:      itemName,
		WorkloadType:  workload.AzureVM,
	}
	if props := rp.Properties; props != nil {
		out.Time = props.RecoveryPointTime
		out.Type = props.RecoveryPointType
		out.StorageType = props.SourceVMStorageType
		out.SizeInBytes = props.SizeInBytes
	}
	return out
}

func policyRequest(name string, c *policy.Composed) *backupapi.ProtectionPolicyRequest {
	return &backupapi.ProtectionPolicyRequest{
		Item: backupapi.ProtectionPolicy{
			Name: name,
			Properties: &backupapi.ProtectionPolicyProperties{
				BackupManagementType: backupManagementType,
				SchedulePolicy:       scheduleToWire(c.Schedule),
				RetentionPolicy:      retentionToWire(c.Retention),
			},
		},
	}
}

func scheduleToWire(s *policy.SimpleSchedulePolicy) *backupapi.SchedulePolicy {
	out := &backupapi.SchedulePolicy{
		SchedulePolicyType:   schedulePolicyType,
		ScheduleRunFrequency: s.Frequency.String(),
		ScheduleRunTimes:     copyTimes(s.RunTimes),
	}
	for _, d := range s.RunDays {
		out.ScheduleRunDays = append(out.ScheduleRunDays, d.String())
	}
	return out
}

func retentionToWire(r *policy.LongTermRetentionPolicy) *backupapi.RetentionPolicy {
	out := &backupapi.RetentionPolicy{RetentionPolicyType: retentionPolicyType}
	if r.IsDailyScheduleEnabled && r.DailySchedule != nil {
		out.DailySchedule = &backupapi.DailyRetentionSchedule{
			RetentionTimes:    copyTimes(r.DailySchedule.RetentionTimes),
			RetentionDuration: &backupapi.RetentionDuration{Count: r.DailySchedule.DurationCountInDays, DurationType: "Days"},
		}
	}
	if r.IsWeeklyScheduleEnabled && r.WeeklySchedule != nil {
		out.WeeklySchedule = &backupapi.WeeklyRetentionSchedule{
			DaysOfTheWeek:     weekdayNames(r.WeeklySchedule.DaysOfTheWeek),
			RetentionTimes:    copyTimes(r.WeeklySchedule.RetentionTimes),
			RetentionDuration: &backupapi.RetentionDuration{Count: r.WeeklySchedule.DurationCountInWeeks, DurationType: "Weeks"},
		}
	}
	if r.IsMonthlyScheduleEnabled && r.MonthlySchedule != nil {
		m := r.MonthlySchedule
		out.MonthlySchedule = &backupapi.MonthlyRetentionSchedule{
			RetentionScheduleFormatType: m.RetentionScheduleFormatType.String(),
			RetentionScheduleDaily:      dailyFormatToWire(m.RetentionScheduleDaily),
			RetentionScheduleWeekly:     weeklyFormatToWire(m.RetentionScheduleWeekly),
			RetentionTimes:              copyTimes(m.RetentionTimes),
			RetentionDuration:           &backupapi.RetentionDuration{Count: m.DurationCountInMonths, DurationType: "Months"},
		}
	}
	if r.IsYearlyScheduleEnabled && r.YearlySchedule != nil {
		y := r.YearlySchedule
		ys := &backupapi.YearlyRetentionSchedule{
			RetentionScheduleFormatType: y.RetentionScheduleFormatType.String(),
			RetentionScheduleDaily:      dailyFormatToWire(y.RetentionScheduleDaily),
			RetentionScheduleWeekly:     weeklyFormatToWire(y.RetentionScheduleWeekly),
			RetentionTimes:              copyTimes(y.RetentionTimes),
			RetentionDuration:           &backupapi.RetentionDuration{Count: y.DurationCountInYears, DurationType: "Years"},
		}
		for _, m := range y.MonthsOfYear {
			ys.MonthsOfYear = append(ys.MonthsOfYear, m.String())
		}
		out.YearlySchedule = ys
	}
	return out
}

func dailyFormatToWire(f *policy.DailyRetentionFormat) *backupapi.DailyRetentionFormat {
	if f == nil {
		return nil
	}
	out := &backupapi.DailyRetentionFormat{}
	for _, d := range f.DaysOfTheMonth {
		out.DaysOfTheMonth = append(out.DaysOfTheMonth, backupapi.Day{Date: d.Date, IsLast: d.IsLast})
	}
	return out
}

func weeklyFormatToWire(f *policy.WeeklyRetentionFormat) *backupapi.WeeklyRetentionFormat {
	if f == nil {
		return nil
	}
	out := &backupapi.WeeklyRetentionFormat{DaysOfTheWeek: weekdayNames(f.DaysOfTheWeek)}
	for _, w := range f.WeeksOfTheMonth {
		out.WeeksOfTheMonth = append(out.WeeksOfTheMonth, w.String())
	}
	return out
}

// policyFromWire converts a fetched protection policy. A missing schedule or
// retention part stays nil.
func policyFromWire(p *backupapi.ProtectionPolicy) (*policy.IaasVMPolicy, error) {
	out := &policy.IaasVMPolicy{ID: p.ID, Name: p.Name, WorkloadType: workload.AzureVM}
	if p.Properties == nil {
		return out, nil
	}
	if s := p.Properties.SchedulePolicy; s != nil {
		sch, err := scheduleFromWire(s)
		if err != nil {
			return nil, errors.Annotatef(err, "policy %q", p.Name)
		}
		out.Schedule = sch
	}
	if r := p.Properties.RetentionPolicy; r != nil {
		ret, err := retentionFromWire(r)
		if err != nil {
			return nil, errors.Annotatef(err, "policy %q", p.Name)
		}
		out.Retention = ret
	}
	return out, nil
}

func scheduleFromWire(s *backupapi.SchedulePolicy) (*policy.SimpleSchedulePolicy, error) {
	freq, err := policy.ParseScheduleRunType(s.ScheduleRunFrequency)
	if err != nil {
		return nil, errors.Trace(err)
	}
	days, err := policy.ParseWeekdays(s.ScheduleRunDays)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &policy.SimpleSchedulePolicy{
		Frequency: freq,
		RunTimes:  utcTimes(s.ScheduleRunTimes),
		RunDays:   days,
	}, nil
}

func retentionFromWire(r *backupapi.RetentionPolicy) (*policy.LongTermRetentionPolicy, error) {
	out := &policy.LongTermRetentionPolicy{}
	if d := r.DailySchedule; d != nil {
		out.IsDailyScheduleEnabled = true
		out.DailySchedule = &policy.DailyRetentionSchedule{
			DurationCountInDays: durationCount(d.RetentionDuration),
			RetentionTimes:      utcTimes(d.RetentionTimes),
		}
	}
	if w := r.WeeklySchedule; w != nil {
		days, err := policy.ParseWeekdays(w.DaysOfTheWeek)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out.IsWeeklyScheduleEnabled = true
		out.WeeklySchedule = &policy.WeeklyRetentionSchedule{
			DurationCountInWeeks: durationCount(w.RetentionDuration),
			DaysOfTheWeek:        days,
			RetentionTimes:       utcTimes(w.RetentionTimes),
		}
	}
	if m := r.MonthlySchedule; m != nil {
		format, daily, weekly, err := formatFromWire(m.RetentionScheduleFormatType, m.RetentionScheduleDaily, m.RetentionScheduleWeekly)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out.IsMonthlyScheduleEnabled = true
		out.MonthlySchedule = &policy.MonthlyRetentionSchedule{
			DurationCountInMonths:       durationCount(m.RetentionDuration),
			RetentionScheduleFormatType: format,
			RetentionScheduleDaily:      daily,
			RetentionScheduleWeekly:     weekly,
			RetentionTimes:              utcTimes(m.RetentionTimes),
		}
	}
	if y := r.YearlySchedule; y != nil {
		format, daily, weekly, err := formatFromWire(y.RetentionScheduleFormatType, y.RetentionScheduleDaily, y.RetentionScheduleWeekly)
		if err != nil {
			return nil, errors.Trace(err)
		}
		months, err := policy.ParseMonths(y.MonthsOfYear)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out.IsYearlyScheduleEnabled = true
		out.YearlySchedule = &policy.YearlyRetentionSchedule{
			DurationCountInYears:        durationCount(y.RetentionDuration),
			RetentionScheduleFormatType: format,
			MonthsOfYear:                months,
			RetentionScheduleDaily:      daily,
			RetentionScheduleWeekly:     weekly,
			RetentionTimes:              utcTimes(y.RetentionTimes),
		}
	}
	return out, nil
}

func formatFromWire(name string, daily *backupapi.DailyRetentionFormat, weekly *backupapi.WeeklyRetentionFormat) (policy.RetentionScheduleFormat, *policy.DailyRetentionFormat, *policy.WeeklyRetentionFormat, error) {
	format, err := policy.ParseRetentionScheduleFormat(name)
	if err != nil {
		return policy.UnknownFormat, nil, nil, err
	}
	var d *policy.DailyRetentionFormat
	if daily != nil {
		d = &policy.DailyRetentionFormat{}
		for _, day := range daily.DaysOfTheMonth {
			d.DaysOfTheMonth = append(d.DaysOfTheMonth, policy.Day{Date: day.Date, IsLast: day.IsLast})
		}
	}
	var w *policy.WeeklyRetentionFormat
	if weekly != nil {
		days, err := policy.ParseWeekdays(weekly.DaysOfTheWeek)
		if err != nil {
			return policy.UnknownFormat, nil, nil, err
		}
		w = &policy.WeeklyRetentionFormat{DaysOfTheWeek: days}
		for _, s := range weekly.WeeksOfTheMonth {
			wom, err := policy.ParseWeekOfMonth(s)
			if err != nil {
				return policy.UnknownFormat, nil, nil, err
			}
			w.WeeksOfTheMonth = append(w.WeeksOfTheMonth, wom)
		}
	}
	return format, d, w, nil
}

func durationCount(d *backupapi.RetentionDuration) int {
	if d == nil {
		return 0
	}
	return d.Count
}

func weekdayNames(days []time.Weekday) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

func copyTimes(in []time.Time) []time.Time {
	if in == nil {
		return nil
	}
	out := make([]time.Time, len(in))
	copy(out, in)
	return out
}

func utcTimes(in []time.Time) []time.Time {
	if in == nil {
		return nil
	}
	out := make([]time.Time, len(in))
	for i, t := range in {
		out[i] = t.UTC()
	}
	return out
}
