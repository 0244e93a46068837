package backupapi

import (
	"context"
	"net/http"
	"time"
)

// SchedulePolicy is the wire form of a simple schedule policy.
type SchedulePolicy struct {
	SchedulePolicyType   string      `json:"schedule_policy_type"`
	ScheduleRunFrequency string      `json:"schedule_run_frequency"`
	ScheduleRunDays      []string    `json:"schedule_run_days,omitempty"`
	ScheduleRunTimes     []time.Time `json:"schedule_run_times"`
}

// Day is a day of month selector.
type Day struct {
	Date   int  `json:"date"`
	IsLast bool `json:"is_last"`
}

// DailyRetentionFormat ...
type DailyRetentionFormat struct {
	DaysOfTheMonth []Day `json:"days_of_the_month"`
}

// WeeklyRetentionFormat ...
type WeeklyRetentionFormat struct {
	DaysOfTheWeek   []string `json:"days_of_the_week"`
	WeeksOfTheMonth []string `json:"weeks_of_the_month"`
}

// RetentionDuration is a count of a unit: Days, Weeks, Months or Years.
type RetentionDuration struct {
	Count        int    `json:"count"`
	DurationType string `json:"duration_type"`
}

// DailyRetentionSchedule ...
type DailyRetentionSchedule struct {
	RetentionTimes    []time.Time        `json:"retention_times"`
	RetentionDuration *RetentionDuration `json:"retention_duration"`
}

// WeeklyRetentionSchedule ...
type WeeklyRetentionSchedule struct {
	DaysOfTheWeek     []string           `json:"days_of_the_week"`
	RetentionTimes    []time.Time        `json:"retention_times"`
	RetentionDuration *RetentionDuration `json:"retention_duration"`
}

// MonthlyRetentionSchedule ...
type MonthlyRetentionSchedule struct {
	RetentionScheduleFormatType string                 `json:"retention_schedule_format_type"`
	RetentionScheduleDaily      *DailyRetentionFormat  `json:"retention_schedule_daily,omitempty"`
	RetentionScheduleWeekly     *WeeklyRetentionFormat `json:"retention_schedule_weekly,omitempty"`
	RetentionTimes              []time.Time            `json:"retention_times"`
	RetentionDuration           *RetentionDuration     `json:"retention_duration"`
}

// YearlyRetentionSchedule ...
type YearlyRetentionSchedule struct {
	RetentionScheduleFormatType string                 `json:"retention_schedule_format_type"`
	MonthsOfYear                []string               `json:"months_of_year"`
	RetentionScheduleDaily      *DailyRetentionFormat  `json:"retention_schedule_daily,omitempty"`
	RetentionScheduleWeekly     *WeeklyRetentionFormat `json:"retention_schedule_weekly,omitempty"`
	RetentionTimes              []time.Time            `json:"retention_times"`
	RetentionDuration           *RetentionDuration     `json:"retention_duration"`
}

// RetentionPolicy is the wire form of a long term retention policy. A nil
// tier is disabled.
type RetentionPolicy struct {
	RetentionPolicyType string                    `json:"retention_policy_type"`
	DailySchedule       *DailyRetentionSchedule   `json:"daily_schedule,omitempty"`
	WeeklySchedule      *WeeklyRetentionSchedule  `json:"weekly_schedule,omitempty"`
	MonthlySchedule     *MonthlyRetentionSchedule `json:"monthly_schedule,omitempty"`
	YearlySchedule      *YearlyRetentionSchedule  `json:"yearly_schedule,omitempty"`
}

// ProtectionPolicyProperties ...
type ProtectionPolicyProperties struct {
	BackupManagementType string           `json:"backup_management_type"`
	ProtectedItemsCount  int              `json:"protected_items_count,omitempty"`
	SchedulePolicy       *SchedulePolicy  `json:"schedule_policy"`
	RetentionPolicy      *RetentionPolicy `json:"retention_policy"`
}

// ProtectionPolicy ...
type ProtectionPolicy struct {
	ID         string                      `json:"id,omitempty"`
	Name       string                      `json:"name,omitempty"`
	Properties *ProtectionPolicyProperties `json:"properties"`
}

// ProtectionPolicyRequest creates or updates a protection policy.
type ProtectionPolicyRequest struct {
	Item ProtectionPolicy `json:"item"`
}

// CreateOrUpdateProtectionPolicy puts a protection policy under name.
func (c *Client) CreateOrUpdateProtectionPolicy(ctx context.Context, name string, r *ProtectionPolicyRequest) (*ProtectionPolicy, error) {
	req, err := c.NewRequest(ctx, http.MethodPut, c.protectionPolicyPath(name), r)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var p ProtectionPolicy
	if err := decodeJSON(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProtectionPolicy fetches a protection policy by name.
func (c *Client) GetProtectionPolicy(ctx context.Context, name string) (*ProtectionPolicy, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, c.protectionPolicyPath(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var p ProtectionPolicy
	if err := decodeJSON(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
