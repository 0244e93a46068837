package protection

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

func TestItemFromWire(t *testing.T) {
	last := time.Date(2021, 6, 1, 2, 0, 0, 0, time.UTC)
	item := itemFromWire(backupapi.ProtectedItem{
		ID:   protectedID,
		Name: itemName,
		Properties: &backupapi.ProtectedItemProperties{
			FriendlyName:     "vm1",
			VirtualMachineID: legacyVMID,
			PolicyName:       "daily",
			ProtectionState:  "irpending",
			ProtectionStatus: "Sick",
			WorkloadType:     "AzureVM",
			LastBackupTime:   &last,
		},
	})

	assert.Equal(t, containerName, item.ContainerName)
	assert.Equal(t, workload.Legacy, item.Generation)
	assert.Equal(t, workload.IRPending, item.ProtectionState)
	// unknown values never match a filter
	assert.Equal(t, workload.UnknownStatus, item.ProtectionStatus)
	assert.Equal(t, workload.AzureVM, item.WorkloadType)
	assert.Equal(t, workload.AzureVMContainer, item.ContainerType)
	assert.Equal(t, &last, item.LastBackupTime)
}

func TestPolicyWireRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	now := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	composed, err := policy.Compose(policy.DefaultSchedulePolicy(r, now), policy.DefaultRetentionPolicy(r, now))
	require.NoError(t, err)

	req := policyRequest("default", composed)
	got, err := policyFromWire(&req.Item)
	require.NoError(t, err)
	assert.Equal(t, "default", got.Name)
	assert.Equal(t, composed.Schedule, got.Schedule)
	assert.Equal(t, composed.Retention, got.Retention)
}

func TestPolicyFromWireRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name string
		p    *backupapi.ProtectionPolicyProperties
	}{
		{"frequency", &backupapi.ProtectionPolicyProperties{
			SchedulePolicy: &backupapi.SchedulePolicy{ScheduleRunFrequency: "Hourly"},
		}},
		{"week day", &backupapi.ProtectionPolicyProperties{
			RetentionPolicy: &backupapi.RetentionPolicy{WeeklySchedule: &backupapi.WeeklyRetentionSchedule{DaysOfTheWeek: []string{"Funday"}}},
		}},
		{"month", &backupapi.ProtectionPolicyProperties{
			RetentionPolicy: &backupapi.RetentionPolicy{YearlySchedule: &backupapi.YearlyRetentionSchedule{
				RetentionScheduleFormatType: "Daily",
				MonthsOfYear:                []string{"Smarch"},
			}},
		}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := policyFromWire(&backupapi.ProtectionPolicy{Name: "p", Properties: tc.p})
			require.Error(t, err)
		})
	}
}
