package protection

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

func dailyPolicy() *policy.IaasVMPolicy {
	return &policy.IaasVMPolicy{Name: "daily", WorkloadType: workload.AzureVM}
}

func protectedVM() *IaasVMItem {
	return &IaasVMItem{
		ID:               protectedID,
		Name:             itemName,
		FriendlyName:     "vm1",
		ContainerName:    containerName,
		ContainerType:    workload.AzureVMContainer,
		WorkloadType:     workload.AzureVM,
		VirtualMachineID: modernVMID,
		Generation:       workload.Modern,
		ProtectionState:  workload.Protected,
		PolicyName:       "daily",
	}
}

func TestEnableProtectionDiscoversThenCreates(t *testing.T) {
	b := &spyBackend{
		pending:  []backupapi.ProtectableItem{protectableVM("vm1", "rg-1", "Compute")},
		statuses: []int{http.StatusAccepted, http.StatusNoContent},
	}
	o := newTestOrchestrator(b)

	job, err := o.EnableProtection(context.Background(), EnableProtectionRequest{
		VMName:        "vm1",
		ResourceGroup: "rg-1",
		WorkloadType:  workload.AzureVM,
		Policy:        dailyPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, "update", job.JobID)

	assert.Equal(t, []string{
		"ListProtectableItems",
		"RefreshContainers",
		"GetOperationStatus",
		"GetOperationStatus",
		"ListProtectableItems",
		"CreateOrUpdateProtectedItem",
	}, b.callNames())
	assert.Equal(t, [2]string{containerName, itemName}, b.target)
	props := b.itemRequest.Item.Properties
	assert.Equal(t, "daily", props.PolicyName)
	assert.Equal(t, "Microsoft.Compute/virtualMachines", props.ProtectedItemType)
	assert.Equal(t, modernVMID, props.VirtualMachineID)
}

func TestEnableProtectionLegacyMachine(t *testing.T) {
	b := &spyBackend{protectable: []backupapi.ProtectableItem{
		protectableVM("vm1", "svc-1", "Compute"),
		protectableVM("vm1", "svc-1", "ClassicCompute"),
	}}
	o := newTestOrchestrator(b)

	_, err := o.EnableProtection(context.Background(), EnableProtectionRequest{
		VMName:       "vm1",
		CloudService: "svc-1",
		WorkloadType: workload.AzureVM,
		Policy:       dailyPolicy(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ListProtectableItems", "CreateOrUpdateProtectedItem"}, b.callNames())
	assert.Equal(t, "Microsoft.ClassicCompute/virtualMachines", b.itemRequest.Item.Properties.ProtectedItemType)
	assert.Equal(t, legacyVMID, b.itemRequest.Item.Properties.VirtualMachineID)
}

func TestEnableProtectionExistingItem(t *testing.T) {
	b := &spyBackend{}
	o := newTestOrchestrator(b)

	item := protectedVM()
	item.VirtualMachineID = legacyVMID
	item.Generation = workload.Legacy
	weekly := &policy.IaasVMPolicy{Name: "weekly", WorkloadType: workload.AzureVM}

	_, err := o.EnableProtection(context.Background(), EnableProtectionRequest{Item: item, Policy: weekly})
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateOrUpdateProtectedItem"}, b.callNames())
	assert.Equal(t, [2]string{containerName, itemName}, b.target)
	assert.Equal(t, "weekly", b.itemRequest.Item.Properties.PolicyName)
	assert.Equal(t, "Microsoft.ClassicCompute/virtualMachines", b.itemRequest.Item.Properties.ProtectedItemType)
}

func TestEnableProtectionWorkloadMismatch(t *testing.T) {
	unknownItem := protectedVM()
	unknownItem.WorkloadType = workload.UnknownType

	tests := []struct {
		name string
		req  EnableProtectionRequest
	}{
		{"request workload unset", EnableProtectionRequest{
			VMName: "vm1", ResourceGroup: "rg-1", Policy: dailyPolicy(),
		}},
		{"policy workload unset", EnableProtectionRequest{
			VMName: "vm1", ResourceGroup: "rg-1", WorkloadType: workload.AzureVM,
			Policy: &policy.IaasVMPolicy{Name: "daily"},
		}},
		{"item workload unset", EnableProtectionRequest{Item: unknownItem, Policy: dailyPolicy()}},
		{"item and policy disagree", EnableProtectionRequest{
			Item:   protectedVM(),
			Policy: &policy.IaasVMPolicy{Name: "daily"},
		}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := &spyBackend{}
			o := newTestOrchestrator(b)

			_, err := o.EnableProtection(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrWorkloadTypeMismatch), "got %v", err)
			assert.Empty(t, b.callNames())
		})
	}
}

func TestEnableProtectionInvalidRequest(t *testing.T) {
	noVMID := protectedVM()
	noVMID.VirtualMachineID = ""

	tests := []struct {
		name    string
		req     EnableProtectionRequest
		wantErr error
	}{
		{"no policy", EnableProtectionRequest{VMName: "vm1", ResourceGroup: "rg-1", WorkloadType: workload.AzureVM}, ErrInvalidRequest},
		{"typed nil policy", EnableProtectionRequest{
			VMName: "vm1", ResourceGroup: "rg-1", WorkloadType: workload.AzureVM,
			Policy: (*policy.IaasVMPolicy)(nil),
		}, ErrInvalidRequest},
		{"unnamed policy", EnableProtectionRequest{
			VMName: "vm1", ResourceGroup: "rg-1", WorkloadType: workload.AzureVM,
			Policy: &policy.IaasVMPolicy{WorkloadType: workload.AzureVM},
		}, ErrInvalidRequest},
		{"no vm name", EnableProtectionRequest{ResourceGroup: "rg-1", WorkloadType: workload.AzureVM, Policy: dailyPolicy()}, ErrInvalidRequest},
		{"no scope", EnableProtectionRequest{VMName: "vm1", WorkloadType: workload.AzureVM, Policy: dailyPolicy()}, ErrInvalidRequest},
		{"item without vm id", EnableProtectionRequest{Item: noVMID, Policy: dailyPolicy()}, ErrInvalidRequest},
		{"typed nil item", EnableProtectionRequest{Item: (*IaasVMItem)(nil), Policy: dailyPolicy()}, ErrInvalidInputShape},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := &spyBackend{}
			o := newTestOrchestrator(b)

			_, err := o.EnableProtection(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Empty(t, b.callNames())
		})
	}
}

func TestEnableProtectionNotDiscovered(t *testing.T) {
	b := &spyBackend{}
	o := newTestOrchestrator(b)

	_, err := o.EnableProtection(context.Background(), EnableProtectionRequest{
		VMName:        "vm1",
		ResourceGroup: "rg-1",
		WorkloadType:  workload.AzureVM,
		Policy:        dailyPolicy(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, discovery.ErrNotDiscovered))
	assert.NotContains(t, b.callNames(), "CreateOrUpdateProtectedItem")
}

func TestEnableProtectionBackendError(t *testing.T) {
	b := &spyBackend{err: &backupapi.ErrorResponse{StatusCode: http.StatusConflict, Code: "Conflict"}}
	o := newTestOrchestrator(b)

	_, err := o.EnableProtection(context.Background(), EnableProtectionRequest{Item: protectedVM(), Policy: dailyPolicy()})
	var errResp *backupapi.ErrorResponse
	require.True(t, errors.As(err, &errResp))
	assert.Equal(t, http.StatusConflict, errResp.StatusCode)
}

func TestDisableProtection(t *testing.T) {
	t.Run("delete backup data", func(t *testing.T) {
		b := &spyBackend{}
		o := newTestOrchestrator(b)

		job, err := o.DisableProtection(context.Background(), protectedVM(), true)
		require.NoError(t, err)
		assert.Equal(t, "delete", job.JobID)
		assert.Equal(t, []string{"DeleteProtectedItem"}, b.callNames())
		assert.Equal(t, [2]string{containerName, itemName}, b.target)
	})

	t.Run("keep backup data", func(t *testing.T) {
		b := &spyBackend{}
		o := newTestOrchestrator(b)

		_, err := o.DisableProtection(context.Background(), protectedVM(), false)
		require.NoError(t, err)
		assert.Equal(t, []string{"CreateOrUpdateProtectedItem"}, b.callNames())
		props := b.itemRequest.Item.Properties
		assert.Equal(t, "", props.PolicyName)
		assert.Equal(t, "ProtectionStopped", props.ProtectionState)
		assert.Equal(t, "Microsoft.Compute/virtualMachines", props.ProtectedItemType)
	})
}

func TestProtectionGenerationFromVMID(t *testing.T) {
	// Generation left at its zero value on a classic machine
	item := protectedVM()
	item.VirtualMachineID = legacyVMID

	b := &spyBackend{}
	o := newTestOrchestrator(b)
	_, err := o.EnableProtection(context.Background(), EnableProtectionRequest{Item: item, Policy: dailyPolicy()})
	require.NoError(t, err)
	assert.Equal(t, "Microsoft.ClassicCompute/virtualMachines", b.itemRequest.Item.Properties.ProtectedItemType)

	b = &spyBackend{}
	o = newTestOrchestrator(b)
	_, err = o.DisableProtection(context.Background(), item, false)
	require.NoError(t, err)
	assert.Equal(t, "Microsoft.ClassicCompute/virtualMachines", b.itemRequest.Item.Properties.ProtectedItemType)
}

func TestDisableProtectionInvalid(t *testing.T) {
	noVMID := protectedVM()
	noVMID.VirtualMachineID = ""
	otherWorkload := protectedVM()
	otherWorkload.WorkloadType = workload.UnknownType
	otherContainer := protectedVM()
	otherContainer.ContainerType = workload.UnknownContainerType

	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{"nil", nil, ErrInvalidInputShape},
		{"typed nil", (*IaasVMItem)(nil), ErrInvalidInputShape},
		{"no vm id", noVMID, ErrInvalidRequest},
		{"workload", otherWorkload, ErrWorkloadTypeMismatch},
		{"container type", otherContainer, ErrInvalidRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			for _, purge := range []bool{true, false} {
				b := &spyBackend{}
				o := newTestOrchestrator(b)

				_, err := o.DisableProtection(context.Background(), tc.item, purge)
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				assert.Empty(t, b.callNames())
			}
		})
	}
}

func TestTriggerBackup(t *testing.T) {
	b := &spyBackend{}
	o := newTestOrchestrator(b)

	item := protectedVM()
	item.ContainerName = ""
	expiry := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)

	job, err := o.TriggerBackup(context.Background(), item, expiry)
	require.NoError(t, err)
	assert.Equal(t, "backup", job.JobID)
	assert.Equal(t, [2]string{containerName, itemName}, b.target)
	assert.Equal(t, expiry, b.expiry)

	_, err = o.TriggerBackup(context.Background(), nil, expiry)
	assert.True(t, errors.Is(err, ErrInvalidInputShape))
}

func TestTriggerRestore(t *testing.T) {
	rp := &IaasVMRecoveryPoint{
		ID:            protectedID + "/recoveryPoints/rp-1",
		Name:          "rp-1",
		ContainerName: containerName,
		ItemName:      itemName,
	}
	tests := []struct {
		name    string
		rp      RecoveryPoint
		storage string
		wantErr error
	}{
		{"nil", nil, "sa-1", ErrInvalidInputShape},
		{"typed nil", (*IaasVMRecoveryPoint)(nil), "sa-1", ErrInvalidInputShape},
		{"no storage account", rp, "", ErrInvalidRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := &spyBackend{}
			o := newTestOrchestrator(b)

			_, err := o.TriggerRestore(context.Background(), tc.rp, tc.storage)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			assert.Empty(t, b.callNames())
		})
	}

	t.Run("names from id", func(t *testing.T) {
		b := &spyBackend{}
		o := newTestOrchestrator(b)

		bare := &IaasVMRecoveryPoint{ID: rp.ID, Name: rp.Name}
		job, err := o.TriggerRestore(context.Background(), bare, "sa-1")
		require.NoError(t, err)
		assert.Equal(t, "restore", job.JobID)
		assert.Equal(t, [2]string{containerName, itemName}, b.target)
		assert.Equal(t, "rp-1", b.restorePoint)
		assert.Equal(t, "sa-1", b.storageAccount)
	})
}

func TestDefaultPoliciesSeeded(t *testing.T) {
	clock := func() time.Time { return time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC) }
	a := New(&spyBackend{}, WithRandSeed(42), WithClock(clock))
	b := New(&spyBackend{}, WithRandSeed(42), WithClock(clock))

	assert.Equal(t, a.GetDefaultSchedulePolicy(), b.GetDefaultSchedulePolicy())
	assert.Equal(t, a.GetDefaultRetentionPolicy(), b.GetDefaultRetentionPolicy())

	s := a.GetDefaultSchedulePolicy()
	require.NoError(t, s.Validate())
	assert.Equal(t, policy.Daily, s.Frequency)
	r := a.GetDefaultRetentionPolicy()
	require.NoError(t, r.Validate())
}
