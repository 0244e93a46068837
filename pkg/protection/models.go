package protection

import (
	"time"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// Item is a protected item. IaasVMItem is the only variant.
type Item interface {
	ItemName() string
	Workload() workload.Type
	isItem()
}

// IaasVMItem is a virtual machine enrolled in a protection policy.
type IaasVMItem struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	FriendlyName     string                    `json:"friendly_name"`
	ContainerName    string                    `json:"container_name"`
	ContainerType    workload.ContainerType    `json:"-"`
	WorkloadType     workload.Type             `json:"workload_type"`
	VirtualMachineID string                    `json:"virtual_machine_id"`
	Generation       workload.Generation       `json:"generation"`
	ProtectionState  workload.ProtectionState  `json:"protection_state"`
	ProtectionStatus workload.ProtectionStatus `json:"protection_status"`
	PolicyName       string                    `json:"policy_name"`
	LastBackupTime   *time.Time                `json:"last_backup_time,omitempty"`
}

var _ Item = (*IaasVMItem)(nil)

func (*IaasVMItem) isItem() {}

func (i *IaasVMItem) ItemName() string        { return i.Name }
func (i *IaasVMItem) Workload() workload.Type { return i.WorkloadType }

// Container is the registration scope of IaaS VM items.
type Container struct {
	ID                 string                      `json:"id"`
	Name               string                      `json:"name"`
	FriendlyName       string                      `json:"friendly_name"`
	ResourceGroup      string                      `json:"resource_group"`
	RegistrationStatus workload.RegistrationStatus `json:"registration_status"`
	HealthStatus       string                      `json:"health_status"`
	ContainerType      workload.ContainerType      `json:"-"`
}

// RecoveryPoint is a restorable snapshot. IaasVMRecoveryPoint is the only
// variant.
type RecoveryPoint interface {
	RecoveryPointName() string
	isRecoveryPoint()
}

// IaasVMRecoveryPoint is a recovery point of a virtual machine.
type IaasVMRecoveryPoint struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ItemName      string        `json:"item_name"`
	ContainerName string        `json:"container_name"`
	WorkloadType  workload.Type `json:"workload_type"`
	Time          time.Time     `json:"time"`
	Type          string        `json:"type"`
	StorageType   string        `json:"storage_type,omitempty"`
	SizeInBytes   uint64        `json:"size_in_bytes,omitempty"`
}

var _ RecoveryPoint = (*IaasVMRecoveryPoint)(nil)

func (*IaasVMRecoveryPoint) isRecoveryPoint() {}

func (rp *IaasVMRecoveryPoint) RecoveryPointName() string { return rp.Name }
