package protection

import (
	"context"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/resourceid"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// EnableProtectionRequest enrolls a virtual machine in a policy. Either Item
// is set, to change the policy of an already protected item, or the virtual
// machine is named together with its resource group, or its cloud service
// for legacy machines.
type EnableProtectionRequest struct {
	Item Item `json:"-" validate:"-"`

	VMName        string        `json:"vm_name" validate:"required"`
	ResourceGroup string        `json:"resource_group" validate:"required_without=CloudService"`
	CloudService  string        `json:"cloud_service"`
	WorkloadType  workload.Type `json:"-" validate:"-"`

	Policy policy.Policy `json:"-" validate:"-"`
}

// EnableProtection creates, or updates, the protected item of a virtual
// machine with the request policy. Every check runs before the first
// backend call.
func (o *Orchestrator) EnableProtection(ctx context.Context, req EnableProtectionRequest) (*backupapi.JobResponse, error) {
	pol, err := iaasVMPolicy(req.Policy)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("policy", pol.Name))

	var (
		containerName, itemName, vmID string
		gen                           workload.Generation
	)
	if req.Item == nil {
		if err := checkWorkloadTypes(req.WorkloadType, pol.WorkloadType); err != nil {
			return nil, err
		}
		if err := o.validate.Struct(req); err != nil {
			return nil, errors.WithType(err, ErrInvalidRequest)
		}
		gen = workload.GenerationFromScope(req.CloudService)
		scope := req.ResourceGroup
		if gen == workload.Legacy {
			scope = req.CloudService
		}
		logger.Debug("enable protection request validated",
			zap.String("vm_name", req.VMName),
			zap.String("scope", scope),
			zap.Stringer("generation", gen))

		res, err := o.resolver.Resolve(ctx, req.VMName, scope, gen)
		if err != nil {
			return nil, errors.Trace(err)
		}
		containerName, itemName, err = resourceid.ContainerAndItem(res.ID)
		if err != nil {
			return nil, errors.Annotatef(err, "protectable item of %q", req.VMName)
		}
		vmID = res.VirtualMachineID
	} else {
		item, err := iaasVMItem(req.Item)
		if err != nil {
			return nil, err
		}
		if err := checkWorkloadTypes(item.WorkloadType, pol.WorkloadType); err != nil {
			return nil, err
		}
		if item.VirtualMachineID == "" {
			return nil, errors.Annotatef(ErrInvalidRequest, "item %q has no virtual machine id", item.Name)
		}
		containerName, itemName, err = itemNames(item)
		if err != nil {
			return nil, err
		}
		gen = itemGeneration(item)
		vmID = item.VirtualMachineID
		logger.Debug("enable protection request validated",
			zap.String("item", itemName),
			zap.Stringer("generation", gen))
	}

	r := &backupapi.ProtectedItemRequest{
		Item: backupapi.ProtectedItem{
			Properties: &backupapi.ProtectedItemProperties{
				ProtectedItemType: gen.ProtectedItemType(),
				VirtualMachineID:  vmID,
				PolicyName:        pol.Name,
			},
		},
	}
	job, err := o.backend.CreateOrUpdateProtectedItem(ctx, containerName, itemName, r)
	if err != nil {
		logger.Error("enable protection failed", zap.String("item", itemName), zap.Error(err))
		return nil, errors.Annotatef(err, "enable protection of %q", itemName)
	}
	logger.Info("protection enabled", zap.String("item", itemName), zap.String("job_id", job.JobID))
	return job, nil
}

// DisableProtection stops protecting an item. With deleteBackupData the item
// and its recovery points are deleted; otherwise the item is kept in the
// ProtectionStopped state with no policy.
func (o *Orchestrator) DisableProtection(ctx context.Context, it Item, deleteBackupData bool) (*backupapi.JobResponse, error) {
	item, err := iaasVMItem(it)
	if err != nil {
		return nil, err
	}
	if item.VirtualMachineID == "" {
		return nil, errors.Annotatef(ErrInvalidRequest, "item %q has no virtual machine id", item.Name)
	}
	if item.WorkloadType != workload.AzureVM {
		return nil, errors.Annotatef(ErrWorkloadTypeMismatch, "item workload %s", item.WorkloadType)
	}
	if item.ContainerType != workload.AzureVMContainer {
		return nil, errors.Annotatef(ErrInvalidRequest, "item container type %s", item.ContainerType)
	}
	containerName, itemName, err := itemNames(item)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("item", itemName), zap.Bool("delete_backup_data", deleteBackupData))
	logger.Debug("disable protection request validated")

	var job *backupapi.JobResponse
	if deleteBackupData {
		job, err = o.backend.DeleteProtectedItem(ctx, containerName, itemName)
	} else {
		r := &backupapi.ProtectedItemRequest{
			Item: backupapi.ProtectedItem{
				Properties: &backupapi.ProtectedItemProperties{
					ProtectedItemType: itemGeneration(item).ProtectedItemType(),
					VirtualMachineID:  item.VirtualMachineID,
					PolicyName:        "",
					ProtectionState:   workload.ProtectionStopped.String(),
				},
			},
		}
		job, err = o.backend.CreateOrUpdateProtectedItem(ctx, containerName, itemName, r)
	}
	if err != nil {
		logger.Error("disable protection failed", zap.Error(err))
		return nil, errors.Annotatef(err, "disable protection of %q", itemName)
	}
	logger.Info("protection disabled", zap.String("job_id", job.JobID))
	return job, nil
}

// TriggerBackup starts an on demand backup of item. A zero expiry keeps the
// recovery point as long as the item policy says.
func (o *Orchestrator) TriggerBackup(ctx context.Context, it Item, expiry time.Time) (*backupapi.JobResponse, error) {
	item, err := iaasVMItem(it)
	if err != nil {
		return nil, err
	}
	containerName, itemName, err := itemNames(item)
	if err != nil {
		return nil, err
	}
	job, err := o.backend.TriggerBackup(ctx, containerName, itemName, expiry)
	if err != nil {
		return nil, errors.Annotatef(err, "backup of %q", itemName)
	}
	o.logger.Info("backup triggered", zap.String("item", itemName), zap.String("job_id", job.JobID))
	return job, nil
}

// TriggerRestore restores the disks of a recovery point into a storage account.
func (o *Orchestrator) TriggerRestore(ctx context.Context, rp RecoveryPoint, storageAccountID string) (*backupapi.JobResponse, error) {
	point, ok := rp.(*IaasVMRecoveryPoint)
	if !ok || point == nil {
		return nil, errors.Annotatef(ErrInvalidInputShape, "recovery point %T", rp)
	}
	if storageAccountID == "" {
		return nil, errors.Annotate(ErrInvalidRequest, "storage account id is empty")
	}
	containerName, itemName := point.ContainerName, point.ItemName
	if containerName == "" || itemName == "" {
		var err error
		containerName, itemName, err = resourceid.ContainerAndItem(point.ID)
		if err != nil {
			return nil, errors.Annotatef(ErrInvalidRequest, "recovery point id %q: %v", point.ID, err)
		}
	}
	job, err := o.backend.RestoreDisk(ctx, containerName, itemName, point.Name, storageAccountID)
	if err != nil {
		return nil, errors.Annotatef(err, "restore of %q", point.Name)
	}
	o.logger.Info("restore triggered",
		zap.String("item", itemName),
		zap.String("recovery_point", point.Name),
		zap.String("job_id", job.JobID))
	return job, nil
}

func iaasVMItem(it Item) (*IaasVMItem, error) {
	switch v := it.(type) {
	case *IaasVMItem:
		if v != nil {
			return v, nil
		}
	}
	return nil, errors.Annotatef(ErrInvalidInputShape, "item %T", it)
}

func iaasVMPolicy(p policy.Policy) (*policy.IaasVMPolicy, error) {
	switch v := p.(type) {
	case nil:
		return nil, errors.Annotate(ErrInvalidRequest, "policy is required")
	case *policy.IaasVMPolicy:
		if v == nil {
			return nil, errors.Annotate(ErrInvalidRequest, "policy is required")
		}
		if v.Name == "" {
			return nil, errors.Annotate(ErrInvalidRequest, "policy name is empty")
		}
		return v, nil
	}
	return nil, errors.Annotatef(policy.ErrUnsupportedPolicyType, "policy %T", p)
}

// itemGeneration reads the generation from the virtual machine id, which
// outranks the Generation field.
func itemGeneration(item *IaasVMItem) workload.Generation {
	return workload.GenerationFromID(item.VirtualMachineID)
}

// checkWorkloadTypes requires both types to be AzureVM.
func checkWorkloadTypes(itemType, policyType workload.Type) error {
	if itemType != workload.AzureVM || policyType != workload.AzureVM {
		return errors.Annotatef(ErrWorkloadTypeMismatch, "item %s, policy %s", itemType, policyType)
	}
	return nil
}

// itemNames returns the container and item names from the item id, falling
// back to the item fields when the id does not carry them.
func itemNames(item *IaasVMItem) (string, string, error) {
	c, i, err := resourceid.ContainerAndItem(item.ID)
	if err == nil {
		return c, i, nil
	}
	if item.ContainerName != "" && item.Name != "" {
		return item.ContainerName, item.Name, nil
	}
	return "", "", errors.Annotatef(ErrInvalidRequest, "item id %q: %v", item.ID, err)
}
