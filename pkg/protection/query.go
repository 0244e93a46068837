package protection

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

const (
	// MaxRecoveryPointRange is the widest date range of a recovery point listing.
	MaxRecoveryPointRange = 30 * 24 * time.Hour

	// RecoveryPointDateFormat is the service format of listing bounds, in UTC.
	RecoveryPointDateFormat = "2006-01-02 03:04:05 PM"
)

// ContainerFilter narrows ListContainers. Zero fields match everything.
type ContainerFilter struct {
	Name          string
	Status        workload.RegistrationStatus
	ResourceGroup string
}

// ListContainers lists the IaaS VM containers of the vault.
func (o *Orchestrator) ListContainers(ctx context.Context, f ContainerFilter) ([]*Container, error) {
	q := backupapi.ContainerQuery{
		FriendlyName: f.Name,
		ProviderType: workload.ProviderType,
	}
	if f.Status != workload.UnknownRegistration {
		q.RegistrationStatus = f.Status.String()
	}
	list, err := o.backend.ListContainers(ctx, q)
	if err != nil {
		return nil, errors.Annotate(err, "list containers")
	}

	var out []*Container
	for _, c := range list.Value {
		container := containerFromWire(c)
		if f.ResourceGroup != "" && !strings.EqualFold(container.ResourceGroup, f.ResourceGroup) {
			continue
		}
		out = append(out, container)
	}
	return out, nil
}

// ItemFilter narrows ListProtectedItems. Container is required; the other
// zero fields match everything.
type ItemFilter struct {
	Container        *Container
	Name             string
	ProtectionStatus workload.ProtectionStatus
	ProtectionState  workload.ProtectionState
	WorkloadType     workload.Type
}

// ListProtectedItems reads every page of IaaS VM items and keeps those of
// the filter container that match the filter.
func (o *Orchestrator) ListProtectedItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	if f.Container == nil {
		return nil, errors.Annotate(ErrInvalidRequest, "container is required")
	}
	all, err := o.allProtectedItems(ctx)
	if err != nil {
		return nil, err
	}

	items := filterItems(all, func(i *IaasVMItem) bool {
		return strings.EqualFold(i.ContainerName, f.Container.Name)
	})
	if f.Name != "" {
		items = filterItems(items, func(i *IaasVMItem) bool { return i.FriendlyName == f.Name })
	}
	if f.ProtectionStatus != workload.UnknownStatus {
		items = filterItems(items, func(i *IaasVMItem) bool { return i.ProtectionStatus == f.ProtectionStatus })
	}
	if f.ProtectionState != workload.UnknownState {
		items = filterItems(items, func(i *IaasVMItem) bool { return i.ProtectionState == f.ProtectionState })
	}
	if f.WorkloadType != workload.UnknownType {
		items = filterItems(items, func(i *IaasVMItem) bool { return i.WorkloadType == f.WorkloadType })
	}

	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// allProtectedItems follows the skip token until the last page.
func (o *Orchestrator) allProtectedItems(ctx context.Context) ([]*IaasVMItem, error) {
	q := backupapi.ProtectedItemQuery{
		DatasourceType: workload.DatasourceType,
		ProviderType:   workload.ProviderType,
	}
	var (
		items     []*IaasVMItem
		skipToken string
		pages     int
	)
	for {
		page, err := o.backend.ListProtectedItems(ctx, q, skipToken)
		if err != nil {
			return nil, errors.Annotate(err, "list protected items")
		}
		pages++
		for _, p := range page.Value {
			items = append(items, itemFromWire(p))
		}
		skipToken = backupapi.SkipToken(page.NextLink)
		if skipToken == "" {
			break
		}
	}
	o.logger.Debug("protected items listed", zap.Int("pages", pages), zap.Int("items", len(items)))
	return items, nil
}

func filterItems(items []*IaasVMItem, keep func(*IaasVMItem) bool) []*IaasVMItem {
	var out []*IaasVMItem
	for _, i := range items {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// FindProtectedItem returns the item named itemName in the container named
// containerName. itemName matches the item name or, ignoring case, the
// virtual machine friendly name.
func (o *Orchestrator) FindProtectedItem(ctx context.Context, containerName, itemName string) (*IaasVMItem, error) {
	if containerName == "" || itemName == "" {
		return nil, errors.Annotate(ErrInvalidRequest, "container and item names are required")
	}
	items, err := o.ListProtectedItems(ctx, ItemFilter{Container: &Container{Name: containerName}})
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		item := it.(*IaasVMItem)
		if strings.EqualFold(item.Name, itemName) || strings.EqualFold(item.FriendlyName, itemName) {
			return item, nil
		}
	}
	return nil, errors.Annotatef(ErrItemNotFound, "%q in container %q", itemName, containerName)
}

// ListRecoveryPoints lists the recovery points of item taken between start
// and end. The range may not exceed MaxRecoveryPointRange.
func (o *Orchestrator) ListRecoveryPoints(ctx context.Context, it Item, start, end time.Time) ([]RecoveryPoint, error) {
	if end.Before(start) {
		return nil, errors.Annotatef(ErrRecoveryPointRange, "end %s is before start %s", end, start)
	}
	if end.Sub(start) > MaxRecoveryPointRange {
		return nil, errors.Annotatef(ErrRecoveryPointRange, "%s exceeds 30 days", end.Sub(start))
	}
	item, err := iaasVMItem(it)
	if err != nil {
		return nil, err
	}
	containerName, itemName, err := itemNames(item)
	if err != nil {
		return nil, err
	}

	q := backupapi.RecoveryPointQuery{
		StartDate: start.UTC().Format(RecoveryPointDateFormat),
		EndDate:   end.UTC().Format(RecoveryPointDateFormat),
	}
	list, err := o.backend.ListRecoveryPoints(ctx, containerName, itemName, q)
	if err != nil {
		return nil, errors.Annotatef(err, "list recovery points of %q", itemName)
	}
	out := make([]RecoveryPoint, 0, len(list.Value))
	for _, rp := range list.Value {
		out = append(out, recoveryPointFromWire(rp, containerName, itemName))
	}
	return out, nil
}

// GetRecoveryPointDetails fetches one recovery point of item.
func (o *Orchestrator) GetRecoveryPointDetails(ctx context.Context, it Item, recoveryPointID string) (RecoveryPoint, error) {
	item, err := iaasVMItem(it)
	if err != nil {
		return nil, err
	}
	if recoveryPointID == "" {
		return nil, errors.Annotate(ErrInvalidRequest, "recovery point id is empty")
	}
	containerName, itemName, err := itemNames(item)
	if err != nil {
		return nil, err
	}
	rp, err := o.backend.GetRecoveryPoint(ctx, containerName, itemName, recoveryPointID)
	if err != nil {
		return nil, errors.Annotatef(err, "get recovery point %q of %q", recoveryPointID, itemName)
	}
	return recoveryPointFromWire(*rp, containerName, itemName), nil
}
