package protection

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
)

const (
	vaultPrefix   = "/subscriptions/sub-1/resourceGroups/rg-vault/providers/Microsoft.RecoveryServices/vaults/vault-1/backupFabrics/Azure"
	containerName = "iaasvmcontainerv2;rg-1;vm1"
	itemName      = "vm;iaasvmcontainerv2;rg-1;vm1"
	protectedID   = vaultPrefix + "/protectionContainers/" + containerName + "/protectedItems/" + itemName
	modernVMID    = "/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Compute/virtualMachines/vm1"
	legacyVMID    = "/subscriptions/sub-1/resourceGroups/svc-1/providers/Microsoft.ClassicCompute/virtualMachines/vm1"
)

// spyBackend records the name of every call and answers from canned data.
type spyBackend struct {
	mu    sync.Mutex
	calls []string

	protectable []backupapi.ProtectableItem
	pending     []backupapi.ProtectableItem
	statuses    []int

	containers     []backupapi.Container
	containerQuery backupapi.ContainerQuery
	pages          map[string]backupapi.ProtectedItemPage
	recoveryPoints []backupapi.RecoveryPoint
	rpQuery        backupapi.RecoveryPointQuery
	policies       map[string]*backupapi.ProtectionPolicy

	target         [2]string
	itemRequest    *backupapi.ProtectedItemRequest
	policyRequest  *backupapi.ProtectionPolicyRequest
	expiry         time.Time
	restorePoint   string
	storageAccount string

	err error
}

func (s *spyBackend) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *spyBackend) job(id string) *backupapi.JobResponse {
	return &backupapi.JobResponse{JobID: id, Location: "https://example.com/operations/" + id, StatusCode: http.StatusAccepted}
}

func (s *spyBackend) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *spyBackend) ListProtectableItems(ctx context.Context, q backupapi.ProtectableItemQuery) (*backupapi.ProtectableItemList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListProtectableItems")
	return &backupapi.ProtectableItemList{Value: append([]backupapi.ProtectableItem(nil), s.protectable...)}, nil
}

func (s *spyBackend) RefreshContainers(ctx context.Context) (*backupapi.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("RefreshContainers")
	return s.job("refresh"), nil
}

func (s *spyBackend) GetOperationStatus(ctx context.Context, location string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetOperationStatus")
	status := http.StatusNoContent
	if len(s.statuses) > 0 {
		status, s.statuses = s.statuses[0], s.statuses[1:]
	}
	if status == http.StatusNoContent {
		s.protectable = append(s.protectable, s.pending...)
		s.pending = nil
	}
	return status, nil
}

func (s *spyBackend) CreateOrUpdateProtectedItem(ctx context.Context, c, i string, r *backupapi.ProtectedItemRequest) (*backupapi.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateOrUpdateProtectedItem")
	s.target = [2]string{c, i}
	s.itemRequest = r
	if s.err != nil {
		return nil, s.err
	}
	return s.job("update"), nil
}

func (s *spyBackend) DeleteProtectedItem(ctx context.Context, c, i string) (*backupapi.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteProtectedItem")
	s.target = [2]string{c, i}
	return s.job("delete"), nil
}

func (s *spyBackend) TriggerBackup(ctx context.Context, c, i string, expiry time.Time) (*backupapi.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("TriggerBackup")
	s.target = [2]string{c, i}
	s.expiry = expiry
	return s.job("backup"), nil
}

func (s *spyBackend) RestoreDisk(ctx context.Context, c, i, rp, storage string) (*backupapi.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("RestoreDisk")
	s.target = [2]string{c, i}
	s.restorePoint = rp
	s.storageAccount = storage
	return s.job("restore"), nil
}

func (s *spyBackend) ListContainers(ctx context.Context, q backupapi.ContainerQuery) (*backupapi.ContainerList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListContainers")
	s.containerQuery = q
	return &backupapi.ContainerList{Value: s.containers}, nil
}

func (s *spyBackend) ListProtectedItems(ctx context.Context, q backupapi.ProtectedItemQuery, skipToken string) (*backupapi.ProtectedItemPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListProtectedItems")
	if s.err != nil {
		return nil, s.err
	}
	page := s.pages[skipToken]
	return &page, nil
}

func (s *spyBackend) ListRecoveryPoints(ctx context.Context, c, i string, q backupapi.RecoveryPointQuery) (*backupapi.RecoveryPointList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListRecoveryPoints")
	s.target = [2]string{c, i}
	s.rpQuery = q
	return &backupapi.RecoveryPointList{Value: s.recoveryPoints}, nil
}

func (s *spyBackend) GetRecoveryPoint(ctx context.Context, c, i, rp string) (*backupapi.RecoveryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetRecoveryPoint")
	s.target = [2]string{c, i}
	for _, p := range s.recoveryPoints {
		if p.Name == rp {
			return &p, nil
		}
	}
	return nil, &backupapi.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NotFound"}
}

func (s *spyBackend) CreateOrUpdateProtectionPolicy(ctx context.Context, name string, r *backupapi.ProtectionPolicyRequest) (*backupapi.ProtectionPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateOrUpdateProtectionPolicy")
	s.policyRequest = r
	p := r.Item
	p.ID = vaultPrefix + "/backupPolicies/" + name
	return &p, nil
}

func (s *spyBackend) GetProtectionPolicy(ctx context.Context, name string) (*backupapi.ProtectionPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetProtectionPolicy")
	p, ok := s.policies[name]
	if !ok {
		return nil, &backupapi.ErrorResponse{StatusCode: http.StatusNotFound}
	}
	return p, nil
}

func newTestOrchestrator(b *spyBackend, opts ...Option) *Orchestrator {
	resolver := discovery.NewResolver(b, discovery.WithPollInterval(time.Millisecond))
	return New(b, append([]Option{WithResolver(resolver), WithRandSeed(1)}, opts...)...)
}

func protectableVM(name, scope, version string) backupapi.ProtectableItem {
	container := "iaasvmcontainerv2;" + scope + ";" + name
	item := "vm;" + container
	vmID := modernVMID
	if version == "ClassicCompute" {
		vmID = legacyVMID
	}
	return backupapi.ProtectableItem{
		ID:   vaultPrefix + "/protectionContainers/" + container + "/protectableItems/" + item,
		Name: item,
		Properties: &backupapi.ProtectableItemProperties{
			FriendlyName:          name,
			ResourceGroup:         scope,
			VirtualMachineID:      vmID,
			VirtualMachineVersion: version,
		},
	}
}
