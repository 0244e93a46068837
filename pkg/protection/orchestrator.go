// Package protection drives the protection lifecycle of virtual machines:
// enabling and disabling protection, on demand backups, restores, protection
// policies and the read side over containers, items and recovery points.
//
// Every mutation returns the job handle of the asynchronous backend operation
// without waiting for it to complete.
package protection

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/discovery"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// Backend is the backup service as seen by the orchestrator.
// *backupapi.Client satisfies it.
type Backend interface {
	discovery.Backend

	CreateOrUpdateProtectedItem(ctx context.Context, containerName, itemName string, r *backupapi.ProtectedItemRequest) (*backupapi.JobResponse, error)
	DeleteProtectedItem(ctx context.Context, containerName, itemName string) (*backupapi.JobResponse, error)
	TriggerBackup(ctx context.Context, containerName, itemName string, expiry time.Time) (*backupapi.JobResponse, error)
	RestoreDisk(ctx context.Context, containerName, itemName, recoveryPointID, storageAccountID string) (*backupapi.JobResponse, error)

	ListContainers(ctx context.Context, q backupapi.ContainerQuery) (*backupapi.ContainerList, error)
	ListProtectedItems(ctx context.Context, q backupapi.ProtectedItemQuery, skipToken string) (*backupapi.ProtectedItemPage, error)
	ListRecoveryPoints(ctx context.Context, containerName, itemName string, q backupapi.RecoveryPointQuery) (*backupapi.RecoveryPointList, error)
	GetRecoveryPoint(ctx context.Context, containerName, itemName, recoveryPointID string) (*backupapi.RecoveryPoint, error)

	CreateOrUpdateProtectionPolicy(ctx context.Context, name string, r *backupapi.ProtectionPolicyRequest) (*backupapi.ProtectionPolicy, error)
	GetProtectionPolicy(ctx context.Context, name string) (*backupapi.ProtectionPolicy, error)
}

var _ Backend = (*backupapi.Client)(nil)

// Resolver finds the protectable resource of a virtual machine.
type Resolver interface {
	Resolve(ctx context.Context, name, scope string, gen workload.Generation) (*discovery.ProtectableResource, error)
}

// Orchestrator runs protection operations against a Backend. It keeps no
// state between calls and is safe for concurrent use.
type Orchestrator struct {
	backend  Backend
	resolver Resolver
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	mu   sync.Mutex
	rand *rand.Rand
}

// Option configures an Orchestrator.
type Option func(o *Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithResolver replaces the discovery resolver built over the backend.
func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithRandSeed seeds the generator behind default policy run times.
func WithRandSeed(seed int64) Option {
	return func(o *Orchestrator) {
		o.rand = rand.New(rand.NewSource(seed))
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an Orchestrator over backend.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		logger:   zap.NewNop(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewSource(o.now().UnixNano()))
	}
	if o.resolver == nil {
		o.resolver = discovery.NewResolver(backend, discovery.WithLogger(o.logger))
	}
	return o
}

// GetDefaultSchedulePolicy returns a daily schedule at a random half hour.
func (o *Orchestrator) GetDefaultSchedulePolicy() *policy.SimpleSchedulePolicy {
	o.mu.Lock()
	defer o.mu.Unlock()
	return policy.DefaultSchedulePolicy(o.rand, o.now())
}

// GetDefaultRetentionPolicy returns a retention policy with every tier enabled.
func (o *Orchestrator) GetDefaultRetentionPolicy() *policy.LongTermRetentionPolicy {
	o.mu.Lock()
	defer o.mu.Unlock()
	return policy.DefaultRetentionPolicy(o.rand, o.now())
}
