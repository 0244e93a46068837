// Package discovery finds the protectable resource backing a virtual machine,
// triggering one container refresh on the service when it is not indexed yet.
package discovery

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// DefaultPollInterval is the wait between two refresh status checks.
const DefaultPollInterval = 5 * time.Second

// Backend is the part of the backup service the resolver talks to.
type Backend interface {
	ListProtectableItems(ctx context.Context, q backupapi.ProtectableItemQuery) (*backupapi.ProtectableItemList, error)
	RefreshContainers(ctx context.Context) (*backupapi.JobResponse, error)
	GetOperationStatus(ctx context.Context, location string) (int, error)
}

// ProtectableResource is a virtual machine the service has discovered.
type ProtectableResource struct {
	ID               string
	Name             string
	FriendlyName     string
	Scope            string
	VirtualMachineID string
	Generation       workload.Generation
}

// Resolver resolves virtual machines to protectable resources.
type Resolver struct {
	backend      Backend
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

// Option configures a Resolver.
type Option func(r *Resolver)

// WithPollInterval sets the fixed wait between refresh status checks.
func WithPollInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithPollTimeout bounds the time spent waiting for a refresh. Zero, the
// default, waits until the service reports a terminal status.
func WithPollTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.pollTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver returns a Resolver over backend.
func NewResolver(backend Backend, opts ...Option) *Resolver {
	r := &Resolver{
		backend:      backend,
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lookup is the outcome of one scan of the protectable item list.
type lookup struct {
	resource *ProtectableResource
	found    bool
}

// Resolve returns the protectable resource named name in scope, which is a
// resource group for modern machines and a cloud service for legacy ones.
// When the first lookup misses, Resolve runs one refresh cycle and looks
// again; it never refreshes twice.
func (r *Resolver) Resolve(ctx context.Context, name, scope string, gen workload.Generation) (*ProtectableResource, error) {
	logger := r.logger.With(zap.String("vm", name), zap.String("scope", scope), zap.Stringer("generation", gen))

	res, err := r.lookup(ctx, name, scope, gen)
	if err != nil {
		return nil, err
	}
	if res.found {
		return res.resource, nil
	}

	logger.Debug("virtual machine not discovered, refreshing containers")
	if err := r.refresh(ctx, logger); err != nil {
		return nil, err
	}

	res, err = r.lookup(ctx, name, scope, gen)
	if err != nil {
		return nil, err
	}
	if !res.found {
		logger.Debug("virtual machine still not discovered after refresh")
		return nil, errors.Annotatef(ErrNotDiscovered, "%s in %s (%s)", name, scope, gen.VersionTag())
	}
	return res.resource, nil
}

func (r *Resolver) lookup(ctx context.Context, name, scope string, gen workload.Generation) (lookup, error) {
	list, err := r.backend.ListProtectableItems(ctx, backupapi.ProtectableItemQuery{ProviderType: workload.ProviderType})
	if err != nil {
		return lookup{}, errors.Annotate(err, "list protectable items")
	}
	r.logger.Debug("protectable items listed", zap.Int("count", len(list.Value)))

	version := gen.VersionTag()
	for _, item := range list.Value {
		p := item.Properties
		if p == nil {
			continue
		}
		// Matching ignores case on every field.
		if strings.EqualFold(p.FriendlyName, name) &&
			strings.EqualFold(p.ResourceGroup, scope) &&
			strings.EqualFold(p.VirtualMachineVersion, version) {
			return lookup{found: true, resource: &ProtectableResource{
				ID:               item.ID,
				Name:             item.Name,
				FriendlyName:     p.FriendlyName,
				Scope:            p.ResourceGroup,
				VirtualMachineID: p.VirtualMachineID,
				Generation:       gen,
			}}, nil
		}
	}
	return lookup{}, nil
}

func (r *Resolver) refresh(ctx context.Context, logger *zap.Logger) error {
	job, err := r.backend.RefreshContainers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Trace(ctx.Err())
		}
		return errors.WithType(errors.Annotate(err, "trigger refresh"), ErrRefreshFailed)
	}
	if job.Location == "" {
		return errors.Annotatef(ErrRefreshFailed, "refresh returned no operation location")
	}

	pollCtx := ctx
	if r.pollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, r.pollTimeout)
		defer cancel()
	}
	return r.poll(ctx, pollCtx, job.Location, logger)
}

// poll checks the operation at a fixed interval while it reports 202.
func (r *Resolver) poll(parent, ctx context.Context, location string, logger *zap.Logger) error {
	bo := backoff.WithContext(backoff.NewConstantBackOff(r.pollInterval), ctx)

	done := func() error {
		if err := parent.Err(); err != nil {
			return errors.Trace(err)
		}
		return errors.Annotatef(ErrRefreshFailed, "timed out after %s", r.pollTimeout)
	}

	for {
		status, err := r.backend.GetOperationStatus(ctx, location)
		if err != nil {
			if ctx.Err() != nil {
				return done()
			}
			logger.Debug("refresh status check failed", zap.Error(err))
			return errors.WithType(errors.Annotate(err, "check refresh status"), ErrRefreshFailed)
		}

		switch status {
		case http.StatusNoContent:
			logger.Debug("refresh completed")
			return nil
		case http.StatusAccepted:
		default:
			logger.Debug("refresh ended with unexpected status", zap.Int("status", status))
			return errors.Annotatef(ErrRefreshFailed, "unexpected status %d", status)
		}

		d := bo.NextBackOff()
		if d == backoff.Stop {
			return done()
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return done()
		case <-t.C:
		}
	}
}
