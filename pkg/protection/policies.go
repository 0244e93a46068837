package protection

import (
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/policy"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// CreatePolicy composes schedule and retention and creates the policy name.
// The run times of the schedule are copied into retention.
func (o *Orchestrator) CreatePolicy(ctx context.Context, name string, workloadType workload.Type, schedule policy.SchedulePolicy, retention policy.RetentionPolicy) (*policy.IaasVMPolicy, error) {
	if name == "" {
		return nil, errors.Annotate(ErrInvalidRequest, "policy name is empty")
	}
	if err := policy.ValidateWorkloadType(workloadType); err != nil {
		return nil, err
	}
	logger := o.logger.With(zap.String("policy", name))
	logger.Debug("workload type validated", zap.Stringer("workload_type", workloadType))

	composed, err := policy.Compose(schedule, retention)
	if err != nil {
		logger.Debug("policy composition failed", zap.Error(err))
		return nil, errors.Trace(err)
	}
	logger.Debug("schedule and retention policies validated")

	return o.submitPolicy(ctx, name, composed, logger)
}

// ModifyPolicy replaces the schedule, the retention or both of target and
// resubmits it. The parts left nil keep their current value. target is
// updated in place once the new parts compose.
func (o *Orchestrator) ModifyPolicy(ctx context.Context, target policy.Policy, schedule policy.SchedulePolicy, retention policy.RetentionPolicy) (*policy.IaasVMPolicy, error) {
	p, ok := target.(*policy.IaasVMPolicy)
	if !ok || p == nil {
		return nil, errors.Annotatef(policy.ErrUnsupportedPolicyType, "policy %T", target)
	}
	if err := policy.ValidateWorkloadType(p.WorkloadType); err != nil {
		return nil, err
	}
	if schedule == nil && retention == nil {
		return nil, policy.ErrEmptyPolicyUpdate
	}
	logger := o.logger.With(zap.String("policy", p.Name))

	sched, ret := p.Schedule, p.Retention
	if schedule != nil {
		sched = schedule
	}
	if retention != nil {
		ret = retention
	}

	composed, err := policy.Compose(sched, ret)
	if err != nil {
		logger.Debug("policy composition failed", zap.Error(err))
		return nil, errors.Trace(err)
	}
	if schedule != nil {
		p.Schedule = schedule
		logger.Debug("schedule policy replaced")
	}
	if retention != nil {
		p.Retention = retention
		logger.Debug("retention policy replaced")
	}
	return o.submitPolicy(ctx, p.Name, composed, logger)
}

// GetPolicy fetches the policy name.
func (o *Orchestrator) GetPolicy(ctx context.Context, name string) (*policy.IaasVMPolicy, error) {
	if name == "" {
		return nil, errors.Annotate(ErrInvalidRequest, "policy name is empty")
	}
	wire, err := o.backend.GetProtectionPolicy(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "get policy %q", name)
	}
	return policyFromWire(wire)
}

func (o *Orchestrator) submitPolicy(ctx context.Context, name string, composed *policy.Composed, logger *zap.Logger) (*policy.IaasVMPolicy, error) {
	wire, err := o.backend.CreateOrUpdateProtectionPolicy(ctx, name, policyRequest(name, composed))
	if err != nil {
		logger.Error("submit policy failed", zap.Error(err))
		return nil, errors.Annotatef(err, "submit policy %q", name)
	}
	out, err := policyFromWire(wire)
	if err != nil {
		return nil, err
	}
	if out.Name == "" {
		out.Name = name
	}
	logger.Info("policy submitted")
	return out, nil
}
