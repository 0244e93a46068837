// Package policy holds schedule, retention and protection policies, their
// validation, and the composer that reconciles a schedule with a retention
// policy before submission.
package policy

import (
	"github.com/juju/errors"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

// Policy is a named protection policy. IaasVMPolicy is the only variant.
type Policy interface {
	PolicyName() string
	Workload() workload.Type
	isPolicy()
}

// IaasVMPolicy protects IaaS virtual machines.
type IaasVMPolicy struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	WorkloadType workload.Type   `json:"workload_type"`
	Schedule     SchedulePolicy  `json:"-"`
	Retention    RetentionPolicy `json:"-"`
}

var _ Policy = (*IaasVMPolicy)(nil)

func (*IaasVMPolicy) isPolicy() {}

// PolicyName returns the policy name.
func (p *IaasVMPolicy) PolicyName() string { return p.Name }

// Workload returns the workload type the policy protects.
func (p *IaasVMPolicy) Workload() workload.Type { return p.WorkloadType }

// Validate checks the policy identity and whichever sub-policies are set.
func (p *IaasVMPolicy) Validate() error {
	if p.Name == "" {
		return invalidf("policy name is empty")
	}
	if err := ValidateWorkloadType(p.WorkloadType); err != nil {
		return err
	}
	if p.Schedule != nil {
		if err := p.Schedule.Validate(); err != nil {
			return errors.Trace(err)
		}
	}
	if p.Retention != nil {
		if err := p.Retention.Validate(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ValidateWorkloadType rejects every workload type but AzureVM.
func ValidateWorkloadType(t workload.Type) error {
	if t != workload.AzureVM {
		return errors.Annotatef(ErrUnsupportedPolicyType, "expected workload type %v, got %v", workload.AzureVM, t)
	}
	return nil
}
