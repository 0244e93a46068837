package policy

import "github.com/juju/errors"

const (
	// ErrInvalidPolicy is returned when a schedule, retention or protection
	// policy fails validation, alone or against its counterpart.
	ErrInvalidPolicy = errors.ConstError("invalid policy")

	// ErrMissingSchedule is returned when a schedule policy is required but absent.
	ErrMissingSchedule = errors.ConstError("schedule policy is required")

	// ErrMissingRetention is returned when a retention policy is required but absent.
	ErrMissingRetention = errors.ConstError("retention policy is required")

	// ErrEmptyPolicyUpdate is returned when a modification supplies neither a
	// schedule nor a retention policy.
	ErrEmptyPolicyUpdate = errors.ConstError("retention and schedule policies are both empty")

	// ErrUnsupportedPolicyType is returned for a policy shape that does not
	// belong to the supported workload.
	ErrUnsupportedPolicyType = errors.ConstError("unsupported policy type")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Annotatef(ErrInvalidPolicy, format, args...)
}
