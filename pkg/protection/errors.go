package protection

import "github.com/juju/errors"

const (
	// ErrWorkloadTypeMismatch is returned when an item, a policy or a request
	// does not protect the AzureVM workload, or when they disagree.
	ErrWorkloadTypeMismatch = errors.ConstError("workload type mismatch")

	// ErrInvalidRequest is returned when a request misses a required field.
	ErrInvalidRequest = errors.ConstError("invalid request")

	// ErrInvalidInputShape is returned when an item or recovery point is nil
	// or not of the IaaS VM variant.
	ErrInvalidInputShape = errors.ConstError("invalid input shape")

	// ErrRecoveryPointRange is returned when a recovery point listing spans
	// more than 30 days or ends before it starts.
	ErrRecoveryPointRange = errors.ConstError("invalid recovery point date range")

	// ErrItemNotFound is returned when no protected item matches a lookup.
	ErrItemNotFound = errors.ConstError("protected item not found")
)
