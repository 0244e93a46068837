package discovery

import "github.com/juju/errors"

const (
	// ErrNotDiscovered is returned when a virtual machine is still unknown to
	// the service after one refresh cycle.
	ErrNotDiscovered = errors.ConstError("virtual machine not found or not discovered")

	// ErrRefreshFailed is returned when the refresh operation ends in any
	// state but success, or when polling it fails.
	ErrRefreshFailed = errors.ConstError("container refresh failed")
)
