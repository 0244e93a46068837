package workload

import (
	"fmt"
	"strings"
)

// ProtectionState is the lifecycle state of a protected item.
type ProtectionState int

const (
	UnknownState ProtectionState = iota
	IRPending
	Protected
	ProtectionError
	ProtectionStopped
	ProtectionPaused
)

var stateNames = map[ProtectionState]string{
	IRPending:         "IRPending",
	Protected:         "Protected",
	ProtectionError:   "ProtectionError",
	ProtectionStopped: "ProtectionStopped",
	ProtectionPaused:  "ProtectionPaused",
}

func (s ProtectionState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return ""
}

// ParseProtectionState parses a state name; the empty string yields UnknownState.
func ParseProtectionState(s string) (ProtectionState, error) {
	if s == "" {
		return UnknownState, nil
	}
	for st, name := range stateNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return UnknownState, fmt.Errorf("unknown protection state %q", s)
}

// ProtectionStatus is the health of a protected item.
type ProtectionStatus int

const (
	UnknownStatus ProtectionStatus = iota
	Healthy
	Unhealthy
)

var statusNames = map[ProtectionStatus]string{
	Healthy:   "Healthy",
	Unhealthy: "Unhealthy",
}

func (s ProtectionStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return ""
}

// ParseProtectionStatus parses a status name; the empty string yields UnknownStatus.
func ParseProtectionStatus(s string) (ProtectionStatus, error) {
	if s == "" {
		return UnknownStatus, nil
	}
	for st, name := range statusNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return UnknownStatus, fmt.Errorf("unknown protection status %q", s)
}

// RegistrationStatus is the registration state of a container.
type RegistrationStatus int

const (
	UnknownRegistration RegistrationStatus = iota
	Registered
	NotRegistered
	Registering
)

var registrationNames = map[RegistrationStatus]string{
	Registered:    "Registered",
	NotRegistered: "NotRegistered",
	Registering:   "Registering",
}

func (s RegistrationStatus) String() string {
	if n, ok := registrationNames[s]; ok {
		return n
	}
	return ""
}

// ParseRegistrationStatus parses a registration status; the empty string yields
// UnknownRegistration.
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	if s == "" {
		return UnknownRegistration, nil
	}
	for st, name := range registrationNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return UnknownRegistration, fmt.Errorf("unknown registration status %q", s)
}
