package workload

import (
	"fmt"
	"strings"
)

// The enumerations encode as their names in JSON and YAML. Unset values
// encode as the empty string and decode back to the zero value.

func (t Type) MarshalText() ([]byte, error) {
	return []byte(typeNames[t]), nil
}

func (t *Type) UnmarshalText(b []byte) (err error) {
	*t, err = ParseType(string(b))
	return err
}

func (s ProtectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProtectionState) UnmarshalText(b []byte) (err error) {
	*s, err = ParseProtectionState(string(b))
	return err
}

func (s ProtectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ProtectionStatus) UnmarshalText(b []byte) (err error) {
	*s, err = ParseProtectionStatus(string(b))
	return err
}

func (s RegistrationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RegistrationStatus) UnmarshalText(b []byte) (err error) {
	*s, err = ParseRegistrationStatus(string(b))
	return err
}

func (g Generation) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Generation) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "", "modern":
		*g = Modern
	case "legacy":
		*g = Legacy
	default:
		return fmt.Errorf("unknown generation %q", b)
	}
	return nil
}
