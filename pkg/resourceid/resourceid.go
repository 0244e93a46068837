// Package resourceid extracts named segments from fully qualified resource ids
// such as
//
//	/subscriptions/{s}/resourceGroups/{rg}/providers/Microsoft.RecoveryServices/vaults/{v}/backupFabrics/Azure/protectionContainers/{c}/protectedItems/{i}
package resourceid

import (
	"strings"

	"github.com/juju/errors"
)

// ErrMissingSegment is returned when an id lacks the requested segment.
const ErrMissingSegment = errors.ConstError("resource id segment not found")

// Segment keys, compared without regard to case.
const (
	Subscriptions        = "subscriptions"
	ResourceGroups       = "resourceGroups"
	Vaults               = "vaults"
	BackupFabrics        = "backupFabrics"
	ProtectionContainers = "protectionContainers"
	ProtectedItems       = "protectedItems"
	ProtectableItems     = "protectableItems"
	RecoveryPoints       = "recoveryPoints"
)

// ID is a parsed resource id.
type ID struct {
	raw    string
	values map[string]string
}

// Parse splits id into key/value pairs. A trailing key without a value is
// ignored.
func Parse(id string) (*ID, error) {
	trimmed := strings.Trim(id, "/")
	if trimmed == "" {
		return nil, errors.NotValidf("empty resource id")
	}
	parts := strings.Split(trimmed, "/")
	values := make(map[string]string, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		key := strings.ToLower(parts[i])
		if key == "" || parts[i+1] == "" {
			return nil, errors.NotValidf("resource id %q", id)
		}
		values[key] = parts[i+1]
	}
	return &ID{raw: id, values: values}, nil
}

// String returns the id as it was given to Parse.
func (id *ID) String() string { return id.raw }

// Value returns the value that follows key.
func (id *ID) Value(key string) (string, error) {
	v, ok := id.values[strings.ToLower(key)]
	if !ok {
		return "", errors.Annotatef(ErrMissingSegment, "%s in %q", key, id.raw)
	}
	return v, nil
}

func (id *ID) ContainerName() (string, error)       { return id.Value(ProtectionContainers) }
func (id *ID) ProtectedItemName() (string, error)   { return id.Value(ProtectedItems) }
func (id *ID) ProtectableItemName() (string, error) { return id.Value(ProtectableItems) }
func (id *ID) RecoveryPointName() (string, error)   { return id.Value(RecoveryPoints) }
func (id *ID) ResourceGroup() (string, error)       { return id.Value(ResourceGroups) }

// ContainerAndItem parses id and returns the container name and the
// protected or protectable item name, whichever is present.
func ContainerAndItem(raw string) (container, item string, err error) {
	id, err := Parse(raw)
	if err != nil {
		return "", "", err
	}
	container, err = id.ContainerName()
	if err != nil {
		return "", "", err
	}
	item, err = id.ProtectedItemName()
	if errors.Is(err, ErrMissingSegment) {
		item, err = id.ProtectableItemName()
	}
	if err != nil {
		return "", "", err
	}
	return container, item, nil
}
