// Package workload holds the closed enumerations shared by policies, items and
// containers. The zero value of every enumeration means "unset" and is used by
// list filters as a no-op sentinel.
package workload

import (
	"fmt"
	"strings"
)

// Type identifies the class of resource being protected.
type Type int

const (
	UnknownType Type = iota
	AzureVM
)

var typeNames = map[Type]string{
	AzureVM: "AzureVM",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseType parses a workload type name, ignoring case.
func ParseType(s string) (Type, error) {
	if s == "" {
		return UnknownType, nil
	}
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return UnknownType, fmt.Errorf("unknown workload type %q", s)
}

// ContainerType identifies the registration scope kind.
type ContainerType int

const (
	UnknownContainerType ContainerType = iota
	AzureVMContainer
)

func (c ContainerType) String() string {
	if c == AzureVMContainer {
		return "AzureVM"
	}
	return "Unknown"
}

// ProviderType is the backend provider name for IaaS virtual machines.
const ProviderType = "AzureIaasVM"

// DatasourceType is the backend datasource name for virtual machines.
const DatasourceType = "VM"
