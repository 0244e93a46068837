package workload

import "strings"

// Generation is the infrastructure generation of a virtual machine.
type Generation int

const (
	Modern Generation = iota
	Legacy
)

const (
	modernVersion = "Compute"
	legacyVersion = "ClassicCompute"

	modernItemType = "Microsoft.Compute/virtualMachines"
	legacyItemType = "Microsoft.ClassicCompute/virtualMachines"
)

// GenerationFromID inspects a virtual machine id once. An id containing the
// legacy marker, in any case, is Legacy; everything else is Modern.
func GenerationFromID(virtualMachineID string) Generation {
	if strings.Contains(strings.ToLower(virtualMachineID), strings.ToLower(legacyVersion)) {
		return Legacy
	}
	return Modern
}

// GenerationFromScope picks the generation implied by the enable-protection
// scope: a cloud service name means Legacy, a resource group means Modern.
func GenerationFromScope(cloudServiceName string) Generation {
	if cloudServiceName != "" {
		return Legacy
	}
	return Modern
}

// VersionTag is the virtual machine version string reported by discovery.
func (g Generation) VersionTag() string {
	if g == Legacy {
		return legacyVersion
	}
	return modernVersion
}

// ProtectedItemType is the payload discriminator sent with item mutations.
func (g Generation) ProtectedItemType() string {
	if g == Legacy {
		return legacyItemType
	}
	return modernItemType
}

func (g Generation) String() string {
	if g == Legacy {
		return "Legacy"
	}
	return "Modern"
}
