package sync

import "strings"

// AddressingMode selects how destination identities are formed for a run.
type AddressingMode string

const (
	// AddressPath derives identities from a hierarchical namespace path.
	AddressPath AddressingMode = "path"
	// AddressOpaque uses flat identifiers assigned by the target.
	AddressOpaque AddressingMode = "opaque"
)

// Identity names an object on the destination.
type Identity struct {
	Mode  AddressingMode
	Value string
}

// PathIdentity returns a path-addressed identity.
func PathIdentity(path string) Identity {
	return Identity{Mode: AddressPath, Value: path}
}

// OpaqueIdentity returns an identity for a target-assigned identifier.
func OpaqueIdentity(id string) Identity {
	return Identity{Mode: AddressOpaque, Value: id}
}

// IsPath reports whether the identity is path-addressed.
func (i Identity) IsPath() bool { return i.Mode == AddressPath }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i.Value == "" }

// IsDirectory reports whether a path identity names a directory.
func (i Identity) IsDirectory() bool {
	return i.IsPath() && strings.HasSuffix(i.Value, "/")
}

// IsRoot reports whether the identity is the namespace root, which always exists.
func (i Identity) IsRoot() bool {
	return i.IsPath() && i.Value == "/"
}

func (i Identity) String() string { return i.Value }
