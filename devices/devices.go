// Package devices describes accelerator devices and parses user device selections.
//
// A device selection can be given in many shapes: nothing, a count, the "-1" sentinel for "all
// devices", an explicit list of indices, or a string encoding any of those. ParseIDs normalizes
// all of them into an ordered list of device indices, or fails with a MisconfigurationError.
package devices

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type of device (the platform it belongs to).
type Type int

//go:generate go tool enumer -type Type -trimprefix=Type -transform=lower -output=gen_type_enumer.go devices.go

const (
	TypeCPU Type = iota
	TypeCUDA
	TypeTPU
	TypeMetal
)

// ParseType converts a platform name to a Type. It is case-insensitive, and it also accepts "gpu" as an
// alias to TypeCUDA.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "gpu" {
		return TypeCUDA, nil
	}
	t, err := TypeString(name)
	if err != nil {
		return TypeCPU, errors.Errorf("unknown device type %q, valid values are %q (or \"gpu\")", name, TypeStrings())
	}
	return t, nil
}

// Device identifies one device of a given type.
//
// An Index of -1 means the index was not specified.
type Device struct {
	Type  Type
	Index int
}

// New returns a Device of the given type and index.
func New(deviceType Type, index int) Device {
	return Device{Type: deviceType, Index: index}
}

// ParseDevice parses a device description in the form "<type>" or "<type>:<index>", e.g.: "cpu", "cuda:0".
func ParseDevice(desc string) (Device, error) {
	desc = strings.TrimSpace(desc)
	typeName, indexStr, hasIndex := strings.Cut(desc, ":")
	deviceType, err := ParseType(typeName)
	if err != nil {
		return Device{}, errors.WithMessagef(err, "invalid device %q", desc)
	}
	if !hasIndex {
		return Device{Type: deviceType, Index: -1}, nil
	}
	index, err := strconv.Atoi(strings.TrimSpace(indexStr))
	if err != nil || index < 0 {
		return Device{}, errors.Errorf("invalid device %q: index must be a non-negative integer", desc)
	}
	return Device{Type: deviceType, Index: index}, nil
}

// String implements fmt.Stringer, in the same format accepted by ParseDevice.
func (d Device) String() string {
	if d.Index < 0 {
		return d.Type.String()
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Index)
}

// Counter reports the number of devices available.
type Counter interface {
	NumDevices() int
}

// Fixed is a Counter with a constant number of devices.
type Fixed int

// NumDevices implements Counter.
func (f Fixed) NumDevices() int { return int(f) }

// CountFunc adapts a function to a Counter.
type CountFunc func() int

// NumDevices implements Counter.
func (f CountFunc) NumDevices() int { return f() }
