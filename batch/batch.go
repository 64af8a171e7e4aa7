// Package batch moves arbitrarily nested batches of data (maps, slices, arrays and structs holding tensors)
// to a device.
//
// Values are classified in this order, the first match wins:
//
//   - Tensor: a native tensor leaf, transferred with TransferTo and the non-blocking hint set.
//   - Transferable: a value that knows how to move itself, with ToDevice.
//   - Containers: maps, structs (records), slices and arrays are rebuilt with the same type and shape,
//     with each element transformed recursively.
//   - Anything else (nil, numbers, strings, pointers to other objects, ...) is returned unchanged.
//
// There is no cycle detection: batches are expected to be finite trees owned by the caller.
package batch

import (
	"github.com/gomlx/trainkit/devices"
)

// TransferOptions are passed to native tensor leaves when they are transferred.
type TransferOptions struct {
	// NonBlocking requests the transfer to be issued asynchronously with respect to the caller,
	// if the underlying runtime supports it.
	NonBlocking bool
}

// Tensor is implemented by the native tensor types of a runtime.
type Tensor interface {
	// TransferTo returns the tensor placed on the given device.
	TransferTo(device devices.Device, opts TransferOptions) (any, error)
}

// Transferable is implemented by arbitrary objects that know how to move their contents to a device.
// They control their own blocking behavior, so no TransferOptions are given.
type Transferable interface {
	ToDevice(device devices.Device) (any, error)
}

// isDeviceMovable returns whether the value is a Tensor or a Transferable.
func isDeviceMovable(value any) bool {
	switch value.(type) {
	case Tensor, Transferable:
		return true
	}
	return false
}

// ToDevice returns a batch with the same structure as data, with every Tensor and Transferable moved to
// the device.
//
// Errors returned by the leaves are returned unchanged.
func ToDevice(data any, device devices.Device) (any, error) {
	return Apply(data, isDeviceMovable, func(value any) (any, error) {
		switch leaf := value.(type) {
		case Tensor:
			return leaf.TransferTo(device, TransferOptions{NonBlocking: true})
		case Transferable:
			return leaf.ToDevice(device)
		}
		return value, nil
	})
}

// MustToDevice is like ToDevice, but panics if an error occurs.
func MustToDevice(data any, device devices.Device) any {
	moved, err := ToDevice(data, device)
	if err != nil {
		panic(err)
	}
	return moved
}
