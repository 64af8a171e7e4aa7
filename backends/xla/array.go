package xla

import (
	"fmt"

	"github.com/gomlx/gopjrt/pjrt"
	"github.com/gomlx/trainkit/batch"
	"github.com/gomlx/trainkit/devices"
	"github.com/gomlx/trainkit/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Array is a tensor stored on a device of a Backend.
type Array struct {
	backend   *Backend
	buffer    *pjrt.Buffer
	deviceNum int
}

var _ batch.Tensor = (*Array)(nil)

func newArray(backend *Backend, buffer *pjrt.Buffer, deviceNum int) *Array {
	return &Array{backend: backend, buffer: buffer, deviceNum: deviceNum}
}

// Device where the array is stored.
func (a *Array) Device() devices.Device {
	return devices.New(a.backend.deviceType, a.deviceNum)
}

// TransferTo implements batch.Tensor. Arrays already on the device are returned as is; otherwise the contents
// are copied through host memory.
//
// The transfers offered by PJRT here are synchronous, so the non-blocking hint is ignored.
func (a *Array) TransferTo(device devices.Device, opts batch.TransferOptions) (any, error) {
	if a.buffer == nil {
		return nil, errors.New("xla.Array has been destroyed already")
	}
	deviceNum, err := a.backend.deviceNum(device)
	if err != nil {
		return nil, err
	}
	if deviceNum == a.deviceNum {
		return a, nil
	}
	if opts.NonBlocking {
		klog.V(2).Infof("Non-blocking transfer of %s to %s requested, doing a synchronous transfer", a, device)
	}
	flat, dimensions, err := a.buffer.ToFlatDataAndDimensions()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to transfer %s to host", a)
	}
	buffer, err := a.backend.client.BufferFromHost().
		FromFlatDataWithDimensions(flat, dimensions).
		ToDeviceNum(deviceNum).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to transfer %s to %s", a, device)
	}
	return newArray(a.backend, buffer, deviceNum), nil
}

// ToHost returns a copy of the array as a host tensor.
func (a *Array) ToHost() (*tensors.Tensor, error) {
	if a.buffer == nil {
		return nil, errors.New("xla.Array has been destroyed already")
	}
	flat, dimensions, err := a.buffer.ToFlatDataAndDimensions()
	if err != nil {
		return nil, err
	}
	return tensors.FromAnyFlat(flat, dimensions...)
}

// Destroy frees the on-device buffer. It's also freed when the Array is garbage collected.
func (a *Array) Destroy() error {
	if a.buffer == nil {
		return nil
	}
	err := a.buffer.Destroy()
	a.buffer = nil
	return err
}

// String implements fmt.Stringer.
func (a *Array) String() string {
	return fmt.Sprintf("xla.Array[%s]", a.Device())
}
