// Package xla places tensors on accelerators using a PJRT plugin (see github.com/gomlx/gopjrt).
//
// The Backend counts the addressable devices of the plugin (so it can be used as a devices.Counter), and Array
// is a native tensor leaf for the batch package, backed by an on-device PJRT buffer.
//
// PJRT plugins can be installed with github.com/gomlx/gopjrt/cmd/gopjrt_installer.
package xla

import (
	"fmt"

	"github.com/gomlx/gopjrt/pjrt"
	"github.com/gomlx/trainkit/devices"
	"github.com/gomlx/trainkit/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend manages one PJRT client and its addressable devices.
type Backend struct {
	plugin     *pjrt.Plugin
	client     *pjrt.Client
	deviceType devices.Type
}

var _ devices.Counter = (*Backend)(nil)

// New loads the PJRT plugin (e.g. "cpu", "cuda" or a path to the plugin) and creates a client.
func New(pluginName string) (*Backend, error) {
	plugin, err := pjrt.GetPlugin(pluginName)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load PJRT plugin %q", pluginName)
	}
	client, err := plugin.NewClient(nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create client for %s", plugin)
	}
	deviceType, err := devices.ParseType(client.Platform())
	if err != nil {
		klog.Warningf("PJRT platform %q not recognized, assuming %s devices", client.Platform(), devices.TypeCPU)
		deviceType = devices.TypeCPU
	}
	b := &Backend{plugin: plugin, client: client, deviceType: deviceType}
	klog.V(1).Infof("Created %s", b)
	return b, nil
}

// String implements fmt.Stringer.
func (b *Backend) String() string {
	return fmt.Sprintf("xla backend (%s, %d %s devices)", b.plugin, b.NumDevices(), b.deviceType)
}

// Type of the devices managed by the backend.
func (b *Backend) Type() devices.Type {
	return b.deviceType
}

// NumDevices implements devices.Counter: it returns the number of addressable devices.
func (b *Backend) NumDevices() int {
	if b.client == nil {
		return 0
	}
	return len(b.client.AddressableDevices())
}

// Device returns the descriptor for the device deviceNum, an index to the addressable devices.
func (b *Backend) Device(deviceNum int) (devices.Device, error) {
	if deviceNum < 0 || deviceNum >= b.NumDevices() {
		return devices.Device{}, errors.Errorf("invalid device %d, backend has only %d addressable devices",
			deviceNum, b.NumDevices())
	}
	return devices.New(b.deviceType, deviceNum), nil
}

// deviceNum converts a device descriptor to an index to the addressable devices. An unspecified index picks the
// first device.
func (b *Backend) deviceNum(device devices.Device) (int, error) {
	if device.Type != b.deviceType {
		return 0, errors.Errorf("device %s is not managed by backend with %s devices", device, b.deviceType)
	}
	if device.Index < 0 {
		return 0, nil
	}
	if device.Index >= b.NumDevices() {
		return 0, errors.Errorf("device %s not available, backend has only %d addressable devices",
			device, b.NumDevices())
	}
	return device.Index, nil
}

// Upload transfers the host tensor to the given device.
func (b *Backend) Upload(t *tensors.Tensor, device devices.Device) (*Array, error) {
	deviceNum, err := b.deviceNum(device)
	if err != nil {
		return nil, err
	}
	buffer, err := b.client.BufferFromHost().
		FromFlatDataWithDimensions(t.Flat(), t.Dimensions()).
		ToDeviceNum(deviceNum).
		Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to upload %s to %s", t, device)
	}
	return newArray(b, buffer, deviceNum), nil
}

// Finalize destroys the client. Arrays created by the backend are no longer valid.
func (b *Backend) Finalize() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Destroy()
	b.client = nil
	return err
}
