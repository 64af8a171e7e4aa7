// Package tensors implements a host-side multi-dimensional array that knows which device it is placed on.
//
// It is the native tensor leaf of the batch package: batch.ToDevice transfers it with TransferTo.
package tensors

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/trainkit/batch"
	"github.com/gomlx/trainkit/devices"
	"github.com/pkg/errors"
)

// Tensor is a multi-dimensional array stored as a flat slice (row-major) plus its dimensions.
//
// Tensors are immutable: transfers return a new Tensor.
type Tensor struct {
	dtype      dtypes.DType
	dimensions []int
	flat       any // Slice of the Go type of dtype.
	device     devices.Device

	// transfer holds the options of the transfer that created this tensor, if any.
	transfer *batch.TransferOptions
}

var _ batch.Tensor = (*Tensor)(nil)

// Host is the device where tensors are created.
var Host = devices.New(devices.TypeCPU, -1)

func sizeOf(dimensions []int) int {
	size := 1
	for _, dim := range dimensions {
		size *= dim
	}
	return size
}

// FromFlatDataAndDimensions creates a Tensor on the Host from a flat slice and its dimensions.
// No dimensions means a scalar, and flat must have one element.
//
// It panics if the size of flat doesn't match the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](flat []T, dimensions ...int) *Tensor {
	t, err := FromAnyFlat(flat, dimensions...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromAnyFlat creates a Tensor on the Host from a flat slice of any supported Go type, and its dimensions.
// The slice is copied.
func FromAnyFlat(flat any, dimensions ...int) (*Tensor, error) {
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice {
		return nil, errors.Errorf("tensors.FromAnyFlat requires a slice for flat, got %T", flat)
	}
	dtype := dtypes.FromGoType(flatV.Type().Elem())
	if dtype == dtypes.InvalidDType {
		return nil, errors.Errorf("tensors.FromAnyFlat got flat=%T, it requires a slice of a Go type that can be "+
			"converted to a valid DType", flat)
	}
	for _, dim := range dimensions {
		if dim < 0 {
			return nil, errors.Errorf("tensors.FromAnyFlat cannot be given negative dimensions, got %v", dimensions)
		}
	}
	if flatV.Len() != sizeOf(dimensions) {
		return nil, errors.Errorf("tensors.FromAnyFlat(flat, dimensions=%v) needs %d values to match dimensions, "+
			"but got len(flat)=%d", dimensions, sizeOf(dimensions), flatV.Len())
	}
	return &Tensor{
		dtype:      dtype,
		dimensions: slices.Clone(dimensions),
		flat:       cloneFlat(flatV),
		device:     Host,
	}, nil
}

// Zeros returns a Tensor on the Host with the given dtype and dimensions, filled with zeros.
func Zeros(dtype dtypes.DType, dimensions ...int) *Tensor {
	size := sizeOf(dimensions)
	return &Tensor{
		dtype:      dtype,
		dimensions: slices.Clone(dimensions),
		flat:       reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), size, size).Interface(),
		device:     Host,
	}
}

// Rand returns a float32 Tensor on the Host with values drawn uniformly from [0, 1).
func Rand(dimensions ...int) *Tensor {
	flat := make([]float32, sizeOf(dimensions))
	for ii := range flat {
		flat[ii] = rand.Float32()
	}
	return &Tensor{
		dtype:      dtypes.Float32,
		dimensions: slices.Clone(dimensions),
		flat:       flat,
		device:     Host,
	}
}

func cloneFlat(flatV reflect.Value) any {
	cloneV := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(cloneV, flatV)
	return cloneV.Interface()
}

// DType of the tensor elements.
func (t *Tensor) DType() dtypes.DType { return t.dtype }

// Dimensions of the tensor. The returned slice is owned by the tensor, don't change it.
func (t *Tensor) Dimensions() []int { return t.dimensions }

// Rank is the number of dimensions.
func (t *Tensor) Rank() int { return len(t.dimensions) }

// Size is the number of elements.
func (t *Tensor) Size() int { return sizeOf(t.dimensions) }

// Device where the tensor is placed.
func (t *Tensor) Device() devices.Device { return t.device }

// Flat returns the flat slice with the values of the tensor. It is owned by the tensor, don't change it.
func (t *Tensor) Flat() any { return t.flat }

// LastTransfer returns the options of the transfer that created this tensor, or false if it was created on the
// Host.
func (t *Tensor) LastTransfer() (batch.TransferOptions, bool) {
	if t.transfer == nil {
		return batch.TransferOptions{}, false
	}
	return *t.transfer, true
}

// To returns a copy of the tensor placed on the device, with a blocking transfer.
func (t *Tensor) To(device devices.Device) (*Tensor, error) {
	return t.transferTo(device, batch.TransferOptions{})
}

// TransferTo implements batch.Tensor.
func (t *Tensor) TransferTo(device devices.Device, opts batch.TransferOptions) (any, error) {
	return t.transferTo(device, opts)
}

func (t *Tensor) transferTo(device devices.Device, opts batch.TransferOptions) (*Tensor, error) {
	if t == nil || t.flat == nil {
		return nil, errors.New("tensors: cannot transfer a nil or empty Tensor")
	}
	return &Tensor{
		dtype:      t.dtype,
		dimensions: slices.Clone(t.dimensions),
		flat:       cloneFlat(reflect.ValueOf(t.flat)),
		device:     device,
		transfer:   &opts,
	}, nil
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	return fmt.Sprintf("Tensor[%s](%s%v)", t.device, t.dtype, t.dimensions)
}
