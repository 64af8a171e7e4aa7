package batch

import (
	"fmt"
	"testing"

	"github.com/gomlx/trainkit/devices"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cuda0 = devices.New(devices.TypeCUDA, 0)

// fakeTensor is a native tensor leaf that records how it was transferred.
type fakeTensor struct {
	name   string
	device devices.Device
	opts   *TransferOptions // Options of the transfer that created it, nil if never transferred.
	err    error            // If set, TransferTo fails with it.
}

func newFakeTensor(name string) *fakeTensor {
	return &fakeTensor{name: name, device: devices.New(devices.TypeCPU, -1)}
}

func (t *fakeTensor) TransferTo(device devices.Device, opts TransferOptions) (any, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &fakeTensor{name: t.name, device: device, opts: &opts}, nil
}

// requireOn checks the value is a transferred fakeTensor on the device, with the non-blocking hint.
func requireOn(t *testing.T, value any, device devices.Device) *fakeTensor {
	tensor, ok := value.(*fakeTensor)
	require.Truef(t, ok, "expected *fakeTensor, got %T", value)
	require.Equal(t, device, tensor.device)
	require.NotNil(t, tensor.opts)
	require.True(t, tensor.opts.NonBlocking)
	return tensor
}

// customBatch implements Transferable and records the devices it was moved to.
type customBatch struct {
	A     *fakeTensor
	moves []devices.Device
}

func (b *customBatch) ToDevice(device devices.Device) (any, error) {
	b.moves = append(b.moves, device)
	a, err := b.A.TransferTo(device, TransferOptions{})
	if err != nil {
		return nil, err
	}
	b.A = a.(*fakeTensor)
	return b, nil
}

// tensorAndTransferable implements both interfaces: it must be treated as a Tensor.
type tensorAndTransferable struct {
	viaTensor, viaTransferable int
}

func (v *tensorAndTransferable) TransferTo(devices.Device, TransferOptions) (any, error) {
	v.viaTensor++
	return v, nil
}

func (v *tensorAndTransferable) ToDevice(devices.Device) (any, error) {
	v.viaTransferable++
	return v, nil
}

type pair struct {
	A, B   *fakeTensor
	Label  string
	hidden *fakeTensor
}

func TestToDevice_NonTransferable(t *testing.T) {
	primitives := []any{
		nil,
		map[string]any{},
		[]any{},
		1.0,
		"x",
		[]any{nil, 2},
		map[string]any{"x": []int{1, 2}, "y": nil},
		[2]int{1, 2},
		[]byte("bytes"),
		struct {
			X int
			y string
		}{1, "y"},
	}
	for _, value := range primitives {
		t.Run(fmt.Sprintf("%T(%v)", value, value), func(t *testing.T) {
			moved, err := ToDevice(value, cuda0)
			require.NoError(t, err)
			require.Equal(t, value, moved)
		})
	}
}

func TestToDevice_Tensor(t *testing.T) {
	moved, err := ToDevice(newFakeTensor("x"), cuda0)
	require.NoError(t, err)
	requireOn(t, moved, cuda0)
}

func TestToDevice_Containers(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		moved := MustToDevice([]*fakeTensor{newFakeTensor("a"), newFakeTensor("b")}, cuda0).([]*fakeTensor)
		require.Len(t, moved, 2)
		requireOn(t, moved[0], cuda0)
		requireOn(t, moved[1], cuda0)
	})

	t.Run("list of lists", func(t *testing.T) {
		moved := MustToDevice([][]any{{newFakeTensor("a"), newFakeTensor("b")}}, cuda0).([][]any)
		require.Len(t, moved, 1)
		require.Len(t, moved[0], 2)
		requireOn(t, moved[0][0], cuda0)
		requireOn(t, moved[0][1], cuda0)
	})

	t.Run("list of maps", func(t *testing.T) {
		moved := MustToDevice([]map[string]*fakeTensor{{"a": newFakeTensor("a"), "b": newFakeTensor("b")}}, cuda0).(
			[]map[string]*fakeTensor)
		require.Len(t, moved[0], 2)
		requireOn(t, moved[0]["a"], cuda0)
		requireOn(t, moved[0]["b"], cuda0)
	})

	t.Run("tuple of list and list of maps", func(t *testing.T) {
		data := [2]any{
			[]any{newFakeTensor("t0"), newFakeTensor("t1")},
			[]any{
				map[string]any{"a": newFakeTensor("a0"), "b": newFakeTensor("b0")},
				map[string]any{"a": newFakeTensor("a1"), "b": newFakeTensor("b1")},
			},
		}
		moved := MustToDevice(data, cuda0).([2]any)
		requireOn(t, moved[0].([]any)[0], cuda0)
		maps := moved[1].([]any)
		for _, m := range maps {
			requireOn(t, m.(map[string]any)["a"], cuda0)
			requireOn(t, m.(map[string]any)["b"], cuda0)
		}
		// The input is not modified.
		require.Nil(t, data[0].([]any)[0].(*fakeTensor).opts)
	})

	t.Run("records", func(t *testing.T) {
		hidden := newFakeTensor("hidden")
		data := []pair{
			{A: newFakeTensor("a0"), B: newFakeTensor("b0"), Label: "first", hidden: hidden},
			{A: newFakeTensor("a1"), B: nil, Label: "second"},
		}
		moved := MustToDevice(data, cuda0).([]pair)
		require.Len(t, moved, 2)
		requireOn(t, moved[0].A, cuda0)
		requireOn(t, moved[0].B, cuda0)
		require.Equal(t, "first", moved[0].Label)
		require.Same(t, hidden, moved[0].hidden, "unexported fields are copied verbatim")
		requireOn(t, moved[1].A, cuda0)
		require.Nil(t, moved[1].B)
	})

	t.Run("shape preserved with mixed leaves", func(t *testing.T) {
		data := map[string]any{
			"inputs": []any{newFakeTensor("x"), 3, "label", nil},
			"meta":   map[string]any{"epoch": 7, "ids": []int{1, 2, 3}},
		}
		moved := MustToDevice(data, cuda0).(map[string]any)
		require.Len(t, moved, 2)
		inputs := moved["inputs"].([]any)
		require.Len(t, inputs, 4)
		requireOn(t, inputs[0], cuda0)
		assert.Equal(t, 3, inputs[1])
		assert.Equal(t, "label", inputs[2])
		assert.Nil(t, inputs[3])
		assert.Equal(t, data["meta"], moved["meta"])
	})
}

func TestToDevice_Transferable(t *testing.T) {
	custom := &customBatch{A: newFakeTensor("a")}
	moved, err := ToDevice(custom, cuda0)
	require.NoError(t, err)
	require.Same(t, custom, moved)
	require.Equal(t, []devices.Device{cuda0}, custom.moves)
	require.Equal(t, cuda0, custom.A.device)

	// Inside a container.
	customs := []any{&customBatch{A: newFakeTensor("b")}}
	MustToDevice(customs, cuda0)
	require.Equal(t, []devices.Device{cuda0}, customs[0].(*customBatch).moves)
}

func TestToDevice_NonBlockingOnlyForTensors(t *testing.T) {
	tensor := newFakeTensor("x")
	moved := MustToDevice(tensor, cuda0).(*fakeTensor)
	require.Equal(t, TransferOptions{NonBlocking: true}, *moved.opts)

	// Custom Transferable objects receive only the device: their inner tensor is moved with the options the
	// object chooses (here, blocking).
	custom := &customBatch{A: newFakeTensor("a")}
	MustToDevice(custom, cuda0)
	require.False(t, custom.A.opts.NonBlocking)

	// Values implementing both interfaces are tensors.
	both := &tensorAndTransferable{}
	MustToDevice(both, cuda0)
	require.Equal(t, 1, both.viaTensor)
	require.Equal(t, 0, both.viaTransferable)
}

func TestToDevice_Errors(t *testing.T) {
	leafErr := errors.New("device out of memory")
	broken := newFakeTensor("broken")
	broken.err = leafErr
	_, err := ToDevice(map[string]any{"ok": newFakeTensor("ok"), "broken": []any{broken}}, cuda0)
	require.Equal(t, leafErr, err, "leaf errors are returned unchanged")

	// A nil typed pointer is not transferred.
	moved, err := ToDevice([]*fakeTensor{nil}, cuda0)
	require.NoError(t, err)
	require.Equal(t, []*fakeTensor{nil}, moved)
}

func TestApply(t *testing.T) {
	isInt := func(value any) bool {
		_, ok := value.(int)
		return ok
	}
	double := func(value any) (any, error) { return value.(int) * 2, nil }

	got, err := Apply(map[string]any{"a": 1, "b": []int{2, 3}, "c": "x"}, isInt, double)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 2, "b": []int{4, 6}, "c": "x"}, got)

	// Result type not storable in the container.
	_, err = Apply([]int{1}, isInt, func(value any) (any, error) { return "one", nil })
	require.ErrorContains(t, err, "cannot be stored in a container of int")

	// The whole value may match.
	got, err = Apply(5, isInt, double)
	require.NoError(t, err)
	require.Equal(t, 10, got)
}

func BenchmarkToDevice(b *testing.B) {
	data := make([]map[string]any, 64)
	for ii := range data {
		data[ii] = map[string]any{
			"x":     newFakeTensor("x"),
			"y":     []any{newFakeTensor("y0"), newFakeTensor("y1")},
			"index": ii,
		}
	}
	b.ResetTimer()
	for range b.N {
		MustToDevice(data, cuda0)
	}
}
