package devices

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		desc string
		want Device
	}{
		{"cpu", Device{TypeCPU, -1}},
		{"cuda:0", Device{TypeCUDA, 0}},
		{"gpu:3", Device{TypeCUDA, 3}},
		{" TPU:1 ", Device{TypeTPU, 1}},
		{"metal", Device{TypeMetal, -1}},
	}
	for _, tt := range tests {
		got, err := ParseDevice(tt.desc)
		require.NoError(t, err, "desc=%q", tt.desc)
		require.Equal(t, tt.want, got)
	}

	for _, desc := range []string{"", "npu:0", "cuda:", "cuda:-1", "cuda:x"} {
		_, err := ParseDevice(desc)
		require.Error(t, err, "desc=%q", desc)
	}
}

func TestDevice_String(t *testing.T) {
	require.Equal(t, "cuda:0", New(TypeCUDA, 0).String())
	require.Equal(t, "cpu", New(TypeCPU, -1).String())
	for _, desc := range []string{"cpu", "cuda:7", "tpu:0", "metal:1"} {
		d, err := ParseDevice(desc)
		require.NoError(t, err)
		require.Equal(t, desc, d.String())
	}
}

func TestParseType(t *testing.T) {
	for _, deviceType := range TypeValues() {
		got, err := ParseType(deviceType.String())
		require.NoError(t, err)
		require.Equal(t, deviceType, got)
	}
	got, err := ParseType("GPU")
	require.NoError(t, err)
	require.Equal(t, TypeCUDA, got)
	_, err = ParseType("fpga")
	require.ErrorContains(t, err, "unknown device type")
}
