package tensors

import (
	"math"
	"reflect"
	"slices"

	"github.com/chewxy/math32"
	"github.com/x448/float16"
)

// AllClose returns whether a and b have the same dtype and dimensions, and all their values are within
// tolerance of each other. Integer and boolean tensors are compared exactly. NaN is not close to anything,
// including another NaN.
//
// The device where the tensors are placed is not compared.
func AllClose(a, b *Tensor, tolerance float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.dtype != b.dtype || !slices.Equal(a.dimensions, b.dimensions) {
		return false
	}
	switch flatA := a.flat.(type) {
	case []float32:
		flatB := b.flat.([]float32)
		tol32 := float32(tolerance)
		for ii, value := range flatA {
			if !(math32.Abs(value-flatB[ii]) <= tol32) {
				return false
			}
		}
		return true
	case []float64:
		flatB := b.flat.([]float64)
		for ii, value := range flatA {
			if !(math.Abs(value-flatB[ii]) <= tolerance) {
				return false
			}
		}
		return true
	case []float16.Float16:
		flatB := b.flat.([]float16.Float16)
		tol32 := float32(tolerance)
		for ii, value := range flatA {
			if !(math32.Abs(value.Float32()-flatB[ii].Float32()) <= tol32) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a.flat, b.flat)
	}
}
