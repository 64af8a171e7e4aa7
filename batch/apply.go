package batch

import (
	"reflect"

	"github.com/pkg/errors"
)

// Apply returns a copy of data where every value for which match returns true is replaced by fn(value).
//
// The traversal is depth-first, and values are checked with match before their structure is inspected: so a
// matched map, slice or struct is given to fn as a whole.
//
// Containers are rebuilt with the same concrete type:
//
//   - Maps: same keys, with the values transformed.
//   - Structs: a copy where every exported field is transformed, and unexported fields are copied verbatim.
//   - Slices and arrays: same length and order, with the elements transformed. Byte slices and arrays are
//     left untouched.
//
// Nil maps and slices, pointers, and any other values not matched are returned unchanged.
//
// Errors returned by fn are returned unchanged. Apply only returns an error of its own if fn returns a value that
// can't be stored in the typed container it came from (e.g. a []*MyTensor element replaced by something else).
func Apply(data any, match func(value any) bool, fn func(value any) (any, error)) (any, error) {
	if isNil(data) {
		return data, nil
	}
	if match(data) {
		return fn(data)
	}
	resultV, err := applyToValue(reflect.ValueOf(data), match, fn)
	if err != nil {
		return nil, err
	}
	return resultV.Interface(), nil
}

// isNil returns whether value is nil, or a typed nil pointer.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	valueV := reflect.ValueOf(value)
	return valueV.Kind() == reflect.Pointer && valueV.IsNil()
}

func applyToValue(valueV reflect.Value, match func(any) bool, fn func(any) (any, error)) (reflect.Value, error) {
	valueT := valueV.Type()
	switch valueV.Kind() {
	case reflect.Map:
		if valueV.IsNil() {
			return valueV, nil
		}
		resultV := reflect.MakeMapWithSize(valueT, valueV.Len())
		iter := valueV.MapRange()
		for iter.Next() {
			elemV, err := applyToElement(iter.Value(), valueT.Elem(), match, fn)
			if err != nil {
				return reflect.Value{}, err
			}
			resultV.SetMapIndex(iter.Key(), elemV)
		}
		return resultV, nil

	case reflect.Struct:
		resultV := reflect.New(valueT).Elem()
		resultV.Set(valueV)
		for fieldIdx := range valueT.NumField() {
			field := valueT.Field(fieldIdx)
			if !field.IsExported() {
				continue
			}
			fieldV, err := applyToElement(valueV.Field(fieldIdx), field.Type, match, fn)
			if err != nil {
				return reflect.Value{}, err
			}
			resultV.Field(fieldIdx).Set(fieldV)
		}
		return resultV, nil

	case reflect.Slice:
		if valueV.IsNil() || valueT.Elem().Kind() == reflect.Uint8 {
			return valueV, nil
		}
		resultV := reflect.MakeSlice(valueT, valueV.Len(), valueV.Len())
		if err := applyToSequence(valueV, resultV, match, fn); err != nil {
			return reflect.Value{}, err
		}
		return resultV, nil

	case reflect.Array:
		if valueT.Elem().Kind() == reflect.Uint8 {
			return valueV, nil
		}
		resultV := reflect.New(valueT).Elem()
		if err := applyToSequence(valueV, resultV, match, fn); err != nil {
			return reflect.Value{}, err
		}
		return resultV, nil

	default:
		return valueV, nil
	}
}

// applyToSequence transforms each element of the slice or array valueV into resultV, which must have the same
// type and length.
func applyToSequence(valueV, resultV reflect.Value, match func(any) bool, fn func(any) (any, error)) error {
	elemT := valueV.Type().Elem()
	for ii := range valueV.Len() {
		elemV, err := applyToElement(valueV.Index(ii), elemT, match, fn)
		if err != nil {
			return err
		}
		resultV.Index(ii).Set(elemV)
	}
	return nil
}

// applyToElement transforms one element of a container, whose declared type is elemT, and returns a value
// assignable to elemT.
func applyToElement(elemV reflect.Value, elemT reflect.Type, match func(any) bool, fn func(any) (any, error)) (
	reflect.Value, error) {
	if elemV.Kind() == reflect.Interface {
		if elemV.IsNil() {
			return elemV, nil
		}
		elemV = elemV.Elem()
	}
	if elemV.Kind() == reflect.Pointer && elemV.IsNil() {
		return elemV, nil
	}
	value := elemV.Interface()
	if !match(value) {
		return applyToValue(elemV, match, fn)
	}
	result, err := fn(value)
	if err != nil {
		return reflect.Value{}, err
	}
	if result == nil {
		switch elemT.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(elemT), nil
		}
		return reflect.Value{}, errors.Errorf("batch: nil result cannot be stored in a container of %s", elemT)
	}
	resultV := reflect.ValueOf(result)
	if !resultV.Type().AssignableTo(elemT) {
		return reflect.Value{}, errors.Errorf("batch: transformed value of type %s cannot be stored in a container of %s",
			resultV.Type(), elemT)
	}
	return resultV, nil
}
