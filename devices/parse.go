package devices

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MisconfigurationError is returned when a device selection is invalid. It holds the offending selection and
// the rule it violated. It's never retried: the user has to fix the selection.
type MisconfigurationError struct {
	Spec   any
	Reason string
}

// Error implements the error interface.
func (e *MisconfigurationError) Error() string {
	return fmt.Sprintf("invalid device selection %s: %s", formatSpec(e.Spec), e.Reason)
}

// IsMisconfiguration returns whether err is (or wraps) a MisconfigurationError.
func IsMisconfiguration(err error) bool {
	var target *MisconfigurationError
	return errors.As(err, &target)
}

func misconfigured(spec any, format string, args ...any) error {
	return errors.WithStack(&MisconfigurationError{Spec: spec, Reason: fmt.Sprintf(format, args...)})
}

func formatSpec(spec any) string {
	if s, ok := spec.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v (%T)", spec, spec)
}

// MaxDevices is the largest number of devices a selection can request.
const MaxDevices = 1 << 16

// ParseOption configures ParseIDs.
type ParseOption func(cfg *parseConfig)

type parseConfig struct {
	launcherManagedVisibility bool
}

// WithLauncherManagedVisibility informs ParseIDs that the process launcher (e.g. an elastic launcher) restricts
// each process to the one device it should use. In that case, if only one device is visible, a selection
// of several devices can't be checked against what is visible and is returned as given.
func WithLauncherManagedVisibility(managed bool) ParseOption {
	return func(cfg *parseConfig) {
		cfg.launcherManagedVisibility = managed
	}
}

// request is the normalized form of a device specification, before it is checked against the
// available devices.
type request struct {
	none  bool  // No device selected.
	all   bool  // Every available device.
	count int   // Use the first count devices, if ids is nil.
	ids   []int // Explicit indices, in the order given.
}

// ParseIDs converts a user device specification to the list of device indices to use.
//
// The spec can be:
//
//   - nil, 0, "", "0" or an empty list: no device is selected and it returns nil.
//   - -1 or "-1": all available devices, 0 to counter.NumDevices()-1.
//   - A positive integer n (or its string representation): the first n devices.
//   - A list of indices (any slice or array of integers), or a comma-separated string of indices (e.g. "1, 3" or
//     "2,"): the given devices, in the given order.
//
// Any other value (bool, floats, lists with nil or non-integer elements, negative or duplicate indices) or a
// selection of devices that don't exist returns a *MisconfigurationError.
func ParseIDs(spec any, counter Counter, opts ...ParseOption) ([]int, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if spec == nil {
		return nil, nil
	}
	req, err := normalize(spec)
	if err != nil {
		return nil, err
	}
	if req.none {
		return nil, nil
	}

	available := 0
	if counter != nil {
		available = counter.NumDevices()
	}
	var ids []int
	switch {
	case req.all:
		ids = firstN(available)
	case req.ids != nil:
		ids = req.ids
	default:
		if err = checkCount(spec, req.count, available, cfg.launcherManagedVisibility); err != nil {
			return nil, err
		}
		ids = firstN(req.count)
	}
	if len(ids) == 0 {
		return nil, misconfigured(spec, "devices requested but none are available")
	}
	if err = checkUnique(spec, ids); err != nil {
		return nil, err
	}
	if cfg.launcherManagedVisibility && len(ids) != 1 && available == 1 {
		klog.V(1).Infof("Device selection %s not checked: the launcher exposes a single device to this process",
			formatSpec(spec))
		return ids, nil
	}
	for _, id := range ids {
		if id >= available {
			return nil, misconfigured(spec, "device %d requested but only %d device(s) are available (valid indices "+
				"are 0 to %d)", id, available, available-1)
		}
	}
	klog.V(1).Infof("Device selection %s parsed to %v (%d available)", formatSpec(spec), ids, available)
	return ids, nil
}

// RootDevice returns the first device of a selection returned by ParseIDs, or false if nothing was selected.
func RootDevice(ids []int) (int, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// checkCount validates a request of the first count devices before any allocation. Under launcher-managed
// visibility with a single device visible, the count can't be checked against what is available, only bounded
// by MaxDevices.
func checkCount(spec any, count, available int, launcherManaged bool) error {
	if count > MaxDevices {
		return misconfigured(spec, "%d devices requested, at most %d are supported", count, MaxDevices)
	}
	if launcherManaged && available == 1 {
		return nil
	}
	if count > available {
		return misconfigured(spec, "%d device(s) requested but only %d are available", count, available)
	}
	return nil
}

func firstN(n int) []int {
	if n <= 0 {
		return nil
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func checkUnique(spec any, ids []int) error {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return misconfigured(spec, "device %d is selected more than once", id)
		}
		seen[id] = true
	}
	return nil
}

// normalize converts the spec into a request, checking only the types and signs of the values.
func normalize(spec any) (request, error) {
	switch v := spec.(type) {
	case bool:
		return request{}, misconfigured(spec, "booleans are not a valid device selection, use a count or a list of indices")
	case float32, float64:
		return request{}, misconfigured(spec, "device count must be a whole number, got a %T", v)
	case string:
		return normalizeString(spec, v)
	}

	specV := reflect.ValueOf(spec)
	if n, ok := asInt(specV); ok {
		return normalizeCount(spec, n)
	}
	switch specV.Kind() {
	case reflect.Slice, reflect.Array:
		if specV.Kind() == reflect.Slice && specV.IsNil() {
			return request{none: true}, nil
		}
		return normalizeList(spec, specV)
	default:
		return request{}, misconfigured(spec, "unsupported type %T, use an integer, a string or a list of integers", spec)
	}
}

func normalizeCount(spec any, n int) (request, error) {
	switch {
	case n == -1:
		return request{all: true}, nil
	case n == 0:
		return request{none: true}, nil
	case n < 0:
		return request{}, misconfigured(spec, "device count must be -1 (all devices) or non-negative")
	default:
		return request{count: n}, nil
	}
}

func normalizeString(spec any, s string) (request, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "0":
		return request{none: true}, nil
	case strings.TrimRight(s, ", ") == "-1":
		return request{all: true}, nil
	case strings.Contains(s, ","):
		var ids []int
		for _, token := range strings.Split(s, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			id, err := strconv.Atoi(token)
			if err != nil {
				return request{}, misconfigured(spec, "%q is not an integer device index", token)
			}
			if id < 0 {
				return request{}, misconfigured(spec, "device index %d is negative", id)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return request{none: true}, nil
		}
		return request{ids: ids}, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return request{}, misconfigured(spec, "%q is not an integer device count nor a comma-separated list of "+
				"device indices", s)
		}
		return normalizeCount(spec, n)
	}
}

func normalizeList(spec any, listV reflect.Value) (request, error) {
	if listV.Len() == 0 {
		return request{none: true}, nil
	}
	ids := make([]int, 0, listV.Len())
	for i := range listV.Len() {
		elemV := listV.Index(i)
		if elemV.Kind() == reflect.Interface || elemV.Kind() == reflect.Pointer {
			if elemV.IsNil() {
				return request{}, misconfigured(spec, "element #%d is nil, device indices must be integers", i)
			}
			if elemV.Kind() == reflect.Interface {
				elemV = elemV.Elem()
			}
		}
		id, ok := asInt(elemV)
		if !ok {
			return request{}, misconfigured(spec, "element #%d (%v of type %s) is not an integer device index",
				i, elemV, elemV.Type())
		}
		if id < 0 {
			return request{}, misconfigured(spec, "device index %d is negative", id)
		}
		ids = append(ids, id)
	}
	return request{ids: ids}, nil
}

// asInt returns the value as an int if it is of an integer kind. Booleans are not integers.
func asInt(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	default:
		return 0, false
	}
}
