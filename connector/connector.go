// Package connector resolves the user's request of accelerator, devices and strategy (see Config) into a
// concrete Selection of devices for the current process.
package connector

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/stablehlo/types/shardy"
	"github.com/gomlx/trainkit/clusterenv"
	"github.com/gomlx/trainkit/devices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	AcceleratorAuto = "auto"

	StrategyAuto         = "auto"
	StrategyDDP          = "ddp"
	StrategySingleDevice = "single_device"

	// ReplicaAxis is the name of the axis of the mesh returned by Selection.Mesh.
	ReplicaAxis = "replica"
	meshName    = "replicas"
)

// Selection is the resolved set of devices used by the current process.
type Selection struct {
	Accelerator devices.Type
	DeviceIDs   []int

	// Strategy is either StrategyDDP or StrategySingleDevice, "auto" is resolved.
	Strategy string

	NumNodes    int
	Environment clusterenv.Environment
}

// String implements fmt.Stringer.
func (s *Selection) String() string {
	return fmt.Sprintf("%s devices %v, strategy %s, %d node(s), environment %s",
		s.Accelerator, s.DeviceIDs, s.Strategy, s.NumNodes, s.Environment.Name())
}

// NumDevices selected for the current node.
func (s *Selection) NumDevices() int {
	return len(s.DeviceIDs)
}

// Devices returns the descriptors of the selected devices.
func (s *Selection) Devices() []devices.Device {
	result := make([]devices.Device, len(s.DeviceIDs))
	for ii, id := range s.DeviceIDs {
		result[ii] = devices.New(s.Accelerator, id)
	}
	return result
}

// RootDevice is the first selected device, used for single device training and to place the initial state.
func (s *Selection) RootDevice() devices.Device {
	id, _ := devices.RootDevice(s.DeviceIDs)
	return devices.New(s.Accelerator, id)
}

// Mesh returns a one-axis (ReplicaAxis) device mesh with one entry per selected device.
//
// The mesh uses logical device numbers 0 to NumDevices()-1: logical device i is s.DeviceIDs[i].
func (s *Selection) Mesh() (*shardy.DeviceMesh, error) {
	if len(s.DeviceIDs) == 0 {
		return nil, errors.New("no devices selected to build a mesh")
	}
	return shardy.NewDeviceMesh(meshName, []int{len(s.DeviceIDs)}, []string{ReplicaAxis})
}

// Resolve the configuration into a Selection.
//
// The counter reports the number of accelerator (CUDA) devices available, and env is the cluster environment,
// usually from clusterenv.Detect. Invalid requests return a *devices.MisconfigurationError.
func Resolve(cfg Config, counter devices.Counter, env clusterenv.Environment) (*Selection, error) {
	if env == nil {
		env = clusterenv.Local{}
	}
	numNodes := cfg.NumNodes
	if numNodes == 0 {
		numNodes = 1
	} else if numNodes < 0 {
		return nil, misconfigured(cfg.NumNodes, "the number of nodes must be positive")
	}
	sel := &Selection{NumNodes: numNodes, Environment: env}

	accelerator := strings.ToLower(strings.TrimSpace(cfg.Accelerator))
	if accelerator == "" || accelerator == AcceleratorAuto {
		if counter != nil && counter.NumDevices() > 0 {
			accelerator = devices.TypeCUDA.String()
			if cfg.Devices == nil {
				cfg.Devices = -1
			}
		} else {
			accelerator = devices.TypeCPU.String()
		}
		klog.V(1).Infof("Accelerator %q resolved to %s", cfg.Accelerator, accelerator)
	}

	deviceType, err := devices.ParseType(accelerator)
	if err != nil {
		return nil, misconfigured(cfg.Accelerator, "unsupported accelerator, valid values are auto, cpu, gpu or cuda")
	}
	switch deviceType {
	case devices.TypeCPU:
		numProcesses, err := cpuProcesses(cfg.Devices)
		if err != nil {
			return nil, err
		}
		sel.Accelerator = devices.TypeCPU
		sel.DeviceIDs = sequence(numProcesses)
	case devices.TypeCUDA:
		ids, err := devices.ParseIDs(cfg.Devices, counter,
			devices.WithLauncherManagedVisibility(env.ManagesDeviceVisibility()))
		if err != nil {
			return nil, err
		}
		if ids == nil {
			klog.Infof("No GPU selected with devices=%v, falling back to CPU", cfg.Devices)
			sel.Accelerator = devices.TypeCPU
			sel.DeviceIDs = []int{0}
		} else {
			sel.Accelerator = devices.TypeCUDA
			sel.DeviceIDs = ids
		}
	default:
		return nil, misconfigured(cfg.Accelerator, "accelerator not supported yet")
	}

	sel.Strategy, err = resolveStrategy(cfg.Strategy, sel.NumDevices()*sel.NumNodes)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Selected %s", sel)
	return sel, nil
}

// cpuProcesses returns the number of CPU processes requested: any integer kind, or its string representation,
// from 1 to devices.MaxDevices.
func cpuProcesses(spec any) (int, error) {
	if spec == nil {
		return 1, nil
	}
	count, ok := 0, false
	if s, isString := spec.(string); isString {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		count, ok = n, err == nil
	} else {
		v := reflect.ValueOf(spec)
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			count, ok = int(v.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			if u := v.Uint(); u <= math.MaxInt {
				count, ok = int(u), true
			} else {
				count, ok = math.MaxInt, true
			}
		}
	}
	if !ok || count <= 0 {
		return 0, misconfigured(spec, "the cpu accelerator requires a positive number of processes")
	}
	if count > devices.MaxDevices {
		return 0, misconfigured(spec, fmt.Sprintf("%d cpu processes requested, at most %d are supported",
			count, devices.MaxDevices))
	}
	return count, nil
}

func resolveStrategy(strategy string, totalDevices int) (string, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyAuto:
		if totalDevices > 1 {
			return StrategyDDP, nil
		}
		return StrategySingleDevice, nil
	case StrategyDDP:
		return StrategyDDP, nil
	case StrategySingleDevice:
		if totalDevices != 1 {
			return "", misconfigured(strategy, fmt.Sprintf(
				"the single_device strategy requires exactly one device, got %d", totalDevices))
		}
		return StrategySingleDevice, nil
	default:
		return "", misconfigured(strategy, "unknown strategy, valid values are auto, ddp or single_device")
	}
}

func sequence(n int) []int {
	ids := make([]int, n)
	for ii := range ids {
		ids[ii] = ii
	}
	return ids
}

func misconfigured(spec any, reason string) error {
	return errors.WithStack(&devices.MisconfigurationError{Spec: spec, Reason: reason})
}
