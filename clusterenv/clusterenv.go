// Package clusterenv detects the cluster environment a training process was launched in, and reports
// its topology: world size, ranks and the address of the main process.
package clusterenv

import (
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

const (
	// DefaultMainAddress is used when the environment doesn't define the main process address.
	DefaultMainAddress = "127.0.0.1"

	// DefaultMainPort is used when the environment doesn't define the main process port.
	DefaultMainPort = 12910
)

// Environment describes the cluster a process belongs to.
type Environment interface {
	// Name of the environment, used for logging.
	Name() string

	// Detect returns whether the process was launched in this environment.
	Detect() bool

	WorldSize() int
	GlobalRank() int
	LocalRank() int
	NodeRank() int
	MainAddress() string
	MainPort() int

	// ManagesDeviceVisibility returns whether the launcher restricts which devices each process can see.
	ManagesDeviceVisibility() bool
}

// Known environments, in the order they are tried by Detect.
var Known = []Environment{
	Elastic{},
}

// Detect returns the first of the Known environments detected, or Local if none is.
func Detect() Environment {
	for _, env := range Known {
		if env.Detect() {
			klog.V(1).Infof("Cluster environment detected: %s", env.Name())
			return env
		}
	}
	return Local{}
}

// envInt returns the integer value of the environment variable, or defaultValue if it is not set or not an
// integer.
func envInt(name string, defaultValue int) int {
	value, found := os.LookupEnv(name)
	if !found || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("Environment variable %s=%q is not an integer, using %d", name, value, defaultValue)
		return defaultValue
	}
	return n
}

func envString(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}
