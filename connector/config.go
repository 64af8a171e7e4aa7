package connector

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the user's request of accelerator and devices, usually read from a YAML file:
//
//	accelerator: gpu
//	devices: "0,1"
//	strategy: ddp
//	num_nodes: 1
type Config struct {
	// Accelerator is one of "auto" (or empty), "cpu", "gpu" or "cuda".
	Accelerator string `yaml:"accelerator"`

	// Devices is any value accepted by devices.ParseIDs: an int count, a string or a list of indices.
	// For the "cpu" accelerator it's the number of processes.
	Devices any `yaml:"devices"`

	// Strategy is one of "auto" (or empty), "ddp" or "single_device".
	Strategy string `yaml:"strategy"`

	// NumNodes is the number of machines used, defaults to 1.
	NumNodes int `yaml:"num_nodes"`
}

// LoadConfig reads the Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read configuration from %q", path)
	}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse configuration in %q", path)
	}
	return cfg, nil
}
