package clusterenv

import "os"

// elasticRequiredVars are set by elastic launchers (torchrun-style) for every process they start.
var elasticRequiredVars = []string{"RANK", "GROUP_RANK", "LOCAL_RANK", "LOCAL_WORLD_SIZE"}

// Elastic is the environment of processes started by an elastic launcher, which starts one process per device
// and publishes the topology in environment variables.
type Elastic struct{}

var _ Environment = Elastic{}

func (Elastic) Name() string { return "elastic" }

// Detect implements Environment: all of RANK, GROUP_RANK, LOCAL_RANK and LOCAL_WORLD_SIZE must be set.
func (Elastic) Detect() bool {
	for _, name := range elasticRequiredVars {
		if _, found := os.LookupEnv(name); !found {
			return false
		}
	}
	return true
}

func (Elastic) WorldSize() int      { return envInt("WORLD_SIZE", 1) }
func (Elastic) GlobalRank() int     { return envInt("RANK", 0) }
func (Elastic) LocalRank() int      { return envInt("LOCAL_RANK", 0) }
func (Elastic) NodeRank() int       { return envInt("GROUP_RANK", 0) }
func (Elastic) MainAddress() string { return envString("MASTER_ADDR", DefaultMainAddress) }
func (Elastic) MainPort() int       { return envInt("MASTER_PORT", DefaultMainPort) }

// ManagesDeviceVisibility is always true: the launcher sets the visible devices of each process.
func (Elastic) ManagesDeviceVisibility() bool { return true }
