package clusterenv

// Local is the default environment: a single process on a single node.
type Local struct{}

var _ Environment = Local{}

func (Local) Name() string                  { return "local" }
func (Local) Detect() bool                  { return true }
func (Local) WorldSize() int                { return 1 }
func (Local) GlobalRank() int               { return 0 }
func (Local) LocalRank() int                { return 0 }
func (Local) NodeRank() int                 { return 0 }
func (Local) MainAddress() string           { return DefaultMainAddress }
func (Local) MainPort() int                 { return envInt("MASTER_PORT", DefaultMainPort) }
func (Local) ManagesDeviceVisibility() bool { return false }
