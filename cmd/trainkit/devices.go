package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh/spinner"
	"github.com/gomlx/trainkit/backends/xla"
	"github.com/gomlx/trainkit/clusterenv"
	"github.com/gomlx/trainkit/connector"
	"github.com/gomlx/trainkit/devices"
	"github.com/gomlx/trainkit/tensors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// devicesFlags are the flags of the devices command. Flags explicitly set take precedence over --config.
type devicesFlags struct {
	config      string
	devices     string
	accelerator string
	strategy    string
	numNodes    int
	available   int
	plugin      string
	check       bool
}

func devicesCmd() *cobra.Command {
	var f devicesFlags
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Resolve and print the devices a training job would use",
		Long: "Resolve the accelerator, devices and strategy (from --config and the flags) against the devices " +
			"available, and print the selection. The number of accelerator devices comes from --available, or " +
			"from the PJRT plugin given by --plugin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.toConfig(cmd)
			if err != nil {
				return err
			}
			var counter devices.Counter = devices.Fixed(f.available)
			var backend *xla.Backend
			if f.plugin != "" {
				backend, err = loadBackend(f.plugin)
				if err != nil {
					return err
				}
				defer func() { ReportError(backend.Finalize()) }()
				if backend.Type() != devices.TypeCPU {
					counter = backend
				} else {
					counter = devices.Fixed(0)
				}
			} else if f.check {
				return errors.New("--check requires a PJRT plugin, set with --plugin")
			}

			sel, err := connector.Resolve(cfg, counter, clusterenv.Detect())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printSelection(out, sel); err != nil {
				return err
			}
			if f.check {
				return checkTransfers(out, sel, backend)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "", "YAML file with the accelerator, devices, strategy and num_nodes.")
	flags.StringVar(&f.devices, "devices", "",
		`Devices to use: a count, "-1" for all devices, or a comma separated list of indices (e.g.: "0,2").`)
	flags.StringVar(&f.accelerator, "accelerator", "", "Accelerator to use: auto, cpu, gpu or cuda.")
	flags.StringVar(&f.strategy, "strategy", "", "Strategy: auto, ddp or single_device.")
	flags.IntVar(&f.numNodes, "num-nodes", 0, "Number of machines used.")
	flags.IntVar(&f.available, "available", 0, "Number of accelerator devices available, if --plugin is not set.")
	flags.StringVar(&f.plugin, "plugin", "", `PJRT plugin used to count the devices (e.g.: "cuda").`)
	flags.BoolVar(&f.check, "check", false, "Transfer a tensor to each selected device of --plugin and back.")
	cmd.MarkFlagsMutuallyExclusive("available", "plugin")
	return cmd
}

func (f *devicesFlags) toConfig(cmd *cobra.Command) (connector.Config, error) {
	var cfg connector.Config
	if f.config != "" {
		path, err := ExpandHome(f.config)
		if err != nil {
			return cfg, err
		}
		cfg, err = connector.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("devices") {
		cfg.Devices = f.devices
	}
	if flags.Changed("accelerator") {
		cfg.Accelerator = f.accelerator
	}
	if flags.Changed("strategy") {
		cfg.Strategy = f.strategy
	}
	if flags.Changed("num-nodes") {
		cfg.NumNodes = f.numNodes
	}
	return cfg, nil
}

// loadBackend loads the PJRT plugin, showing a spinner while it is loading.
func loadBackend(pluginName string) (*xla.Backend, error) {
	var backend *xla.Backend
	var err error
	spinnerErr := spinner.New().
		Title(fmt.Sprintf("Loading PJRT plugin %q….", pluginName)).
		Action(func() { backend, err = xla.New(pluginName) }).
		Run()
	if spinnerErr != nil {
		return nil, errors.Wrapf(spinnerErr, "failed to run spinner while loading plugin %q", pluginName)
	}
	return backend, err
}

func printSelection(w io.Writer, sel *connector.Selection) error {
	env := sel.Environment
	names := make([]string, 0, sel.NumDevices())
	for _, device := range sel.Devices() {
		names = append(names, device.String())
	}
	lines := []string{
		styleTitle.Render("Device selection"),
		fmt.Sprintf("accelerator:  %s", sel.Accelerator),
		fmt.Sprintf("device ids:   %v", sel.DeviceIDs),
		fmt.Sprintf("devices:      %s", strings.Join(names, ", ")),
		fmt.Sprintf("root device:  %s", sel.RootDevice()),
		fmt.Sprintf("strategy:     %s", sel.Strategy),
		fmt.Sprintf("nodes:        %d", sel.NumNodes),
		fmt.Sprintf("environment:  %s (world size %d, global rank %d, local rank %d, node rank %d, main %s:%d)",
			env.Name(), env.WorldSize(), env.GlobalRank(), env.LocalRank(), env.NodeRank(),
			env.MainAddress(), env.MainPort()),
	}
	mesh, err := sel.Mesh()
	if err != nil {
		return err
	}
	lines = append(lines, fmt.Sprintf("mesh:         %s", mesh))
	_, err = fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// checkTransfers uploads a tensor to each of the selected devices managed by the backend, and checks that it
// comes back unchanged.
func checkTransfers(w io.Writer, sel *connector.Selection, backend *xla.Backend) error {
	host := tensors.Rand(2, 3)
	for _, device := range sel.Devices() {
		if device.Type != backend.Type() || device.Index >= backend.NumDevices() {
			_, _ = fmt.Fprintf(w, "check %s: skipped, not managed by %s\n", device, backend)
			continue
		}
		array, err := backend.Upload(host, device)
		if err != nil {
			return err
		}
		back, err := array.ToHost()
		ReportError(array.Destroy())
		if err != nil {
			return err
		}
		if !tensors.AllClose(host, back, 0) {
			return errors.Errorf("check %s: tensor changed in the round trip, got %s", device, back)
		}
		_, _ = fmt.Fprintf(w, "check %s: ok\n", device)
	}
	return nil
}
