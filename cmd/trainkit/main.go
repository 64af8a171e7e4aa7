// trainkit is a command-line tool to create new trainkit projects and to check which devices a training job will
// use.
//
// Commands:
//
//	trainkit init app [name]
//	trainkit init component [name]
//	trainkit devices [--devices=SPEC] [--accelerator=A] [--strategy=S] [--config=FILE] [--available=N | --plugin=NAME]
//
// If the name of a new project is not given, it is asked interactively.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/trainkit/devices"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// Exit codes.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitMisconfiguration indicates an invalid accelerator, devices or strategy selection.
	ExitMisconfiguration = 2

	// ExitAborted indicates the user aborted an interactive prompt.
	ExitAborted = 3
)

func main() {
	klog.InitFlags(nil)
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, ErrUserAborted) {
			_, _ = fmt.Fprintln(os.Stderr, styleError.Render(fmt.Sprintf("Error: %v", err)))
			klog.V(1).Infof("%+v", err)
		}
		os.Exit(exitCodeFromError(err))
	}
}

// newRootCommand creates the cobra command tree. The klog flags (e.g.: --v=1) are made available to all commands.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trainkit",
		Short:         "Create trainkit projects and inspect device selections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	cmd.AddCommand(initCmd())
	cmd.AddCommand(devicesCmd())
	return cmd
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUserAborted):
		return ExitAborted
	case devices.IsMisconfiguration(err):
		return ExitMisconfiguration
	default:
		return ExitGeneralError
	}
}
