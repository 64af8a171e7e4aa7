package main

import (
	"fmt"

	"github.com/gomlx/trainkit/scaffold"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var destDir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new trainkit app or component from a template",
	}
	cmd.PersistentFlags().StringVar(&destDir, "dir", ".", "Directory where the new project is created.")
	for _, kind := range scaffold.KindValues() {
		cmd.AddCommand(initKindCmd(kind, &destDir))
	}
	return cmd
}

func initKindCmd(kind scaffold.Kind, destDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s [name]", kind),
		Short: fmt.Sprintf("Create a new trainkit %s", kind),
		Long: fmt.Sprintf("Create a new trainkit %s under --dir. The name can only contain letters (a-z), "+
			"numbers (0-9) and '-'. If not given, it is asked interactively.", kind),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ExpandHome(*destDir)
			if err != nil {
				return err
			}
			var name string
			if len(args) > 0 {
				name, err = scaffold.ValidateName(args[0])
			} else {
				name, err = PromptName(kind)
			}
			if errors.Is(err, ErrUserAborted) {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), styleWarning.Render(fmt.Sprintf("%s init aborted!", kind)))
				return err
			}
			if err != nil {
				return err
			}

			result, err := scaffold.Generate(scaffold.Options{
				Kind:    kind,
				Name:    name,
				DestDir: dir,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderBox(scaffold.Instructions(kind, result, name)))
			return nil
		},
	}
}
