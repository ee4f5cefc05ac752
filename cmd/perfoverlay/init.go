package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"perfoverlay/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .perfoverlay workspace with a config template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			if err := config.InitWorkspace(abs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", filepath.Join(abs, config.WorkspaceDirName))
			return nil
		},
	}
}
