package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/simonhull/hatch/internal/config"
	"github.com/simonhull/hatch/pkg/output"
	"github.com/spf13/cobra"
)

func configCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hatch configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a hatch.yml with the current settings",
		Annotations: map[string]string{
			annotationCreatesConfig: "true",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := e.configPath
			if path == "" {
				path = config.DefaultFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.Save(path, *e.cfg); err != nil {
				return err
			}
			output.Success("Wrote " + path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
