// Package config implements the config command.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/ddharvester/cmd/common"
)

// Command returns the config command, which prints the effective
// configuration as YAML with secrets masked.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			out, err := yaml.Marshal(deps.Config.Redacted())
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
