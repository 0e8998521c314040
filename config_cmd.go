package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/filecrate/filecrate-go/internal/config"
)

// newConfigCmd groups configuration inspection subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

// newConfigShowCmd prints the effective configuration after the full
// override chain has been applied.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if flagJSON {
				return printJSON(resolvedCfg)
			}

			return toml.NewEncoder(os.Stdout).Encode(resolvedCfg)
		},
	}
}

// newConfigPathCmd prints the config file path the resolver would read.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(config.DefaultConfigPath())

			return nil
		},
	}
}
