package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"facelens/internal/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := config.NewDefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the effective config (file, environment and flags)",
	RunE: func(cmd *cobra.Command, args []string) error {
		problems := cfg.Validate()
		if len(problems) > 0 {
			return fmt.Errorf("invalid config %s:\n  %s", configPath, strings.Join(problems, "\n  "))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
