package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"facelens/internal/config"
	log "facelens/internal/log"
)

const Version = "0.1.0"

var (
	configPath  string
	logLevel    string
	databaseURL string

	// cfg is loaded once per invocation before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "facelens",
	Short:        "Live face, age, gender and emotion overlay for a camera feed",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		loaded.ApplyEnv()

		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if cmd.Flags().Changed("database-url") {
			loaded.Journal.DatabaseURL = databaseURL
		}

		log.Init(loaded.LogLevel)
		log.Debug("config loaded", "path", configPath, "source", loaded.ActiveSource, "backend", loaded.Analyzer.Backend)

		cfg = loaded
		return nil
	},
	RunE: runLive,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string for the session journal")

	addRunFlags(rootCmd)
}
