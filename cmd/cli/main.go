package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/config"
)

// Global configuration instance
var cfg *config.Config

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if backend, err := cmd.Flags().GetString("backend"); err == nil && len(backend) > 0 {
		if err := cfg.SetLoginServer(backend); err != nil {
			return fmt.Errorf("failed to set backend: %w", err)
		}
	}

	if ephemeral, err := cmd.Flags().GetBool("ephemeral"); err == nil && ephemeral {
		cfg.Sessions.Ephemeral = true
	}

	// Cookie sessions of the local web app only need to outlive the process
	if !cfg.HasCustomSecret() {
		cfg.Secret = common.GenerateSessionSecret()
	}

	return nil
}

var rootCmd = &cobra.Command{
	Use:   "visarisk",
	Short: "Visarisk Agent - your Visarisk session and dashboard on this device",
	Long: `The Visarisk agent signs you in to the Visarisk backend, keeps the session
on this device and serves the Visarisk dashboard at a local address.

Run without a command to start the local web application.`,
	PersistentPreRunE: preRunConfigE,
	SilenceUsage:      true,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default is ./config.yaml or ~/.config/visarisk/config.yaml)")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "Keep the session in memory only")
	rootCmd.PersistentFlags().String("backend", "", "Override the backend URL (e.g., http://127.0.0.1:8000)")
}

func GetCommandOptions() *cobra.Command {
	return rootCmd
}
