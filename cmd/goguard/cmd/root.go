package cmd

import (
	"os"

	"github.com/MrEthical07/goGuard/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "goguard",
	Short: "goGuard locks protected applications behind a challenge",
	Long: `goGuard watches the foreground application and, when a protected app comes to the
front without a recent successful authentication, suspends it and asks the device agent
for a challenge.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the environment is read")
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath, envFile)
}
