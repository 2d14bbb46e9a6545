// Package commands provides the CLI commands for the nbkit console shell.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nbkit/nbkit/internal/config"
	"github.com/nbkit/nbkit/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	serverURL string
	token     string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "nbkit",
	Short: "nbkit - notebook kernel client",
	Long: `nbkit is a console client for notebook execution kernels. It opens
notebook documents from a notebook server, runs their cells against a remote
kernel, and renders the streamed results.

Run 'nbkit exec <notebook>' to execute a notebook headlessly, or
'nbkit kernels' to inspect running kernels.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Notebook server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "API token")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("nbkit %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(kernelsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(wd)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if token != "" {
		cfg.Token = token
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Pretty: true})
	return cfg, nil
}
