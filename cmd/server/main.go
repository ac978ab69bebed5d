package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/eddyoasis/procurement-workflow/internal/config"
	"github.com/eddyoasis/procurement-workflow/pkg/utils"
)

const defaultConfigPath = "configs/config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "procurement",
	Short: "Procurement requisition approval workflow",
	Long: `Routes purchase requisitions through cost center, department head,
CFO and CEO approvals, then issues the purchase order.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(loadDotEnv)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file (yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(thresholdCmd())
	rootCmd.AddCommand(rateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadDotEnv reads .env into the environment without overriding variables
// that are already set.
func loadDotEnv() {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
}

// loadConfig loads the config file. A missing default file falls back to
// defaults and environment variables.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
}
