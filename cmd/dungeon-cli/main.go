package main

import (
	"fmt"
	"os"

	"github.com/cuongbtq/dungeon-forge/internal/bootstrap"
	"github.com/cuongbtq/dungeon-forge/internal/config"
	"github.com/cuongbtq/dungeon-forge/shared/logger"
	"github.com/spf13/cobra"
)

// cli holds the persistent flags shared by every subcommand
type cli struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	app := &cli{}
	rootCmd := &cobra.Command{
		Use:   "dungeon-cli",
		Short: "Generate donjon dungeons with encounter budgets",
		Long: `dungeon-cli submits a dungeon to the donjon generator, waits for it,
downloads the map and key images and assigns every room a difficulty
tier and XP budget for the party.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file path (default $"+config.PathEnv+")")
	rootCmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newGenerateCmd(app))
	rootCmd.AddCommand(newBudgetCmd(app))
	rootCmd.AddCommand(newNameCmd(app))
	return rootCmd
}

// load reads the configuration and builds the logger for one command run
func (a *cli) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, appLogger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
