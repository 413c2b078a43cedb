package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/timebank/internal/app"
	"github.com/dukerupert/timebank/internal/config"
	"github.com/dukerupert/timebank/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timebank",
	Short: "Family screen-time bank",
	Long: `timebank keeps a student's screen-time balance: study earns minutes,
games and videos spend them, and parents approve, reject and penalize.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv(config.PathEnv, configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (overrides $"+config.PathEnv+")")
	rootCmd.AddCommand(envCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads configuration and sets up the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.Log.Level, cfg.Log.Format), nil
}

// openApp loads configuration and assembles the application.
func openApp() (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(*cfg, logger)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		usage, err := config.Usage()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), usage)
		return nil
	},
}
