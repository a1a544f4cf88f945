package cli

import (
	"fmt"
	"os"

	"teslo/internal/config"
	"teslo/internal/logger"
	"teslo/internal/seed"
	"teslo/internal/sentry"
	"teslo/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "teslo",
	Short:         "Teslo shop backend with a realtime chat gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $TESLO_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Sync()
}

// setup loads the configuration and prepares logging and error reporting.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := sentry.Init(cfg.SentryDSN, cfg.Stage); err != nil {
		// Reporting is optional; keep running without it.
		logger.Warn("sentry disabled", zap.Error(err))
	}
	return cfg, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the database to the seed users and products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		data, err := seed.Load()
		if err != nil {
			return err
		}
		if err := seed.Run(store, data); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), seed.Done)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		// Opening the store migrates it.
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		logger.Info("schema up to date", zap.String("db", cfg.DBPath))
		return store.Close()
	},
}
