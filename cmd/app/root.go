package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/app"
	"github.com/pvzzle/stxwatch/internal/logging"
)

type globalFlags struct {
	LogLevel string
	Dev      bool
	JSON     bool
}

var (
	flags  globalFlags
	cfg    app.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "stxwatch",
	Short:         "Stacks marketplace and transaction tracking client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flags.LogLevel
		}
		if flags.Dev {
			cfg.LogDev = true
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogDev)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().BoolVar(&flags.Dev, "dev", false, "human-readable console logs")
	rootCmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listingsCmd, balanceCmd, readCmd)
	rootCmd.AddCommand(trackCmd, broadcastCmd)
	rootCmd.AddCommand(listAssetCmd, buyCmd, stakeCmd, unstakeCmd, claimCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and transaction watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), cfg, logger)
	},
}

func newCore() (*app.Core, error) {
	return app.NewCore(cfg, logger)
}

// printResult writes v as indented JSON when --json is set, text otherwise.
func printResult(v any, text string) error {
	if !flags.JSON {
		_, err := fmt.Fprintln(os.Stdout, text)
		return err
	}
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
