package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/observability"
	"github.com/nhle/shopnotify/internal/theme"
)

var (
	cfgFile string
	cfg     *model.AppConfig
	logger  *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shopnotify",
	Short: "Storefront notifications in your terminal",
	Long: `shopnotify shows your storefront notifications live, keeps the
unread counters in sync with the server and works offline from a local cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ~/.config/shopnotify/config.yaml)")
}

func initConfig() error {
	if cfgFile == "" {
		cfgFile = model.DefaultConfigPath()
	}

	loaded, err := model.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := observability.NewLogger("shopnotify", cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = l
	theme.Apply(cfg.Display.Theme)

	logger.Debug("config loaded", "path", cfgFile)
	return nil
}

func main() {
	Execute()
}
