package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/shopnotify/internal/credential"
	"github.com/nhle/shopnotify/internal/store"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the access token and clear the offline cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.NewKeyringTokenSource().Clear(); err != nil {
			return err
		}

		if cfg.Cache.Path != "" {
			cache, err := store.NewSQLiteStore(cfg.Cache.Path)
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer cache.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := cache.Clear(ctx); err != nil {
				return err
			}
		}

		logger.Info("logged out")
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
