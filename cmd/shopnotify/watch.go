package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/shopnotify/internal/app"
	appsync "github.com/nhle/shopnotify/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the live notification viewer (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

func runWatch(ctx context.Context) error {
	svc, err := newServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	in := svc.newInbox()
	resyncer := appsync.New(in, cfg.ResyncInterval(), logger.Logger)
	defer resyncer.Stop()
	defer in.Disconnect()

	m := app.New(app.Deps{
		Inbox:    in,
		Resyncer: resyncer,
		Tokens:   svc.tokens,
		Logger:   logger.Logger,
	})

	logger.Info("starting viewer", "api", cfg.API.BaseURL)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
