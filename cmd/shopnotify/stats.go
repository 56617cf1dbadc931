package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/shopnotify/internal/model"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the server's notification counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout())
		defer cancel()

		stats, err := svc.client.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}

		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

// printStats renders the totals followed by one row per known type.
func printStats(w io.Writer, s model.Stats) {
	t := table.New().Headers("", "count")
	t.Row("total", strconv.Itoa(s.Total))
	t.Row("unread", strconv.Itoa(s.Unread))
	t.Row("read", strconv.Itoa(s.Read))
	for _, typ := range model.NotificationTypes {
		if c := s.ByType[typ]; c > 0 {
			t.Row(string(typ), strconv.Itoa(c))
		}
	}
	fmt.Fprintln(w, t.Render())
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print raw JSON")
	rootCmd.AddCommand(statsCmd)
}
