package main

import (
	"fmt"
	"log/slog"

	"github.com/brensch/camava/internal/db"
	"github.com/brensch/camava/internal/manager"
	"github.com/brensch/camava/internal/notify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newWatchCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for newly opened sites on a schedule and notify",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.providerFor()
			if err != nil {
				return err
			}
			store, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			var n notify.Notifier = notify.NewLog(slog.Default())
			if a.cfg.Discord.Token != "" {
				d, err := notify.NewDiscord(a.cfg.Discord.Token, a.cfg.Discord.ChannelID)
				if err != nil {
					return err
				}
				n = d
			} else {
				slog.Info("no discord token configured; notifications go to the log")
			}

			mgr := manager.NewManager(store, p, n, manager.Options{
				Facilities: a.cfg.Search.Facilities,
				Nights:     a.cfg.Search.Nights,
				Horizon:    a.cfg.Search.HorizonDays,
				Schedule:   a.cfg.Watch.Schedule,
				Location:   a.cfg.Location(),
				Rate:       rate.Limit(a.cfg.Search.RequestsPerSecond),
			})
			if once {
				sum, err := mgr.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d lookups, %d failed, %d sites open, %d new\n",
					sum.RunID, sum.Lookups, sum.Failures, sum.Found, sum.NewlyOpen)
				return err
			}
			return mgr.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	return cmd
}
