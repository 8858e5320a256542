package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/brensch/camava/internal/db"
	"github.com/brensch/camava/internal/providers"
	"github.com/brensch/camava/internal/search"
	"github.com/spf13/cobra"
)

type refresher interface {
	RefreshFacilities(ctx context.Context) ([]providers.Facility, error)
}

func newFacilitiesCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "facilities [hint]",
		Short: "List the facilities a provider offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.providerFor()
			if err != nil {
				return err
			}
			hint := ""
			if len(args) == 1 {
				hint = args[0]
			}

			var list []providers.Facility
			if r, ok := p.(refresher); ok && refresh {
				if list, err = r.RefreshFacilities(cmd.Context()); err != nil {
					return fmt.Errorf("refresh facilities: %w", err)
				}
			} else {
				list = p.ListFacilities(cmd.Context(), hint)
			}
			if len(list) == 0 {
				list = a.storedFacilities(cmd.Context(), p.Name())
			}
			return writeFacilities(cmd.OutOrStdout(), search.FilterFacilities(list, hint))
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refetch the catalog instead of using the cached copy")
	return cmd
}

// storedFacilities falls back to the catalog saved by the last watch run.
func (a *app) storedFacilities(ctx context.Context, provider string) []providers.Facility {
	if !fileExists(a.cfg.DBPath) {
		return nil
	}
	store, err := db.OpenReadOnly(a.cfg.DBPath)
	if err != nil {
		slog.Warn("open db failed", slog.Any("err", err))
		return nil
	}
	defer store.Close()
	list, err := store.ListFacilities(ctx, provider, "")
	if err != nil {
		slog.Warn("list stored facilities failed", slog.Any("err", err))
		return nil
	}
	if len(list) > 0 {
		slog.Info("live catalog unavailable; showing stored facilities", slog.Int("count", len(list)))
	}
	return list
}

func writeFacilities(w io.Writer, list []providers.Facility) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No facilities found.")
		return err
	}
	for _, f := range list {
		if _, err := fmt.Fprintf(w, "%4d  %s\n", f.ID, f.Name); err != nil {
			return err
		}
	}
	return nil
}
