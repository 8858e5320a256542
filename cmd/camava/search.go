package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brensch/camava/internal/providers"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type searchFlags struct {
	facility int
	start    string
	end      string
	nights   int
	format   string
}

func newSearchCmd(a *app) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find campsites available for a whole stay",
		Example: `  camava search --start 2026-01-10 --nights 2
  camava search --facility 1 --start 2026-01-10 --end 2026-01-12 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := OutputFormat(strings.ToLower(f.format))
			if format != FormatText && format != FormatJSON {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", f.format)
			}
			start, end, err := parseStay(f.start, f.end, f.nights)
			if err != nil {
				return err
			}
			p, err := a.providerFor()
			if err != nil {
				return err
			}
			facility := f.facility
			if facility == 0 {
				facility = p.DefaultFacilityID()
			}

			sites, err := p.GetCampsites(cmd.Context(), facility, start, end)
			if err != nil {
				return fmt.Errorf("search facility %d: %w", facility, err)
			}
			return WriteSearch(cmd.OutOrStdout(), &SearchResult{
				Provider:   p.Name(),
				FacilityID: facility,
				Start:      start,
				End:        end,
				BookingURL: p.BookingURL(),
				Sites:      sites,
			}, format)
		},
	}
	cmd.Flags().IntVar(&f.facility, "facility", 0, "Facility id (default from config)")
	cmd.Flags().StringVar(&f.start, "start", "", "Check-in date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&f.end, "end", "", "Check-out date, YYYY-MM-DD")
	cmd.Flags().IntVar(&f.nights, "nights", 0, "Number of nights, instead of --end")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("start")
	cmd.MarkFlagsMutuallyExclusive("end", "nights")
	return cmd
}

// parseStay turns the date flags into a check-in and check-out date.
func parseStay(startStr, endStr string, nights int) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	var end time.Time
	switch {
	case endStr != "":
		if end, err = time.Parse(dateLayout, endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
	case nights > 0:
		end = start.AddDate(0, 0, nights)
	default:
		return time.Time{}, time.Time{}, errors.New("one of --end or --nights is required")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, providers.ErrInvalidDateRange
	}
	return start, end, nil
}

func newUnitsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List campsite units outside of a search",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.providerFor()
			if err != nil {
				return err
			}
			return p.ListCampsiteUnits(cmd.Context())
		},
	}
}
