package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brensch/camava/internal/providers"
	"golang.org/x/time/rate"
)

// Lookup describes one GetCampsites call made by a campaign.
type Lookup struct {
	Provider   string
	FacilityID int
	Window     providers.SearchWindow
	CheckedAt  time.Time
	Count      int
	Err        error
}

// LookupRecorder receives every lookup, successful or not.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, l Lookup) error
}

// Campaign searches every facility for every window.
type Campaign struct {
	Provider   providers.Provider
	Facilities []int // empty means the provider default
	Windows    []providers.SearchWindow
	Limiter    *rate.Limiter  // optional
	Recorder   LookupRecorder // optional
	Logger     *slog.Logger   // optional
}

type Result struct {
	Campsites []providers.AvailableCampsite
	Lookups   int
	Failures  int
	// Err is set when the campaign stopped early because ctx ended.
	Err error
}

// Run performs the lookups in order. A failed lookup is logged and counted
// and the campaign moves on to the next one.
func (c *Campaign) Run(ctx context.Context) Result {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	facilities := c.Facilities
	if len(facilities) == 0 {
		facilities = []int{c.Provider.DefaultFacilityID()}
	}

	res := Result{Campsites: []providers.AvailableCampsite{}}
	for _, fid := range facilities {
		for _, w := range c.Windows {
			if c.Limiter != nil {
				if err := c.Limiter.Wait(ctx); err != nil {
					res.Err = err
					return res
				}
			}
			if err := ctx.Err(); err != nil {
				res.Err = err
				return res
			}

			sites, err := c.Provider.GetCampsites(ctx, fid, w.Start, w.End)
			res.Lookups++
			l := Lookup{Provider: c.Provider.Name(), FacilityID: fid, Window: w, CheckedAt: time.Now(), Count: len(sites), Err: err}
			if c.Recorder != nil {
				if rerr := c.Recorder.RecordLookup(ctx, l); rerr != nil {
					logger.Warn("record lookup failed", slog.Any("err", rerr))
				}
			}
			if err != nil {
				res.Failures++
				logger.Error("error searching campground",
					slog.String("provider", c.Provider.Name()),
					slog.Int("facility", fid),
					slog.String("window", w.String()),
					slog.Any("err", err))
				continue
			}
			res.Campsites = append(res.Campsites, sites...)
		}
	}
	return res
}

// WindowsBetween returns every stay of the given length that starts on a day
// in [start, end) and checks out on or before end.
func WindowsBetween(start, end time.Time, nights int) ([]providers.SearchWindow, error) {
	if nights < 1 {
		return nil, fmt.Errorf("nights must be at least 1, got %d", nights)
	}
	first := day(start)
	last := day(end)
	if !last.After(first) {
		return nil, providers.ErrInvalidDateRange
	}
	var out []providers.SearchWindow
	for d := first; !d.AddDate(0, 0, nights).After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, providers.SearchWindow{Start: d, End: d.AddDate(0, 0, nights)})
	}
	return out, nil
}

// FilterFacilities keeps the facilities whose name contains hint, ignoring
// case. An empty hint keeps everything.
func FilterFacilities(list []providers.Facility, hint string) []providers.Facility {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return list
	}
	out := []providers.Facility{}
	for _, f := range list {
		if strings.Contains(strings.ToLower(f.Name), hint) || strings.Contains(strings.ToLower(f.ParkName), hint) {
			out = append(out, f)
		}
	}
	return out
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
