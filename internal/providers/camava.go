package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/brensch/camava/internal/httpx"
)

const reservationPath = "/reservation/camping/index.asp"

var errNoFacilitySelect = errors.New("parent_idno select not found on reservation page")

// CamavaConfig describes one park running the Camava reservation portal.
type CamavaConfig struct {
	Name              string // registry and storage key, defaults to "camava"
	BaseURL           string
	ParkName          string
	DefaultFacilityID int
	StateCode         string
}

// Camava implements Provider against the classic ASP Camava portal. It needs
// no login and the search response lists only available sites.
type Camava struct {
	cfg    CamavaConfig
	client *http.Client
	logger *slog.Logger

	// facilities is published once, after the whole list is built.
	facilities atomic.Pointer[[]Facility]
}

func NewCamava(cfg CamavaConfig) *Camava {
	if cfg.Name == "" {
		cfg.Name = "camava"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Camava{cfg: cfg, client: httpx.Default(), logger: slog.Default()}
}

func (c *Camava) Name() string { return c.cfg.Name }

func (c *Camava) ParkName() string { return c.cfg.ParkName }

func (c *Camava) StateCode() string { return c.cfg.StateCode }

func (c *Camava) DefaultFacilityID() int { return c.cfg.DefaultFacilityID }

// BookingURL is the search form. Camava has no per-site links.
func (c *Camava) BookingURL() string { return c.cfg.BaseURL + reservationPath }

// ListFacilities scrapes the facility dropdown from the reservation page. The
// first successful result is kept for the life of the provider.
func (c *Camava) ListFacilities(ctx context.Context, _ string) []Facility {
	if cached := c.facilities.Load(); cached != nil {
		return slices.Clone(*cached)
	}

	c.logger.Info("fetching campgrounds", slog.String("provider", c.Name()), slog.String("url", c.BookingURL()))
	list, err := c.fetchFacilities(ctx)
	if err != nil {
		c.logger.Error("facility catalog unavailable", slog.String("provider", c.Name()), slog.Any("err", err))
		return []Facility{}
	}
	if len(list) == 0 {
		c.logger.Warn("no campgrounds found on page", slog.String("provider", c.Name()))
	}

	// A concurrent caller may have published first; theirs wins.
	c.facilities.CompareAndSwap(nil, &list)
	return slices.Clone(*c.facilities.Load())
}

// RefreshFacilities refetches the catalog and replaces the cached copy. The
// cache is left untouched when the fetch fails.
func (c *Camava) RefreshFacilities(ctx context.Context) ([]Facility, error) {
	list, err := c.fetchFacilities(ctx)
	if err != nil {
		return nil, err
	}
	c.facilities.Store(&list)
	return slices.Clone(list), nil
}

func (c *Camava) fetchFacilities(ctx context.Context) ([]Facility, error) {
	body, err := c.do(ctx, c.client, http.MethodGet, c.BookingURL(), nil, "catalog")
	if err != nil {
		return nil, err
	}
	return parseFacilities(body, c.cfg.ParkName, c.logger)
}

func parseFacilities(body []byte, parkName string, logger *slog.Logger) ([]Facility, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing reservation page: %w", err)
	}
	sel := doc.Find(`select[name="parent_idno"]`).First()
	if sel.Length() == 0 {
		return nil, errNoFacilitySelect
	}

	out := []Facility{}
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		value = strings.TrimSpace(value)
		name := strings.TrimSpace(opt.Text())
		if value == "" || name == "" {
			return
		}
		id, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		logger.Info("found campground", slog.String("name", name), slog.Int("id", id))
		out = append(out, Facility{ID: id, Name: name, ParkName: parkName})
	})
	return out, nil
}

// facilityName looks the id up in the catalog, falling back to the park name.
func (c *Camava) facilityName(ctx context.Context, facilityID int) string {
	for _, f := range c.ListFacilities(ctx, "") {
		if f.ID == facilityID {
			return f.Name
		}
	}
	return c.cfg.ParkName
}

// GetCampsites runs one availability search. Every call gets a new session.
func (c *Camava) GetCampsites(ctx context.Context, facilityID int, start, end time.Time) ([]AvailableCampsite, error) {
	if !calendarDay(end).After(calendarDay(start)) {
		return nil, ErrInvalidDateRange
	}
	name := c.facilityName(ctx, facilityID)
	c.logger.Info("searching campground",
		slog.String("provider", c.Name()),
		slog.String("campground", name),
		slog.String("start", calendarDay(start).Format("2006-01-02")),
		slog.String("end", calendarDay(end).Format("2006-01-02")))

	markup, err := c.fetchAvailabilityMarkup(ctx, facilityID, start, end)
	if err != nil {
		return nil, err
	}
	frags, err := extractFragments(markup, c.logger)
	if err != nil {
		return nil, err
	}

	sc := searchContext{
		FacilityID:   facilityID,
		FacilityName: name,
		Start:        start,
		End:          end,
		BookingURL:   c.BookingURL(),
	}
	out := make([]AvailableCampsite, 0, len(frags))
	for _, f := range frags {
		out = append(out, assembleCampsite(f, sc))
	}
	c.logger.Info("found available campsites", slog.String("campground", name), slog.Int("count", len(out)))
	return out, nil
}

// ListCampsiteUnits always fails: Camava only exposes sites through a
// date-range search.
func (c *Camava) ListCampsiteUnits(_ context.Context) error {
	return fmt.Errorf("%w: %s cannot list campsite units; search a facility with check-in and check-out dates instead", ErrUnsupported, c.Name())
}

// do performs one request and returns the body of a 200 response. form, when
// non-nil, is sent url-encoded.
func (c *Camava) do(ctx context.Context, client *http.Client, method, target string, form url.Values, op string) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpx.SpoofChromeHeaders(req)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", c.cfg.BaseURL)
		req.Header.Set("Referer", target)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", op, method, err)
	}
	b, rerr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if rerr != nil {
		return nil, fmt.Errorf("%s read body failed: %w", op, rerr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: clipBody(b)}
	}
	return b, nil
}
