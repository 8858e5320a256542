package providers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brensch/camava/internal/httpx"
)

// The portal reads arrive_date unpadded and depart_date zero-padded. Keep
// both layouts as they are; this pairing is what the live form submits.
const (
	arriveDateLayout = "1/2/2006"
	departDateLayout = "01/02/2006"
)

// fetchAvailabilityMarkup opens a session with a GET (the portal sets its ASP
// session cookie there) and posts the search form on the same session. The
// body is returned uninterpreted.
func (c *Camava) fetchAvailabilityMarkup(ctx context.Context, facilityID int, start, end time.Time) (string, error) {
	if !calendarDay(end).After(calendarDay(start)) {
		return "", ErrInvalidDateRange
	}
	target := c.BookingURL()
	session := httpx.NewSession(c.client)

	c.logger.Debug("getting session", slog.String("url", target))
	if _, err := c.do(ctx, session, http.MethodGet, target, nil, "session"); err != nil {
		return "", err
	}

	c.logger.Debug("posting search", slog.String("url", target), slog.Int("facility", facilityID))
	body, err := c.do(ctx, session, http.MethodPost, target, searchForm(facilityID, start, end), "search")
	if err != nil {
		return "", err
	}
	c.logger.Debug("got search response", slog.Int("bytes", len(body)))
	return string(body), nil
}

// searchForm builds the fields the reservation form posts. Values other than
// the facility and dates mirror the form's own defaults.
func searchForm(facilityID int, start, end time.Time) url.Values {
	arrive := calendarDay(start)
	depart := calendarDay(end)
	return url.Values{
		"reserve_type":           {"camping"},
		"parent_idno":            {strconv.Itoa(facilityID)},
		"arrive_date":            {arrive.Format(arriveDateLayout)},
		"res_length":             {strconv.Itoa(nightsBetween(arrive, depart))},
		"depart_date":            {depart.Format(departDateLayout)},
		"rv_length":              {"0"},
		"rv_width":               {"0"},
		"site_type_idno":         {""},
		"max_consecutive_nights": {"14"},
		"min_consecutive_nights": {"1"},
	}
}
