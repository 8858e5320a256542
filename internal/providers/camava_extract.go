package providers

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// siteNode is the part of a parsed element the extractor reads.
type siteNode interface {
	Attr(name string) (string, bool)
	Text() string
}

type selectionNode struct{ sel *goquery.Selection }

func (n selectionNode) Attr(name string) (string, bool) { return n.sel.Attr(name) }

// Text concatenates every descendant text node, without separators.
func (n selectionNode) Text() string { return n.sel.Text() }

// RawSiteFragment holds the fields read from one site block of a search
// response.
type RawSiteFragment struct {
	RawID     string
	SiteID    int
	Label     string
	Price     float64
	Occupancy int
	Type      SiteType
	Location  *Location
}

var (
	siteLabelPattern = regexp.MustCompile(`(?i)Site\s+(\d+[A-Z]?)`)
	useFeePattern    = regexp.MustCompile(`Use Fee:\s*\$(\d+(?:\.\d{2})?)`)
	personsPattern   = regexp.MustCompile(`Persons:\s*(\d+)`)
)

const (
	defaultPrice     = 0.0
	defaultOccupancy = 1
)

// extractFragments returns one fragment per distinct data-id in document
// order. A response without site blocks yields an empty slice.
func extractFragments(markup string, logger *slog.Logger) ([]RawSiteFragment, error) {
	nodes, err := parseSiteNodes(markup)
	if err != nil {
		return nil, err
	}
	return collectFragments(nodes, logger), nil
}

func parseSiteNodes(markup string) ([]siteNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing availability HTML: %w", err)
	}
	var nodes []siteNode
	doc.Find("div[data-id]").Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes, nil
}

// collectFragments dedupes by data-id, keeping the first occurrence. A
// fragment that fails extraction is logged and skipped; the rest continue.
func collectFragments(nodes []siteNode, logger *slog.Logger) []RawSiteFragment {
	out := []RawSiteFragment{}
	if len(nodes) == 0 {
		logger.Info("no available sites found for these dates")
		return out
	}
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		rawID, _ := n.Attr("data-id")
		if seen[rawID] {
			continue
		}
		seen[rawID] = true

		frag, err := extractFragment(n, rawID, logger)
		if err != nil {
			logger.Warn("error extracting site", slog.String("site", rawID), slog.Any("err", err))
			continue
		}
		out = append(out, frag)
	}
	return out
}

// extractFragment fails only when the site id is not an integer. Every other
// field falls back to its default.
func extractFragment(n siteNode, rawID string, logger *slog.Logger) (RawSiteFragment, error) {
	siteID, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil {
		return RawSiteFragment{}, fmt.Errorf("site id %q is not an integer", rawID)
	}
	text := n.Text()

	label, ok := tryParse(text, siteLabelPattern, func(s string) (string, error) { return "Site " + s, nil })
	price, priceOK := tryParse(text, useFeePattern, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
	persons, personsOK := tryParse(text, personsPattern, strconv.Atoi)

	loc, malformed := parseLocation(n)
	if malformed {
		logger.Debug("ignoring malformed coordinates", slog.String("site", rawID))
	}

	return RawSiteFragment{
		RawID:     rawID,
		SiteID:    siteID,
		Label:     orDefault(label, ok, "Site "+rawID),
		Price:     orDefault(price, priceOK, defaultPrice),
		Occupancy: orDefault(persons, personsOK, defaultOccupancy),
		Type:      classifySiteType(text),
		Location:  loc,
	}, nil
}

// tryParse applies re to text and converts the first capture group. It never
// fails; a missing match or a failed conversion reports ok=false.
func tryParse[T any](text string, re *regexp.Regexp, conv func(string) (T, error)) (T, bool) {
	var zero T
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return zero, false
	}
	v, err := conv(m[1])
	if err != nil {
		return zero, false
	}
	return v, true
}

func orDefault[T any](v T, ok bool, def T) T {
	if ok {
		return v
	}
	return def
}

// classifySiteType checks RV, then tent, then group.
func classifySiteType(text string) SiteType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "rv"):
		return SiteRV
	case strings.Contains(lower, "tent"):
		return SiteTent
	case strings.Contains(lower, "group"):
		return SiteGroup
	default:
		return SiteStandard
	}
}

// parseLocation reads data-lat/data-lng. Both must parse or the location is
// omitted. malformed reports attributes that were present but unusable.
func parseLocation(n siteNode) (loc *Location, malformed bool) {
	latRaw, _ := n.Attr("data-lat")
	lngRaw, _ := n.Attr("data-lng")
	latRaw, lngRaw = strings.TrimSpace(latRaw), strings.TrimSpace(lngRaw)
	if latRaw == "" || lngRaw == "" {
		return nil, false
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, true
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil {
		return nil, true
	}
	return &Location{Latitude: lat, Longitude: lng}, false
}
