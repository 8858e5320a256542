package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brensch/camava/internal/providers"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const maxListed = 15

var typeOrder = []providers.SiteType{providers.SiteStandard, providers.SiteRV, providers.SiteTent, providers.SiteGroup}

type SearchResult struct {
	Provider   string
	FacilityID int
	Start      time.Time
	End        time.Time
	BookingURL string
	Sites      []providers.AvailableCampsite
}

type siteJSON struct {
	CampsiteID   int      `json:"campsite_id"`
	SiteName     string   `json:"site_name"`
	Type         string   `json:"type"`
	Price        float64  `json:"price"`
	MaxOccupancy int      `json:"max_occupancy"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	CheckIn      string   `json:"check_in"`
	CheckOut     string   `json:"check_out"`
	Nights       int      `json:"nights"`
	Facility     string   `json:"facility"`
	FacilityID   int      `json:"facility_id"`
	BookingURL   string   `json:"booking_url"`
}

type searchJSON struct {
	Provider   string         `json:"provider"`
	FacilityID int            `json:"facility_id"`
	CheckIn    string         `json:"check_in"`
	CheckOut   string         `json:"check_out"`
	Count      int            `json:"count"`
	ByType     map[string]int `json:"by_type"`
	BookingURL string         `json:"booking_url"`
	Sites      []siteJSON     `json:"sites"`
}

// WriteSearch writes the result in the specified format
func WriteSearch(w io.Writer, r *SearchResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeSearchJSON(w, r)
	case FormatText:
		return writeSearchText(w, r)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func countByType(sites []providers.AvailableCampsite) map[providers.SiteType]int {
	out := map[providers.SiteType]int{}
	for _, s := range sites {
		out[s.Type]++
	}
	return out
}

func writeSearchJSON(w io.Writer, r *SearchResult) error {
	out := searchJSON{
		Provider:   r.Provider,
		FacilityID: r.FacilityID,
		CheckIn:    r.Start.Format(dateLayout),
		CheckOut:   r.End.Format(dateLayout),
		Count:      len(r.Sites),
		ByType:     map[string]int{},
		BookingURL: r.BookingURL,
		Sites:      make([]siteJSON, 0, len(r.Sites)),
	}
	for t, n := range countByType(r.Sites) {
		out.ByType[string(t)] = n
	}
	for _, s := range r.Sites {
		sj := siteJSON{
			CampsiteID:   s.CampsiteID,
			SiteName:     s.SiteName,
			Type:         string(s.Type),
			Price:        s.Price,
			MaxOccupancy: s.Occupancy.Max,
			CheckIn:      s.BookingDate.Format(dateLayout),
			CheckOut:     s.BookingEndDate.Format(dateLayout),
			Nights:       s.BookingNights,
			Facility:     s.FacilityName,
			FacilityID:   s.FacilityID,
			BookingURL:   s.BookingURL,
		}
		if s.Location != nil {
			lat, lng := s.Location.Latitude, s.Location.Longitude
			sj.Latitude, sj.Longitude = &lat, &lng
		}
		out.Sites = append(out.Sites, sj)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func writeSearchText(w io.Writer, r *SearchResult) error {
	nights := providers.SearchWindow{Start: r.Start, End: r.End}.Nights()
	name := fmt.Sprintf("facility %d", r.FacilityID)
	if len(r.Sites) > 0 {
		name = fmt.Sprintf("%s (facility %d)", r.Sites[0].FacilityName, r.FacilityID)
	}
	fmt.Fprintf(w, "%s, %s to %s (%d nights)\n", name, r.Start.Format("Mon Jan 2 2006"), r.End.Format("Mon Jan 2 2006"), nights)

	if len(r.Sites) == 0 {
		fmt.Fprintln(w, "No available sites found.")
		_, err := fmt.Fprintf(w, "Book at: %s\n", r.BookingURL)
		return err
	}

	fmt.Fprintf(w, "Found %d available sites\n", len(r.Sites))
	counts := countByType(r.Sites)
	for _, t := range typeOrder {
		if counts[t] > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", t+":", counts[t])
		}
	}

	fmt.Fprintln(w)
	for i, s := range r.Sites {
		if i == maxListed {
			fmt.Fprintf(w, "  ... and %d more\n", len(r.Sites)-maxListed)
			break
		}
		price := "price unknown"
		if s.Price > 0 {
			price = fmt.Sprintf("$%.2f", s.Price)
		}
		fmt.Fprintf(w, "  %-10s %-8s %-13s up to %d people\n", s.SiteName, s.Type, price, s.Occupancy.Max)
	}
	fmt.Fprintln(w)
	_, err := fmt.Fprintf(w, "Book at: %s\n", r.BookingURL)
	return err
}
