package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// SiteType classifies a campsite by the equipment it is offered for.
type SiteType string

const (
	SiteStandard SiteType = "Standard"
	SiteRV       SiteType = "RV"
	SiteTent     SiteType = "Tent"
	SiteGroup    SiteType = "Group"
)

const (
	StatusAvailable = "Available"
	UseOvernight    = "Overnight"
)

// Facility is a park or campground that can be searched.
type Facility struct {
	ID       int
	Name     string
	ParkName string
}

type Location struct {
	Latitude  float64
	Longitude float64
}

// Occupancy is an inclusive person count range.
type Occupancy struct {
	Min int
	Max int
}

// AvailableCampsite is one bookable campsite for a stay.
type AvailableCampsite struct {
	CampsiteID int
	SiteName   string
	LoopName   string
	Type       SiteType
	Price      float64 // 0 if unknown
	Occupancy  Occupancy
	UseType    string
	Location   *Location // nil when the site does not publish coordinates

	BookingDate    time.Time
	BookingEndDate time.Time // exclusive
	BookingNights  int

	AvailabilityStatus string
	RecreationArea     string
	RecreationAreaID   int
	FacilityName       string
	FacilityID         int
	BookingURL         string
}

// SearchWindow is a stay from Start (check-in) to End (check-out, exclusive).
type SearchWindow struct {
	Start time.Time
	End   time.Time
}

func (w SearchWindow) Nights() int { return nightsBetween(w.Start, w.End) }

func (w SearchWindow) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

var (
	// ErrInvalidDateRange is returned when check-out is not after check-in.
	ErrInvalidDateRange = errors.New("check-out date must be after check-in date")
	// ErrUnsupported marks a capability the upstream site does not have.
	ErrUnsupported = errors.New("operation not supported by provider")
)

// StatusError is returned when the reservation site answers with a non-200
// status during a search.
type StatusError struct {
	Op     string // "session" or "search"
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("camava %s request failed: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("camava %s request failed: status %d; body: %s", e.Op, e.Status, e.Body)
}

type Provider interface {
	Name() string
	// ListFacilities returns every facility the provider offers. It never
	// fails; an unreachable catalog yields an empty list. searchHint is
	// accepted for interface compatibility and does not narrow the result.
	ListFacilities(ctx context.Context, searchHint string) []Facility
	// GetCampsites returns the campsites available for the whole stay.
	GetCampsites(ctx context.Context, facilityID int, start, end time.Time) ([]AvailableCampsite, error)
	// ListCampsiteUnits enumerates units outside a search. Providers that
	// cannot do this return an error wrapping ErrUnsupported.
	ListCampsiteUnits(ctx context.Context) error
	// DefaultFacilityID is searched when the caller names no facility.
	DefaultFacilityID() int
	// BookingURL is the page a human uses to book.
	BookingURL() string
}

type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry { return &Registry{providers: map[string]Provider{}} }

func (r *Registry) Register(name string, p Provider) { r.providers[name] = p }

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// calendarDay returns the calendar date of t, in t's own location, as
// midnight UTC. Callers pass dates; the clock time is ignored.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// nightsBetween is the whole-day difference between two dates.
func nightsBetween(start, end time.Time) int {
	return int(calendarDay(end).Sub(calendarDay(start)).Hours() / 24)
}

// clipBody returns a short string version of a response body for error messages.
// It limits to a reasonable size to avoid logging huge payloads.
func clipBody(b []byte) string {
	const max = 2048
	if len(b) == 0 {
		return ""
	}
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
