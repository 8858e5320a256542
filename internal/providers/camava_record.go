package providers

import "time"

// searchContext is what a search call knows about itself.
type searchContext struct {
	FacilityID   int
	FacilityName string
	Start        time.Time
	End          time.Time
	BookingURL   string
}

func assembleCampsite(f RawSiteFragment, sc searchContext) AvailableCampsite {
	return AvailableCampsite{
		CampsiteID:         f.SiteID,
		SiteName:           f.Label,
		LoopName:           sc.FacilityName,
		Type:               f.Type,
		Price:              f.Price,
		Occupancy:          Occupancy{Min: f.Occupancy, Max: f.Occupancy},
		UseType:            UseOvernight,
		Location:           f.Location,
		BookingDate:        calendarDay(sc.Start),
		BookingEndDate:     calendarDay(sc.End),
		BookingNights:      nightsBetween(sc.Start, sc.End),
		AvailabilityStatus: StatusAvailable,
		RecreationArea:     sc.FacilityName,
		RecreationAreaID:   sc.FacilityID,
		FacilityName:       sc.FacilityName,
		FacilityID:         sc.FacilityID,
		BookingURL:         sc.BookingURL,
	}
}
