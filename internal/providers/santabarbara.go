package providers

// Santa Barbara County Parks moved to Camava on 2026-01-01. Facilities on the
// portal include Cachuma Lake (1) and Jalama Beach (2).
const (
	SantaBarbaraBaseURL  = "https://santabarbara.camava.com"
	SantaBarbaraParkName = "Santa Barbara County Parks"
	jalamaBeachID        = 2
)

func NewSantaBarbaraCountyParks() *Camava {
	return NewCamava(CamavaConfig{
		Name:              "santabarbara",
		BaseURL:           SantaBarbaraBaseURL,
		ParkName:          SantaBarbaraParkName,
		DefaultFacilityID: jalamaBeachID,
		StateCode:         "CA",
	})
}
