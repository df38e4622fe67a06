package enrich

import (
	"context"
	"strings"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/textutil"
)

type KnownHotel struct {
	Names   []string
	Address string
	City    string
	Phone   string
}

// crew hotels used on regular layovers, keyed by icao code
var knownHotels = map[string][]KnownHotel{
	"KSCK": {{
		Names:   []string{"Hilton", "Hilton SCK", "Hilton Stockton", "Stockton Hilton"},
		Address: "2323 Grand Canal Blvd, Stockton, CA 95207, United States",
		City:    "Stockton",
		Phone:   "+1 209-957-9090",
	}},
	"KCVG": {{
		Names:   []string{"Marriott", "Marriott CVG", "Cincinnati Marriott"},
		Address: "2395 Progress Dr, Hebron, KY 41048, United States",
		City:    "Hebron",
		Phone:   "+1 859-586-0166",
	}},
	"KFWA": {{
		Names:   []string{"Hilton", "Hilton FWA", "Hilton Fort Wayne"},
		Address: "1020 S Calhoun St, Fort Wayne, IN 46802, United States",
		City:    "Fort Wayne",
		Phone:   "+1 260-420-1100",
	}},
	"KILN": {{
		Names:   []string{"Hampton Inn", "Hampton ILN", "Hampton Wilmington"},
		Address: "201 Carrie Dr, Wilmington, OH 45177, United States",
		City:    "Wilmington",
		Phone:   "+1 937-382-4400",
	}},
	"PANC": {{
		Names:   []string{"Hilton", "Hilton ANC", "Hilton Anchorage"},
		Address: "500 W 3rd Ave, Anchorage, AK 99501, United States",
		City:    "Anchorage",
		Phone:   "+1 907-272-7411",
	}},
	"PHNL": {{
		Names:   []string{"Hilton", "Hilton HNL", "Hilton Hawaiian Village"},
		Address: "2005 Kalia Rd, Honolulu, HI 96815, United States",
		City:    "Honolulu",
		Phone:   "+1 808-949-4321",
	}},
}

// HotelDirectory fills hotel contact details for layovers at airports
// with a known crew hotel.
type HotelDirectory struct {
	Hotels map[string][]KnownHotel
	// minimum similarity for names that do not contain each other
	Threshold float64
}

func NewHotelDirectory() HotelDirectory {
	return HotelDirectory{Hotels: knownHotels, Threshold: 0.9}
}

func (HotelDirectory) Name() string {
	return "hotel_directory"
}

// airports outside the contiguous us do not use the K prefix
var icaoCodes = map[string]string{
	"ANC": "PANC",
	"FAI": "PAFA",
	"HNL": "PHNL",
	"OGG": "PHOG",
	"KOA": "PHKO",
}

// icao turns a 3 letter us airport code into its icao form.
func icao(airport string) string {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if code, ok := icaoCodes[airport]; ok {
		return code
	}
	if len(airport) == 3 {
		return "K" + airport
	}
	return airport
}

func (h HotelDirectory) Lookup(airport, hotel string) (KnownHotel, bool) {
	name := strings.ToLower(strings.TrimSpace(hotel))
	if name == "" {
		return KnownHotel{}, false
	}
	for _, known := range h.Hotels[icao(airport)] {
		for _, candidate := range known.Names {
			candidate = strings.ToLower(candidate)
			if strings.Contains(name, candidate) || strings.Contains(candidate, name) {
				return known, true
			}
			if textutil.Similarity(name, candidate) >= h.Threshold {
				return known, true
			}
		}
	}
	return KnownHotel{}, false
}

// layover airport of a duty, where its last leg ends
func layover(duty roster.Duty) string {
	for i := len(duty.Legs) - 1; i >= 0; i-- {
		if duty.Legs[i].To != "" {
			return duty.Legs[i].To
		}
	}
	return ""
}

func (h HotelDirectory) Enrich(ctx context.Context, page browser.Page, duty *roster.Duty) error {
	airport := layover(*duty)
	if duty.Hotel == "" || airport == "" {
		return nil
	}
	known, ok := h.Lookup(airport, duty.Hotel)
	if !ok {
		return nil
	}
	fillHotel(duty, roster.Hotel{
		Name:    duty.Hotel,
		Address: known.Address,
		City:    known.City,
		Phone:   known.Phone,
	})
	return nil
}
