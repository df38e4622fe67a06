package roster

import (
	"maps"
	"slices"
)

type DutyType string

const (
	Flight   DutyType = "FLIGHT"
	Reserve  DutyType = "RESERVE"
	Iadp     DutyType = "IADP"
	Deadhead DutyType = "DEADHEAD"
)

type Leg struct {
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	FlightNumber string `json:"flightNumber,omitempty"`
	Deadhead     bool   `json:"deadhead,omitempty"`
}

type CrewMember struct {
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Id    string `json:"id,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Same reports whether two entries describe the same person.
func (c CrewMember) Same(other CrewMember) bool {
	if c.Id != "" && other.Id != "" {
		return c.Id == other.Id
	}
	return c.Name != "" && c.Name == other.Name
}

type Hotel struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
	// night of the layover, iso date
	Date string `json:"date,omitempty"`
}

type Duty struct {
	Id           string       `json:"id"`
	Type         DutyType     `json:"type"`
	Start        string       `json:"start,omitempty"`
	End          string       `json:"end,omitempty"`
	Date         string       `json:"date"`
	Pairing      string       `json:"pairing,omitempty"`
	AircraftType string       `json:"aircraft,omitempty"`
	Tail         string       `json:"tail,omitempty"`
	Hotel        string       `json:"hotel,omitempty"`
	HotelInfo    *Hotel       `json:"hotelInfo,omitempty"`
	Crew         []CrewMember `json:"crew"`
	Legs         []Leg        `json:"legs"`

	// the source fields this duty was normalized from
	Raw map[string]any `json:"-"`
}

// Clone returns a copy that shares no mutable state with d.
func (d Duty) Clone() Duty {
	out := d
	out.Crew = slices.Clone(d.Crew)
	out.Legs = slices.Clone(d.Legs)
	out.Raw = maps.Clone(d.Raw)
	if d.HotelInfo != nil {
		info := *d.HotelInfo
		out.HotelInfo = &info
	}
	return out
}

type RecordKind int

const (
	NetworkItem RecordKind = iota
	TextFragment
)

func (k RecordKind) String() string {
	switch k {
	case NetworkItem:
		return "network"
	case TextFragment:
		return "text"
	}
	return "unknown"
}

// RawRecord is a portal-shaped record before normalization. Fields
// holds whatever keys the portal (or the text extractor) produced, Key
// is the identity computed at extraction time.
type RawRecord struct {
	Kind   RecordKind
	Fields map[string]any
	Key    string
	Source string
}

type Summary struct {
	FlightCount   int `json:"flightCount"`
	ReserveCount  int `json:"reserveCount"`
	IadpCount     int `json:"iadpCount"`
	DeadheadCount int `json:"deadheadCount"`
}

func Summarize(duties []Duty) Summary {
	var s Summary
	for _, d := range duties {
		switch d.Type {
		case Flight:
			s.FlightCount++
		case Reserve:
			s.ReserveCount++
		case Iadp:
			s.IadpCount++
		case Deadhead:
			s.DeadheadCount++
		}
	}
	return s
}
