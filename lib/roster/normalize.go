package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoIdentity = errors.New("record has no identity")
	ErrNoDate     = errors.New("record has no date")
)

var reserveCodeRegex = regexp.MustCompile(`(?i)\b(?:RESERVE|RES\d*|RS\d*|RSV|RAP|SBY|STBY|R[1-5]|FLX)\b`)
var iadpCodeRegex = regexp.MustCompile(`(?i)IADP`)

// namespace for ids derived from identity keys, ids stay stable across
// runs as long as the portal payload does not change.
var dutyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rosteriq/duty"))

func codes(fields map[string]any) []string {
	var out []string
	for _, key := range codeAliases {
		s := str(fields[key])
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func matchesAny(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// Classify assigns a duty type by fixed priority:
// RESERVE > IADP > DEADHEAD > FLIGHT.
func Classify(fields map[string]any) DutyType {
	dutyCodes := codes(fields)

	if anyFlag(fields, reserveFlags) || matchesAny(reserveCodeRegex, dutyCodes) {
		return Reserve
	}
	if anyFlag(fields, iadpFlags) || matchesAny(iadpCodeRegex, dutyCodes) {
		return Iadp
	}
	if anyFlag(fields, deadheadFlags) {
		return Deadhead
	}

	legs := parseLegs(fields)
	if len(legs) > 0 {
		allDeadhead := true
		for _, leg := range legs {
			allDeadhead = allDeadhead && leg.Deadhead
		}
		if allDeadhead {
			return Deadhead
		}
	}
	return Flight
}

func parseLegs(fields map[string]any) []Leg {
	v, ok := lookup(fields, legAliases)
	if !ok {
		// a single flight described at the top level
		leg := Leg{
			From:         lookupString(fields, legFromAliases),
			To:           lookupString(fields, legToAliases),
			FlightNumber: lookupString(fields, legFlightAliases),
		}
		if leg.From == "" && leg.To == "" {
			return nil
		}
		leg.Deadhead = anyFlag(fields, deadheadFlags)
		return []Leg{leg}
	}

	var legs []Leg
	for _, obj := range objects(v) {
		legs = append(legs, Leg{
			From:         lookupString(obj, legFromAliases),
			To:           lookupString(obj, legToAliases),
			FlightNumber: lookupString(obj, legFlightAliases),
			Deadhead:     anyFlag(obj, deadheadFlags),
		})
	}
	return legs
}

func parseCrew(fields map[string]any) []CrewMember {
	v, ok := lookup(fields, crewAliases)
	if !ok {
		return nil
	}

	var crew []CrewMember
	for _, obj := range objects(v) {
		member := CrewMember{
			Role:  lookupString(obj, crewRoleAliases),
			Name:  lookupString(obj, crewNameAliases),
			Id:    lookupString(obj, crewIdAliases),
			Phone: lookupString(obj, crewPhoneAliases),
		}
		if member.Name == "" {
			member.Name = strings.TrimSpace(str(obj["firstName"]) + " " + str(obj["lastName"]))
		}
		if member.Name == "" && member.Id == "" {
			continue
		}
		crew = append(crew, member)
	}
	return crew
}

// fallbackFromFirstLeg reads a field off the first leg object when the
// duty itself doesn't carry it.
func fallbackFromFirstLeg(fields map[string]any, aliases []string) string {
	v, ok := lookup(fields, legAliases)
	if !ok {
		return ""
	}
	legs := objects(v)
	if len(legs) == 0 {
		return ""
	}
	return lookupString(legs[0], aliases)
}

func identity(record RawRecord) (string, error) {
	own := lookupString(record.Fields, idAliases)
	if own != "" {
		return own, nil
	}
	if len(record.Fields) == 0 || record.Key == "" {
		return "", ErrNoIdentity
	}
	return uuid.NewSHA1(dutyNamespace, []byte(record.Key)).String(), nil
}

func resolveDate(fields map[string]any, now time.Time) (string, error) {
	for _, aliases := range [][]string{dateAliases, startAliases} {
		v, ok := lookup(fields, aliases)
		if !ok {
			continue
		}
		return normalizeDateValue(v, now)
	}
	return "", ErrNoDate
}

// Normalize maps one raw record onto a canonical duty.
func Normalize(record RawRecord, now time.Time) (Duty, error) {
	fields := record.Fields

	id, err := identity(record)
	if err != nil {
		return Duty{}, err
	}
	date, err := resolveDate(fields, now)
	if err != nil {
		return Duty{}, fmt.Errorf("%s: %w", id, err)
	}

	duty := Duty{
		Id:           id,
		Type:         Classify(fields),
		Date:         date,
		Pairing:      lookupString(fields, pairingAliases),
		AircraftType: lookupString(fields, aircraftAliases),
		Tail:         lookupString(fields, tailAliases),
		Hotel:        lookupString(fields, hotelAliases),
		Crew:         parseCrew(fields),
		Legs:         parseLegs(fields),
		Raw:          fields,
	}
	if v, ok := lookup(fields, startAliases); ok {
		duty.Start = normalizeTimestamp(v)
	}
	if v, ok := lookup(fields, endAliases); ok {
		duty.End = normalizeTimestamp(v)
	}

	if v, ok := lookup(fields, hotelDateAliases); ok {
		// same year rollover as the duty date, a bad hotel date is not
		// worth dropping the duty over
		hotelDate, err := normalizeDateValue(v, now)
		if err == nil {
			duty.HotelInfo = &Hotel{Name: duty.Hotel, Date: hotelDate}
		}
	}

	if duty.Pairing == "" {
		// logical ids look like <date>@<pairing>@<sequence>
		parts := strings.Split(str(fields["logicalId"]), "@")
		if len(parts) > 1 {
			duty.Pairing = parts[1]
		}
	}
	if duty.AircraftType == "" {
		duty.AircraftType = fallbackFromFirstLeg(fields, aircraftAliases)
	}
	if duty.Tail == "" {
		duty.Tail = fallbackFromFirstLeg(fields, tailAliases)
	}
	if duty.Crew == nil {
		duty.Crew = []CrewMember{}
	}
	if duty.Legs == nil {
		duty.Legs = []Leg{}
	}
	return duty, nil
}

type Report struct {
	Normalized int
	Duplicates int
	// dropped record counts keyed by reason
	Dropped map[string]int
}

// NormalizeAll normalizes records in order, dropping records that fail
// to normalize and any duty whose id was already produced.
func NormalizeAll(records []RawRecord, now time.Time) ([]Duty, Report) {
	report := Report{Dropped: map[string]int{}}
	seen := map[string]bool{}
	duties := []Duty{}

	for _, record := range records {
		duty, err := Normalize(record, now)
		if err != nil {
			reason := "invalid"
			switch {
			case errors.Is(err, ErrNoIdentity):
				reason = "no_identity"
			case errors.Is(err, ErrNoDate):
				reason = "no_date"
			}
			report.Dropped[reason]++
			continue
		}
		if seen[duty.Id] {
			report.Duplicates++
			continue
		}
		seen[duty.Id] = true
		duties = append(duties, duty)
	}

	report.Normalized = len(duties)
	return duties, report
}
