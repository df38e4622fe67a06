package roster

import (
	"encoding/json"
	"strconv"
	"strings"
)

// portal payloads are not stable, each canonical field is read from the
// first alias that is present and non-empty.
var (
	idAliases        = []string{"id", "logicalId", "eventId", "dutyId", "uuid"}
	codeAliases      = []string{"code", "dutyCode", "activityCode", "activityType", "eventType", "type", "logicalId"}
	startAliases     = []string{"startTime", "fromDt", "startDate", "start", "startUtc", "departureTime"}
	endAliases       = []string{"endTime", "toDt", "endDate", "end", "endUtc", "arrivalTime"}
	dateAliases      = []string{"date", "dutyDate", "day", "fromDate"}
	pairingAliases   = []string{"pairing", "pairingCode", "pairingNumber", "tripNumber", "trip"}
	aircraftAliases  = []string{"aircraft", "aircraftType", "acType", "equipment"}
	tailAliases      = []string{"tail", "tailNumber", "registration"}
	hotelAliases     = []string{"hotel", "layoverHotel", "hotelName", "accommodation"}
	hotelDateAliases = []string{"hotelDate", "layoverDate", "hotelCheckIn", "checkInDate"}
	crewAliases      = []string{"crew", "crewMembers", "crewList"}
	legAliases       = []string{"legs", "flights", "segments"}

	reserveFlags  = []string{"reserve", "isReserve", "reserveDuty"}
	iadpFlags     = []string{"iadp", "isIadp"}
	deadheadFlags = []string{"deadhead", "isDeadhead", "positioning", "isPositioning", "dh"}

	legFromAliases   = []string{"departure", "from", "depAirport", "origin", "departureAirport"}
	legToAliases     = []string{"arrival", "to", "arrAirport", "destination", "arrivalAirport"}
	legFlightAliases = []string{"flightNumber", "flight", "flightNo", "number"}

	crewRoleAliases  = []string{"role", "rank", "position"}
	crewNameAliases  = []string{"name", "fullName"}
	crewIdAliases    = []string{"id", "crewId", "employeeId"}
	crewPhoneAliases = []string{"phone", "phoneNumber", "mobile"}

	// keys read when a field turns out to be an object, e.g. hotel: {name: ...}
	nestedNameKeys = []string{"name", "code", "iata", "airport", "type", "value"}
)

func empty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

func lookup(fields map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		v, ok := fields[key]
		if ok && !empty(v) {
			return v, true
		}
	}
	return nil, false
}

func str(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any:
		val, ok := lookup(v, nestedNameKeys)
		if ok {
			return str(val)
		}
	}
	return ""
}

func lookupString(fields map[string]any, aliases []string) string {
	v, ok := lookup(fields, aliases)
	if !ok {
		return ""
	}
	return str(v)
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
		s := strings.ToUpper(strings.TrimSpace(v))
		return s == "Y" || s == "YES"
	case json.Number:
		n, err := v.Int64()
		return err == nil && n != 0
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

func anyFlag(fields map[string]any, flags []string) bool {
	for _, key := range flags {
		if truthy(fields[key]) {
			return true
		}
	}
	return false
}

func objects(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if ok {
			out = append(out, obj)
		}
	}
	return out
}
