package roster

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rosteriq-backend/lib/timezone"
)

const DateLayout = "2006-01-02"

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseMonth accepts full or abbreviated english month names.
func ParseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	m, ok := months[s[:3]]
	return m, ok
}

var (
	isoDateRegex     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dayMonthRegex    = regexp.MustCompile(`^(\d{1,2})\s*([A-Za-z]{3,9})\.?(?:\s*(\d{4}|\d{2})(?:$|[^\d:]))?`)
	monthDayRegex    = regexp.MustCompile(`^([A-Za-z]{3,9})\.?\s+(\d{1,2})\b(?:,?\s*(\d{4}))?`)
	slashedDateRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
	leadingWeekday   = regexp.MustCompile(`^(?i)(mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+`)
)

// resolveYear is the year assigned to a date printed without one. The
// portal shows at most the next couple of months, so when it is
// December a January or February date belongs to next year.
func resolveYear(month time.Month, now time.Time) int {
	if now.Month() == time.December && (month == time.January || month == time.February) {
		return now.Year() + 1
	}
	return now.Year()
}

func civil(year int, month time.Month, day int) (string, error) {
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != month || date.Day() != day {
		return "", fmt.Errorf("invalid date %d-%d-%d", year, month, day)
	}
	return date.Format(DateLayout), nil
}

func parseYear(s string) int {
	year, _ := strconv.Atoi(s)
	if len(s) == 2 {
		year += 2000
	}
	return year
}

// NormalizeDate converts a portal date ("16Dec", "Dec 16", "2025-12-16",
// "12/16/2025", "16DEC25") into YYYY-MM-DD, resolving missing years
// relative to now.
func NormalizeDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	s = leadingWeekday.ReplaceAllString(s, "")
	if s == "" {
		return "", fmt.Errorf("empty date")
	}

	if groups := isoDateRegex.FindStringSubmatch(s); groups != nil {
		year, _ := strconv.Atoi(groups[1])
		month, _ := strconv.Atoi(groups[2])
		day, _ := strconv.Atoi(groups[3])
		return civil(year, time.Month(month), day)
	}

	if groups := slashedDateRegex.FindStringSubmatch(s); groups != nil {
		month, _ := strconv.Atoi(groups[1])
		day, _ := strconv.Atoi(groups[2])
		year, _ := strconv.Atoi(groups[3])
		return civil(year, time.Month(month), day)
	}

	day, monthName, yearText := "", "", ""
	if groups := dayMonthRegex.FindStringSubmatch(s); groups != nil {
		day, monthName, yearText = groups[1], groups[2], groups[3]
	} else if groups := monthDayRegex.FindStringSubmatch(s); groups != nil {
		monthName, day, yearText = groups[1], groups[2], groups[3]
	} else {
		return "", fmt.Errorf("unrecognized date %q", s)
	}

	month, ok := ParseMonth(monthName)
	if !ok {
		return "", fmt.Errorf("unrecognized month in %q", s)
	}
	dayNum, _ := strconv.Atoi(day)

	year := resolveYear(month, now)
	if yearText != "" {
		year = parseYear(yearText)
	}
	return civil(year, month, dayNum)
}

// epoch milliseconds appear in some json payloads instead of strings
func epochMillis(v any) (time.Time, bool) {
	var ms int64
	switch v := v.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		ms = n
	case float64:
		ms = int64(v)
	case int64:
		ms = v
	default:
		return time.Time{}, false
	}
	// anything before 2001 is not a timestamp
	if ms < 1_000_000_000_000 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).In(timezone.Location), true
}

func normalizeDateValue(v any, now time.Time) (string, error) {
	if t, ok := epochMillis(v); ok {
		return t.Format(DateLayout), nil
	}
	return NormalizeDate(str(v), now)
}

// normalizeTimestamp renders timestamps consistently when they can be
// parsed, anything else is kept as the portal printed it.
func normalizeTimestamp(v any) string {
	if t, ok := epochMillis(v); ok {
		return t.Format(time.RFC3339)
	}
	s := str(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			if layout == time.RFC3339 {
				return t.Format(time.RFC3339)
			}
			return t.Format("2006-01-02T15:04:05")
		}
	}
	return s
}
