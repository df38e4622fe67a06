package extract

import (
	"context"
	"regexp"
	"strings"

	"rosteriq-backend/lib/htmlutil"
	"rosteriq-backend/lib/roster"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// C1234/16Dec Rank: CA
	pairingStartRegex = regexp.MustCompile(`^([A-Z]\d{3,5}[A-Z]?)/(\d{1,2}[A-Za-z]{3})(?:\s+Rank:\s*([A-Z]{2,3}))?`)
	reserveStartRegex = regexp.MustCompile(`^(RESERVE|RES\d*|RS\d*|RSV|RAP|SBY|STBY|R[1-5]|FLX)\b`)
	// GB3130 16Dec 763 N1234X
	flightStartRegex = regexp.MustCompile(`^((?:[A-Z]{2}|[A-Z]\d|\d[A-Z])\d{2,4})\b`)

	dateTokenRegex     = regexp.MustCompile(`\b(\d{1,2}[A-Za-z]{3})\b`)
	aircraftTokenRegex = regexp.MustCompile(`\b(B?7[0-9]{2}|A3[0-9]{2}|MD11|DC8)\b`)
	tailTokenRegex     = regexp.MustCompile(`\b(N\d{1,5}[A-Z]{0,2})\b`)

	// CVG 16Dec 10:05 LT
	timeWithOffsetRegex = regexp.MustCompile(`\b([A-Z]{3})\s+(\d{1,2}[A-Za-z]{3})\s+(\d{1,2}:\d{2})\s*(LT|UTC|Z|[+-]\d{1,2}(?::?\d{2})?)`)
	airportPairRegex    = regexp.MustCompile(`\b([A-Z]{3})\s*(?:-|–|→|->|/)\s*([A-Z]{3})\b`)
	hotelRegex          = regexp.MustCompile(`(?i)\b(hotel|inn|suites|marriott|hilton|hyatt|sheraton|courtyard|hampton|embassy|residence|holiday|doubletree|westin|crowne)\b`)
	deadheadRegex       = regexp.MustCompile(`\b(?:DH|DHD)\b|\b(?i:deadhead|positioning)\b`)
)

type fragment struct {
	fields  map[string]any
	flights int
}

func newFragment(fields map[string]any) *fragment {
	return &fragment{fields: fields}
}

func (f *fragment) set(key, value string) {
	if value == "" {
		return
	}
	if _, ok := f.fields[key]; ok {
		return
	}
	f.fields[key] = value
}

func (f *fragment) key() string {
	head := ""
	for _, k := range []string{"flightNumber", "pairing", "code"} {
		s, _ := f.fields[k].(string)
		if s != "" {
			head = s
			break
		}
	}
	if head == "" {
		return ""
	}
	pairing, _ := f.fields["pairing"].(string)
	date, _ := f.fields["date"].(string)
	return "text:" + head + "|" + pairing + "|" + date
}

type textState struct {
	current *fragment
	header  *fragment
	pairing string
	date    string

	seen    map[string]bool
	records []roster.RawRecord
}

func (s *textState) emit(f *fragment) {
	key := f.key()
	if key == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.records = append(s.records, roster.RawRecord{
		Kind:   roster.TextFragment,
		Fields: f.fields,
		Key:    key,
		Source: "text",
	})
}

// closeCurrent emits the fragment being built, a pairing header stays
// pending until it is known whether flights follow it.
func (s *textState) closeCurrent() {
	if s.current != nil && s.current != s.header {
		s.emit(s.current)
	}
	s.current = nil
}

func (s *textState) flushHeader() {
	if s.header != nil && s.header.flights == 0 {
		s.emit(s.header)
	}
	s.header = nil
}

func (s *textState) start(line string) bool {
	if m := pairingStartRegex.FindStringSubmatch(line); m != nil {
		s.closeCurrent()
		s.flushHeader()
		s.pairing, s.date = m[1], m[2]
		f := newFragment(map[string]any{"pairing": m[1], "code": m[1], "date": m[2]})
		f.set("rank", m[3])
		s.header, s.current = f, f
		return true
	}

	// upper case hotel names (RESIDENCE INN) belong to the current duty
	if m := reserveStartRegex.FindStringSubmatch(line); m != nil && !hotelRegex.MatchString(line) {
		s.closeCurrent()
		s.flushHeader()
		s.pairing, s.date = "", ""
		f := newFragment(map[string]any{"code": m[1]})
		if d := dateTokenRegex.FindStringSubmatch(line[len(m[0]):]); d != nil {
			f.set("date", d[1])
		}
		s.current = f
		return true
	}

	// an aircraft type on its own line looks like a flight code
	if m := flightStartRegex.FindStringSubmatch(line); m != nil && !aircraftTokenRegex.MatchString(m[1]) {
		s.closeCurrent()
		if s.header != nil {
			s.header.flights++
		}
		rest := line[len(m[0]):]
		f := newFragment(map[string]any{"flightNumber": m[1], "code": m[1]})
		f.set("pairing", s.pairing)
		if d := dateTokenRegex.FindStringSubmatch(rest); d != nil {
			f.set("date", d[1])
		}
		f.set("date", s.date)
		if a := aircraftTokenRegex.FindStringSubmatch(rest); a != nil {
			f.set("aircraft", a[1])
		}
		if t := tailTokenRegex.FindStringSubmatch(rest); t != nil {
			f.set("tail", t[1])
		}
		s.current = f
		return true
	}
	return false
}

func (s *textState) detail(line string) {
	f := s.current
	if f == nil {
		return
	}

	for i, m := range timeWithOffsetRegex.FindAllStringSubmatch(line, 2) {
		stamp := m[2] + " " + m[3] + " " + m[4]
		if i == 0 && f.fields["from"] == nil {
			f.set("from", m[1])
			f.set("startTime", stamp)
			f.set("date", m[2])
		} else {
			f.set("to", m[1])
			f.set("endTime", stamp)
		}
	}

	if m := airportPairRegex.FindStringSubmatch(line); m != nil {
		f.set("from", m[1])
		f.set("to", m[2])
	}
	if hotelRegex.MatchString(line) {
		f.set("hotel", line)
		if d := dateTokenRegex.FindStringSubmatch(line); d != nil {
			f.set("hotelDate", d[1])
		}
	}
	if deadheadRegex.MatchString(line) {
		f.fields["deadhead"] = true
	}
}

// ExtractText turns visible text lines into raw records. A new fragment
// starts on a pairing header, a reserve code or a flight code. Pairing
// headers only produce a record when no flights follow them.
func ExtractText(lines []string) []roster.RawRecord {
	state := &textState{seen: map[string]bool{}}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		state.start(line)
		state.detail(line)
	}
	state.closeCurrent()
	state.flushHeader()
	return state.records
}

// ExtractHTML runs ExtractText over the visible text of an html snapshot.
func ExtractHTML(ctx context.Context, body string) ([]roster.RawRecord, error) {
	_, span := tracer.Start(ctx, "ExtractHTML")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	lines := htmlutil.TextLines(doc)
	records := ExtractText(lines)
	span.SetAttributes(
		attribute.Int("lines", len(lines)),
		attribute.Int("records", len(records)),
	)
	return records, nil
}
