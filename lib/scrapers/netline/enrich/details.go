package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/htmlutil"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/probe"
	"rosteriq-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoDetailControl = errors.New("no control opens this duty's details")

var (
	hotelLabelRegex = regexp.MustCompile(`(?i)^hotel\s+(?:name|details)[:\s]+(.+)$`)
	hotelBrandRegex = regexp.MustCompile(`(?i)((?:Hilton|Marriott|Holiday Inn|Hampton|Courtyard|Sheraton|Westin|Hyatt|Radisson|Best Western|Comfort|Days Inn|La Quinta|Embassy|Doubletree|Residence Inn|Fairfield|Four Points|Crowne Plaza|InterContinental|Renaissance|Aloft|Home2|SpringHill|TownePlace|Homewood).{0,50})`)
	streetRegex     = regexp.MustCompile(`(?i)^(?:street|address)[:\s]+(.+)$`)
	cityRegex       = regexp.MustCompile(`(?i)^city[:\s]+(.+)$`)
	phoneRegex      = regexp.MustCompile(`(?i)^phone[:\s]+([+\d\-()\s]{10,20})$`)
	// Hotel date: 17Dec, Layover date: Tue 17Dec
	hotelDateRegex = regexp.MustCompile(`(?i)^(?:hotel\s+(?:date|check[\s-]?in)|layover\s+date|check[\s-]?in\s+date)[:\s]+(.+)$`)

	aircraftLabelRegex = regexp.MustCompile(`(?i)^aircraft(?:\s+type)?[:\s]+(\S+)`)
	tailLabelRegex     = regexp.MustCompile(`(?i)^(?:tail|registration)(?:\s+number)?[:\s]+(\S+)`)
	// GB3130 763 N1234X
	flightLegRegex = regexp.MustCompile(`^[A-Z]{2}\d{3,4}\s+(\w{3,4})\s+(N\d{1,5}[A-Z]{0,2})\b`)

	crewStartRegex = regexp.MustCompile(`(?i)^crew\s+members\s+on\s+this\s+leg`)
	crewEndRegex   = regexp.MustCompile(`(?i)^(?:your\s+role|event\s+remark|hotel|accommodation|transport)`)
	crewNameRegex  = regexp.MustCompile(`^[A-Z][A-Za-z'-]+(?:\s+[A-Z][A-Za-z'-]+)+$`)
	// RANK: CA  HB: CVG  SENIORITY: 123  CREW ID: 123456  PHONE: 555-1234
	crewRankRegex = regexp.MustCompile(`(?i)^RANK:\s*([A-Z]{2,3})(?:\s+HB:\s*[A-Z]{3})?(?:\s+SENIORITY:\s*\d+)?(?:\s+CREW\s*ID:\s*(\d+))?(?:\s+PHONE:\s*([\d\-+() ]+))?`)
	// JOHN DOE CA CVG 123 123456 555-1234
	crewLineRegex = regexp.MustCompile(`^([A-Z][A-Za-z'-]+(?:\s+[A-Z][A-Za-z'-]+)+)\s+(CA|FO|FA|FB|FP|ACM)\s+[A-Z]{3}\s+\d{1,4}\s+(\d{5,7})(?:\s+([\d\-]+))?`)
)

// Details is what a duty's detail panel revealed.
type Details struct {
	Hotel     string
	HotelInfo roster.Hotel
	Crew      []roster.CrewMember
	Aircraft  string
	Tail      string
}

func firstGroup(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func setOnce(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

// ParseDetails reads detail panel text, one rendered line per entry. Hotel
// dates without a year are resolved against now.
func ParseDetails(lines []string, now time.Time) Details {
	var details Details
	var brand, hotelDate string
	inCrew := false
	pendingName := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if crewStartRegex.MatchString(line) {
			inCrew = true
			continue
		}
		if inCrew && crewEndRegex.MatchString(line) {
			inCrew = false
			pendingName = ""
		}
		if inCrew {
			if m := crewLineRegex.FindStringSubmatch(line); m != nil {
				details.Crew = append(details.Crew, roster.CrewMember{
					Name: m[1], Role: m[2], Id: m[3], Phone: m[4],
				})
				pendingName = ""
				continue
			}
			if m := crewRankRegex.FindStringSubmatch(line); m != nil && pendingName != "" {
				details.Crew = append(details.Crew, roster.CrewMember{
					Name: pendingName, Role: strings.ToUpper(m[1]), Id: m[2], Phone: strings.TrimSpace(m[3]),
				})
				pendingName = ""
				continue
			}
			if crewNameRegex.MatchString(line) {
				pendingName = line
			}
			continue
		}

		setOnce(&details.Hotel, firstGroup(hotelLabelRegex, line))
		setOnce(&brand, firstGroup(hotelBrandRegex, line))
		setOnce(&details.HotelInfo.Address, firstGroup(streetRegex, line))
		setOnce(&details.HotelInfo.City, firstGroup(cityRegex, line))
		setOnce(&details.HotelInfo.Phone, firstGroup(phoneRegex, line))
		setOnce(&hotelDate, firstGroup(hotelDateRegex, line))
		setOnce(&details.Aircraft, firstGroup(aircraftLabelRegex, line))
		setOnce(&details.Tail, firstGroup(tailLabelRegex, line))
		if m := flightLegRegex.FindStringSubmatch(line); m != nil {
			setOnce(&details.Aircraft, m[1])
			setOnce(&details.Tail, m[2])
		}
	}

	setOnce(&details.Hotel, brand)
	if hotelDate != "" {
		date, err := roster.NormalizeDate(hotelDate, now)
		if err == nil {
			details.HotelInfo.Date = date
		}
	}
	if details.HotelInfo != (roster.Hotel{}) {
		details.HotelInfo.Name = details.Hotel
	}
	return details
}

func fillHotel(duty *roster.Duty, info roster.Hotel) {
	if info == (roster.Hotel{}) {
		return
	}
	if duty.HotelInfo == nil {
		duty.HotelInfo = &roster.Hotel{}
	}
	setOnce(&duty.HotelInfo.Name, info.Name)
	setOnce(&duty.HotelInfo.Address, info.Address)
	setOnce(&duty.HotelInfo.City, info.City)
	setOnce(&duty.HotelInfo.Phone, info.Phone)
	setOnce(&duty.HotelInfo.Date, info.Date)
}

// Fill copies details into empty fields of duty and appends crew members
// it does not list yet.
func (d Details) Fill(duty *roster.Duty) {
	setOnce(&duty.Hotel, d.Hotel)
	setOnce(&duty.AircraftType, d.Aircraft)
	setOnce(&duty.Tail, d.Tail)
	// contact details of a different hotel than the one on the duty are ignored
	if duty.Hotel == d.Hotel {
		fillHotel(duty, d.HotelInfo)
	}

	for _, member := range d.Crew {
		known := false
		for _, existing := range duty.Crew {
			if existing.Same(member) {
				known = true
				break
			}
		}
		if !known {
			duty.Crew = append(duty.Crew, member)
		}
	}
}

var eventClassRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// panels the details render into, the whole page is used when none match
var panelScopes = []string{
	`[data-test-id="duty-row-details"]`,
	`[role="dialog"]`,
	`[class*="Drawer-paper"]`,
}

type DetailPanel struct {
	// how long to wait for the panel to load after opening it
	Settle time.Duration
	// defaults to timezone.Now
	Now func() time.Time
}

func (DetailPanel) Name() string {
	return "detail_panel"
}

func openProbes(duty roster.Duty) []probe.Probe {
	var probes []probe.Probe
	if eventClassRegex.MatchString(duty.Id) {
		probes = append(probes, probe.Selector(
			fmt.Sprintf(`.event-id-%s[data-test-id="duty-row"] [data-test-id="details-page-button"]`, duty.Id),
		))
	}

	var words []string
	if duty.Pairing != "" {
		words = append(words, strings.ToLower(duty.Pairing))
	}
	for _, leg := range duty.Legs {
		if leg.FlightNumber != "" {
			words = append(words, strings.ToLower(leg.FlightNumber))
		}
	}
	if len(words) > 0 {
		probes = append(
			probes,
			probe.Fuzzy("duty row", `[data-test-id="duty-row"]`, words, nil),
			probe.Fuzzy("duty text", `button, [role="button"], a`, words, nil),
		)
	}
	return probes
}

func snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

func panelLines(doc *goquery.Document) []string {
	for _, scope := range panelScopes {
		sel := doc.Find(scope).First()
		if sel.Length() > 0 {
			return htmlutil.TextLines(goquery.NewDocumentFromNode(sel.Nodes[0]))
		}
	}
	return htmlutil.TextLines(doc)
}

func (p DetailPanel) Enrich(ctx context.Context, page browser.Page, duty *roster.Duty) error {
	doc, err := snapshot(ctx, page)
	if err != nil {
		return err
	}
	hit, ok := probe.First(doc, openProbes(*duty))
	if !ok {
		return ErrNoDetailControl
	}

	err = page.Click(ctx, hit.Selector)
	if err != nil {
		return fmt.Errorf("open details: %w", err)
	}
	settle := p.Settle
	if settle <= 0 {
		settle = time.Second * 3
	}
	err = page.Settle(ctx, settle)
	if err != nil {
		return err
	}

	doc, err = snapshot(ctx, page)
	if err != nil {
		return err
	}
	now := timezone.Now
	if p.Now != nil {
		now = p.Now
	}
	ParseDetails(panelLines(doc), now()).Fill(duty)

	closePanel(ctx, page, doc)
	return nil
}

// closePanel is best effort, a panel left open does not invalidate what
// was read from it.
func closePanel(ctx context.Context, page browser.Page, doc *goquery.Document) {
	hit, ok := probe.First(doc, probe.PanelClose)
	if ok {
		err := page.Click(ctx, hit.Selector)
		if err == nil {
			return
		}
		slog.DebugContext(ctx, "panel close control failed", "selector", hit.Selector, "err", err)
	}
	err := page.PressEscape(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not close detail panel", "err", err)
	}
}
