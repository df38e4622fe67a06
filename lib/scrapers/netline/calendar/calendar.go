package calendar

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/probe"
	"rosteriq-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/netline/calendar")

type Options struct {
	// upper bound on control clicks, two years of months by default
	MaxSteps int
	// max wait for the calendar to re-render after a click
	Settle       time.Duration
	ClickTimeout time.Duration
	// used to pick a direction when the label can't be parsed
	Now func() time.Time
	// called before every click, e.g. to discard traffic of the month
	// being left
	BeforeStep func()
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 24
	}
	if o.Settle <= 0 {
		o.Settle = time.Second * 2
	}
	if o.ClickTimeout <= 0 {
		o.ClickTimeout = time.Second * 5
	}
	if o.Now == nil {
		o.Now = timezone.Now
	}
	return o
}

// Matches reports whether a calendar label shows the given month. The
// month name (full or abbreviated) and the year are tested separately
// since portals format the heading differently.
func Matches(label string, month time.Month, year int) bool {
	label = strings.ToLower(label)
	name := strings.ToLower(month.String())
	monthFound := strings.Contains(label, name) || strings.Contains(label, name[:3])
	return monthFound && strings.Contains(label, strconv.Itoa(year))
}

var labelRegex = regexp.MustCompile(`([A-Za-z]{3,9})\.?\s+(\d{4})`)

// ParseLabel extracts the month and year from a heading like "December 2025".
func ParseLabel(label string) (time.Month, int, bool) {
	groups := labelRegex.FindStringSubmatch(label)
	if groups == nil {
		return 0, 0, false
	}
	month, ok := roster.ParseMonth(groups[1])
	if !ok {
		return 0, 0, false
	}
	year, err := strconv.Atoi(groups[2])
	if err != nil {
		return 0, 0, false
	}
	return month, year, true
}

func monthIndex(month time.Month, year int) int {
	return year*12 + int(month) - 1
}

func direction(label string, month time.Month, year int, now time.Time) probe.Direction {
	shownMonth, shownYear, ok := ParseLabel(label)
	if !ok {
		shownMonth, shownYear = now.Month(), now.Year()
	}
	if monthIndex(month, year) < monthIndex(shownMonth, shownYear) {
		return probe.Backward
	}
	return probe.Forward
}

func snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// NavigateTo steps the portal calendar until its label shows the target
// month. It gives up after MaxSteps clicks, when no stepping control can
// be found or when ctx ends, returning false in each case.
func NavigateTo(ctx context.Context, page browser.Page, month time.Month, year int, opts Options) bool {
	ctx, span := tracer.Start(ctx, "NavigateTo")
	defer span.End()
	span.SetAttributes(
		attribute.String("target_month", month.String()),
		attribute.Int("target_year", year),
	)

	opts = opts.withDefaults()
	steps := 0
	label := ""
	defer func() {
		span.SetAttributes(attribute.Int("steps", steps), attribute.String("label", label))
	}()

	for {
		if ctx.Err() != nil {
			return false
		}

		doc, err := snapshot(ctx, page)
		if err != nil {
			slog.WarnContext(ctx, "failed to read calendar", "err", err)
			return false
		}
		hit, found := probe.First(doc, probe.MonthLabel)
		label = hit.Text
		if found && Matches(label, month, year) {
			return true
		}
		if steps >= opts.MaxSteps {
			slog.WarnContext(ctx, "calendar step limit reached", "label", label, "steps", steps)
			return false
		}

		dir := direction(label, month, year, opts.Now())
		control, found := probe.First(doc, probe.NavControl(dir))
		if !found {
			slog.WarnContext(ctx, "calendar control not found", "direction", dir.String(), "label", label)
			return false
		}

		if opts.BeforeStep != nil {
			opts.BeforeStep()
		}
		clickCtx, cancel := context.WithTimeout(ctx, opts.ClickTimeout)
		err = page.Click(clickCtx, control.Selector)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "failed to step calendar", "direction", dir.String(), "err", err)
			return false
		}
		steps++

		err = page.Settle(ctx, opts.Settle)
		if err != nil {
			return false
		}
	}
}
