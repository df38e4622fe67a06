// Package news reads the bulletins behind the portal's NEWS tab. Reading
// is best effort: an entry that fails to open is skipped.
package news

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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/netline/news")

var ErrNoNewsTab = errors.New("no news tab on the portal")

const (
	DefaultLimit = 20
	maxContent   = 300
)

type Item struct {
	Title string `json:"title"`
	// iso date when the bulletin printed a full one, as printed otherwise
	Date    string `json:"date,omitempty"`
	Content string `json:"content"`
}

type Options struct {
	// max number of entries opened per run
	Limit int
	// wait after opening the tab or an entry
	Settle time.Duration
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Settle <= 0 {
		o.Settle = time.Second * 2
	}
	return o
}

var entrySelectors = []string{
	`[data-test-id="news-item"]`,
	`[class*="news-item"]`,
	`[class*="NewsItem"]`,
	`[class*="news"] li`,
}

// the opened bulletin renders into one of these
var popupScopes = []string{
	`[role="dialog"]`,
	`[class*="modal"]`,
	`[class*="popup"]`,
	`[class*="detail"]`,
}

var titleSelector = `h1, h2, h3, h4, [class*="title"]`

// 12/16/2025, 16-12-25
var bulletinDateRegex = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)

func snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	body, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// entries returns the first selector that lists at least one entry.
func entries(doc *goquery.Document) (string, int) {
	for _, selector := range entrySelectors {
		count := doc.Find(selector).Length()
		if count > 0 {
			return selector, count
		}
	}
	return "", 0
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func bulletinDate(text string, now time.Time) string {
	m := bulletinDateRegex.FindStringSubmatch(truncate(text, 500))
	if m == nil {
		return ""
	}
	iso, err := roster.NormalizeDate(m[1], now)
	if err != nil {
		return m[1]
	}
	return iso
}

// ParseEntry reads an opened bulletin. entry is the selector of the
// clicked list entry, used when the bulletin expands in place.
func ParseEntry(doc *goquery.Document, entry string, now time.Time) Item {
	var container *goquery.Selection
	for _, scope := range popupScopes {
		sel := doc.Find(scope).First()
		if sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Find(entry).First()
	}
	if container.Length() == 0 {
		return Item{}
	}

	title := htmlutil.Clean(container.Find(titleSelector).First().Text())
	// close buttons and the like are not part of the bulletin
	content := container.Clone()
	content.Find(`button, [role="button"]`).Remove()
	lines := htmlutil.TextLines(goquery.NewDocumentFromNode(content.Nodes[0]))
	var body []string
	for _, line := range lines {
		if line == title {
			continue
		}
		body = append(body, line)
	}
	if title == "" && len(body) > 0 {
		title, body = body[0], body[1:]
	}
	text := strings.Join(body, " ")

	return Item{
		Title:   title,
		Date:    bulletinDate(text, now),
		Content: truncate(text, maxContent),
	}
}

// closePopup is best effort, the next entry is opened from a fresh
// snapshot either way.
func closePopup(ctx context.Context, page browser.Page, doc *goquery.Document) {
	hit, ok := probe.First(doc, probe.PanelClose)
	if ok {
		err := page.Click(ctx, hit.Selector)
		if err == nil {
			return
		}
		slog.DebugContext(ctx, "news close control failed", "selector", hit.Selector, "err", err)
	}
	err := page.PressEscape(ctx)
	if err != nil {
		slog.DebugContext(ctx, "could not close news entry", "err", err)
	}
}

func readEntry(ctx context.Context, page browser.Page, selector string, index int, options Options) (item Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	// the list is re-read every time, opening an entry may re-render it
	doc, err := snapshot(ctx, page)
	if err != nil {
		return Item{}, err
	}
	list := doc.Find(selector)
	if index >= list.Length() {
		return Item{}, fmt.Errorf("entry %d is gone, %d left", index, list.Length())
	}
	target := htmlutil.CSSPath(list.Eq(index))

	err = page.Click(ctx, target)
	if err != nil {
		return Item{}, fmt.Errorf("open entry: %w", err)
	}
	err = page.Settle(ctx, options.Settle)
	if err != nil {
		return Item{}, err
	}

	doc, err = snapshot(ctx, page)
	if err != nil {
		return Item{}, err
	}
	item = ParseEntry(doc, target, timezone.Now())
	closePopup(ctx, page, doc)
	return item, nil
}

// Read opens the news tab and reads up to Options.Limit entries. Only a
// missing tab or an unreadable page is an error, entries that fail are
// logged and skipped.
func Read(ctx context.Context, page browser.Page, options Options) ([]Item, error) {
	ctx, span := tracer.Start(ctx, "Read")
	defer span.End()
	options = options.withDefaults()

	doc, err := snapshot(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page")
		return nil, err
	}
	tab, ok := probe.First(doc, probe.NewsTab)
	if !ok {
		span.SetStatus(codes.Error, ErrNoNewsTab.Error())
		return nil, ErrNoNewsTab
	}
	err = page.Click(ctx, tab.Selector)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open news tab")
		return nil, fmt.Errorf("open news tab: %w", err)
	}
	err = page.Settle(ctx, options.Settle)
	if err != nil {
		return nil, err
	}

	doc, err = snapshot(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read news list")
		return nil, err
	}
	selector, count := entries(doc)
	count = min(count, options.Limit)
	span.SetAttributes(attribute.Int("entries", count))

	items := []Item{}
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		item, err := readEntry(ctx, page, selector, i, options)
		if err != nil {
			slog.WarnContext(ctx, "news entry could not be read", "index", i, "err", err)
			continue
		}
		if item.Title == "" && item.Content == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
