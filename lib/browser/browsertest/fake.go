// Package browsertest provides an in-memory browser.Page for tests.
// Selectors are resolved with goquery against the current document, so
// probes and clicks behave like they would against a real snapshot.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rosteriq-backend/lib/browser"

	"github.com/PuerkitoBio/goquery"
)

// Route is what the page shows after navigating to a url.
type Route struct {
	// the url the page ends up on, defaults to the requested url
	Url       string
	Title     string
	HTML      string
	Responses []browser.ResponseEvent
	Err       error
}

// Action runs when an element carrying data-action="<name>" is clicked,
// or when "\r" is typed into an element carrying data-submit="<name>".
type Action func(p *Page) error

type Page struct {
	lock sync.Mutex

	Routes  map[string]Route
	Actions map[string]Action

	url      string
	title    string
	document string

	queue     *browser.ResponseQueue
	navigated bool
	closed    int

	Typed       map[string]string
	Clicks      []string
	Navigations []string
	Settles     int
	Escapes     int
}

func NewPage() *Page {
	return &Page{
		Routes:  map[string]Route{},
		Actions: map[string]Action{},
		Typed:   map[string]string{},
	}
}

// Show replaces what the page currently displays.
func (p *Page) Show(url, title, html string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.url = url
	p.title = title
	p.document = html
}

// Emit simulates network responses arriving, they are lost when no
// observer was attached before navigation.
func (p *Page) Emit(events ...browser.ResponseEvent) {
	p.lock.Lock()
	queue := p.queue
	p.lock.Unlock()
	if queue == nil {
		return
	}
	for _, e := range events {
		queue.Push(e)
	}
}

func (p *Page) Closed() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

func (p *Page) CurrentUrl() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.url
}

func (p *Page) doc() (*goquery.Document, error) {
	p.lock.Lock()
	document := p.document
	p.lock.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(document))
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	doc, err := p.doc()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: no element matches %q", context.DeadlineExceeded, selector)
	}
	return sel.First(), nil
}

func (p *Page) checkOpen() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed > 0 {
		return fmt.Errorf("page is closed")
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.lock.Lock()
	p.navigated = true
	p.Navigations = append(p.Navigations, url)
	route, ok := p.Routes[url]
	p.lock.Unlock()

	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	if route.Err != nil {
		return route.Err
	}
	final := route.Url
	if final == "" {
		final = url
	}
	p.Show(final, route.Title, route.HTML)
	p.Emit(route.Responses...)
	return nil
}

func (p *Page) Location(ctx context.Context) (string, string, error) {
	if err := p.checkOpen(); err != nil {
		return "", "", err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.url, p.title, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.checkOpen(); err != nil {
		return "", err
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.document, nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	_, err := p.find(selector)
	return err
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	el, err := p.find(selector)
	if err != nil {
		return err
	}

	p.lock.Lock()
	p.Clicks = append(p.Clicks, selector)
	action := p.Actions[el.AttrOr("data-action", "")]
	p.lock.Unlock()

	if action != nil {
		return action(p)
	}
	return nil
}

func (p *Page) SendKeys(ctx context.Context, selector string, text string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	el, err := p.find(selector)
	if err != nil {
		return err
	}

	submit := strings.ContainsAny(text, "\r\n")
	p.lock.Lock()
	p.Typed[selector] += strings.TrimRight(text, "\r\n")
	action := p.Actions[el.AttrOr("data-submit", "")]
	p.lock.Unlock()

	if submit && action != nil {
		return action(p)
	}
	return nil
}

// Value returns what was typed into the element matching selector.
func (p *Page) Value(selector string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.Typed[selector]
}

func (p *Page) PressEscape(ctx context.Context) error {
	p.lock.Lock()
	p.Escapes++
	action := p.Actions["escape"]
	p.lock.Unlock()
	if action != nil {
		return action(p)
	}
	return nil
}

func (p *Page) Settle(ctx context.Context, max time.Duration) error {
	p.lock.Lock()
	p.Settles++
	p.lock.Unlock()
	return ctx.Err()
}

func (p *Page) Observe(queue *browser.ResponseQueue) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.navigated {
		return browser.ErrObserverAfterNavigation
	}
	p.queue = queue
	return nil
}

func (p *Page) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed++
	return nil
}

// Launcher hands out a single prepared page.
type Launcher struct {
	Page     *Page
	Err      error
	Launches int
}

func (l *Launcher) Launch(ctx context.Context) (browser.Page, error) {
	l.Launches++
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}
