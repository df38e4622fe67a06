package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/browser")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ChromeOptions struct {
	Headless  bool   `json:"headless"`
	ExecPath  string `json:"exec_path"`
	UserAgent string `json:"user_agent"`
	// response bodies larger than this are not queued, defaults to 4MB
	MaxBodyBytes int `json:"max_body_bytes"`
	// how long the network must be silent before Settle returns,
	// defaults to 500ms
	QuietPeriod time.Duration `json:"-"`
}

type ChromeLauncher struct {
	options ChromeOptions
}

func NewChromeLauncher(options ChromeOptions) ChromeLauncher {
	if options.UserAgent == "" {
		options.UserAgent = defaultUserAgent
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = 4 << 20
	}
	if options.QuietPeriod <= 0 {
		options.QuietPeriod = time.Millisecond * 500
	}
	return ChromeLauncher{options: options}
}

func (l ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	ctx, span := tracer.Start(ctx, "Launch")
	defer span.End()

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.options.Headless),
		chromedp.UserAgent(l.options.UserAgent),
		chromedp.WindowSize(1440, 900),
	)
	if l.options.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.options.ExecPath))
	}

	// the browser lives until Close, not until the launching ctx ends
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			slog.Debug("chromedp", "message", fmt.Sprintf(format, args...))
		}),
	)

	page := &chromePage{
		tabCtx:      tabCtx,
		cancel:      func() { tabCancel(); allocCancel() },
		options:     l.options,
		tracked:     map[network.RequestID]bool{},
		pending:     map[network.RequestID]ResponseEvent{},
		lastTraffic: time.Now(),
	}
	chromedp.ListenTarget(tabCtx, page.onEvent)

	err := page.run(ctx, network.Enable())
	if err != nil {
		page.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start browser")
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return page, nil
}

type chromePage struct {
	tabCtx  context.Context
	cancel  func()
	options ChromeOptions

	closeOnce sync.Once
	navigated atomic.Bool
	queue     atomic.Pointer[ResponseQueue]

	lock        sync.Mutex
	tracked     map[network.RequestID]bool
	pending     map[network.RequestID]ResponseEvent
	inflight    int
	fetching    int
	lastTraffic time.Time
}

// run executes actions on the tab while honoring the caller's ctx.
// cancelling a child of the tab context aborts the actions without
// closing the tab.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) onEvent(ev any) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.lock.Lock()
		// redirects reuse the request id
		if !p.tracked[ev.RequestID] {
			p.tracked[ev.RequestID] = true
			p.inflight++
		}
		p.lastTraffic = time.Now()
		p.lock.Unlock()

	case *network.EventResponseReceived:
		if ev.Type != network.ResourceTypeXHR && ev.Type != network.ResourceTypeFetch {
			return
		}
		p.lock.Lock()
		p.pending[ev.RequestID] = ResponseEvent{
			Url:          ev.Response.URL,
			ResourceType: ResourceType(ev.Type),
			MimeType:     ev.Response.MimeType,
			Status:       int(ev.Response.Status),
		}
		p.lock.Unlock()

	case *network.EventLoadingFinished:
		p.lock.Lock()
		p.finish(ev.RequestID)
		event, ok := p.pending[ev.RequestID]
		delete(p.pending, ev.RequestID)
		if ok && p.queue.Load() != nil {
			p.fetching++
		} else {
			ok = false
		}
		p.lock.Unlock()

		if ok {
			// GetResponseBody can't be issued from inside the listener
			go p.fetchBody(ev.RequestID, event)
		}

	case *network.EventLoadingFailed:
		p.lock.Lock()
		p.finish(ev.RequestID)
		delete(p.pending, ev.RequestID)
		p.lock.Unlock()
	}
}

// finish must be called with p.lock held.
func (p *chromePage) finish(id network.RequestID) {
	if p.tracked[id] {
		delete(p.tracked, id)
		p.inflight--
	}
	p.lastTraffic = time.Now()
}

func (p *chromePage) fetchBody(id network.RequestID, event ResponseEvent) {
	defer func() {
		p.lock.Lock()
		p.fetching--
		p.lastTraffic = time.Now()
		p.lock.Unlock()
	}()

	c := chromedp.FromContext(p.tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	ctx, cancel := context.WithTimeout(cdp.WithExecutor(p.tabCtx, c.Target), time.Second*10)
	defer cancel()

	body, err := network.GetResponseBody(id).Do(ctx)
	if err != nil {
		slog.Debug("failed to read response body", "url", event.Url, "err", err)
		return
	}
	if len(body) > p.options.MaxBodyBytes {
		slog.Debug("response body too large", "url", event.Url, "size", len(body))
		return
	}
	event.Body = body

	queue := p.queue.Load()
	if queue != nil && !queue.Push(event) {
		slog.Warn("response queue full, dropping response", "url", event.Url)
	}
}

func (p *chromePage) Observe(queue *ResponseQueue) error {
	if p.navigated.Load() {
		return ErrObserverAfterNavigation
	}
	p.queue.Store(queue)
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	p.navigated.Store(true)
	err := p.run(ctx, chromedp.Navigate(url))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
	}
	return err
}

func (p *chromePage) Location(ctx context.Context) (string, string, error) {
	var url, title string
	err := p.run(ctx, chromedp.Location(&url), chromedp.Title(&title))
	return url, title, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) SendKeys(ctx context.Context, selector string, text string) error {
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) PressEscape(ctx context.Context) error {
	return p.run(ctx, chromedp.KeyEvent(kb.Escape))
}

func (p *chromePage) idle() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.inflight <= 0 && p.fetching <= 0 && time.Since(p.lastTraffic) >= p.options.QuietPeriod
}

func (p *chromePage) Settle(ctx context.Context, max time.Duration) error {
	ctx, span := tracer.Start(ctx, "Settle")
	defer span.End()

	deadline := time.NewTimer(max)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 100)
	defer ticker.Stop()

	for {
		if p.idle() {
			span.SetAttributes(attribute.Bool("idle", true))
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			span.SetAttributes(attribute.Bool("idle", false))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(p.tabCtx, time.Second*5)
		defer cancel()
		err := chromedp.Cancel(ctx)
		if err != nil {
			slog.Debug("graceful browser shutdown failed", "err", err)
		}
		p.cancel()
	})
	return nil
}
