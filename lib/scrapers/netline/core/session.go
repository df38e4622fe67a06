package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/scrapers/netline/probe"

	"github.com/PuerkitoBio/goquery"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/netline/core")

type Options struct {
	// bound on the initial page load
	NavigationTimeout time.Duration
	// how long the login form fields are polled for
	FieldTimeout time.Duration
	// how long to wait for the portal to leave the sign-in page
	LoginTimeout time.Duration
	// bound on waiting for the spa to finish loading after navigation
	SettleTimeout time.Duration
	PollInterval  time.Duration
	QueueCapacity int
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = time.Second * 45
	}
	if o.FieldTimeout <= 0 {
		o.FieldTimeout = time.Second * 15
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = time.Second * 20
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = time.Second * 5
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Millisecond * 250
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 256
	}
	return o
}

// Session is an authenticated portal page. It is owned by exactly one
// run and must be closed by it.
type Session struct {
	Portal    Portal
	Page      browser.Page
	Responses *browser.ResponseQueue
	RunId     string
	Options   Options

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Page.Close()
	})
	return s.closeErr
}

// Snapshot parses the current rendered document.
func (s *Session) Snapshot(ctx context.Context) (*goquery.Document, error) {
	return snapshot(ctx, s.Page)
}

func snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

var signInUrlMarkers = []string{"auth/realms", "openid-connect/auth", "/login"}
var signInTitleMarkers = []string{"sign in", "log in", "login"}
var errorMarkers = []string{"error", "invalid"}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isSignIn(url, title string) bool {
	return containsAny(url, signInUrlMarkers) || containsAny(title, signInTitleMarkers)
}

func isError(url, title string) bool {
	return containsAny(url, errorMarkers) || containsAny(title, errorMarkers)
}

// Open launches a page, navigates to the portal and signs in when the
// portal asks for it. The page is closed on every failure path.
func Open(ctx context.Context, launcher browser.Launcher, registry *Registry, creds Credentials, opts Options) (session *Session, err error) {
	ctx, span := tracer.Start(ctx, "Open")
	defer span.End()

	opts = opts.withDefaults()
	portal := registry.Resolve(creds.Airline)
	span.SetAttributes(
		attribute.String("portal", portal.Id),
		attribute.String("employee_id", creds.EmployeeId),
	)

	runId, err := random.String(8)
	if err != nil {
		return nil, err
	}
	logger := slog.With("run_id", runId, "portal", portal.Id)

	page, err := launcher.Launch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return nil, err
	}
	closePage := func() {
		closeErr := page.Close()
		if closeErr != nil {
			logger.WarnContext(ctx, "failed to close page", "err", closeErr)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic while opening session")
			closePage()
			panic(r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open session")
			closePage()
		}
	}()

	// responses fired during the first load are part of the roster
	queue := browser.NewResponseQueue(opts.QueueCapacity)
	err = page.Observe(queue)
	if err != nil {
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.NavigationTimeout)
	err = page.Navigate(navCtx, portal.Url)
	cancel()
	if err != nil {
		return nil, &NavigationError{Url: portal.Url, Err: err}
	}
	err = page.Settle(ctx, opts.SettleTimeout)
	if err != nil {
		return nil, &NavigationError{Url: portal.Url, Err: err}
	}

	url, title, err := page.Location(ctx)
	if err != nil {
		return nil, &NavigationError{Url: portal.Url, Err: err}
	}
	logger.DebugContext(ctx, "portal loaded", "url", url, "title", title)

	needsLogin := isSignIn(url, title)
	if !needsLogin {
		doc, err := snapshot(ctx, page)
		if err == nil {
			_, hasPassword := probe.First(doc, probe.PasswordField)
			needsLogin = hasPassword
		}
	}
	if needsLogin {
		logger.InfoContext(ctx, "signing in", "creds", creds)
		err = login(ctx, page, creds, opts)
		if err != nil {
			return nil, err
		}
	}

	dismissCookieBanner(ctx, page)

	return &Session{
		Portal:    portal,
		Page:      page,
		Responses: queue,
		RunId:     runId,
		Options:   opts,
	}, nil
}

// WithSession opens a session, runs fn and closes the session no matter
// how fn returns.
func WithSession(ctx context.Context, launcher browser.Launcher, registry *Registry, creds Credentials, opts Options, fn func(ctx context.Context, s *Session) error) error {
	session, err := Open(ctx, launcher, registry, creds, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := session.Close()
		if closeErr != nil {
			slog.WarnContext(ctx, "failed to close session", "run_id", session.RunId, "err", closeErr)
		}
	}()
	return fn(ctx, session)
}

// waitFor polls document snapshots until one of the probes matches or
// the timeout elapses.
func waitFor(ctx context.Context, page browser.Page, probes []probe.Probe, timeout, interval time.Duration) (probe.Hit, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		doc, err := snapshot(ctx, page)
		if err == nil {
			hit, ok := probe.First(doc, probes)
			if ok {
				return hit, true
			}
		}
		select {
		case <-ctx.Done():
			return probe.Hit{}, false
		case <-time.After(interval):
		}
	}
}

func login(ctx context.Context, page browser.Page, creds Credentials, opts Options) error {
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	fail := func(reason string) error {
		url, title, _ := page.Location(ctx)
		span.SetStatus(codes.Error, reason)
		return &AuthError{Url: url, Title: title, Reason: reason}
	}

	username, ok := waitFor(ctx, page, probe.UsernameField, opts.FieldTimeout, opts.PollInterval)
	if !ok {
		return fail("username field not found")
	}
	password, ok := waitFor(ctx, page, probe.PasswordField, opts.FieldTimeout, opts.PollInterval)
	if !ok {
		return fail("password field not found")
	}

	err := page.SendKeys(ctx, username.Selector, creds.EmployeeId)
	if err != nil {
		return fail(fmt.Sprintf("could not fill username: %s", err))
	}
	err = page.SendKeys(ctx, password.Selector, creds.Password)
	if err != nil {
		return fail(fmt.Sprintf("could not fill password: %s", err))
	}

	submit, ok := waitFor(ctx, page, probe.SubmitButton, opts.PollInterval*4, opts.PollInterval)
	if ok {
		err = page.Click(ctx, submit.Selector)
	} else {
		err = page.SendKeys(ctx, password.Selector, "\r")
	}
	if err != nil {
		return fail(fmt.Sprintf("could not submit login form: %s", err))
	}

	return awaitLogin(ctx, page, opts, fail)
}

func awaitLogin(ctx context.Context, page browser.Page, opts Options, fail func(string) error) error {
	deadline := time.Now().Add(opts.LoginTimeout)
	for {
		err := page.Settle(ctx, opts.PollInterval*4)
		if err != nil {
			return err
		}

		url, title, err := page.Location(ctx)
		if err == nil && !isSignIn(url, title) && !isError(url, title) {
			return nil
		}

		doc, err := snapshot(ctx, page)
		if err == nil {
			hit, found := probe.First(doc, probe.LoginError)
			if found && hit.Text != "" {
				return fail(hit.Text)
			}
		}

		if time.Now().After(deadline) {
			return fail("still on sign-in page after submitting credentials")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

func dismissCookieBanner(ctx context.Context, page browser.Page) {
	doc, err := snapshot(ctx, page)
	if err != nil {
		return
	}
	hit, ok := probe.First(doc, probe.CookieBanner)
	if !ok {
		return
	}
	clickCtx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()
	err = page.Click(clickCtx, hit.Selector)
	if err != nil {
		slog.DebugContext(ctx, "failed to dismiss cookie banner", "err", err)
	}
}
