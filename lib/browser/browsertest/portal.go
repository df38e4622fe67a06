package browsertest

import (
	"fmt"
	"strings"
	"time"

	"rosteriq-backend/lib/browser"
)

// PortalScript describes a scripted crew portal: a keycloak style login
// followed by a month calendar with previous/next controls.
type PortalScript struct {
	Url string
	// empty username means the portal does not ask for a login
	Username string
	Password string

	Month time.Month
	Year  int

	// rendered inside <main> for the month on screen
	Body func(month time.Month, year int) string
	// xhr traffic fired whenever a month is shown
	Responses func(month time.Month, year int) []browser.ResponseEvent
	// hides the calendar stepping buttons
	NoNavControls bool
	// bulletins behind the NEWS tab, the tab only shows when set
	News []NewsEntry
}

type NewsEntry struct {
	Title string
	Date  string
	Body  string
}

const SignInUrl = "https://sso.crew.test/auth/realms/crew/protocol/openid-connect/auth?client_id=netline"

func loginHTML(errorText string) string {
	errorBlock := ""
	if errorText != "" {
		errorBlock = fmt.Sprintf(`<span id="input-error">%s</span>`, errorText)
	}
	return fmt.Sprintf(`<html><head><title>Sign in to crew</title></head><body>
	<form id="kc-form-login">
		%s
		<input id="username" name="username" type="text">
		<input id="password" name="password" type="password" data-submit="login">
		<input id="kc-login" type="submit" value="Sign In" data-action="login">
	</form>
</body></html>`, errorBlock)
}

type portalState struct {
	script PortalScript
	month  time.Month
	year   int

	newsView bool
	// index of the open bulletin, -1 when none is
	openNews int
}

func (s *portalState) newsHTML() string {
	var b strings.Builder
	b.WriteString(`<ul class="news-list">`)
	for i, entry := range s.script.News {
		fmt.Fprintf(&b, `<li class="news-item" data-action="news-%d">%s</li>`, i, entry.Title)
	}
	b.WriteString(`</ul>`)
	if s.openNews >= 0 {
		entry := s.script.News[s.openNews]
		fmt.Fprintf(&b, `<div role="dialog">
			<h3>%s</h3>
			<p>%s</p>
			<p>%s</p>
			<button aria-label="Close" data-action="close-news">×</button>
		</div>`, entry.Title, entry.Date, entry.Body)
	}
	return b.String()
}

func (s *portalState) appHTML() string {
	controls := `<button aria-label="Previous month" data-action="prev">‹</button>
		<button aria-label="Next month" data-action="next">›</button>`
	if s.script.NoNavControls {
		controls = ""
	}
	body := ""
	if s.script.Body != nil {
		body = s.script.Body(s.month, s.year)
	}
	footer := ""
	if len(s.script.News) > 0 {
		footer = `<nav class="IADP-bottom-nav"><span role="tab" data-action="news">NEWS</span></nav>`
		if s.newsView {
			body = s.newsHTML()
		}
	}
	return fmt.Sprintf(`<html><head><title>NetLine/Crew</title></head><body>
	<header class="IADP-toolbar">
		<h2 class="IADP-MuiTypography-root IADP-MuiTypography-h2">%s %d</h2>
		%s
	</header>
	<main>%s</main>
	%s
</body></html>`, s.month.String(), s.year, controls, body, footer)
}

func (s *portalState) news(open int) Action {
	return func(p *Page) error {
		s.newsView = true
		s.openNews = open
		p.Show(s.script.Url, "NetLine/Crew", s.appHTML())
		return nil
	}
}

func (s *portalState) show(p *Page) {
	p.Show(s.script.Url, "NetLine/Crew", s.appHTML())
	if s.script.Responses != nil {
		p.Emit(s.script.Responses(s.month, s.year)...)
	}
}

func (s *portalState) step(delta int) Action {
	return func(p *Page) error {
		shown := time.Date(s.year, s.month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
		s.month = shown.Month()
		s.year = shown.Year()
		s.show(p)
		return nil
	}
}

// NewPortal builds a page that behaves like the scripted portal.
func NewPortal(script PortalScript) *Page {
	p := NewPage()
	state := &portalState{script: script, month: script.Month, year: script.Year, openNews: -1}

	if script.Username == "" {
		p.Routes[script.Url] = Route{
			Title: "NetLine/Crew",
			HTML:  state.appHTML(),
		}
		if script.Responses != nil {
			route := p.Routes[script.Url]
			route.Responses = script.Responses(state.month, state.year)
			p.Routes[script.Url] = route
		}
	} else {
		p.Routes[script.Url] = Route{
			Url:   SignInUrl,
			Title: "Sign in to crew",
			HTML:  loginHTML(""),
		}
	}

	p.Actions["login"] = func(p *Page) error {
		if p.Value("#username") == script.Username && p.Value("#password") == script.Password {
			state.show(p)
			return nil
		}
		p.Show(SignInUrl, "Sign in to crew", loginHTML("Invalid username or password."))
		return nil
	}
	p.Actions["next"] = state.step(1)
	p.Actions["prev"] = state.step(-1)
	p.Actions["news"] = state.news(-1)
	p.Actions["close-news"] = state.news(-1)
	for i := range script.News {
		p.Actions[fmt.Sprintf("news-%d", i)] = state.news(i)
	}
	return p
}
