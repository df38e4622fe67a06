package probe

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

const keycloakLogin = `<html><body>
	<form id="kc-form-login">
		<input type="hidden" name="credentialId">
		<input id="username" name="username" type="text">
		<input id="password" name="password" type="password">
		<input id="kc-login" type="submit" value="Sign In">
	</form>
</body></html>`

const genericLogin = `<html><body>
	<form>
		<input type="hidden" name="csrf">
		<input type="text" placeholder="Employee number">
		<input type="password">
		<button type="submit">Log in</button>
	</form>
</body></html>`

func TestLoginProbes(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		username string
		password string
		submit   string
	}{
		{
			name:     "keycloak",
			html:     keycloakLogin,
			username: "#username",
			password: "#password",
			submit:   "#kc-login",
		},
		{
			name:     "generic form",
			html:     genericLogin,
			username: `input[type="text"]`,
			password: `input[type="password"]`,
			submit:   `button[type="submit"]`,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			doc := parse(t, test.html)

			hit, ok := First(doc, UsernameField)
			require.True(t, ok)
			require.Equal(t, test.username, hit.Selector)

			hit, ok = First(doc, PasswordField)
			require.True(t, ok)
			require.Equal(t, test.password, hit.Selector)

			hit, ok = First(doc, SubmitButton)
			require.True(t, ok)
			require.Equal(t, test.submit, hit.Selector)
		})
	}
}

func TestLoginProbesMissing(t *testing.T) {
	doc := parse(t, `<html><body><p>Maintenance in progress</p></body></html>`)
	_, ok := First(doc, UsernameField)
	require.False(t, ok)
}

func TestMonthLabel(t *testing.T) {
	testCases := []struct {
		name   string
		html   string
		expect string
	}{
		{
			name:   "iadp heading",
			html:   `<div><h2 class="IADP-MuiTypography-root IADP-MuiTypography-h2">December 2025</h2></div>`,
			expect: "December 2025",
		},
		{
			name:   "toolbar",
			html:   `<div class="fc-toolbar"><button>‹</button><h2>Jan 2026</h2></div>`,
			expect: "Jan 2026",
		},
		{
			name:   "bare text",
			html:   `<main><div><span>Roster</span></div><div><span>March 2026</span></div></main>`,
			expect: "March 2026",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			hit, ok := First(parse(t, test.html), MonthLabel)
			require.True(t, ok)
			require.Equal(t, test.expect, hit.Text)
		})
	}
}

func TestNavControl(t *testing.T) {
	doc := parse(t, `<html><body><div class="toolbar">
		<button aria-label="Previous month">‹</button>
		<h2>December 2025</h2>
		<button aria-label="Next month">›</button>
	</div></body></html>`)

	forward, ok := First(doc, NavControl(Forward))
	require.True(t, ok)
	require.Equal(t, "Next month", doc.Find(forward.Selector).AttrOr("aria-label", ""))

	backward, ok := First(doc, NavControl(Backward))
	require.True(t, ok)
	require.Equal(t, "Previous month", doc.Find(backward.Selector).AttrOr("aria-label", ""))
}

func TestNavControlFuzzyText(t *testing.T) {
	doc := parse(t, `<html><body>
		<a href="#">Back to dashboard</a>
		<span role="button" class="btn">Forward</span>
	</body></html>`)

	hit, ok := First(doc, NavControl(Forward))
	require.True(t, ok)
	require.Equal(t, "Forward", hit.Text)
	require.Equal(t, "nav forward", hit.Probe)

	_, ok = First(parse(t, `<html><body><h2>December 2025</h2></body></html>`), NavControl(Forward))
	require.False(t, ok)
}

func TestNavControlSkipsPreview(t *testing.T) {
	doc := parse(t, `<html><body>
		<div class="preview-pane"><button class="btn-preview">Open</button></div>
		<div class="toolbar">
			<button class="IADP-MuiButton-root calendarPrevButton">‹</button>
			<h2>December 2025</h2>
			<button class="IADP-MuiButton-root calendarNextButton">›</button>
		</div>
	</body></html>`)

	backward, ok := First(doc, NavControl(Backward))
	require.True(t, ok)
	require.Equal(t, "class prev|previous", backward.Probe)
	require.Equal(t, "‹", backward.Text)

	forward, ok := First(doc, NavControl(Forward))
	require.True(t, ok)
	require.Equal(t, "›", forward.Text)
}

func TestHasWord(t *testing.T) {
	testCases := []struct {
		value  string
		word   string
		expect bool
	}{
		{value: "btn-prev", word: "prev", expect: true},
		{value: "calendarPrevButton", word: "prev", expect: true},
		{value: "Previous month", word: "previous", expect: true},
		{value: "preview", word: "prev", expect: false},
		{value: "btn-preview prev", word: "prev", expect: true},
		{value: "background", word: "back", expect: false},
		{value: "icon chevron-left", word: "chevron-left", expect: true},
		{value: "next ›", word: "›", expect: true},
		{value: "", word: "next", expect: false},
	}

	for _, test := range testCases {
		t.Run(test.value+"/"+test.word, func(t *testing.T) {
			require.Equal(t, test.expect, hasWord(test.value, test.word))
		})
	}
}

func TestCookieBanner(t *testing.T) {
	doc := parse(t, `<html><body><div class="banner"><p>We use cookies</p><button>OK</button></div></body></html>`)
	hit, ok := First(doc, CookieBanner)
	require.True(t, ok)
	require.Equal(t, "OK", hit.Text)
}
