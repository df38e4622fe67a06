package probe

import (
	"regexp"
)

var UsernameField = Selectors(
	"#username",
	`input[name="username"]`,
	`input[type="email"]`,
	`input[type="text"]`,
	"#login",
)

var PasswordField = Selectors(
	"#password",
	`input[name="password"]`,
	`input[type="password"]`,
)

var SubmitButton = Selectors(
	"#kc-login",
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button[name="login"]`,
)

// keycloak renders validation errors in one of these
var LoginError = Selectors(
	"#input-error",
	".kc-feedback-text",
	".alert-error",
	`[class*="error-message"]`,
)

var monthLabelPattern = regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}$`)

var MonthLabel = []Probe{
	Selector("h2.IADP-MuiTypography-h2"),
	Selector(`[data-test-id="calendar-title"]`),
	Selector(`[class*="month-label"]`),
	Selector(`[class*="toolbar"] h2`),
	TextPattern("heading text", "h1, h2, h3, h4, span, div", monthLabelPattern),
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

var forwardLabels = []string{"next"}
var backwardLabels = []string{"prev", "previous"}

var forwardWords = []string{"next", "forward", "chevron-right", "arrow-right", "›", "»"}
var backwardWords = []string{"prev", "previous", "back", "chevron-left", "arrow-left", "‹", "«"}

// NavControl locates the month stepping control for a direction.
func NavControl(d Direction) []Probe {
	labels, words, exclude := forwardLabels, forwardWords, backwardWords
	if d == Backward {
		labels, words, exclude = backwardLabels, backwardWords, forwardWords
	}
	return []Probe{
		Attribute("aria-label", labels...),
		Attribute("class", labels...),
		Fuzzy("nav "+d.String(), `button, [role="button"], a`, words, exclude),
	}
}

var CookieBanner = []Probe{
	Selector("#onetrust-accept-btn-handler"),
	Selector(`[class*="cookie"] button`),
	TextPattern("cookie ok", "button", regexp.MustCompile(`(?i)^(ok|accept|accept all|got it)$`)),
}

var PanelClose = append(
	Selectors(
		`[data-test-id="close-button"]`,
		`[aria-label="close"]`,
		`[aria-label="Close"]`,
		`[class*="close"]`,
	),
	Fuzzy("close text", `button, [role="button"]`, []string{"close"}, nil),
)

var NewsTab = []Probe{
	Selector(`[data-test-id="news-tab"]`),
	TextPattern("news tab", `[role="tab"], button, a, li, span`, regexp.MustCompile(`(?i)^news$`)),
}
