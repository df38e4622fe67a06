package rosterservice

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/browser/browsertest"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/core"
	"rosteriq-backend/lib/scrapers/netline/news"
	"rosteriq-backend/lib/telemetry"
	"rosteriq-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const portalUrl = "https://crew.test/nlcrew/ui/netline/crew/crm-workspace/index.html#/iadp"

func TestMain(m *testing.M) {
	flag.Parse()
	telemetry.InitSlog(testing.Verbose())
	os.Exit(m.Run())
}

func rosterResponse(body string) browser.ResponseEvent {
	return browser.ResponseEvent{
		Url:          "https://crew.test/nlcrew/api/roster/events",
		ResourceType: browser.ResourceXHR,
		MimeType:     "application/json",
		Status:       200,
		Body:         []byte(body),
	}
}

// monthResponses serves two duties for december 2025 and an unrelated
// duty for any other month.
func monthResponses(month time.Month, year int) []browser.ResponseEvent {
	if month != time.December || year != 2025 {
		return []browser.ResponseEvent{rosterResponse(fmt.Sprintf(
			`{"result": [{"id": "OTHER-%d-%d", "code": "SBY", "date": "%d-%02d-10"}]}`,
			year, month, year, month,
		))}
	}
	return []browser.ResponseEvent{rosterResponse(`{"result": [
		{"id": "RES01", "code": "RES01", "date": "2025-12-03", "startTime": "2025-12-03T04:00:00"},
		{"id": "GB123", "flightNumber": "GB123", "date": "2025-12-16", "departure": "CVG", "arrival": "LAX"}
	]}`)}
}

func testScript() browsertest.PortalScript {
	return browsertest.PortalScript{
		Url:       portalUrl,
		Username:  "E1234",
		Password:  "hunter2",
		Month:     time.November,
		Year:      2025,
		Responses: monthResponses,
	}
}

// portalLauncher hands out a fresh scripted portal per launch.
type portalLauncher struct {
	script   browsertest.PortalScript
	launches int
	pages    []*browsertest.Page
}

func (l *portalLauncher) Launch(ctx context.Context) (browser.Page, error) {
	l.launches++
	page := browsertest.NewPortal(l.script)
	l.pages = append(l.pages, page)
	return page, nil
}

func testPipeline(launcher browser.Launcher) Pipeline {
	pipeline := NewPipeline(
		launcher,
		core.NewRegistry(core.Portal{Id: "TEST", Name: "Test Air", Url: portalUrl}),
		PipelineOptions{
			Session: core.Options{
				NavigationTimeout: time.Second,
				FieldTimeout:      time.Millisecond * 200,
				LoginTimeout:      time.Millisecond * 300,
				SettleTimeout:     time.Millisecond * 10,
				PollInterval:      time.Millisecond * 10,
			},
		},
	)
	pipeline.Now = func() time.Time {
		return timezone.Date(2025, time.November, 20)
	}
	return pipeline
}

var testCredentials = core.Credentials{EmployeeId: "E1234", Password: "hunter2", Airline: "TEST"}

func dutyTypes(duties []roster.Duty) map[string]roster.DutyType {
	out := map[string]roster.DutyType{}
	for _, d := range duties {
		out[d.Id] = d.Type
	}
	return out
}

func TestAcquire(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	pipeline := testPipeline(launcher)

	result, err := pipeline.Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
	})
	require.NoError(t, err)

	require.Equal(t, "TEST", result.Portal)
	require.NotEmpty(t, result.RunId)
	require.Equal(t, map[string]roster.DutyType{
		"RES01": roster.Reserve,
		"GB123": roster.Flight,
	}, dutyTypes(result.Duties))
	require.Equal(t, roster.Summary{FlightCount: 1, ReserveCount: 1}, result.Summary)

	require.Equal(t, []roster.Leg{{From: "CVG", To: "LAX", FlightNumber: "GB123"}}, result.Duties[1].Legs)
	require.Equal(t, "2025-12-03T04:00:00", result.Duties[0].Start)

	// the flight was attempted and the portal has no detail panel
	require.Equal(t, 1, result.Enrichment.Attempted)
	require.Len(t, result.Enrichment.Failures, 1)

	require.Equal(t, 1, launcher.pages[0].Closed())
}

func TestAcquireCurrentMonth(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	pipeline := testPipeline(launcher)

	result, err := pipeline.Acquire(context.Background(), Request{Credentials: testCredentials})
	require.NoError(t, err)
	require.Equal(t, time.November, result.Month)
	require.Equal(t, 2025, result.Year)
	require.Equal(t, map[string]roster.DutyType{"OTHER-2025-11": roster.Reserve}, dutyTypes(result.Duties))
	// only the login form was submitted, the calendar was not touched
	require.Equal(t, []string{"#kc-login"}, launcher.pages[0].Clicks)
}

func TestAcquireNews(t *testing.T) {
	script := testScript()
	script.News = []browsertest.NewsEntry{
		{Title: "Deicing update", Date: "12/16/2025", Body: "Type IV fluid only at CVG."},
		{Title: "Crew room closed", Body: "Use the lounge at gate B5."},
	}
	launcher := &portalLauncher{script: script}
	pipeline := testPipeline(launcher)
	pipeline.Options.SkipEnrich = true

	result, err := pipeline.Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
		News:        true,
	})
	require.NoError(t, err)
	require.Len(t, result.Duties, 2)
	require.Equal(t, []news.Item{
		{Title: "Deicing update", Date: "2025-12-16", Content: "12/16/2025 Type IV fluid only at CVG."},
		{Title: "Crew room closed", Content: "Use the lounge at gate B5."},
	}, result.News)
	require.Empty(t, result.Notes)

	// not requested, not read
	result, err = pipeline.Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
	})
	require.NoError(t, err)
	require.Nil(t, result.News)
	require.NotContains(t, launcher.pages[1].Clicks, `[aria-label="Close"]`)
}

func TestAcquireNewsMissing(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	pipeline := testPipeline(launcher)
	pipeline.Options.SkipEnrich = true

	result, err := pipeline.Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
		News:        true,
	})
	require.NoError(t, err)
	require.Len(t, result.Duties, 2)
	require.Empty(t, result.News)
	require.Equal(t, []string{"news could not be read: " + news.ErrNoNewsTab.Error()}, result.Notes)
}

func TestAcquireTextFallback(t *testing.T) {
	script := testScript()
	script.Responses = nil
	script.Body = func(month time.Month, year int) string {
		if month != time.December {
			return ""
		}
		return `<div class="duty">RES01 03Dec</div>
			<div class="duty">C1234/16Dec</div>
			<div>GB3130 16Dec 763 N1234X</div>
			<div>CVG-LAX</div>`
	}
	launcher := &portalLauncher{script: script}
	pipeline := testPipeline(launcher)
	pipeline.Options.SkipEnrich = true

	result, err := pipeline.Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
	})
	require.NoError(t, err)
	require.Len(t, result.Duties, 2)
	require.Equal(t, roster.Reserve, result.Duties[0].Type)
	require.Equal(t, "2025-12-03", result.Duties[0].Date)
	require.Equal(t, roster.Flight, result.Duties[1].Type)
	require.Equal(t, "C1234", result.Duties[1].Pairing)
	require.Equal(t, "N1234X", result.Duties[1].Tail)
	require.Empty(t, result.Notes)
}

func TestAcquireNotes(t *testing.T) {
	script := testScript()
	script.Responses = nil
	script.NoNavControls = true
	launcher := &portalLauncher{script: script}

	result, err := testPipeline(launcher).Acquire(context.Background(), Request{
		Credentials: testCredentials,
		Month:       time.December,
		Year:        2025,
	})
	require.NoError(t, err)
	require.Empty(t, result.Duties)
	require.Len(t, result.Notes, 2)
	require.Contains(t, result.Notes[0], "December 2025")
	require.Contains(t, result.Notes[1], "no duties")
}

func TestAcquireAuthError(t *testing.T) {
	launcher := &portalLauncher{script: testScript()}
	creds := testCredentials
	creds.Password = "wrong"

	_, err := testPipeline(launcher).Acquire(context.Background(), Request{Credentials: creds})
	var authErr *core.AuthError
	require.True(t, errors.As(err, &authErr), err)
	require.Equal(t, browsertest.SignInUrl, authErr.Url)
	require.NotContains(t, err.Error(), "wrong")
	require.Equal(t, 1, launcher.pages[0].Closed())
}

func TestAcquireNavigationError(t *testing.T) {
	page := browsertest.NewPage()
	launcher := &browsertest.Launcher{Page: page}

	_, err := testPipeline(launcher).Acquire(context.Background(), Request{Credentials: testCredentials})
	var navErr *core.NavigationError
	require.True(t, errors.As(err, &navErr), err)
	require.True(t, strings.HasPrefix(navErr.Url, "https://crew.test/"))
	require.True(t, navErr.DNS())
	require.Equal(t, 1, page.Closed())
}

func TestAcquireDefaultPortal(t *testing.T) {
	registry := core.NewRegistry()
	script := testScript()
	script.Url = registry.Resolve("ABX").Url
	launcher := &portalLauncher{script: script}

	pipeline := testPipeline(launcher)
	pipeline.Registry = registry
	pipeline.Options.SkipEnrich = true

	// unknown airlines fall back to ABX
	creds := testCredentials
	creds.Airline = "UNKNOWN"
	result, err := pipeline.Acquire(context.Background(), Request{
		Credentials: creds,
		Month:       time.December,
		Year:        2025,
	})
	require.NoError(t, err)
	require.Equal(t, "ABX", result.Portal)
	require.Equal(t, map[string]roster.DutyType{
		"RES01": roster.Reserve,
		"GB123": roster.Flight,
	}, dutyTypes(result.Duties))
	require.Equal(t, roster.Summary{FlightCount: 1, ReserveCount: 1}, result.Summary)
}
