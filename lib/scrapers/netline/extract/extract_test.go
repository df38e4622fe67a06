package extract

import (
	"context"
	"testing"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/browser/browsertest"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/timezone"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func xhr(url, body string) browser.ResponseEvent {
	return browser.ResponseEvent{
		Url:          url,
		ResourceType: browser.ResourceXHR,
		MimeType:     "application/json",
		Status:       200,
		Body:         []byte(body),
	}
}

func TestCollectFiltersResponses(t *testing.T) {
	interceptor := NewInterceptor(InterceptorOptions{})
	records := interceptor.Collect([]browser.ResponseEvent{
		xhr("https://crew.test/api/roster/events", `{"result": [{"id": "RES01", "code": "RES01"}]}`),
		// wrong resource type
		{Url: "https://crew.test/api/roster/page", ResourceType: browser.ResourceDocument, Body: []byte(`[{"id": "X"}]`)},
		// url has no roster keyword
		xhr("https://crew.test/api/user/profile", `[{"id": "profile"}]`),
		// not json
		xhr("https://crew.test/api/schedule.css", `body { color: red }`),
		{Url: "https://crew.test/api/pairings", ResourceType: browser.ResourceFetch, Body: []byte(`[{"id": "GB123"}]`)},
	})

	require.Len(t, records, 2)
	require.Equal(t, "RES01", records[0].Key)
	require.Equal(t, roster.NetworkItem, records[0].Kind)
	require.Equal(t, "https://crew.test/api/roster/events", records[0].Source)
	require.Equal(t, "GB123", records[1].Key)
}

func TestCollectContainerKeys(t *testing.T) {
	cases := []struct {
		name string
		body string
		ids  []string
	}{
		{"top level array", `[{"id": "a"}, {"id": "b"}]`, []string{"a", "b"}},
		{"result", `{"result": [{"id": "a"}]}`, []string{"a"}},
		{"first populated key wins", `{"result": [], "data": [{"id": "b"}], "events": [{"id": "c"}]}`, []string{"b"}},
		{"nested one level", `{"data": {"events": [{"logicalId": "2025-12-16@C1234@1"}]}}`, []string{"2025-12-16@C1234@1"}},
		{"primitives are skipped", `{"duties": [1, "two", {"id": "c"}]}`, []string{"c"}},
		{"no container", `{"message": "ok"}`, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			interceptor := NewInterceptor(InterceptorOptions{})
			var ids []string
			for _, r := range interceptor.Collect([]browser.ResponseEvent{xhr("https://crew.test/duty", c.body)}) {
				ids = append(ids, r.Key)
			}
			require.Empty(t, cmp.Diff(c.ids, ids))
		})
	}
}

func TestCollectSkipsSeenItems(t *testing.T) {
	interceptor := NewInterceptor(InterceptorOptions{})
	body := `{"events": [{"code": "SBY", "date": "2025-12-03"}, {"id": "GB123"}]}`

	first := interceptor.Collect([]browser.ResponseEvent{xhr("https://crew.test/events", body)})
	require.Len(t, first, 2)
	// items without an id are keyed by their serialization
	require.Equal(t, `{"code":"SBY","date":"2025-12-03"}`, first[0].Key)

	second := interceptor.Collect([]browser.ResponseEvent{
		xhr("https://crew.test/events?page=2", body),
		xhr("https://crew.test/events?page=3", `[{"date": "2025-12-03", "code": "SBY"}]`),
	})
	require.Empty(t, second)
}

func TestCollectKeepsNumbers(t *testing.T) {
	interceptor := NewInterceptor(InterceptorOptions{})
	records := interceptor.Collect([]browser.ResponseEvent{
		xhr("https://crew.test/roster", `[{"id": 81726354, "startTime": 1765879500000}]`),
	})
	require.Len(t, records, 1)
	require.Equal(t, "81726354", records[0].Key)

	duty, err := roster.Normalize(records[0], timezone.Date(2025, time.December, 1))
	require.NoError(t, err)
	require.Equal(t, "81726354", duty.Id)
	require.Equal(t, "2025-12-16", duty.Date)
}

func TestHarvest(t *testing.T) {
	ctx := context.Background()
	page := browsertest.NewPage()
	queue := browser.NewResponseQueue(8)
	require.NoError(t, page.Observe(queue))

	page.Emit(
		xhr("https://crew.test/api/roster", `{"data": [{"id": "RES01", "code": "RES01", "date": "2025-12-03"}]}`),
		xhr("https://crew.test/api/roster", `{"data": [{"id": "RES01", "code": "RES01", "date": "2025-12-03"}]}`),
	)

	interceptor := NewInterceptor(InterceptorOptions{Settle: time.Millisecond})
	records, err := interceptor.Harvest(ctx, page, queue)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, page.Settles)

	// the queue was drained
	records, err = interceptor.Harvest(ctx, page, queue)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestHarvestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := browsertest.NewPage()
	queue := browser.NewResponseQueue(8)
	_, err := NewInterceptor(InterceptorOptions{}).Harvest(ctx, page, queue)
	require.ErrorIs(t, err, context.Canceled)
}

func fields(records []roster.RawRecord) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = r.Fields
	}
	return out
}

func TestExtractText(t *testing.T) {
	lines := []string{
		"Roster December 2025",
		"RES01 03Dec",
		"C1234/16Dec Rank: CA",
		"GB3130 763 N1234X",
		"CVG 16Dec 10:05 LT LAX 16Dec 13:10 LT",
		"Hampton Inn LAX Airport",
		"GB3131 DH",
		"LAX - CVG",
		"C5678/20Dec",
		"ANC 20Dec 22:00 -09:00",
		"SBY",
	}

	records := ExtractText(lines)
	expected := []map[string]any{
		{"code": "RES01", "date": "03Dec"},
		{
			"flightNumber": "GB3130", "code": "GB3130", "pairing": "C1234", "date": "16Dec",
			"aircraft": "763", "tail": "N1234X",
			"from": "CVG", "startTime": "16Dec 10:05 LT", "to": "LAX", "endTime": "16Dec 13:10 LT",
			"hotel": "Hampton Inn LAX Airport",
		},
		{
			"flightNumber": "GB3131", "code": "GB3131", "pairing": "C1234", "date": "16Dec",
			"deadhead": true, "from": "LAX", "to": "CVG",
		},
		// pairing header without flights is a record of its own
		{"pairing": "C5678", "code": "C5678", "date": "20Dec", "from": "ANC", "startTime": "20Dec 22:00 -09:00"},
		// no date, dropped later by the normalizer
		{"code": "SBY"},
	}
	require.Empty(t, cmp.Diff(expected, fields(records)))

	require.Equal(t, "text:RES01||03Dec", records[0].Key)
	require.Equal(t, "text:GB3130|C1234|16Dec", records[1].Key)
	require.Equal(t, roster.TextFragment, records[1].Kind)

	duties, report := roster.NormalizeAll(records, timezone.Date(2025, time.December, 1))
	require.Len(t, duties, 4)
	require.Equal(t, 1, report.Dropped["no_date"])

	types := []roster.DutyType{}
	for _, d := range duties {
		types = append(types, d.Type)
	}
	require.Equal(t, []roster.DutyType{roster.Reserve, roster.Flight, roster.Deadhead, roster.Flight}, types)
	require.Equal(t, "2025-12-16", duties[1].Date)
	require.Equal(t, []roster.Leg{{From: "CVG", To: "LAX", FlightNumber: "GB3130"}}, duties[1].Legs)
}

func TestExtractTextDeduplicates(t *testing.T) {
	records := ExtractText([]string{"RES01 03Dec", "RES01 03Dec", "RES01 04Dec"})
	require.Len(t, records, 2)
}

func TestExtractTextIgnoresLeadingNoise(t *testing.T) {
	records := ExtractText([]string{"CVG 16Dec 10:05 LT", "Hilton", "A320"})
	require.Empty(t, records)
}

func TestExtractHTML(t *testing.T) {
	body := `<html><head><title>Roster</title><script>var x = "RES99 01Dec"</script></head><body>
		<div class="duty"><span>C1234/16Dec</span></div>
		<div class="duty"><b>GB3130</b> <span>16Dec</span></div>
		<div>CVG-LAX</div>
		<div style="display: none">RES02 17Dec</div>
	</body></html>`

	records, err := ExtractHTML(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "GB3130", records[0].Fields["flightNumber"])
	require.Equal(t, "CVG", records[0].Fields["from"])
	require.Equal(t, "LAX", records[0].Fields["to"])
}

func TestExtractTextHotelIsNotReserve(t *testing.T) {
	records := ExtractText([]string{
		"C1234/16Dec",
		"GB3130 763 N1234X",
		"CVG 16Dec 10:05 LT ANC 16Dec 15:40 LT",
		"RESIDENCE INN ANCHORAGE",
		"RESIDENCE INN 17Dec",
		"RS2 18Dec",
	})
	require.Len(t, records, 2)
	require.Equal(t, "GB3130", records[0].Fields["flightNumber"])
	require.Equal(t, "RESIDENCE INN ANCHORAGE", records[0].Fields["hotel"])
	require.Equal(t, "17Dec", records[0].Fields["hotelDate"])
	require.Equal(t, map[string]any{"code": "RS2", "date": "18Dec"}, records[1].Fields)

	duties, _ := roster.NormalizeAll(records, timezone.Date(2025, time.December, 1))
	require.Len(t, duties, 2)
	require.Equal(t, roster.Flight, duties[0].Type)
	require.Equal(t, "2025-12-17", duties[0].HotelInfo.Date)
	require.Equal(t, roster.Reserve, duties[1].Type)
}

func TestExtractHTMLNoBreakSpaces(t *testing.T) {
	body := `<html><body>
		<div>GB3130 16Dec</div>
		<div>CVG&nbsp;16Dec&nbsp;10:05 LT</div>
		<div>LAX 16Dec 13:10 LT</div>
	</body></html>`

	records, err := ExtractHTML(context.Background(), body)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "CVG", records[0].Fields["from"])
	require.Equal(t, "16Dec 10:05 LT", records[0].Fields["startTime"])
	require.Equal(t, "LAX", records[0].Fields["to"])
}
