package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/news"
	"rosteriq-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const savedText = `RES01 03Dec
C1234/16Dec
GB3130 16Dec 763 N1234X
CVG-LAX
`

const savedHTML = `<html><body><main>
	<div class="duty">RES01 03Dec</div>
	<div class="duty">C1234/16Dec</div>
	<div>GB3130 16Dec 763 N1234X</div>
	<div>CVG-LAX</div>
</main></body></html>`

func TestParseFile(t *testing.T) {
	now := timezone.Date(2025, 11, 20)
	dir := t.TempDir()

	for name, contents := range map[string]string{
		"roster.txt":  savedText,
		"roster.html": savedHTML,
		// no extension, detected by content
		"roster": savedHTML,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

			duties, report, err := parseFile(context.Background(), path, now)
			require.NoError(t, err)
			require.Equal(t, 2, report.Normalized)
			require.Len(t, duties, 2)
			require.Equal(t, roster.Reserve, duties[0].Type)
			require.Equal(t, "2025-12-03", duties[0].Date)
			require.Equal(t, roster.Flight, duties[1].Type)
			require.Equal(t, "C1234", duties[1].Pairing)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	_, _, err := parseFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), timezone.Now())
	require.Error(t, err)
}

func TestRenderDuties(t *testing.T) {
	duties := []roster.Duty{{
		Id:      "GB3130",
		Type:    roster.Flight,
		Date:    "2025-12-16",
		Pairing: "C1234",
		Legs: []roster.Leg{
			{From: "CVG", To: "LAX", FlightNumber: "GB3130"},
			{From: "LAX", To: "ANC", Deadhead: true},
		},
	}}

	var out bytes.Buffer
	renderDuties(&out, duties, roster.Summarize(duties), []string{"calendar stuck"})
	require.Contains(t, out.String(), "CVG-LAX LAX-ANC (DH)")
	require.Contains(t, out.String(), "C1234")
	require.Contains(t, out.String(), "note: calendar stuck")
}

func TestRenderNews(t *testing.T) {
	var out bytes.Buffer
	renderNews(&out, nil)
	require.Empty(t, out.String())

	renderNews(&out, []news.Item{{Title: "Deicing update", Date: "2025-12-16", Content: "Type IV fluid only at CVG."}})
	require.Contains(t, out.String(), "Deicing update")
	require.Contains(t, out.String(), "2025-12-16")
}
