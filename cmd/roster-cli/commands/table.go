package commands

import (
	"fmt"
	"io"
	"strings"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/news"

	"github.com/jedib0t/go-pretty/v6/table"
)

func route(legs []roster.Leg) string {
	var parts []string
	for _, leg := range legs {
		part := leg.From + "-" + leg.To
		if leg.Deadhead {
			part += " (DH)"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

func renderDuties(out io.Writer, duties []roster.Duty, summary roster.Summary, notes []string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Date", "Id", "Type", "Pairing", "Route", "Start", "End", "Aircraft", "Hotel"})
	for _, d := range duties {
		t.AppendRow(table.Row{
			d.Date, d.Id, d.Type, d.Pairing, route(d.Legs),
			d.Start, d.End, strings.TrimSpace(d.AircraftType+" "+d.Tail), d.Hotel,
		})
	}
	t.AppendFooter(table.Row{
		"", fmt.Sprintf("%d duties", len(duties)), "",
		fmt.Sprintf("flights %d", summary.FlightCount),
		fmt.Sprintf("reserve %d", summary.ReserveCount),
		fmt.Sprintf("iadp %d", summary.IadpCount),
		fmt.Sprintf("deadhead %d", summary.DeadheadCount),
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, note := range notes {
		fmt.Fprintf(out, "note: %s\n", note)
	}
}

func renderNews(out io.Writer, items []news.Item) {
	if len(items) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Date", "News", "Content"})
	for _, item := range items {
		t.AppendRow(table.Row{item.Date, item.Title, item.Content})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60}})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
