package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/extract"
	"rosteriq-backend/lib/serviceutil"
	"rosteriq-backend/lib/timezone"

	"github.com/spf13/cobra"
)

var parseJson *bool
var parseNow *string

func init() {
	parseJson = parseCmd.Flags().Bool("json", false, "Print the duties as json instead of a table.")
	parseNow = parseCmd.Flags().String("now", "", "Reference date (YYYY-MM-DD) used to resolve dates without a year.")
	rootCmd.AddCommand(parseCmd)
}

func isHTML(path, contents string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(contents), "<")
}

func parseRecords(ctx context.Context, path, contents string) ([]roster.RawRecord, error) {
	if isHTML(path, contents) {
		return extract.ExtractHTML(ctx, contents)
	}
	return extract.ExtractText(strings.Split(contents, "\n")), nil
}

// parseFile runs the offline half of the pipeline over a saved page.
func parseFile(ctx context.Context, path string, now time.Time) ([]roster.Duty, roster.Report, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, roster.Report{}, err
	}
	records, err := parseRecords(ctx, path, string(contents))
	if err != nil {
		return nil, roster.Report{}, fmt.Errorf("extract %s: %w", path, err)
	}
	duties, report := roster.NormalizeAll(records, now)
	return duties, report, nil
}

func reportNotes(report roster.Report) []string {
	var notes []string
	if report.Duplicates > 0 {
		notes = append(notes, fmt.Sprintf("%d duplicate records were merged", report.Duplicates))
	}
	for reason, count := range report.Dropped {
		notes = append(notes, fmt.Sprintf("%d records dropped (%s)", count, reason))
	}
	return notes
}

func printDuties(out io.Writer, duties []roster.Duty, notes []string, asJson bool) {
	if asJson {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		err := encoder.Encode(duties)
		if err != nil {
			serviceutil.Fatal("failed to encode duties", err)
		}
		return
	}
	renderDuties(out, duties, roster.Summarize(duties), notes)
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Extracts duties from a saved roster page (html or plain text).",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now := timezone.Now()
		if *parseNow != "" {
			parsed, err := time.ParseInLocation(time.DateOnly, *parseNow, timezone.Location)
			if err != nil {
				serviceutil.Fatal("invalid --now", err)
			}
			now = parsed
		}

		duties, report, err := parseFile(cmd.Context(), args[0], now)
		if err != nil {
			serviceutil.Fatal("failed to parse roster", err)
		}
		printDuties(cmd.OutOrStdout(), duties, reportNotes(report), *parseJson)
	},
}
