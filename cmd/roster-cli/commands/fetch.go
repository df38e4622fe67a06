package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/restyutil"
	"rosteriq-backend/lib/scrapers/netline/core"
	"rosteriq-backend/lib/serviceutil"
	"rosteriq-backend/services/rosterservice"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	month      int
	year       int
	airline    string
	remote     string
	token      string
	registry   string
	refresh    bool
	headed     bool
	skipEnrich bool
	preflight  bool
	news       bool
	asJson     bool
}

var fetchOpts fetchFlags

func init() {
	flags := fetchCmd.Flags()
	flags.IntVar(&fetchOpts.month, "month", 0, "Month to fetch (1-12), defaults to the current month.")
	flags.IntVar(&fetchOpts.year, "year", 0, "Year to fetch, defaults to the current year.")
	flags.StringVar(&fetchOpts.airline, "airline", "", "Portal id, overrides ROSTERIQ_AIRLINE.")
	flags.StringVar(&fetchOpts.remote, "remote", "", "Base url of a rosterd server, the portal is scraped locally when empty.")
	flags.StringVar(&fetchOpts.token, "token", "", "Access token for --remote, defaults to ROSTERIQ_ACCESS_TOKEN.")
	flags.StringVar(&fetchOpts.registry, "registry", "", "Yaml file with extra portals.")
	flags.BoolVar(&fetchOpts.refresh, "refresh", false, "Bypass the server side roster cache.")
	flags.BoolVar(&fetchOpts.headed, "headed", false, "Show the browser window.")
	flags.BoolVar(&fetchOpts.skipEnrich, "skip-enrich", false, "Do not open duty detail panels.")
	flags.BoolVar(&fetchOpts.preflight, "preflight", true, "Check that the portal is reachable before launching chrome.")
	flags.BoolVar(&fetchOpts.news, "news", false, "Also print the bulletins from the portal's news tab.")
	flags.BoolVar(&fetchOpts.asJson, "json", false, "Print the duties as json instead of a table.")
	rootCmd.AddCommand(fetchCmd)
}

// credentials come from the environment (or a .env file) so the
// password never shows up in shell history.
func credentials(airline string) (core.Credentials, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "err", err)
	}

	creds := core.Credentials{
		EmployeeId: os.Getenv("ROSTERIQ_EMPLOYEE_ID"),
		Password:   os.Getenv("ROSTERIQ_PASSWORD"),
		Airline:    os.Getenv("ROSTERIQ_AIRLINE"),
	}
	if airline != "" {
		creds.Airline = airline
	}
	if creds.EmployeeId == "" || creds.Password == "" {
		return creds, fmt.Errorf("ROSTERIQ_EMPLOYEE_ID and ROSTERIQ_PASSWORD must be set")
	}
	return creds, nil
}

func fetchLocal(ctx context.Context, creds core.Credentials, opts fetchFlags) (rosterservice.Result, error) {
	registry := core.NewRegistry()
	if opts.registry != "" {
		var err error
		registry, err = core.LoadRegistry(opts.registry)
		if err != nil {
			return rosterservice.Result{}, err
		}
	}

	pipeline := rosterservice.NewPipeline(
		browser.NewChromeLauncher(browser.ChromeOptions{Headless: !opts.headed}),
		registry,
		rosterservice.PipelineOptions{SkipEnrich: opts.skipEnrich},
	)
	if opts.preflight {
		var output restyutil.InstrumentOutput
		if *verbose {
			fsOutput, err := restyutil.NewFilesystemOutput(".dev/resty/preflight")
			if err == nil {
				output = fsOutput
			}
		}
		preflight, err := core.NewPreflight(output)
		if err != nil {
			return rosterservice.Result{}, err
		}
		pipeline.Preflight = &preflight
	}

	return pipeline.Acquire(ctx, rosterservice.Request{
		Credentials: creds,
		Month:       time.Month(opts.month),
		Year:        opts.year,
		News:        opts.news,
	})
}

func fetchRemote(ctx context.Context, creds core.Credentials, opts fetchFlags) (rosterservice.GetRosterResponse, error) {
	token := opts.token
	if token == "" {
		token = os.Getenv("ROSTERIQ_ACCESS_TOKEN")
	}
	client := rosterservice.NewClient(
		http.DefaultClient,
		opts.remote,
		connect.WithInterceptors(serviceutil.ProvideAccessTokenInterceptor(token)),
	)
	res, err := client.CallUnary(ctx, connect.NewRequest(&rosterservice.GetRosterRequest{
		EmployeeId:  creds.EmployeeId,
		Password:    creds.Password,
		Airline:     creds.Airline,
		TargetMonth: opts.month,
		TargetYear:  opts.year,
		Refresh:     opts.refresh,
		News:        opts.news,
	}))
	if err != nil {
		return rosterservice.GetRosterResponse{}, err
	}
	return *res.Msg, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--month <1-12>] [--year <year>] [--remote <url>]",
	Short: "Signs in to the crew portal and prints one month of duties.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute*5)
		defer cancel()

		creds, err := credentials(fetchOpts.airline)
		if err != nil {
			serviceutil.Fatal("missing credentials", err)
		}
		slog.Info("fetching roster", "credentials", creds)

		out := cmd.OutOrStdout()
		if fetchOpts.remote != "" {
			res, err := fetchRemote(ctx, creds, fetchOpts)
			if err != nil {
				serviceutil.Fatal("roster request failed", err)
			}
			if !res.Success {
				serviceutil.Fatal(
					"roster request failed",
					fmt.Errorf("%s: %s", res.Error.Kind, res.Error.Message),
				)
			}
			notes := res.Notes
			if res.Cached {
				notes = append(notes, "served from cache, fetched at "+res.FetchedAt)
			}
			printDuties(out, res.Duties, notes, fetchOpts.asJson)
			if !fetchOpts.asJson {
				renderNews(out, res.News)
			}
			return
		}

		t1 := time.Now()
		result, err := fetchLocal(ctx, creds, fetchOpts)
		if err != nil {
			serviceutil.Fatal("failed to acquire roster", err)
		}
		slog.Info(
			"acquired roster",
			"seconds", time.Since(t1).Seconds(),
			"run_id", result.RunId,
			"enriched", result.Enrichment.Enriched,
			"enrich_failures", len(result.Enrichment.Failures),
		)
		notes := append(result.Notes, reportNotes(result.Normalize)...)
		if fetchOpts.asJson {
			printDuties(out, result.Duties, nil, true)
			return
		}
		renderDuties(out, result.Duties, result.Summary, notes)
		renderNews(out, result.News)
	},
}
