package rosterservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/calendar"
	"rosteriq-backend/lib/scrapers/netline/core"
	"rosteriq-backend/lib/scrapers/netline/enrich"
	"rosteriq-backend/lib/scrapers/netline/extract"
	"rosteriq-backend/lib/scrapers/netline/news"
	"rosteriq-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/roster")
var meter = otel.Meter("services/roster")

var dutiesCounter, _ = meter.Int64Counter(
	"roster.duties_acquired",
	metric.WithDescription("Duties returned by acquisition runs."),
)

type PipelineOptions struct {
	Session     core.Options
	Calendar    calendar.Options
	Interceptor extract.InterceptorOptions
	Enrich      enrich.Options
	News        news.Options
	// run the text extractor even when network responses produced records
	AlwaysText bool
	// skip the interactive enrichment step
	SkipEnrich bool
}

// Pipeline acquires one month of duties through a browser session.
type Pipeline struct {
	Launcher  browser.Launcher
	Registry  *core.Registry
	Preflight *core.Preflight
	Enricher  enrich.Enricher
	Options   PipelineOptions
	Now       func() time.Time
}

func NewPipeline(launcher browser.Launcher, registry *core.Registry, options PipelineOptions) Pipeline {
	return Pipeline{
		Launcher: launcher,
		Registry: registry,
		Enricher: enrich.NewEnricher(
			options.Enrich,
			enrich.DetailPanel{},
			enrich.NewHotelDirectory(),
		),
		Options: options,
		Now:     timezone.Now,
	}
}

type Request struct {
	Credentials core.Credentials
	// zero values mean the current month
	Month time.Month
	Year  int
	// also read the bulletins behind the news tab
	News bool
}

type Result struct {
	Portal string
	RunId  string
	Month  time.Month
	Year   int

	Duties  []roster.Duty
	Summary roster.Summary
	// non-fatal problems encountered during the run
	Notes []string

	Normalize  roster.Report
	Enrichment enrich.Report

	// only read when requested
	News []news.Item
}

func (p Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return timezone.Now()
}

// target fills in the current month for missing fields.
func (p Pipeline) target(req Request) (time.Month, int) {
	now := p.now()
	month, year := req.Month, req.Year
	if month < time.January || month > time.December {
		month = now.Month()
	}
	if year <= 0 {
		year = now.Year()
	}
	return month, year
}

// Acquire runs the whole acquisition for one request. Only sign-in and
// navigation failures abort it, anything else ends up in Result.Notes.
func (p Pipeline) Acquire(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "Acquire")
	defer span.End()

	month, year := p.target(req)
	span.SetAttributes(
		attribute.String("airline", req.Credentials.Airline),
		attribute.Int("month", int(month)),
		attribute.Int("year", year),
	)

	if p.Preflight != nil {
		err := p.Preflight.Check(ctx, p.Registry.Resolve(req.Credentials.Airline))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "preflight failed")
			return Result{}, err
		}
	}

	result := Result{Month: month, Year: year}
	err := core.WithSession(ctx, p.Launcher, p.Registry, req.Credentials, p.Options.Session, func(ctx context.Context, s *core.Session) error {
		result.Portal = s.Portal.Id
		result.RunId = s.RunId
		return p.run(ctx, s, req, &result)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition failed")
		return Result{}, err
	}

	dutiesCounter.Add(ctx, int64(len(result.Duties)), metric.WithAttributes(attribute.String("portal", result.Portal)))
	span.SetAttributes(attribute.Int("duties", len(result.Duties)))
	return result, nil
}

func (p Pipeline) run(ctx context.Context, s *core.Session, req Request, result *Result) error {
	logger := slog.With("run_id", s.RunId, "portal", s.Portal.Id)

	calendarOptions := p.Options.Calendar
	// responses of months stepped over are not part of the result
	calendarOptions.BeforeStep = func() {
		s.Responses.Drain()
	}
	reached := calendar.NavigateTo(ctx, s.Page, result.Month, result.Year, calendarOptions)
	if !reached {
		result.Notes = append(result.Notes, fmt.Sprintf(
			"could not confirm the calendar shows %s %d, duties are from the month on screen",
			result.Month, result.Year,
		))
	}

	records, err := extract.NewInterceptor(p.Options.Interceptor).Harvest(ctx, s.Page, s.Responses)
	if err != nil {
		return err
	}
	logger.DebugContext(ctx, "network extraction", "records", len(records))

	if len(records) == 0 || p.Options.AlwaysText {
		body, err := s.Page.HTML(ctx)
		if err != nil {
			result.Notes = append(result.Notes, "could not read the rendered roster: "+err.Error())
		} else {
			text, err := extract.ExtractHTML(ctx, body)
			if err != nil {
				result.Notes = append(result.Notes, "could not parse the rendered roster: "+err.Error())
			}
			logger.DebugContext(ctx, "text extraction", "records", len(text))
			records = append(records, text...)
		}
	}

	duties, report := roster.NormalizeAll(records, p.now())
	result.Normalize = report
	if len(report.Dropped) > 0 || report.Duplicates > 0 {
		logger.InfoContext(ctx, "records were not normalized", "dropped", report.Dropped, "duplicates", report.Duplicates)
	}
	if len(duties) == 0 {
		result.Notes = append(result.Notes, "no duties were found for this month")
	}

	if !p.Options.SkipEnrich && len(duties) > 0 {
		result.Enrichment = p.Enricher.Apply(ctx, s.Page, duties)
		if len(result.Enrichment.Failures) > 0 {
			result.Notes = append(result.Notes, fmt.Sprintf(
				"details could not be loaded for %d duties", len(result.Enrichment.Failures),
			))
		}
	}

	if req.News {
		items, err := news.Read(ctx, s.Page, p.Options.News)
		if err != nil {
			logger.WarnContext(ctx, "news could not be read", "err", err)
			result.Notes = append(result.Notes, "news could not be read: "+err.Error())
		}
		result.News = items
	}

	result.Duties = duties
	result.Summary = roster.Summarize(duties)
	return nil
}
