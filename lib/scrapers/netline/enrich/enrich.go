// Package enrich adds detail that only shows up after interacting with
// a duty (hotel, crew, tail) to already normalized duties. Enrichment is
// best effort: a failing duty keeps exactly what it had before.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/roster"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("scrapers/netline/enrich")
var meter = otel.Meter("scrapers/netline/enrich")

var failureCounter, _ = meter.Int64Counter(
	"enrich.failures",
	metric.WithDescription("Duties whose enrichment was discarded."),
)

const DefaultLimit = 20

// Extractor adds fields to a duty. It may only fill empty fields or
// append, and must respect ctx.
type Extractor interface {
	Name() string
	Enrich(ctx context.Context, page browser.Page, duty *roster.Duty) error
}

type Options struct {
	// max number of duties attempted per run
	Limit int
	// per duty, across all extractors
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Second * 20
	}
	return o
}

type Enricher struct {
	Extractors []Extractor
	Options    Options
}

func NewEnricher(options Options, extractors ...Extractor) Enricher {
	return Enricher{Extractors: extractors, Options: options.withDefaults()}
}

type Failure struct {
	DutyId    string
	Extractor string
	Err       error
}

type Report struct {
	Attempted int
	Enriched  int
	// duties past the limit
	Skipped  int
	Failures []Failure
}

func (e Enricher) attempt(ctx context.Context, page browser.Page, extractor Extractor, duty *roster.Duty) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	err = extractor.Enrich(ctx, page, duty)
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func (e Enricher) enrichOne(ctx context.Context, page browser.Page, duty roster.Duty) (roster.Duty, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, e.Options.Timeout)
	defer cancel()

	working := duty.Clone()
	for _, extractor := range e.Extractors {
		err := e.attempt(ctx, page, extractor, &working)
		if err != nil {
			return duty, &Failure{DutyId: duty.Id, Extractor: extractor.Name(), Err: err}
		}
	}
	return working, nil
}

// Apply enriches duties in place, in order, up to the configured limit.
// Reserve duties have nothing to enrich and are passed over.
func (e Enricher) Apply(ctx context.Context, page browser.Page, duties []roster.Duty) Report {
	ctx, span := tracer.Start(ctx, "Apply")
	defer span.End()

	options := e.Options.withDefaults()
	e.Options = options

	var report Report
	for i, duty := range duties {
		if duty.Type == roster.Reserve {
			continue
		}
		if report.Attempted >= options.Limit {
			report.Skipped++
			continue
		}
		if ctx.Err() != nil {
			break
		}

		report.Attempted++
		enriched, failure := e.enrichOne(ctx, page, duty)
		if failure != nil {
			report.Failures = append(report.Failures, *failure)
			failureCounter.Add(ctx, 1)
			slog.WarnContext(
				ctx, "duty enrichment failed",
				"duty", failure.DutyId,
				"extractor", failure.Extractor,
				"err", failure.Err,
			)
			continue
		}
		duties[i] = enriched
		report.Enriched++
	}

	span.SetAttributes(
		attribute.Int("attempted", report.Attempted),
		attribute.Int("enriched", report.Enriched),
		attribute.Int("failures", len(report.Failures)),
	)
	return report
}
