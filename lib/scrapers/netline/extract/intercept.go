package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/roster"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/netline/extract")

var DefaultKeywords = regexp.MustCompile(`(?i)roster|schedule|pair|duty|event|iadp`)

// keys that wrap the item list in portal responses, in priority order
var DefaultContainerKeys = []string{"result", "data", "duties", "events", "pairings"}

type InterceptorOptions struct {
	Keywords      *regexp.Regexp
	ContainerKeys []string
	// max wait for in-flight requests before draining the queue
	Settle time.Duration
}

// Interceptor turns captured xhr/fetch responses into raw records. One
// interceptor is used per run, items already seen in the run are skipped.
type Interceptor struct {
	options InterceptorOptions
	seen    map[string]bool
}

func NewInterceptor(options InterceptorOptions) *Interceptor {
	if options.Keywords == nil {
		options.Keywords = DefaultKeywords
	}
	if len(options.ContainerKeys) == 0 {
		options.ContainerKeys = DefaultContainerKeys
	}
	if options.Settle <= 0 {
		options.Settle = time.Second * 4
	}
	return &Interceptor{options: options, seen: map[string]bool{}}
}

// Harvest waits for the page to go quiet and converts everything queued
// so far.
func (i *Interceptor) Harvest(ctx context.Context, page browser.Page, queue *browser.ResponseQueue) ([]roster.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "Harvest")
	defer span.End()

	err := page.Settle(ctx, i.options.Settle)
	if err != nil {
		return nil, err
	}

	events := queue.Drain()
	records := i.Collect(events)
	span.SetAttributes(
		attribute.Int("responses", len(events)),
		attribute.Int("records", len(records)),
		attribute.Int64("dropped", queue.Dropped()),
	)
	if queue.Dropped() > 0 {
		slog.WarnContext(ctx, "responses were dropped from a full queue", "dropped", queue.Dropped())
	}
	return records, nil
}

func (i *Interceptor) relevant(event browser.ResponseEvent) bool {
	if event.ResourceType != browser.ResourceXHR && event.ResourceType != browser.ResourceFetch {
		return false
	}
	return i.options.Keywords.MatchString(event.Url)
}

// Collect filters and parses response events, returning one record per
// previously unseen item.
func (i *Interceptor) Collect(events []browser.ResponseEvent) []roster.RawRecord {
	var records []roster.RawRecord
	for _, event := range events {
		if !i.relevant(event) {
			continue
		}

		decoder := json.NewDecoder(bytes.NewReader(event.Body))
		decoder.UseNumber()
		var payload any
		err := decoder.Decode(&payload)
		if err != nil {
			slog.Debug("skipping non-json response", "url", event.Url)
			continue
		}

		for _, item := range i.items(payload) {
			key := identityKey(item)
			if key == "" || i.seen[key] {
				continue
			}
			i.seen[key] = true
			records = append(records, roster.RawRecord{
				Kind:   roster.NetworkItem,
				Fields: item,
				Key:    key,
				Source: event.Url,
			})
		}
	}
	return records
}

func (i *Interceptor) items(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		return objects(v)
	case map[string]any:
		for _, key := range i.options.ContainerKeys {
			switch inner := v[key].(type) {
			case []any:
				if len(inner) > 0 {
					return objects(inner)
				}
			case map[string]any:
				// {data: {events: [...]}}
				for _, nestedKey := range i.options.ContainerKeys {
					list, ok := inner[nestedKey].([]any)
					if ok && len(list) > 0 {
						return objects(list)
					}
				}
			}
		}
	}
	return nil
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if ok && len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// identityKey is the item's own id when it has one, otherwise its
// canonical serialization (encoding/json sorts map keys).
func identityKey(item map[string]any) string {
	for _, key := range []string{"id", "logicalId"} {
		id := scalar(item[key])
		if id != "" {
			return id
		}
	}
	serialized, err := json.Marshal(item)
	if err != nil {
		return ""
	}
	return string(serialized)
}
