package rosterservice

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/scrapers/netline/core"

	"connectrpc.com/connect"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("too many roster requests for this employee, try again later")

type Options struct {
	CacheTTL time.Duration
	// portal logins allowed per employee, repeated failed logins lock
	// the account on the portal side
	RateLimit rate.Limit
	RateBurst int
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.RateLimit <= 0 {
		o.RateLimit = rate.Every(time.Minute * 5)
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 3
	}
	return o
}

type Service struct {
	pipeline Pipeline
	cache    Cache
	notifier Notifier
	options  Options

	limiterLock *sync.Mutex
	limiters    *expirable.LRU[string, *rate.Limiter]
}

// NewService creates the roster service, notifier may be nil.
func NewService(database *sql.DB, pipeline Pipeline, notifier Notifier, options Options) Service {
	options = options.withDefaults()
	return Service{
		pipeline:    pipeline,
		cache:       NewCache(database, options.CacheTTL),
		notifier:    notifier,
		options:     options,
		limiterLock: &sync.Mutex{},
		limiters:    expirable.NewLRU[string, *rate.Limiter](4096, nil, time.Hour),
	}
}

func (s Service) Cache() Cache {
	return s.cache
}

func (s Service) allow(employeeId string) bool {
	s.limiterLock.Lock()
	defer s.limiterLock.Unlock()

	limiter, ok := s.limiters.Get(employeeId)
	if !ok {
		limiter = rate.NewLimiter(s.options.RateLimit, s.options.RateBurst)
		s.limiters.Add(employeeId, limiter)
	}
	return limiter.Allow()
}

func failure(kind ErrorKind, err error) GetRosterResponse {
	return GetRosterResponse{
		Duties: []roster.Duty{},
		Notes:  []string{},
		Error:  &OutcomeError{Kind: kind, Message: err.Error()},
	}
}

// classify maps acquisition errors onto the outcome error kinds.
func classify(err error) GetRosterResponse {
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		res := failure(ErrorAuth, err)
		res.Error.Url = authErr.Url
		res.Error.Title = authErr.Title
		return res
	}
	var navErr *core.NavigationError
	if errors.As(err, &navErr) {
		res := failure(ErrorNavigation, err)
		res.Error.Url = navErr.Url
		return res
	}
	return failure(ErrorInternal, err)
}

func success(duties []roster.Duty, notes []string, fetchedAt time.Time, cached bool) GetRosterResponse {
	if notes == nil {
		notes = []string{}
	}
	if duties == nil {
		duties = []roster.Duty{}
	}
	return GetRosterResponse{
		Success:   true,
		Duties:    duties,
		Summary:   roster.Summarize(duties),
		Notes:     notes,
		Cached:    cached,
		FetchedAt: fetchedAt.Format(time.RFC3339),
	}
}

// Fetch serves a roster request from the cache when it is fresh and was
// fetched with the same password, it acquires it from the portal
// otherwise.
func (s Service) Fetch(ctx context.Context, req GetRosterRequest) GetRosterResponse {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	req.EmployeeId = strings.TrimSpace(req.EmployeeId)
	if req.EmployeeId == "" || req.Password == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return failure(ErrorInvalid, errors.New("employeeId and password are required"))
	}

	month, year := s.pipeline.target(Request{
		Month: time.Month(req.TargetMonth),
		Year:  req.TargetYear,
	})
	key := CacheKey{
		EmployeeId: req.EmployeeId,
		Airline:    s.pipeline.Registry.Resolve(req.Airline).Id,
		Year:       year,
		Month:      month,
	}
	span.SetAttributes(key.attributes()...)

	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to read roster cache", "err", err)
	}
	if found && !req.Refresh && !req.News && s.cache.Fresh(cached) && s.cache.Verify(cached, req.Password) {
		span.SetAttributes(attribute.Bool("cached", true))
		return success(cached.Duties, nil, cached.FetchedAt, true)
	}

	if !s.allow(req.EmployeeId) {
		span.SetStatus(codes.Error, "rate limited")
		return failure(ErrorRateLimited, ErrRateLimited)
	}

	result, err := s.pipeline.Acquire(ctx, Request{
		Credentials: core.Credentials{
			EmployeeId: req.EmployeeId,
			Password:   req.Password,
			Airline:    req.Airline,
		},
		Month: month,
		Year:  year,
		News:  req.News,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquisition failed")
		slog.WarnContext(ctx, "roster acquisition failed", "request", req, "err", err)
		return classify(err)
	}

	notes := result.Notes
	// an empty result is more likely a scraping problem than an empty
	// month, it must not replace a stored roster
	if len(result.Duties) > 0 {
		change, err := s.cache.Put(ctx, key, result.Duties, req.Password)
		if err != nil {
			slog.WarnContext(ctx, "failed to store roster", "err", err)
		}
		if change != nil {
			notes = append(notes, s.notify(ctx, req.NotifyEmail, *change)...)
		}
	}

	res := success(result.Duties, notes, s.cache.now(), false)
	res.News = result.News
	return res
}

func (s Service) notify(ctx context.Context, recipient string, change Change) []string {
	if s.notifier == nil || recipient == "" {
		return nil
	}
	err := s.notifier.NotifyChange(ctx, recipient, change)
	if err != nil {
		slog.WarnContext(ctx, "failed to send roster change notification", "err", err)
		return []string{"roster changed but the notification could not be sent"}
	}
	return []string{"roster changed, a notification was sent to " + recipient}
}

func (s Service) GetRoster(ctx context.Context, req *connect.Request[GetRosterRequest]) (*connect.Response[GetRosterResponse], error) {
	res := s.Fetch(ctx, *req.Msg)
	return connect.NewResponse(&res), nil
}
