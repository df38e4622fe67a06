package rosterservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"rosteriq-backend/lib/roster"
	"rosteriq-backend/lib/timezone"
	"rosteriq-backend/services/rosterservice/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const DefaultCacheTTL = time.Hour * 6

type CacheKey struct {
	EmployeeId string
	// resolved portal id
	Airline string
	Year    int
	Month   time.Month
}

func (k CacheKey) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("employee_id", k.EmployeeId),
		attribute.String("airline", k.Airline),
		attribute.Int("year", k.Year),
		attribute.Int("month", int(k.Month)),
	}
}

type CachedRoster struct {
	Duties    []roster.Duty
	Hash      string
	FetchedAt time.Time
	// bcrypt hash of the password used for the fetch
	Verifier string
}

// Change describes how a stored roster differs from a newly acquired one.
type Change struct {
	Key          CacheKey
	PreviousHash string
	Hash         string
	Added        []roster.Duty
	Removed      []roster.Duty
}

// Cache stores the last acquired roster per employee and month.
type Cache struct {
	db  *sql.DB
	qry *db.Queries
	ttl time.Duration
	now func() time.Time
	// bcrypt cost for verifiers
	cost int
}

func NewCache(database *sql.DB, ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return Cache{
		db:   database,
		qry:  db.New(database),
		ttl:  ttl,
		now:  timezone.Now,
		cost: bcrypt.DefaultCost,
	}
}

func (c Cache) Fresh(entry CachedRoster) bool {
	return c.now().Sub(entry.FetchedAt) < c.ttl
}

// Verify reports whether password matches the one entry was fetched
// with. Entries without a verifier never match.
func (c Cache) Verify(entry CachedRoster, password string) bool {
	if entry.Verifier == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(entry.Verifier), []byte(password))
	return err == nil
}

func decodeRoster(row db.Roster) (CachedRoster, error) {
	var duties []roster.Duty
	err := json.Unmarshal([]byte(row.Duties), &duties)
	if err != nil {
		return CachedRoster{}, err
	}
	return CachedRoster{
		Duties:    duties,
		Hash:      row.Hash,
		FetchedAt: time.Unix(row.FetchedAt, 0).In(timezone.Location),
		Verifier:  row.Verifier,
	}, nil
}

func (c Cache) Get(ctx context.Context, key CacheKey) (CachedRoster, bool, error) {
	ctx, span := tracer.Start(ctx, "cache:Get")
	defer span.End()
	span.SetAttributes(key.attributes()...)

	row, err := c.qry.GetRoster(ctx, db.GetRosterParams{
		EmployeeID: key.EmployeeId,
		Airline:    key.Airline,
		Year:       int64(key.Year),
		Month:      int64(key.Month),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return CachedRoster{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached roster")
		return CachedRoster{}, false, err
	}

	entry, err := decodeRoster(row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode cached roster")
		return CachedRoster{}, false, err
	}
	return entry, true, nil
}

func diff(previous, current []roster.Duty) (added, removed []roster.Duty) {
	before := map[string]bool{}
	for _, d := range previous {
		before[d.Id] = true
	}
	after := map[string]bool{}
	for _, d := range current {
		after[d.Id] = true
		if !before[d.Id] {
			added = append(added, d)
		}
	}
	for _, d := range previous {
		if !after[d.Id] {
			removed = append(removed, d)
		}
	}
	return added, removed
}

// Put stores duties for key along with a verifier for password. When a
// different roster was stored before, the change is recorded and
// returned.
func (c Cache) Put(ctx context.Context, key CacheKey, duties []roster.Duty, password string) (*Change, error) {
	ctx, span := tracer.Start(ctx, "cache:Put")
	defer span.End()
	span.SetAttributes(key.attributes()...)

	serialized, err := json.Marshal(duties)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize duties")
		return nil, err
	}
	hash := roster.Fingerprint(duties)
	now := c.now()

	verifier, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		// the roster is still stored, it just can't be served from cache
		span.RecordError(err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer tx.Rollback()
	txqry := c.qry.WithTx(tx)

	params := db.GetRosterParams{
		EmployeeID: key.EmployeeId,
		Airline:    key.Airline,
		Year:       int64(key.Year),
		Month:      int64(key.Month),
	}
	var change *Change
	previous, err := txqry.GetRoster(ctx, params)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read previous roster")
		return nil, err
	case previous.Hash != hash:
		change = &Change{Key: key, PreviousHash: previous.Hash, Hash: hash}
		decoded, err := decodeRoster(previous)
		if err == nil {
			change.Added, change.Removed = diff(decoded.Duties, duties)
		}
		err = txqry.CreateRosterChange(ctx, db.CreateRosterChangeParams{
			EmployeeID:   key.EmployeeId,
			Airline:      key.Airline,
			Year:         int64(key.Year),
			Month:        int64(key.Month),
			PreviousHash: previous.Hash,
			Hash:         hash,
			ChangedAt:    now.Unix(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record roster change")
			return nil, err
		}
	}

	err = txqry.UpsertRoster(ctx, db.UpsertRosterParams{
		EmployeeID: key.EmployeeId,
		Airline:    key.Airline,
		Year:       int64(key.Year),
		Month:      int64(key.Month),
		Duties:     string(serialized),
		Hash:       hash,
		FetchedAt:  now.Unix(),
		Verifier:   string(verifier),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store roster")
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return change, nil
}

func (c Cache) prune(ctx context.Context, maxAge time.Duration) {
	ctx, span := tracer.Start(ctx, "cache:prune")
	defer span.End()

	err := c.qry.DeleteRostersFetchedBefore(ctx, c.now().Add(-maxAge).Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete old rosters")
	}
}

// StartPruning periodically deletes rosters that were not refreshed for
// maxAge, it stops when ctx is done.
func (c Cache) StartPruning(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		c.prune(ctx, maxAge)
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				c.prune(ctx, maxAge)
			}
		}
	}()
}
