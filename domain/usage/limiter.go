// Package usage implements the advisory daily cap on analysis requests.
//
// The counter lives in client-controlled storage and can be reset by
// anyone with access to it. It is a courtesy limit, not a security
// boundary.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// StorageKey is the key of the usage record in the client store.
	StorageKey = "artAnalysisUsage"

	// DefaultDailyLimit is the number of analyses allowed per calendar day.
	DefaultDailyLimit = 5

	// DateLayout renders a day the same way Date.toDateString does in a
	// browser, so records written by the web client stay readable.
	DateLayout = "Mon Jan 02 2006"
)

// Store is a string key-value store local to one client.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Record is the persisted usage counter.
type Record struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Status is the result of a limit check.
type Status struct {
	Allowed   bool
	Remaining int
	UsedToday int
	Limit     int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit overrides the daily cap.
func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// Limiter counts analyses per local calendar day.
type Limiter struct {
	store Store
	limit int
	now   func() time.Time
	loc   *time.Location
}

// NewLimiter creates a limiter backed by store.
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		limit: DefaultDailyLimit,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the daily cap.
func (l *Limiter) Limit() int { return l.limit }

// CheckLimit reports today's usage. A record from an earlier day, or one
// that cannot be parsed, is replaced by a fresh record for today.
func (l *Limiter) CheckLimit(ctx context.Context) (Status, error) {
	rec, err := l.today(ctx)
	if err != nil {
		return Status{}, err
	}
	return l.status(rec), nil
}

// Increment adds one to today's count. Call it only after an analysis has
// succeeded; it does not enforce the cap.
func (l *Limiter) Increment(ctx context.Context) (Status, error) {
	rec, err := l.today(ctx)
	if err != nil {
		return Status{}, err
	}
	rec.Count++
	if err := l.save(ctx, rec); err != nil {
		return Status{}, err
	}
	return l.status(rec), nil
}

func (l *Limiter) status(rec Record) Status {
	remaining := l.limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Allowed:   rec.Count < l.limit,
		Remaining: remaining,
		UsedToday: rec.Count,
		Limit:     l.limit,
	}
}

func (l *Limiter) today(ctx context.Context) (Record, error) {
	date := l.now().In(l.loc).Format(DateLayout)

	raw, ok, err := l.store.Get(ctx, StorageKey)
	if err != nil {
		return Record{}, fmt.Errorf("read usage record: %w", err)
	}

	var rec Record
	if ok && json.Unmarshal(raw, &rec) == nil && rec.Date == date && rec.Count >= 0 {
		return rec, nil
	}

	rec = Record{Date: date, Count: 0}
	if err := l.save(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (l *Limiter) save(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	if err := l.store.Set(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("write usage record: %w", err)
	}
	return nil
}
