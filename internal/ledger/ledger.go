// Package ledger records at most one presence per identity per calendar day.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/rs/zerolog"
)

// Date and time layouts used in records and storages.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// StatusPresent is the only status the ledger writes.
const StatusPresent = "Present"

// Record is one attendance row.
type Record struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// Outcome of RecordPresence.
type Outcome int

const (
	RecordedNow Outcome = iota + 1
	AlreadyRecorded
)

func (o Outcome) String() string {
	switch o {
	case RecordedNow:
		return "recorded_now"
	case AlreadyRecorded:
		return "already_recorded"
	default:
		return "unknown"
	}
}

// LedgerWriteError wraps a persistence failure. The record it refers to is
// kept in memory and written by the next successful flush.
type LedgerWriteError struct {
	Err error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger write failed: %v", e.Err)
}

func (e *LedgerWriteError) Unwrap() error {
	return e.Err
}

// Storage loads and saves the full record set.
type Storage interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// Options configures a Ledger.
type Options struct {
	Location     *time.Location // day boundary; nil means time.Local
	FlushRetries int            // extra attempts after a failed save
	RetryBackoff time.Duration  // initial wait between attempts (default 200ms)
	Logger       zerolog.Logger
}

// Ledger is safe for concurrent use.
type Ledger struct {
	storage Storage
	opts    Options
	log     zerolog.Logger

	mu      sync.Mutex
	records []Record
	seen    map[dayKey]struct{}
	dirty   bool

	flushMu sync.Mutex // serializes saves so snapshots land in order
}

type dayKey struct {
	identity string // normalized
	date     string
}

// Open loads existing records from storage and returns a ready ledger.
func Open(ctx context.Context, storage Storage, opts Options) (*Ledger, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}

	records, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading attendance records: %w", err)
	}

	l := &Ledger{
		storage: storage,
		opts:    opts,
		log:     opts.Logger,
		seen:    make(map[dayKey]struct{}, len(records)),
	}
	for _, r := range records {
		l.records = append(l.records, r)
		l.seen[dayKey{identity: roster.NormalizeIdentity(r.Name), date: r.Date}] = struct{}{}
	}
	return l, nil
}

// RecordPresence records identity as present on the calendar day of ts.
// The check and the insert happen under one lock, so concurrent callers
// observing the same identity create exactly one record.
//
// When persistence fails the outcome is still RecordedNow and the error is a
// *LedgerWriteError; the record stays in memory and Sync retries the flush.
func (l *Ledger) RecordPresence(ctx context.Context, identity string, ts time.Time) (Outcome, error) {
	local := ts.In(l.opts.Location)
	date := local.Format(DateLayout)
	key := dayKey{identity: roster.NormalizeIdentity(identity), date: date}

	l.mu.Lock()
	if _, ok := l.seen[key]; ok {
		l.mu.Unlock()
		return AlreadyRecorded, nil
	}
	l.seen[key] = struct{}{}
	l.records = append(l.records, Record{
		Name:   identity,
		Date:   date,
		Time:   local.Format(TimeLayout),
		Status: StatusPresent,
	})
	l.dirty = true
	l.mu.Unlock()

	l.log.Info().Str("identity", identity).Str("date", date).Msg("attendance marked")

	if err := l.flush(ctx); err != nil {
		return RecordedNow, err
	}
	return RecordedNow, nil
}

// Sync flushes pending records if a previous save failed.
func (l *Ledger) Sync(ctx context.Context) error {
	if !l.Dirty() {
		return nil
	}
	return l.flush(ctx)
}

// Dirty reports whether records are waiting to be persisted.
func (l *Ledger) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

func (l *Ledger) flush(ctx context.Context) error {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	if !l.dirty {
		// A concurrent flush already saved our record.
		l.mu.Unlock()
		return nil
	}
	snapshot := make([]Record, len(l.records))
	copy(snapshot, l.records)
	l.dirty = false
	l.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.opts.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(l.opts.FlushRetries, 0))), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := l.storage.Save(ctx, snapshot)
		if err != nil {
			l.log.Warn().Err(err).Int("attempt", attempt).Msg("attendance flush failed")
		}
		return err
	}, policy)
	if err == nil {
		return nil
	}

	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()

	return &LedgerWriteError{Err: err}
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// RecordsOn returns the records of one date (YYYY-MM-DD).
func (l *Ledger) RecordsOn(date string) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// Has reports whether identity is recorded on date.
func (l *Ledger) Has(identity, date string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[dayKey{identity: roster.NormalizeIdentity(identity), date: date}]
	return ok
}

// Location is the timezone that cuts ledger days.
func (l *Ledger) Location() *time.Location {
	return l.opts.Location
}

// Today returns the ledger date for now.
func (l *Ledger) Today() string {
	return time.Now().In(l.opts.Location).Format(DateLayout)
}
