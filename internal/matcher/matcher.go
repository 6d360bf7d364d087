// Package matcher resolves an observed face embedding to a registered identity.
package matcher

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/roster"
)

// UnknownLabel is the annotation for observations that match nobody.
const UnknownLabel = "Unknown"

// DefaultThreshold is the conventional euclidean threshold for dlib-style 128-d embeddings.
const DefaultThreshold = 0.6

// TieBreak decides which candidate wins when several are under the threshold.
type TieBreak string

const (
	// TieBreakFirst picks the earliest registered candidate.
	TieBreakFirst TieBreak = "first"
	// TieBreakClosest picks the smallest distance; equal distances go to the earlier entry.
	TieBreakClosest TieBreak = "closest"
)

// ParseTieBreak parses a tie-break policy name. Empty means first.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieBreakFirst:
		return TieBreakFirst, nil
	case TieBreakClosest:
		return TieBreakClosest, nil
	default:
		return "", fmt.Errorf("unknown tie-break %q (want first or closest)", s)
	}
}

// Result is the outcome of one match.
type Result struct {
	Identity string  `json:"identity"`
	Known    bool    `json:"known"`
	Distance float64 `json:"distance,omitempty"` // distance to the chosen entry
	Index    int     `json:"-"`                  // roster position of the chosen entry, -1 when unknown
}

// Label returns the identity, or "Unknown".
func (r Result) Label() string {
	if !r.Known {
		return UnknownLabel
	}
	return r.Identity
}

func unknown() Result {
	return Result{Identity: UnknownLabel, Index: -1}
}

// Matcher compares observations against the roster. A zero Matcher uses
// euclidean distance, first-candidate tie-break and DefaultThreshold.
type Matcher struct {
	Metric    Metric
	TieBreak  TieBreak
	Threshold float64

	// Index accelerates TieBreakClosest lookups on large rosters. Nil disables it.
	Index *Index
	// IndexMinEntries is the roster size from which Index is consulted.
	IndexMinEntries int
}

// New creates a matcher with the given settings. indexMin > 0 enables the HNSW
// accelerator for rosters of at least that size (closest tie-break only).
func New(metric Metric, tieBreak TieBreak, threshold float64, indexMin int) *Matcher {
	m := &Matcher{
		Metric:          metric,
		TieBreak:        tieBreak,
		Threshold:       threshold,
		IndexMinEntries: indexMin,
	}
	if indexMin > 0 && tieBreak == TieBreakClosest {
		m.Index = NewIndex(metric)
	}
	return m
}

func (m *Matcher) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// Match resolves an observed embedding against the current roster snapshot.
// An entry is a candidate when its distance is strictly below the threshold.
// A dimension mismatch with the roster, or a NaN/Inf component in the
// observation, returns *roster.InvalidEmbeddingError.
func (m *Matcher) Match(store *roster.Store, observed []float32) (Result, error) {
	entries, version := store.Snapshot()
	if len(entries) == 0 {
		return unknown(), nil
	}
	if len(observed) == 0 {
		return unknown(), &roster.InvalidEmbeddingError{Want: len(entries[0].Embedding)}
	}
	if err := roster.CheckFinite(observed); err != nil {
		return unknown(), err
	}

	if m.useIndex(len(entries)) {
		m.Index.Sync(version, entries)
		if res, ok, err := m.matchIndexed(entries, observed); err != nil || ok {
			return res, err
		}
		// Index miss: fall through to the exact scan so Unknown stays exact.
	}

	return m.scan(entries, observed)
}

func (m *Matcher) useIndex(n int) bool {
	return m.Index != nil && m.TieBreak == TieBreakClosest && m.IndexMinEntries > 0 && n >= m.IndexMinEntries
}

// scan checks every entry in roster order.
func (m *Matcher) scan(entries []roster.Entry, observed []float32) (Result, error) {
	query := toFloat64(observed)
	threshold := m.threshold()
	best := unknown()

	for i, e := range entries {
		if len(e.Embedding) != len(observed) {
			return unknown(), &roster.InvalidEmbeddingError{Want: len(e.Embedding), Got: len(observed)}
		}
		d := m.Metric.Distance(query, toFloat64(e.Embedding))
		if !(d < threshold) { // also skips NaN
			continue
		}
		if m.TieBreak != TieBreakClosest {
			return Result{Identity: e.Identity, Known: true, Distance: d, Index: i}, nil
		}
		if !best.Known || d < best.Distance {
			best = Result{Identity: e.Identity, Known: true, Distance: d, Index: i}
		}
	}

	return best, nil
}

// matchIndexed asks the HNSW index for near entries and verifies them with the exact metric.
func (m *Matcher) matchIndexed(entries []roster.Entry, observed []float32) (Result, bool, error) {
	if len(entries[0].Embedding) != len(observed) {
		return unknown(), false, &roster.InvalidEmbeddingError{Want: len(entries[0].Embedding), Got: len(observed)}
	}

	query := toFloat64(observed)
	threshold := m.threshold()
	best := unknown()

	for _, i := range m.Index.Search(observed, IndexSearchK) {
		if i < 0 || i >= len(entries) {
			continue
		}
		d := m.Metric.Distance(query, toFloat64(entries[i].Embedding))
		if !(d < threshold) { // also skips NaN
			continue
		}
		if !best.Known || d < best.Distance || (d == best.Distance && i < best.Index) {
			best = Result{Identity: entries[i].Identity, Known: true, Distance: d, Index: i}
		}
	}

	return best, best.Known, nil
}
