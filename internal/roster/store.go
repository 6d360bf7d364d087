// Package roster holds the registered identities and their reference embeddings.
package roster

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// ErrEmptyIdentity is returned when registering a blank label.
var ErrEmptyIdentity = errors.New("identity label is empty")

// DuplicateIdentityError is returned when a label (after normalization) is already registered.
type DuplicateIdentityError struct {
	Identity string // label being registered
	Existing string // label already in the roster
}

func (e *DuplicateIdentityError) Error() string {
	if e.Existing != "" && e.Existing != e.Identity {
		return fmt.Sprintf("identity %q already registered as %q", e.Identity, e.Existing)
	}
	return fmt.Sprintf("identity %q already registered", e.Identity)
}

// InvalidEmbeddingError reports an embedding whose dimension does not fit the roster,
// or one carrying a NaN or infinite component.
type InvalidEmbeddingError struct {
	Want int
	Got  int

	NotFinite bool
	Component int // index of the first non-finite value when NotFinite is set
}

func (e *InvalidEmbeddingError) Error() string {
	if e.NotFinite {
		return fmt.Sprintf("invalid embedding: component %d is not a finite number", e.Component)
	}
	if e.Got == 0 {
		return "invalid embedding: empty vector"
	}
	return fmt.Sprintf("invalid embedding: dimension %d, roster uses %d", e.Got, e.Want)
}

// Entry pairs one identity with its reference embedding.
type Entry struct {
	Identity     string
	Embedding    []float32
	RegisteredAt time.Time
}

// Store is the in-memory roster. Entries keep insertion order.
// It is safe for concurrent use; registration may happen while the pipeline matches.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	byKey   map[string]int // normalized identity -> index in entries
	dim     int
	version uint64
}

// NewStore creates an empty roster.
func NewStore() *Store {
	return &Store{byKey: make(map[string]int)}
}

// Register appends a new entry. The embedding is copied.
func (s *Store) Register(identity string, embedding []float32) error {
	return s.RegisterAt(identity, embedding, time.Now())
}

// RegisterAt is Register with an explicit registration time (used when restoring).
func (s *Store) RegisterAt(identity string, embedding []float32, at time.Time) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEmbedding(embedding); err != nil {
		return err
	}

	key := NormalizeIdentity(identity)
	if i, ok := s.byKey[key]; ok {
		return &DuplicateIdentityError{Identity: identity, Existing: s.entries[i].Identity}
	}

	emb := make([]float32, len(embedding))
	copy(emb, embedding)

	if s.dim == 0 {
		s.dim = len(emb)
	}
	s.byKey[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Identity: identity, Embedding: emb, RegisteredAt: at})
	s.version++
	return nil
}

// Check reports whether Register would accept identity and embedding now,
// without changing the roster.
func (s *Store) Check(identity string, embedding []float32) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrEmptyIdentity
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkEmbedding(embedding); err != nil {
		return err
	}
	if i, ok := s.byKey[NormalizeIdentity(identity)]; ok {
		return &DuplicateIdentityError{Identity: identity, Existing: s.entries[i].Identity}
	}
	return nil
}

func (s *Store) checkEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return &InvalidEmbeddingError{Want: s.dim}
	}
	if s.dim != 0 && len(embedding) != s.dim {
		return &InvalidEmbeddingError{Want: s.dim, Got: len(embedding)}
	}
	return CheckFinite(embedding)
}

// CheckFinite rejects vectors with NaN or infinite components.
// NaN compares false against any threshold, so such a vector would otherwise
// slip through distance checks.
func CheckFinite(embedding []float32) error {
	for i, x := range embedding {
		v := float64(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidEmbeddingError{Want: len(embedding), Got: len(embedding), NotFinite: true, Component: i}
		}
	}
	return nil
}

// Load registers entries in order, stopping at the first failure.
func (s *Store) Load(entries []Entry) error {
	for _, e := range entries {
		at := e.RegisteredAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := s.RegisterAt(e.Identity, e.Embedding, at); err != nil {
			return fmt.Errorf("loading %q: %w", e.Identity, err)
		}
	}
	return nil
}

// Entries returns a snapshot of the roster in registration order.
// Embedding slices are shared with the store and must not be modified.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Snapshot returns the entries together with the version they belong to,
// read under a single lock so the pair is always consistent.
func (s *Store) Snapshot() ([]Entry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, s.version
}

// Get looks up an entry by label (normalized comparison).
func (s *Store) Get(identity string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byKey[NormalizeIdentity(identity)]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of registered identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dim returns the embedding dimension fixed by the first registration (0 when empty).
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Version increments on every successful registration.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
