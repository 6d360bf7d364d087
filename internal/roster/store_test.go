package roster

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestStore_RegisterAndEntries(t *testing.T) {
	s := NewStore()

	if err := s.Register("Alice", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("Register Alice: %v", err)
	}
	if err := s.Register("Bob", []float32{0.4, 0.5, 0.6}); err != nil {
		t.Fatalf("Register Bob: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Identity != "Alice" || entries[1].Identity != "Bob" {
		t.Errorf("expected insertion order [Alice Bob], got [%s %s]", entries[0].Identity, entries[1].Identity)
	}
	if s.Dim() != 3 {
		t.Errorf("expected dim 3, got %d", s.Dim())
	}
	if s.Version() != 2 {
		t.Errorf("expected version 2, got %d", s.Version())
	}
}

func TestStore_RegisterDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		second string
	}{
		{name: "exact label", second: "Alice"},
		{name: "different case", second: "alice"},
		{name: "diacritics", second: "Alíce"},
		{name: "surrounding spaces", second: "  Alice "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if err := s.Register("Alice", []float32{1, 0}); err != nil {
				t.Fatalf("first Register: %v", err)
			}

			err := s.Register(tt.second, []float32{0, 1})

			var dupErr *DuplicateIdentityError
			if !errors.As(err, &dupErr) {
				t.Fatalf("expected DuplicateIdentityError, got %v", err)
			}
			if dupErr.Existing != "Alice" {
				t.Errorf("expected existing label 'Alice', got '%s'", dupErr.Existing)
			}
			if s.Len() != 1 {
				t.Errorf("duplicate must not create a second entry, got %d entries", s.Len())
			}
		})
	}
}

func TestStore_RegisterInvalid(t *testing.T) {
	s := NewStore()

	if err := s.Register("   ", []float32{1}); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("expected ErrEmptyIdentity, got %v", err)
	}

	var embErr *InvalidEmbeddingError
	if err := s.Register("Alice", nil); !errors.As(err, &embErr) {
		t.Errorf("expected InvalidEmbeddingError for empty embedding, got %v", err)
	}

	if err := s.Register("Alice", []float32{1, 2, 3}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := s.Register("Bob", []float32{1, 2})
	if !errors.As(err, &embErr) {
		t.Fatalf("expected InvalidEmbeddingError for dimension mismatch, got %v", err)
	}
	if embErr.Want != 3 || embErr.Got != 2 {
		t.Errorf("expected want=3 got=2, got want=%d got=%d", embErr.Want, embErr.Got)
	}
}

func TestStore_RejectsNonFiniteEmbedding(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name      string
		embedding []float32
		component int
	}{
		{name: "all nan", embedding: []float32{nan, nan, nan}, component: 0},
		{name: "trailing nan", embedding: []float32{1, 1, nan}, component: 2},
		{name: "positive inf", embedding: []float32{1, inf, 1}, component: 1},
		{name: "negative inf", embedding: []float32{-inf, 0, 0}, component: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()

			var embErr *InvalidEmbeddingError
			if err := s.Register("Ghost", tt.embedding); !errors.As(err, &embErr) {
				t.Fatalf("Register: expected InvalidEmbeddingError, got %v", err)
			}
			if !embErr.NotFinite || embErr.Component != tt.component {
				t.Errorf("expected non-finite component %d, got %+v", tt.component, embErr)
			}
			if err := s.Check("Ghost", tt.embedding); !errors.As(err, &embErr) {
				t.Errorf("Check: expected InvalidEmbeddingError, got %v", err)
			}
			if s.Len() != 0 || s.Dim() != 0 {
				t.Errorf("rejected embedding must leave the store empty, got len=%d dim=%d", s.Len(), s.Dim())
			}

			err := s.Load([]Entry{
				{Identity: "Ghost", Embedding: tt.embedding},
				{Identity: "Bob", Embedding: []float32{1, 1, 1}},
			})
			if !errors.As(err, &embErr) {
				t.Fatalf("Load: expected InvalidEmbeddingError, got %v", err)
			}
			if _, ok := s.Get("Ghost"); ok {
				t.Error("Ghost must not be registered")
			}
		})
	}
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore()

	entries, version := s.Snapshot()
	if len(entries) != 0 || version != 0 {
		t.Fatalf("expected empty snapshot at version 0, got %d entries at %d", len(entries), version)
	}

	for _, id := range []string{"Alice", "Bob"} {
		if err := s.Register(id, []float32{1, 2}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	entries, version = s.Snapshot()
	if len(entries) != 2 || version != s.Version() {
		t.Errorf("expected 2 entries at version %d, got %d at %d", s.Version(), len(entries), version)
	}

	if err := s.Register("Carol", []float32{3, 4}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("snapshot must not grow after later registrations, got %d", len(entries))
	}
}

func TestStore_RegisterCopiesEmbedding(t *testing.T) {
	s := NewStore()
	emb := []float32{1, 2}
	if err := s.Register("Alice", emb); err != nil {
		t.Fatalf("Register: %v", err)
	}

	emb[0] = 99

	got, ok := s.Get("alice")
	if !ok {
		t.Fatal("expected to find alice")
	}
	if got.Embedding[0] != 1 {
		t.Errorf("store must own its embedding copy, got %v", got.Embedding)
	}
}

func TestStore_Load(t *testing.T) {
	s := NewStore()

	err := s.Load([]Entry{
		{Identity: "Alice", Embedding: []float32{1, 0}},
		{Identity: "Bob", Embedding: []float32{0, 1}},
		{Identity: "alice", Embedding: []float32{1, 1}},
	})

	var dupErr *DuplicateIdentityError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected duplicate error from Load, got %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("expected entries before the failure to be kept, got %d", s.Len())
	}
}

func TestStore_ConcurrentRegisterSameIdentity(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Register("Alice", []float32{1, 2})
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("expected exactly one entry, got %d", s.Len())
	}
}

func TestStore_Check(t *testing.T) {
	s := NewStore()
	if err := s.Register("Alice", []float32{1, 2}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name      string
		identity  string
		embedding []float32
		wantErr   bool
	}{
		{"valid", "Bob", []float32{3, 4}, false},
		{"duplicate", "ALICE", []float32{3, 4}, true},
		{"blank", "  ", []float32{3, 4}, true},
		{"wrong dim", "Bob", []float32{3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Check(tt.identity, tt.embedding)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if s.Len() != 1 {
		t.Errorf("Check must not modify the roster, got %d entries", s.Len())
	}
}
