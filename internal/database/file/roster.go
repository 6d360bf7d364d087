// Package file keeps the roster in a YAML file for setups without a database.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"gopkg.in/yaml.v3"
)

const lockRetryDelay = 50 * time.Millisecond

type rosterFile struct {
	Identities []identity `yaml:"identities"`
}

type identity struct {
	Name         string    `yaml:"name"`
	RegisteredAt time.Time `yaml:"registered_at"`
	Embedding    []float32 `yaml:"embedding,flow"`
}

// RosterRepository stores entries in a YAML document.
type RosterRepository struct {
	path string
	mu   sync.Mutex
}

// NewRosterRepository creates a repository backed by path. The file is
// created on the first Save.
func NewRosterRepository(path string) *RosterRepository {
	return &RosterRepository{path: path}
}

// Path returns the roster file location.
func (r *RosterRepository) Path() string {
	return r.path
}

// List returns all entries in file order. A missing file is an empty roster.
func (r *RosterRepository) List(ctx context.Context) ([]roster.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Count returns the number of stored identities.
func (r *RosterRepository) Count(ctx context.Context) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Save appends entry, rejecting labels that are already present.
func (r *RosterRepository) Save(ctx context.Context, entry roster.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create roster dir: %w", err)
		}
	}

	lock := flock.New(r.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", r.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", r.path)
	}
	defer lock.Unlock() //nolint:errcheck // best effort

	entries, err := r.read()
	if err != nil {
		return err
	}

	key := roster.NormalizeIdentity(entry.Identity)
	for _, e := range entries {
		if roster.NormalizeIdentity(e.Identity) == key {
			return &roster.DuplicateIdentityError{Identity: entry.Identity, Existing: e.Identity}
		}
	}

	return r.write(append(entries, entry))
}

func (r *RosterRepository) read() ([]roster.Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roster %s: %w", r.path, err)
	}

	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", r.path, err)
	}

	entries := make([]roster.Entry, 0, len(doc.Identities))
	for _, id := range doc.Identities {
		entries = append(entries, roster.Entry{
			Identity:     id.Name,
			Embedding:    id.Embedding,
			RegisteredAt: id.RegisteredAt,
		})
	}
	return entries, nil
}

func (r *RosterRepository) write(entries []roster.Entry) error {
	doc := rosterFile{Identities: make([]identity, 0, len(entries))}
	for _, e := range entries {
		doc.Identities = append(doc.Identities, identity{
			Name:         e.Identity,
			RegisteredAt: e.RegisteredAt.UTC(),
			Embedding:    e.Embedding,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}
