// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

var (
	_ database.RosterRepository  = (*MockRosterRepository)(nil)
	_ database.AttendanceStorage = (*MockAttendanceStorage)(nil)
)

// MockRosterRepository is a mock implementation of database.RosterRepository
type MockRosterRepository struct {
	mu      sync.RWMutex
	entries []roster.Entry

	// Error injection
	ListError  error
	CountError error
	SaveError  error
}

// NewMockRosterRepository creates a new mock roster repository
func NewMockRosterRepository() *MockRosterRepository {
	return &MockRosterRepository{}
}

// AddEntry adds an entry without uniqueness checks
func (m *MockRosterRepository) AddEntry(e roster.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// List returns all entries
func (m *MockRosterRepository) List(ctx context.Context) ([]roster.Entry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]roster.Entry(nil), m.entries...), nil
}

// Count returns the number of entries
func (m *MockRosterRepository) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Save appends an entry, rejecting duplicates like the real repositories
func (m *MockRosterRepository) Save(ctx context.Context, e roster.Entry) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roster.NormalizeIdentity(e.Identity)
	for _, existing := range m.entries {
		if roster.NormalizeIdentity(existing.Identity) == key {
			return &roster.DuplicateIdentityError{Identity: e.Identity, Existing: existing.Identity}
		}
	}
	m.entries = append(m.entries, e)
	return nil
}

// MockAttendanceStorage is a mock implementation of database.AttendanceStorage
type MockAttendanceStorage struct {
	mu      sync.RWMutex
	records []ledger.Record
	saves   int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockAttendanceStorage creates a new mock attendance storage
func NewMockAttendanceStorage(records ...ledger.Record) *MockAttendanceStorage {
	return &MockAttendanceStorage{records: records}
}

// Load returns the stored records
func (m *MockAttendanceStorage) Load(ctx context.Context) ([]ledger.Record, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Record(nil), m.records...), nil
}

// Save replaces the stored records
func (m *MockAttendanceStorage) Save(ctx context.Context, records []ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.records = append([]ledger.Record(nil), records...)
	return nil
}

// SetSaveError changes the injected save error while the storage is in use
func (m *MockAttendanceStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}

// Records returns what was last saved
func (m *MockAttendanceStorage) Records() []ledger.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.Record(nil), m.records...)
}

// Saves returns how many times Save was called
func (m *MockAttendanceStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
