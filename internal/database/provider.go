package database

import (
	"context"
	"fmt"
	"sync"
)

// Backend names accepted by LEDGER_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

var (
	mu                 sync.RWMutex
	postgresRoster     func() RosterRepository
	postgresAttendance func() AttendanceStorage
	mariadbAttendance  func() AttendanceStorage
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(rosterRepo func() RosterRepository, attendance func() AttendanceStorage) {
	mu.Lock()
	defer mu.Unlock()
	postgresRoster = rosterRepo
	postgresAttendance = attendance
}

// RegisterMariaDBBackend registers the MariaDB attendance storage constructor.
func RegisterMariaDBBackend(attendance func() AttendanceStorage) {
	mu.Lock()
	defer mu.Unlock()
	mariadbAttendance = attendance
}

// IsPostgresInitialized returns whether the PostgreSQL backend has been registered.
func IsPostgresInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return postgresRoster != nil
}

// GetRosterRepository returns the PostgreSQL roster repository.
func GetRosterRepository(ctx context.Context) (RosterRepository, error) {
	mu.RLock()
	defer mu.RUnlock()
	if postgresRoster == nil {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	return postgresRoster(), nil
}

// GetAttendanceStorage returns the database attendance storage for backend.
func GetAttendanceStorage(ctx context.Context, backend string) (AttendanceStorage, error) {
	mu.RLock()
	defer mu.RUnlock()
	switch backend {
	case BackendPostgres:
		if postgresAttendance == nil {
			return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
		}
		return postgresAttendance(), nil
	case BackendMariaDB:
		if mariadbAttendance == nil {
			return nil, fmt.Errorf("MariaDB backend not initialized: MARIADB_DSN is required")
		}
		return mariadbAttendance(), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", backend)
	}
}

// resetForTest clears registrations.
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	postgresRoster = nil
	postgresAttendance = nil
	mariadbAttendance = nil
}
