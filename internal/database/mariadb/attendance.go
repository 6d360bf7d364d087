package mariadb

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// AttendanceRepository is a ledger.Storage over the attendance table.
type AttendanceRepository struct {
	pool   *Pool
	cursor ledger.AppendCursor
}

// NewAttendanceRepository creates a MariaDB attendance storage.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Load returns all records ordered by date and time.
func (r *AttendanceRepository) Load(ctx context.Context) ([]ledger.Record, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT name, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(time, '%H:%i:%s'), status
		FROM attendance
		ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Name, &rec.Date, &rec.Time, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	r.cursor.Stored(len(records))
	return records, nil
}

// Save inserts the records appended since the last successful save; INSERT
// IGNORE skips rows that hit the (name_key, date) unique key.
func (r *AttendanceRepository) Save(ctx context.Context, records []ledger.Record) error {
	pending := r.cursor.Pending(records)
	if len(pending) == 0 {
		return nil
	}

	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT IGNORE INTO attendance (name, name_key, date, time, status) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare attendance insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range pending {
		if _, err := stmt.ExecContext(ctx, rec.Name, roster.NormalizeIdentity(rec.Name), rec.Date, rec.Time, rec.Status); err != nil {
			return fmt.Errorf("insert attendance for %s on %s: %w", rec.Name, rec.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	r.cursor.Stored(len(records))
	return nil
}
