package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Columns of the tabular attendance file.
var Columns = []string{"Name", "Date", "Time", "Status"}

const lockRetryDelay = 50 * time.Millisecond

// NewFileStorage picks the file format from the path extension (.xlsx or .csv).
func NewFileStorage(path string) (Storage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return NewXLSXStorage(path), nil
	case ".csv":
		return NewCSVStorage(path), nil
	default:
		return nil, fmt.Errorf("unsupported ledger file %q (want .xlsx or .csv)", path)
	}
}

// withFileLock holds an exclusive lock on path+".lock" while fn runs, so two
// processes never interleave writes to the same ledger file.
func withFileLock(ctx context.Context, path string, fn func() error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", path)
	}
	defer lock.Unlock() //nolint:errcheck // best effort

	return fn()
}

// replaceFile moves tmp over path.
func replaceFile(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// recordFromRow converts a tabular row, tolerating missing trailing cells.
func recordFromRow(row []string) (Record, bool) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	r := Record{Name: cell(0), Date: cell(1), Time: cell(2), Status: cell(3)}
	if r.Name == "" || r.Date == "" {
		return Record{}, false
	}
	if r.Status == "" {
		r.Status = StatusPresent
	}
	return r, true
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), Columns[0])
}
