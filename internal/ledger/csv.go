package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// CSVStorage keeps the ledger as a comma-separated file with a header row.
type CSVStorage struct {
	path string
}

// NewCSVStorage creates a CSV storage at path.
func NewCSVStorage(path string) *CSVStorage {
	return &CSVStorage{path: path}
}

// Load reads all rows. A missing file is an empty ledger.
func (s *CSVStorage) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if r, ok := recordFromRow(row); ok {
			records = append(records, r)
		}
	}
	return records, nil
}

// Save rewrites the whole file.
func (s *CSVStorage) Save(ctx context.Context, records []Record) error {
	return withFileLock(ctx, s.path, func() error {
		tmp := s.path + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("create %s: %w", tmp, err)
		}

		w := csv.NewWriter(f)
		_ = w.Write(Columns)
		for _, r := range records {
			_ = w.Write([]string{r.Name, r.Date, r.Time, r.Status})
		}
		w.Flush()

		if err := w.Error(); err != nil {
			f.Close()
			_ = os.Remove(tmp)
			return fmt.Errorf("write %s: %w", tmp, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("close %s: %w", tmp, err)
		}
		return replaceFile(tmp, s.path)
	})
}
