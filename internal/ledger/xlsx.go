package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the attendance table.
const SheetName = "Attendance"

// XLSXStorage keeps the ledger in a spreadsheet with columns Name, Date, Time, Status.
type XLSXStorage struct {
	path string
}

// NewXLSXStorage creates a spreadsheet storage at path.
func NewXLSXStorage(path string) *XLSXStorage {
	return &XLSXStorage{path: path}
}

// Load reads all rows of the first sheet. A missing file is an empty ledger.
func (s *XLSXStorage) Load(ctx context.Context) ([]Record, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", s.path, err)
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

// Save rewrites the whole spreadsheet.
func (s *XLSXStorage) Save(ctx context.Context, records []Record) error {
	return withFileLock(ctx, s.path, func() error {
		f := excelize.NewFile()
		defer f.Close()

		if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}

		header := make([]any, len(Columns))
		for i, c := range Columns {
			header[i] = c
		}
		if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		for i, r := range records {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			row := []any{r.Name, r.Date, r.Time, r.Status}
			if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
				return fmt.Errorf("write row %d: %w", i+2, err)
			}
		}

		tmp := s.path + ".tmp.xlsx"
		if err := f.SaveAs(tmp); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("save %s: %w", tmp, err)
		}
		return replaceFile(tmp, s.path)
	})
}
