package ledger

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names expected in an uploaded reconciliation workbook.
const (
	ManualSheetName = "Jurnal Manual"
	ERPSheetName    = "Daftra"
)

// Workbook is the raw content of an uploaded two-sheet workbook.
type Workbook struct {
	Manual RawTable
	ERP    RawTable
}

// ReadWorkbook parses an xlsx stream containing the manual journal and
// the ERP export on their conventional sheets.
func ReadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	manual, err := readSheet(f, ManualSheetName)
	if err != nil {
		return nil, err
	}
	erp, err := readSheet(f, ERPSheetName)
	if err != nil {
		return nil, err
	}

	return &Workbook{Manual: manual, ERP: erp}, nil
}

// OpenWorkbook reads a workbook from disk, for scheduled runs.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	manual, err := readSheet(f, ManualSheetName)
	if err != nil {
		return nil, err
	}
	erp, err := readSheet(f, ERPSheetName)
	if err != nil {
		return nil, err
	}

	return &Workbook{Manual: manual, ERP: erp}, nil
}

// readSheet converts one sheet into a RawTable. The first row is the
// header; short rows are tolerated (trailing cells simply absent).
func readSheet(f *excelize.File, sheet string) (RawTable, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return RawTable{}, fmt.Errorf("sheet %q not found: %w", sheet, err)
	}
	if len(rows) == 0 {
		return RawTable{}, nil
	}

	headers := rows[0]
	table := RawTable{
		Columns: headers,
		Rows:    make([]map[string]string, 0, len(rows)-1),
	}

	for _, row := range rows[1:] {
		cells := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(row) {
				cells[header] = row[i]
			}
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}
