// Package excel converts between workbook/CSV bytes and source sheets, and
// renders consolidated results back into styled workbooks.
package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"summary-processor/types"
)

// ParseWorkbook opens an xlsx export and returns its sheets, header row
// split from data rows. Sheets with fewer than two rows carry no data and
// are skipped.
func ParseWorkbook(data []byte) ([]types.SourceSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []types.SourceSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		if len(rows) < 2 {
			continue
		}
		sheets = append(sheets, types.SourceSheet{
			Name:   name,
			Header: rows[0],
			Rows:   rows[1:],
		})
	}
	return sheets, nil
}

// ParseCSV parses a CSV export into a single source sheet. A UTF-8 BOM on
// the first header cell is stripped; ragged rows are allowed.
func ParseCSV(name string, data []byte) (types.SourceSheet, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var sheet types.SourceSheet
	records, err := reader.ReadAll()
	if err != nil {
		return sheet, fmt.Errorf("failed to parse CSV %s: %w", name, err)
	}
	if len(records) == 0 {
		return sheet, fmt.Errorf("CSV %s is empty", name)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	sheet.Name = name
	sheet.Header = header
	sheet.Rows = records[1:]
	return sheet, nil
}
