package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"summary-processor/dedup"
)

const (
	// SummarySheetName is the single sheet the writer emits.
	SummarySheetName = "Summary"
	// SoftHighlightColor is the fill behind rows flagged as soft matches.
	SoftHighlightColor = "FFF3B0"
	// CountHeader labels the appended occurrence column in summary mode.
	CountHeader = "Count"

	numFmtText = 49
)

// BuildWorkbook renders a consolidated result as xlsx bytes: a bold frozen
// header row, all cells formatted as text, soft-match rows highlighted.
// With includeCount set, a Count column populated from row metadata is
// appended after the canonical headers.
func BuildWorkbook(result *dedup.Result, includeCount bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SummarySheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: numFmtText,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtText})
	if err != nil {
		return nil, fmt.Errorf("failed to create text style: %w", err)
	}
	softStyle, err := f.NewStyle(&excelize.Style{
		NumFmt: numFmtText,
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{SoftHighlightColor},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create highlight style: %w", err)
	}

	headers := result.Headers
	if includeCount {
		headers = append(append([]string{}, headers...), CountHeader)
	}
	if err := writeRow(f, 1, toCells(headers)); err != nil {
		return nil, err
	}
	if err := styleRow(f, 1, len(headers), headerStyle); err != nil {
		return nil, err
	}

	for i, row := range result.Rows {
		cells := toCells(row)
		if includeCount {
			cells = append(cells, result.Meta[i].Count)
		}
		rowNum := i + 2
		if err := writeRow(f, rowNum, cells); err != nil {
			return nil, err
		}
		if err := styleRow(f, rowNum, len(headers), textStyle); err != nil {
			return nil, err
		}
		// the highlight covers the canonical columns only; an appended
		// Count cell stays unfilled
		if result.Meta[i].Soft {
			if err := styleRow(f, rowNum, len(result.Headers), softStyle); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(SummarySheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(SummarySheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func styleRow(f *excelize.File, rowNum, width int, style int) error {
	if width == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheetName, first, last, style); err != nil {
		return fmt.Errorf("failed to style row %d: %w", rowNum, err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
