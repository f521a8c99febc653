package excel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

func buildTestWorkbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			f.SetSheetName(f.GetSheetName(0), name)
			first = false
		} else {
			_, err := f.NewSheet(name)
			assert.NoError(t, err)
		}
		for i, row := range rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = v
			}
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			assert.NoError(t, err)
			assert.NoError(t, f.SetSheetRow(name, cell, &cells))
		}
	}

	buf, err := f.WriteToBuffer()
	assert.NoError(t, err)
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	data := buildTestWorkbook(t, map[string][][]string{
		"Tracks": {
			{"Title", "Artist"},
			{"Levels", "Avicii"},
		},
	})

	sheets, err := ParseWorkbook(data)

	assert.NoError(t, err)
	assert.Len(t, sheets, 1)
	assert.Equal(t, "Tracks", sheets[0].Name)
	assert.Equal(t, []string{"Title", "Artist"}, sheets[0].Header)
	assert.Equal(t, [][]string{{"Levels", "Avicii"}}, sheets[0].Rows)
}

func TestParseWorkbook_SkipsHeaderOnlySheets(t *testing.T) {
	data := buildTestWorkbook(t, map[string][][]string{
		"Empty": {
			{"Title", "Artist"},
		},
	})

	sheets, err := ParseWorkbook(data)

	assert.NoError(t, err)
	assert.Empty(t, sheets)
}

func TestParseWorkbook_InvalidData(t *testing.T) {
	_, err := ParseWorkbook([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	data := []byte("\ufeffTitle,Artist\nLevels,Avicii\nStrobe\n")

	sheet, err := ParseCSV("export.csv", data)

	assert.NoError(t, err)
	assert.Equal(t, "export.csv", sheet.Name)
	assert.Equal(t, []string{"Title", "Artist"}, sheet.Header)
	assert.Equal(t, [][]string{{"Levels", "Avicii"}, {"Strobe"}}, sheet.Rows)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV("empty.csv", []byte(""))
	assert.Error(t, err)
}
