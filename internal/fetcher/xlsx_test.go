package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	s, err := f.AddSheet(sheet)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := s.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "census.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, "Ethnic group", [][]string{
		{"group", "population"},
		{"Black", "13000"},
		{" Asian ", "20000"},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Asian", "20000"}, rows[2])

	rows, err = ReadXLSX(path, XLSXOptions{SheetName: "Ethnic group", SkipRows: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, "Sheet1", [][]string{{"a"}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "nope"})
	assert.Error(t, err)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 4})
	assert.Error(t, err)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "none.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
