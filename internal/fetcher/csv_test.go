package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\ufeffgroup,population\nBlack,13000\nWhite, 420000 \n"), CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"group", "population"}, rows[0])
	assert.Equal(t, []string{"White", "420000"}, rows[2])
}

func TestReadCSV_DelimiterAndComment(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("# census 2021\na;b\n1;2\n"), CSVOptions{Delimiter: ';', Comment: '#'})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2"}, rows[1])
}

func TestReadCSV_VariableFields(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("a,b,c\n1\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Len(t, rows[1], 1)
}
