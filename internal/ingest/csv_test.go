package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestReadCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	table, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"1", "2", "3"}, table.Rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, table.Rows[1])
}

func TestReadCSV_StripsBOM(t *testing.T) {
	input := "\xef\xbb\xbfGeography,Gender\nFrance,Female\n"
	table, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Geography", table.Columns[0])
	assert.Equal(t, 0, table.ColumnIndex("Geography"))
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	table, err := ReadCSV(context.Background(), strings.NewReader("a,b\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
	assert.Equal(t, 0, table.Len())
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestReadCSV_RaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n4,5,6\n"
	table, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "", table.Cell(0, 2))
	assert.Equal(t, "6", table.Cell(1, 2))
}

func TestReadCSV_UnterminatedQuote(t *testing.T) {
	input := "a,b\n\"1,2\n"
	_, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_PipeDelimited(t *testing.T) {
	input := "a|b|c\n1|2|3\n"
	headerCh, rowCh, errCh := streamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, <-headerCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "2", "3"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := "name , age\n alice , 30 \n"
	headerCh, rowCh, errCh := streamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, <-headerCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"alice", "30"}, rows[0])
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, rowCh, errCh := streamCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
