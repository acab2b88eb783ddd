package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	return rows, <-errCh
}

func TestStreamCSV_Basic(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,b\n1,2\n3\n"), CSVOptions{})
	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3"}}, rows)
}

func TestStreamCSV_DelimiterCommentTrim(t *testing.T) {
	input := "# exported 2026-10-01\nname | website\n Acme | acme.com \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '|',
		Comment:   '#',
		TrimSpace: true,
	})
	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "website"}, {"Acme", "acme.com"}}, rows)
}

func TestStreamCSV_UnsupportedEncoding(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a\n"), CSVOptions{Encoding: "klingon"})
	_, err := collect(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{})
	_, err := collect(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\nb\n"), CSVOptions{})
	_, err := collect(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestDecodeJSONArray_NotArray(t *testing.T) {
	items, errCh := DecodeJSONArray[map[string]any](context.Background(), strings.NewReader(`{"a":1}`))
	for range items {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONArray_Empty(t *testing.T) {
	items, errCh := DecodeJSONArray[map[string]any](context.Background(), strings.NewReader(``))
	n := 0
	for range items {
		n++
	}
	assert.NoError(t, <-errCh)
	assert.Zero(t, n)
}
