// Package ingest reads inbound company and person records from JSON, CSV and
// XLSX files, either on local disk or over FTP.
package ingest

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Format identifies an input file layout.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Options configures how a source is read.
type Options struct {
	Format     Format        // empty: detect from the file extension
	Sheet      string        // XLSX sheet name; first sheet when empty
	Encoding   string        // CSV charset label such as "windows-1252"; UTF-8 when empty
	FTPTimeout time.Duration // default 30s
}

// DetectFormat maps a file name to its Format. Stdin ("-") is JSON.
func DetectFormat(name string) (Format, error) {
	if name == "-" {
		return FormatJSON, nil
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", eris.Errorf("ingest: cannot detect format of %q", name)
}

// Companies reads company records from src.
func Companies(ctx context.Context, src string, opts Options) ([]model.Company, error) {
	return read(ctx, src, opts, companyFromRow)
}

// People reads person records from src.
func People(ctx context.Context, src string, opts Options) ([]model.Person, error) {
	return read(ctx, src, opts, personFromRow)
}

func read[T any](ctx context.Context, src string, opts Options, fromRow func(row) T) ([]T, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(src); err != nil {
			return nil, err
		}
	}

	local, cleanup, err := fetch(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	switch format {
	case FormatJSON:
		return readJSON[T](ctx, local)
	case FormatCSV:
		return readTabular(ctx, local, fromRow, func(r io.Reader) (<-chan []string, <-chan error) {
			return StreamCSV(ctx, r, CSVOptions{Encoding: opts.Encoding, TrimSpace: true})
		})
	case FormatXLSX:
		rows, err := ReadXLSX(local, XLSXOptions{SheetName: opts.Sheet})
		if err != nil {
			return nil, err
		}
		return fromRows(rows, fromRow)
	}
	return nil, eris.Errorf("ingest: unsupported format %q", format)
}

// fetch resolves src to a local path. FTP sources are downloaded to a
// temporary file that cleanup removes.
func fetch(ctx context.Context, src string, opts Options) (string, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(src, "ftp://") {
		return src, noop, nil
	}

	tmp, err := os.CreateTemp("", "ingest-*"+filepath.Ext(src))
	if err != nil {
		return "", noop, eris.Wrap(err, "ingest: create temp file")
	}
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	n, err := NewFTPFetcher(FTPOptions{Timeout: opts.FTPTimeout}).DownloadToFile(ctx, src, tmp.Name())
	if err != nil {
		cleanup()
		return "", noop, err
	}
	zap.L().Info("ingest: downloaded source", zap.String("src", redact(src)), zap.Int64("bytes", n))
	return tmp.Name(), cleanup, nil
}

func readJSON[T any](ctx context.Context, local string) ([]T, error) {
	var r io.Reader = os.Stdin
	if local != "-" {
		f, err := os.Open(local)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: open input")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	items, errCh := DecodeJSONArray[T](ctx, r)
	var out []T
	for item := range items {
		out = append(out, item)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func readTabular[T any](ctx context.Context, local string, fromRow func(row) T, stream func(io.Reader) (<-chan []string, <-chan error)) ([]T, error) {
	f, err := os.Open(local)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open input")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := stream(f)
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "ingest: read rows")
	}
	return fromRows(rows, fromRow)
}

// fromRows treats the first row as the header and maps each following
// non-blank row to a record.
func fromRows[T any](rows [][]string, fromRow func(row) T) ([]T, error) {
	if len(rows) == 0 {
		return nil, eris.New("ingest: input has no header row")
	}
	cols := mapColumns(rows[0])
	out := make([]T, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		out = append(out, fromRow(row{cols: cols, rec: rec}))
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
