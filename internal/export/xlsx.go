package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const reviewSheet = "Review"

// XLSXExporter writes each batch to its own workbook under dir, named
// <run id>-<batch>.xlsx.
type XLSXExporter struct {
	dir string

	mu  sync.Mutex
	seq map[string]int
}

// NewXLSXExporter creates an exporter writing to dir.
func NewXLSXExporter(dir string) *XLSXExporter {
	return &XLSXExporter{dir: dir, seq: make(map[string]int)}
}

// Name implements Exporter.
func (e *XLSXExporter) Name() string { return "xlsx" }

// Export implements Exporter.
func (e *XLSXExporter) Export(ctx context.Context, runID string, items []Item) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, eris.Wrap(err, "export: xlsx cancelled")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return 0, eris.Wrap(err, "export: create xlsx dir")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(reviewSheet)
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, Columns)
	for _, it := range items {
		it.RunID = runID
		addRow(sheet, it.Values())
	}

	path := filepath.Join(e.dir, fmt.Sprintf("%s-%03d.xlsx", runID, e.next(runID)))
	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	return len(items), nil
}

func (e *XLSXExporter) next(runID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq[runID]++
	return e.seq[runID]
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// SyncFile reads a reviewed workbook and stores every validation-failure row
// that has a Fixed Value.
func SyncFile(ctx context.Context, path string, r Resolver) (int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "export: open workbook")
	}
	sheet, ok := f.Sheet[reviewSheet]
	if !ok {
		return 0, eris.Errorf("export: sheet %q not found", reviewSheet)
	}
	if len(sheet.Rows) == 0 {
		return 0, nil
	}

	col := make(map[string]int)
	for i, c := range sheet.Rows[0].Cells {
		col[c.String()] = i
	}
	for _, name := range []string{"Kind", "Failure ID", "Fixed Value"} {
		if _, ok := col[name]; !ok {
			return 0, eris.Errorf("export: column %q missing", name)
		}
	}
	cell := func(row *xlsx.Row, name string) string {
		i := col[name]
		if i >= len(row.Cells) {
			return ""
		}
		return row.Cells[i].String()
	}

	synced := 0
	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return synced, eris.Wrap(ctx.Err(), "export: sync cancelled")
		}
		if cell(row, "Kind") != string(KindValidationFailure) {
			continue
		}
		fixed := cell(row, "Fixed Value")
		id, err := strconv.ParseInt(cell(row, "Failure ID"), 10, 64)
		if err != nil || id <= 0 || fixed == "" {
			continue
		}
		if err := r.ResolveFailure(ctx, id, fixed); err != nil {
			return synced, eris.Wrapf(err, "export: resolve failure %d", id)
		}
		synced++
	}
	return synced, nil
}
