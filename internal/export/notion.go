package export

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/pkg/notion"
)

// Review queue statuses. Reviewers move rows from Open to Resolved; Sync
// marks them Synced once the fix is stored.
const (
	StatusOpen     = "Open"
	StatusResolved = "Resolved"
	StatusSynced   = "Synced"
)

// NotionExporter writes review items as pages in a Notion database.
type NotionExporter struct {
	client notion.Client
	dbID   string
}

// NewNotionExporter creates an exporter for the review database dbID.
func NewNotionExporter(client notion.Client, dbID string) *NotionExporter {
	return &NotionExporter{client: client, dbID: dbID}
}

// Name implements Exporter.
func (e *NotionExporter) Name() string { return "notion" }

// Export implements Exporter.
func (e *NotionExporter) Export(ctx context.Context, runID string, items []Item) (int, error) {
	rows := make([]notion.Row, len(items))
	for i, it := range items {
		it.RunID = runID
		rows[i] = notionRow(it)
	}
	n, err := notion.CreatePages(ctx, e.client, e.dbID, rows)
	if err != nil {
		return n, eris.Wrap(err, "export: notion")
	}
	return n, nil
}

func notionRow(it Item) notion.Row {
	vals := it.Values()
	text := make(map[string]string, len(Columns))
	for i, col := range Columns {
		switch col {
		case "Name", "Failure ID", "Confidence", "Fixed Value":
			continue
		}
		text[col] = vals[i]
	}
	nums := map[string]float64{"Failure ID": float64(it.FailureID)}
	if it.Kind == KindFallout {
		nums["Confidence"] = it.Confidence
	}
	return notion.Row{Title: it.Title, Status: StatusOpen, Text: text, Numbers: nums}
}

// Sync stores the fixes on Resolved validation-failure pages and marks
// those pages Synced. Pages without a fixed value or failure id are skipped.
func (e *NotionExporter) Sync(ctx context.Context, r Resolver) (int, error) {
	pages, err := notion.QueryByStatus(ctx, e.client, e.dbID, StatusResolved)
	if err != nil {
		return 0, eris.Wrap(err, "export: notion sync")
	}

	synced := 0
	for _, p := range pages {
		if ctx.Err() != nil {
			return synced, eris.Wrap(ctx.Err(), "export: notion sync cancelled")
		}
		if notion.Text(p, "Kind") != string(KindValidationFailure) {
			continue
		}
		id, ok := notion.Number(p, "Failure ID")
		fixed := notion.Text(p, "Fixed Value")
		if !ok || id <= 0 || fixed == "" {
			zap.L().Debug("skipping incomplete review row", zap.String("page_id", string(p.ID)))
			continue
		}

		if err := r.ResolveFailure(ctx, int64(id), fixed); err != nil {
			return synced, eris.Wrapf(err, "export: resolve failure %d", int64(id))
		}
		_, err := e.client.UpdatePage(ctx, string(p.ID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{
				"Status": notionapi.StatusProperty{Status: notionapi.Status{Name: StatusSynced}},
			},
		})
		if err != nil {
			return synced, eris.Wrap(err, "export: mark page synced")
		}
		synced++
	}
	return synced, nil
}
