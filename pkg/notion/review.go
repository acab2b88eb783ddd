package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Row is one review-queue page. Title becomes the title property, Text
// values become rich_text and Numbers become number properties.
type Row struct {
	Title   string
	Status  string
	Text    map[string]string
	Numbers map[string]float64
}

// BuildProperties converts a Row to Notion page properties. Empty text
// values are omitted.
func BuildProperties(row Row) notionapi.Properties {
	props := make(notionapi.Properties, len(row.Text)+len(row.Numbers)+2)
	props["Name"] = notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: richText(row.Title),
	}
	if row.Status != "" {
		props["Status"] = notionapi.StatusProperty{
			Status: notionapi.Status{Name: row.Status},
		}
	}
	for k, v := range row.Text {
		if v == "" {
			continue
		}
		props[k] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(v),
		}
	}
	for k, v := range row.Numbers {
		props[k] = notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: v,
		}
	}
	return props
}

// CreatePages creates one page per row in dbID and returns how many were
// created before any error.
func CreatePages(ctx context.Context, c Client, dbID string, rows []Row) (int, error) {
	created := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: create pages cancelled")
		}
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: BuildProperties(row),
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrapf(err, "notion: create page %q", row.Title)
		}
		created++
	}
	return created, nil
}

// Text returns the plain text of a title or rich_text property.
func Text(p notionapi.Page, name string) string {
	switch prop := p.Properties[name].(type) {
	case *notionapi.TitleProperty:
		return PlainText(prop.Title)
	case *notionapi.RichTextProperty:
		return PlainText(prop.RichText)
	}
	return ""
}

// Number returns a number property and whether it was present.
func Number(p notionapi.Page, name string) (float64, bool) {
	if np, ok := p.Properties[name].(*notionapi.NumberProperty); ok {
		return np.Number, true
	}
	return 0, false
}

// PlainText concatenates rich text segments.
func PlainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
		if r.PlainText == "" && r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}
