package google

import (
	"context"

	"yesan/internal/csvtable"
	ports "yesan/internal/sheets"
)

var (
	_ ports.TableSource = (*TableSource)(nil)
	_ ports.TitleSource = (*TableSource)(nil)
)

// TableSource reads a named range, e.g. "Data!A:ZZ", as a table.
type TableSource struct {
	client        *Client
	spreadsheetID string
	rng           string
}

func (c *Client) TableSource(spreadsheetID, rng string) *TableSource {
	return &TableSource{client: c, spreadsheetID: spreadsheetID, rng: rng}
}

func (t *TableSource) FetchTable(ctx context.Context) (csvtable.Table, error) {
	rows, err := t.client.readRange(ctx, t.spreadsheetID, t.rng)
	if err != nil {
		return csvtable.Table{}, err
	}
	return csvtable.FromRows(rows), nil
}

func (t *TableSource) Title(ctx context.Context) (string, error) {
	return t.client.Title(ctx, t.spreadsheetID)
}
