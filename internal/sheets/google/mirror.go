package google

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	gsheet "google.golang.org/api/sheets/v4"

	"yesan/internal/core"
	ports "yesan/internal/sheets"
)

var _ ports.MirrorStore = (*Mirror)(nil)

// mirrorHeader is the first row of the mirror sheet.
var mirrorHeader = []string{"id", "date", "category", "description", "amount", "purchaser", "receiptUrl", "reimbursed", "reimbursedAt"}

// Mirror keeps the expense list in one sheet, header in row 1, and stores
// receipts in a Drive folder.
type Mirror struct {
	client        *Client
	spreadsheetID string
	sheet         string
	folderID      string
}

func (c *Client) Mirror(spreadsheetID, sheet, folderID string) *Mirror {
	if sheet == "" {
		sheet = "Expenses"
	}
	return &Mirror{client: c, spreadsheetID: spreadsheetID, sheet: sheet, folderID: folderID}
}

func (m *Mirror) rangeAll() string {
	return fmt.Sprintf("%s!A:I", m.sheet)
}

func (m *Mirror) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := m.client.readRange(ctx, m.spreadsheetID, m.rangeAll())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrUpstream, err)
	}
	return decodeExpenseRows(rows), nil
}

// Save clears the sheet and writes the full list.
func (m *Mirror) Save(ctx context.Context, expenses []core.Expense) error {
	values := m.client.sheets.Spreadsheets.Values
	if _, err := values.Clear(m.spreadsheetID, m.rangeAll(), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %s: %v", ports.ErrUpstream, m.sheet, err)
	}
	vr := &gsheet.ValueRange{Values: encodeExpenseRows(expenses)}
	rng := fmt.Sprintf("%s!A1:I%d", m.sheet, len(vr.Values))
	if _, err := values.Update(m.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: update %s: %v", ports.ErrUpstream, rng, err)
	}
	return nil
}

// UploadReceipt creates the file in the receipt folder and shares it with
// anyone holding the link.
func (m *Mirror) UploadReceipt(ctx context.Context, r core.Receipt) (string, error) {
	f := &gdrive.File{Name: r.Filename, MimeType: r.MimeType}
	if m.folderID != "" {
		f.Parents = []string{m.folderID}
	}
	created, err := m.client.drive.Files.Create(f).
		Media(bytes.NewReader(r.Data)).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", ports.ErrUpstream, r.Filename, err)
	}
	perm := &gdrive.Permission{Type: "anyone", Role: "reader"}
	if _, err := m.client.drive.Permissions.Create(created.Id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("%w: share %s: %v", ports.ErrUpstream, created.Id, err)
	}
	return core.ReceiptViewURL("", created.Id), nil
}

func encodeExpenseRows(expenses []core.Expense) [][]interface{} {
	header := make([]interface{}, len(mirrorHeader))
	for i, h := range mirrorHeader {
		header[i] = h
	}
	rows := [][]interface{}{header}
	for _, e := range expenses {
		rows = append(rows, []interface{}{
			e.ID,
			e.Date.String(),
			e.Category,
			e.Description,
			e.Amount.String(),
			e.Purchaser,
			e.ReceiptURL,
			strconv.FormatBool(e.Reimbursed),
			e.ReimbursedAt.String(),
		})
	}
	return rows
}

// decodeExpenseRows locates columns by header name so reordered or extra
// columns in the sheet are tolerated. Rows without an id are skipped.
func decodeExpenseRows(rows [][]string) []core.Expense {
	if len(rows) == 0 {
		return []core.Expense{}
	}
	header := rows[0]
	col := make(map[string]int, len(mirrorHeader))
	for _, h := range mirrorHeader {
		col[h] = indexOf(header, h)
	}

	out := make([]core.Expense, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(name string) string { return safeGet(row, col[name]) }
		id := get("id")
		if id == "" {
			continue
		}
		date, _ := core.ParseDate(get("date"))
		paidAt, _ := core.ParseDate(get("reimbursedAt"))
		paid, _ := strconv.ParseBool(strings.TrimSpace(get("reimbursed")))
		out = append(out, core.Expense{
			ID:           id,
			Date:         date,
			Category:     get("category"),
			Description:  get("description"),
			Amount:       core.ParseAmount(get("amount")),
			Purchaser:    get("purchaser"),
			ReceiptURL:   get("receiptUrl"),
			Reimbursed:   paid,
			ReimbursedAt: paidAt,
		})
	}
	return out
}
