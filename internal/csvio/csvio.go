// Package csvio converts expense lists to and from the spreadsheet-friendly
// CSV layout users download and re-import.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"yesan/internal/core"
)

// ErrMalformed is returned for input that is not readable CSV.
var ErrMalformed = errors.New("malformed csv")

// Columns is the export header. The id is left out; imports mint new ones.
var Columns = []string{"date", "category", "description", "amount", "purchaser", "receiptUrl", "reimbursed", "reimbursedAt"}

// aliases lists the accepted header names per field, canonical name first.
var aliases = map[string][]string{
	"date":         {"date", "날짜"},
	"category":     {"category", "세세목", "분류"},
	"description":  {"description", "적요", "설명"},
	"amount":       {"amount", "금액"},
	"purchaser":    {"purchaser", "구매자"},
	"receiptUrl":   {"receiptUrl", "영수증", "영수증URL"},
	"reimbursed":   {"reimbursed", "입금완료"},
	"reimbursedAt": {"reimbursedAt", "입금일"},
}

// Export writes expenses with a header row. Fields holding commas, quotes
// or newlines are quoted with inner quotes doubled.
func Export(w io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range expenses {
		rec := []string{
			e.Date.String(),
			e.Category,
			e.Description,
			e.Amount.String(),
			e.Purchaser,
			e.ReceiptURL,
			strconv.FormatBool(e.Reimbursed),
			e.ReimbursedAt.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write expense %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Result summarises an import.
type Result struct {
	Expenses []core.Expense
	Rows     int // data rows read
	Skipped  int // rows dropped for a missing date or category, or a non-positive amount
}

// Import reads expenses from CSV. Headers may use the canonical names or
// their Korean aliases; unknown columns are ignored. Every imported expense
// gets an id from newID and its reimbursement state is normalized.
func Import(r io.Reader, newID func() string, today core.Date) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	data, err = toUTF8(data)
	if err != nil {
		return Result{}, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return Result{Expenses: []core.Expense{}}, nil
	}

	cols := resolveColumns(records[0])
	res := Result{Expenses: make([]core.Expense, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		res.Rows++
		e, ok := decode(rec, cols, today)
		if !ok {
			res.Skipped++
			continue
		}
		e.ID = newID()
		res.Expenses = append(res.Expenses, e)
	}
	return res, nil
}

// resolveColumns maps each field to the columns that may hold it, in alias
// order. The first non-empty one wins per row.
func resolveColumns(header []string) map[string][]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	cols := make(map[string][]int, len(aliases))
	for field, names := range aliases {
		for _, n := range names {
			if i, ok := pos[n]; ok {
				cols[field] = append(cols[field], i)
			}
		}
	}
	return cols
}

func decode(rec []string, cols map[string][]int, today core.Date) (core.Expense, bool) {
	get := func(field string) string {
		for _, i := range cols[field] {
			if i < len(rec) {
				if v := strings.TrimSpace(rec[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	date, err := core.ParseDate(get("date"))
	if err != nil || date.IsZero() {
		return core.Expense{}, false
	}
	amount := core.ParseAmount(get("amount"))
	if !amount.IsPositive() || get("category") == "" {
		return core.Expense{}, false
	}
	paidAt, _ := core.ParseDate(get("reimbursedAt"))

	e := core.Expense{
		Date:         date,
		Category:     get("category"),
		Description:  get("description"),
		Amount:       amount,
		Purchaser:    get("purchaser"),
		ReceiptURL:   get("receiptUrl"),
		Reimbursed:   strings.EqualFold(get("reimbursed"), "true"),
		ReimbursedAt: paidAt,
	}
	e.Normalize(today)
	return e, true
}

// toUTF8 strips a byte order mark and decodes EUC-KR (CP949) input, which
// is what spreadsheet programs on Korean systems save by default.
func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode euc-kr: %v", ErrMalformed, err)
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
