package csvio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"yesan/internal/core"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

var today = core.NewDate(2026, 6, 1)

func TestExportQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, []core.Expense{{
		ID:          "x",
		Date:        core.NewDate(2026, 1, 5),
		Category:    "교육비",
		Description: "교재, \"특가\"\n2권",
		Amount:      core.NewMoney(32000),
	}})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "date,category,description,amount,purchaser,receiptUrl,reimbursed,reimbursedAt\n") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, `"교재, ""특가""`+"\n"+`2권"`) {
		t.Fatalf("description not quoted: %q", out)
	}
	if strings.Contains(out, "x,") {
		t.Fatalf("id must not be exported: %q", out)
	}
}

func TestRoundTrip(t *testing.T) {
	in := []core.Expense{
		{ID: "a", Date: core.NewDate(2026, 1, 5), Category: "교육비", Description: "주일 교재, 구입", Amount: core.NewMoney(32000), Purchaser: "김집사", ReceiptURL: "https://x/r.jpg"},
		{ID: "b", Date: core.NewDate(2026, 2, 1), Category: "예배비", Description: `"따옴표"`, Amount: core.NewMoney(5000), Reimbursed: true, ReimbursedAt: core.NewDate(2026, 2, 3)},
	}
	var buf bytes.Buffer
	if err := Export(&buf, in); err != nil {
		t.Fatal(err)
	}
	res, err := Import(&buf, seqIDs(), today)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Expenses) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(res.Expenses))
	}
	for i, got := range res.Expenses {
		want := in[i]
		got.ID = want.ID
		if got.Date != want.Date || got.Category != want.Category || got.Description != want.Description ||
			!got.Amount.Equal(want.Amount.Decimal) || got.Purchaser != want.Purchaser || got.ReceiptURL != want.ReceiptURL ||
			got.Reimbursed != want.Reimbursed || got.ReimbursedAt != want.ReimbursedAt {
			t.Fatalf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	if res.Expenses[0].ID != "id-1" {
		t.Fatalf("ids must be regenerated, got %q", res.Expenses[0].ID)
	}
}

func TestImportAliasesAndFiltering(t *testing.T) {
	in := "\uFEFF날짜,세세목,적요,금액,구매자,영수증URL,입금완료,입금일,비고\n" +
		"2026-01-05,교육비,교재,\"32,000원\",김집사,,TRUE,,메모\n" +
		",교육비,날짜없음,1000,,,,,\n" +
		"2026-01-06,,분류없음,1000,,,,,\n" +
		"2026-01-07,예배비,금액없음,0,,,,,\n" +
		"2026-01-07,예배비,환불,\"-5,000\",,,,,\n" +
		"\n" +
		"2026-01-08,행사비,입금일만,1000,,,,2026-01-09,\n"
	res, err := Import(strings.NewReader(in), seqIDs(), today)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows != 6 || res.Skipped != 4 || len(res.Expenses) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	first := res.Expenses[0]
	if !first.Amount.Equal(core.NewMoney(32000).Decimal) || first.Purchaser != "김집사" {
		t.Fatalf("unexpected first %+v", first)
	}
	if !first.Reimbursed || first.ReimbursedAt != today {
		t.Fatalf("reimbursed flag without date should get today: %+v", first)
	}
	second := res.Expenses[1]
	if !second.Reimbursed || second.ReimbursedAt != core.NewDate(2026, 1, 9) {
		t.Fatalf("date should imply reimbursed: %+v", second)
	}
}

func TestImportAlternateAliases(t *testing.T) {
	in := "date,분류,설명,amount,영수증\n2026-03-01,운영행정비,복사,1200,https://r\n"
	res, err := Import(strings.NewReader(in), seqIDs(), today)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Expenses) != 1 {
		t.Fatalf("got %+v", res)
	}
	e := res.Expenses[0]
	if e.Category != "운영행정비" || e.Description != "복사" || e.ReceiptURL != "https://r" {
		t.Fatalf("unexpected %+v", e)
	}
}

func TestImportEUCKR(t *testing.T) {
	utf := "날짜,세세목,금액\n2026-04-01,행사비,50000\n"
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), utf)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Import(strings.NewReader(encoded), seqIDs(), today)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Expenses) != 1 || res.Expenses[0].Category != "행사비" {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestImportEmpty(t *testing.T) {
	res, err := Import(strings.NewReader(""), seqIDs(), today)
	if err != nil || len(res.Expenses) != 0 {
		t.Fatalf("got %+v, %v", res, err)
	}
}
