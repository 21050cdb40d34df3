package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"yesan/internal/core"
	"yesan/internal/sheets/memory"
	"yesan/internal/storage"
)

type recorder struct {
	mu      sync.Mutex
	changes []core.Change
}

func (r *recorder) Notify(_ context.Context, c core.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) all() []core.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Change(nil), r.changes...)
}

func newTestService(t *testing.T, opts ...Option) (*ExpenseService, *recorder) {
	t.Helper()
	rec := &recorder{}
	n := 0
	base := []Option{
		WithClock(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { n++; return "id-" + string(rune('a'+n-1)) }),
		WithNotifier(rec),
	}
	return NewExpenseService(storage.NewMemoryRepository(), core.DefaultBudget(), append(base, opts...)...), rec
}

func validDraft() Draft {
	return Draft{
		Date:        core.NewDate(2026, 3, 2),
		Category:    "교육비",
		Description: " 공과 교재 ",
		Amount:      core.NewMoney(800000),
		Purchaser:   "김집사",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)

	first, err := svc.Create(ctx, validDraft())
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "id-a" || first.Description != "공과 교재" || first.Reimbursed {
		t.Fatalf("unexpected expense %+v", first)
	}
	second, _ := svc.Create(ctx, validDraft())

	list, _ := svc.List(ctx)
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("newest must come first: %+v", list)
	}
	if got := rec.all(); len(got) != 2 || got[0].Origin != core.OriginLocal {
		t.Fatalf("expected two local changes, got %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Draft)
		want   error
	}{
		{"missing date", func(d *Draft) { d.Date = core.Date{} }, core.ErrMissingDate},
		{"missing category", func(d *Draft) { d.Category = " " }, core.ErrMissingCategory},
		{"unknown category", func(d *Draft) { d.Category = "간식비" }, core.ErrUnknownCategory},
		{"zero amount", func(d *Draft) { d.Amount = core.NewMoney(0) }, core.ErrInvalidAmount},
		{"long description", func(d *Draft) { d.Description = strings.Repeat("가", 201) }, core.ErrDescriptionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService(t)
			d := validDraft()
			tt.modify(&d)
			if _, err := svc.Create(context.Background(), d); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(rec.all()) != 0 {
				t.Fatal("rejected draft must not notify")
			}
		})
	}
}

func TestUpdateKeepsReimbursement(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d := validDraft()
	d.ReceiptURL = "https://drive.google.com/uc?export=view&id=x"
	e, _ := svc.Create(ctx, d)
	if _, err := svc.MarkPaidNow(ctx, e.ID); err != nil {
		t.Fatal(err)
	}

	edit := validDraft()
	edit.Amount = core.NewMoney(900000)
	got, err := svc.Update(ctx, e.ID, edit)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Reimbursed || got.ReimbursedAt != core.NewDate(2026, 3, 15) {
		t.Fatalf("reimbursement lost: %+v", got)
	}
	if got.ReceiptURL != d.ReceiptURL {
		t.Fatalf("receipt lost: %q", got.ReceiptURL)
	}
	if _, err := svc.Update(ctx, "missing", edit); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReimbursementTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	e, _ := svc.Create(ctx, validDraft())

	got, _ := svc.SetReimbursedAt(ctx, e.ID, core.NewDate(2026, 3, 9))
	if !got.Reimbursed {
		t.Fatal("date must imply reimbursed")
	}
	got, _ = svc.SetReimbursed(ctx, e.ID, true)
	if got.ReimbursedAt != core.NewDate(2026, 3, 9) {
		t.Fatalf("checking must keep the existing date, got %s", got.ReimbursedAt)
	}
	got, _ = svc.SetReimbursed(ctx, e.ID, false)
	if got.Reimbursed || !got.ReimbursedAt.IsZero() {
		t.Fatalf("unchecking must clear: %+v", got)
	}
	got, _ = svc.MarkPaidNow(ctx, e.ID)
	again, _ := svc.MarkPaidNow(ctx, e.ID)
	if !again.Reimbursed || again.ReimbursedAt != got.ReimbursedAt {
		t.Fatalf("MarkPaidNow not idempotent: %+v vs %+v", got, again)
	}
}

func TestSummaryExample(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Create(ctx, validDraft())

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range sum.Categories {
		if c.Category != "교육비" {
			continue
		}
		if c.Remaining.String() != "1400000" || c.Utilization < 36.36 || c.Utilization > 36.37 {
			t.Fatalf("unexpected 교육비 summary %+v", c)
		}
		return
	}
	t.Fatal("교육비 missing from summary")
}

func TestImportPrependsAndExport(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	existing, _ := svc.Create(ctx, validDraft())

	csv := "날짜,세세목,적요,금액\n2026-04-01,행사비,부활절,\"120,000\"\n2026-04-02,,무효,1000\n2026-04-03,예배비,헌금봉투,5000\n"
	res, err := svc.Import(ctx, strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Expenses) != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	list, _ := svc.List(ctx)
	if len(list) != 3 || list[0].Description != "부활절" || list[1].Description != "헌금봉투" || list[2].ID != existing.ID {
		t.Fatalf("imported rows must precede existing ones in file order: %+v", list)
	}
	if len(rec.all()) != 2 {
		t.Fatalf("expected create and import notifications, got %d", len(rec.all()))
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "date,category,description,amount") || strings.Count(buf.String(), "\n") != 4 {
		t.Fatalf("unexpected export:\n%s", buf.String())
	}
}

func TestResetFlagsChange(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	_, _ = svc.Create(ctx, validDraft())

	if err := svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	list, _ := svc.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	got := rec.all()
	if last := got[len(got)-1]; !last.Reset || last.Origin != core.OriginLocal {
		t.Fatalf("expected local reset change, got %+v", last)
	}
}

func TestReplaceAllNormalizes(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	remote := []core.Expense{
		{ID: "r1", Date: core.NewDate(2026, 1, 5), Category: "행사비", Amount: core.NewMoney(1000), Reimbursed: true},
		{Date: core.NewDate(2026, 1, 6), Category: "행사비", Amount: core.NewMoney(2000), ReimbursedAt: core.NewDate(2026, 1, 7)},
	}
	if err := svc.ReplaceAll(ctx, remote, core.OriginRemote); err != nil {
		t.Fatal(err)
	}
	list, _ := svc.List(ctx)
	if list[0].ReimbursedAt != core.NewDate(2026, 3, 15) {
		t.Fatalf("reimbursed row without date must get today, got %s", list[0].ReimbursedAt)
	}
	if list[1].ID == "" || !list[1].Reimbursed {
		t.Fatalf("second row not normalized: %+v", list[1])
	}
	if got := rec.all(); len(got) != 1 || got[0].Origin != core.OriginRemote {
		t.Fatalf("expected one remote change, got %+v", got)
	}
}

func TestUpdateReceiptCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	d := validDraft()
	d.ReceiptURL = "data:image/png;base64,AAAA"
	e, _ := svc.Create(ctx, d)

	ok, err := svc.UpdateReceipt(ctx, e.ID, "data:image/png;base64,BBBB", "https://x", core.OriginRemote)
	if err != nil || ok {
		t.Fatalf("stale swap must be refused, got %v %v", ok, err)
	}
	ok, err = svc.UpdateReceipt(ctx, e.ID, d.ReceiptURL, "https://x", core.OriginRemote)
	if err != nil || !ok {
		t.Fatalf("swap failed: %v %v", ok, err)
	}
	got, _ := svc.Get(ctx, e.ID)
	if got.ReceiptURL != "https://x" {
		t.Fatalf("receipt not swapped: %q", got.ReceiptURL)
	}
	if ok, err := svc.UpdateReceipt(ctx, "gone", "", "x", core.OriginRemote); ok || err != nil {
		t.Fatalf("deleted expense must be a no-op, got %v %v", ok, err)
	}
}

func TestUploadReceipt(t *testing.T) {
	ctx := context.Background()
	r := core.Receipt{Filename: "a.png", MimeType: "image/png", Data: []byte{1, 2, 3}}

	inline, _ := newTestService(t)
	ref, err := inline.UploadReceipt(ctx, r)
	if err != nil || !core.IsPendingReceipt(ref) {
		t.Fatalf("expected inline data URL, got %q %v", ref, err)
	}

	store := memory.NewStore()
	remote, _ := newTestService(t, WithUploader(store))
	ref, err = remote.UploadReceipt(ctx, r)
	if err != nil || !strings.HasPrefix(ref, core.DriveViewURL) {
		t.Fatalf("expected drive reference, got %q %v", ref, err)
	}
	if _, err := remote.UploadReceipt(ctx, core.Receipt{}); !errors.Is(err, core.ErrInvalidDataURL) {
		t.Fatalf("empty receipt must be rejected, got %v", err)
	}
}
