package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"yesan/internal/core"
)

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewStore(core.Expense{ID: "old"})

	if err := s.Save(ctx, []core.Expense{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || s.Saves() != 1 {
		t.Fatalf("unexpected list %+v", got)
	}

	got[0].ID = "mutated"
	if s.Items()[0].ID != "a" {
		t.Fatalf("list must return a copy")
	}
}

func TestStoreUploadReceipt(t *testing.T) {
	s := NewStore()
	ref, err := s.UploadReceipt(context.Background(), core.Receipt{Filename: "r.jpg", Data: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ref, core.DriveViewURL) {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(s.Receipts()) != 1 {
		t.Fatalf("receipt not stored")
	}
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := NewStore()
	s.Fail(boom, boom, boom)

	if _, err := s.List(ctx); !errors.Is(err, boom) {
		t.Fatalf("list: %v", err)
	}
	if err := s.Save(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.UploadReceipt(ctx, core.Receipt{}); !errors.Is(err, boom) {
		t.Fatalf("upload: %v", err)
	}
}

func TestTable(t *testing.T) {
	tbl := NewTableFromCSV("학원명,설립자-성명\n스카이학원,김철수\n", "자료 (2026.01.17.기준)")
	got, err := tbl.FetchTable(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != 1 || tbl.Calls() != 1 {
		t.Fatalf("unexpected table %+v", got)
	}
	tbl.FailWith(errors.New("offline"))
	if _, err := tbl.FetchTable(context.Background()); err == nil {
		t.Fatalf("expected injected error")
	}
}
