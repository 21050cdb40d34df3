package core

import (
	"bytes"
	"testing"
)

func TestDataURLRoundTrip(t *testing.T) {
	r := Receipt{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	ref := r.DataURL()
	if !IsPendingReceipt(ref) {
		t.Fatalf("expected pending receipt, got %q", ref)
	}
	mime, data, err := ParseDataURL(ref)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" || !bytes.Equal(data, r.Data) {
		t.Fatalf("got %s %v", mime, data)
	}
}

func TestParseDataURLRejects(t *testing.T) {
	for _, ref := range []string{
		"https://drive.google.com/uc?export=view&id=abc",
		"data:image/png,plain",
		"data:image/png;base64,***",
	} {
		if _, _, err := ParseDataURL(ref); err == nil {
			t.Fatalf("%q: expected error", ref)
		}
	}
}

func TestReceiptFilename(t *testing.T) {
	e := Expense{
		Date:        NewDate(2026, 3, 2),
		Category:    "교육비",
		Description: "주일 교재/구입",
		Amount:      NewMoney(32000),
	}
	want := "2026-03-02_교육비_주일_교재_구입_32,000원.jpg"
	if got := ReceiptFilename(e, "image/jpeg"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	e.Description = ""
	if got := ReceiptFilename(e, "image/png"); got != "2026-03-02_교육비_receipt_32,000원.png" {
		t.Fatalf("got %q", got)
	}
}

func TestReceiptViewURL(t *testing.T) {
	if got := ReceiptViewURL("https://x/view", "id1"); got != "https://x/view" {
		t.Fatalf("got %q", got)
	}
	if got := ReceiptViewURL("", "id1"); got != DriveViewURL+"id1" {
		t.Fatalf("got %q", got)
	}
	if got := ReceiptViewURL("", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
