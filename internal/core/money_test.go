package core

import (
	"encoding/json"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"32000", 32000},
		{"32,000원", 32000},
		{" 1,234,567 ", 1234567},
		{"-500", -500},
		{"", 0},
		{"없음", 0},
		{"1-2", 0},
	}
	for _, tc := range cases {
		got := ParseAmount(tc.in)
		if !got.Equal(NewMoney(tc.want).Decimal) {
			t.Fatalf("%q: got %s, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMoneyGrouped(t *testing.T) {
	if got := NewMoney(2200000).Grouped(); got != "2,200,000" {
		t.Fatalf("got %q", got)
	}
	if got := NewMoney(32000).Won(); got != "32,000원" {
		t.Fatalf("got %q", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":500000,"b":"300,000"}`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.A.Equal(NewMoney(500000).Decimal) || !v.B.Equal(NewMoney(300000).Decimal) {
		t.Fatalf("unexpected decode: %s %s", v.A, v.B)
	}
	out, _ := json.Marshal(v)
	if string(out) != `{"a":500000,"b":300000}` {
		t.Fatalf("unexpected encode: %s", out)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		part, whole Money
		want        float64
	}{
		{"zero whole", NewMoney(1), Money{}, 0},
		{"negative whole", NewMoney(1), NewMoney(-10), 0},
		{"quarter", NewMoney(50), NewMoney(200), 25},
		{"over budget", NewMoney(300), NewMoney(200), 150},
		{"nothing spent", Money{}, NewMoney(570000), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.part, tt.whole); got != tt.want {
				t.Errorf("Percent(%s, %s) = %v, want %v", tt.part, tt.whole, got, tt.want)
			}
		})
	}
}

func TestMoneyWon(t *testing.T) {
	if got := NewMoney(32000).Won(); got != "32,000원" {
		t.Fatalf("got %q", got)
	}
}
