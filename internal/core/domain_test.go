package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		err  bool
	}{
		{"2026-01-17", NewDate(2026, 1, 17), false},
		{"2026-01-17T09:00:00.000Z", NewDate(2026, 1, 17), false},
		{"2026.01.17", NewDate(2026, 1, 17), false},
		{"2026/1/7", NewDate(2026, 1, 7), false},
		{"  ", Date{}, false},
		{"yesterday", Date{}, true},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.err {
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("%q: expected ErrInvalidDate, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		A Date `json:"a"`
		B Date `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"2026-03-01","b":""}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != NewDate(2026, 3, 1) || !v.B.IsZero() {
		t.Fatalf("unexpected decode: %+v", v)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":"2026-03-01","b":""}` {
		t.Fatalf("unexpected encode: %s", out)
	}
}

func TestOriginRoundTrip(t *testing.T) {
	for _, o := range []Origin{OriginLocal, OriginRemote} {
		got, err := ParseOrigin(o.String())
		if err != nil || got != o {
			t.Fatalf("origin %v: got %v, %v", o, got, err)
		}
	}
	if _, err := ParseOrigin("elsewhere"); err == nil {
		t.Fatalf("expected error for unknown origin")
	}
}
