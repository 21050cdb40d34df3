package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is an amount in won. Amounts are kept as decimals so spreadsheet
// values such as "32000.0" survive a round trip unchanged.
type Money struct {
	decimal.Decimal
}

var koPrinter = message.NewPrinter(language.Korean)

func NewMoney(won int64) Money {
	return Money{Decimal: decimal.NewFromInt(won)}
}

// ParseAmount keeps digits, '-' and '.', then parses what is left. Empty or
// unparseable input is zero.
func ParseAmount(s string) Money {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return Money{}
	}
	return Money{Decimal: d}
}

func (m Money) Add(o Money) Money { return Money{Decimal: m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money { return Money{Decimal: m.Decimal.Sub(o.Decimal)} }

// Grouped formats the amount with Korean digit grouping, e.g. "2,200,000".
func (m Money) Grouped() string {
	if m.IsInteger() {
		return koPrinter.Sprintf("%d", m.IntPart())
	}
	f, _ := m.Round(2).Float64()
	return koPrinter.Sprintf("%.2f", f)
}

// Won formats the amount for display, e.g. "32,000원".
func (m Money) Won() string {
	return m.Grouped() + "원"
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts a number or a string; strings go through
// ParseAmount so "32,000원" decodes as 32000.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Money{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = ParseAmount(s)
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*m = Money{Decimal: d}
	return nil
}

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole Money) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole.Decimal).Mul(decimal.NewFromInt(100)).Float64()
	return f
}
