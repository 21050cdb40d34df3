// Package csvtable parses the loosely formed comma-separated exports of the
// academy spreadsheet into a header plus positional rows.
package csvtable

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed export. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parse reads a whole export. The first non-blank line is the header. Rows
// shorter than the header are padded with "" and longer rows are cut, so a
// ragged export never fails to parse.
func Parse(r io.Reader) (Table, error) {
	lines, err := readLines(r)
	if err != nil {
		return Table{}, err
	}
	if len(lines) == 0 {
		return Table{}, nil
	}
	t := Table{Header: SplitLine(lines[0])}
	for _, line := range lines[1:] {
		t.Rows = append(t.Rows, fit(SplitLine(line), len(t.Header)))
	}
	return t, nil
}

// FromRows builds a table from already split values, as returned by the
// Sheets API. Cells get the same trimming as parsed text.
func FromRows(values [][]string) Table {
	var t Table
	for _, row := range values {
		if blank(row) {
			continue
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = clean(c)
		}
		if t.Header == nil {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, fit(cells, len(t.Header)))
	}
	return t
}

// FirstCell returns the first cell of the first non-blank line, or "" for
// an empty table.
func (t Table) FirstCell() string {
	if len(t.Header) == 0 {
		return ""
	}
	return t.Header[0]
}

// Index maps each header name to its column. With duplicate headers the
// first column wins.
func (t Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

// SplitLine splits one line on commas outside double quotes. A doubled quote
// inside a quoted section is a literal quote.
func SplitLine(line string) []string {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && quoted && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteString(`""`)
			i++
		case c == '"':
			quoted = !quoted
			cur.WriteRune(c)
		case c == ',' && !quoted:
			fields = append(fields, clean(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	return append(fields, clean(cur.String()))
}

// clean trims a token and strips one layer of surrounding quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return strings.ReplaceAll(s, `""`, `"`)
}

func fit(cells []string, n int) []string {
	if len(cells) >= n {
		return cells[:n]
	}
	out := make([]string, n)
	copy(out, cells)
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan table: %w", err)
	}
	return lines, nil
}
