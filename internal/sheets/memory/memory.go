package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"yesan/internal/core"
	"yesan/internal/csvtable"
	ports "yesan/internal/sheets"
)

var (
	_ ports.TableSource = (*Table)(nil)
	_ ports.TitleSource = (*Table)(nil)
	_ ports.MirrorStore = (*Store)(nil)
)

// Table is a fixed in-memory sheet.
type Table struct {
	mu    sync.Mutex
	table csvtable.Table
	title string
	err   error
	calls int
}

func NewTable(t csvtable.Table, title string) *Table {
	return &Table{table: t, title: title}
}

// NewTableFromCSV parses csv text; it panics on malformed input and is meant
// for seeds and tests.
func NewTableFromCSV(csv, title string) *Table {
	t, err := csvtable.Parse(strings.NewReader(csv))
	if err != nil {
		panic(err)
	}
	return NewTable(t, title)
}

func (t *Table) FetchTable(_ context.Context) (csvtable.Table, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return csvtable.Table{}, t.err
	}
	return t.table, nil
}

func (t *Table) Title(_ context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title, nil
}

// Set replaces the table served by later fetches.
func (t *Table) Set(tbl csvtable.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table = tbl
}

// FailWith makes every later fetch return err; nil restores normal service.
func (t *Table) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *Table) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Store is an in-process expense mirror with failure injection.
type Store struct {
	mu        sync.Mutex
	items     []core.Expense
	receipts  map[string]core.Receipt
	saves     int
	listErr   error
	saveErr   error
	uploadErr error
}

func NewStore(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...), receipts: make(map[string]core.Receipt)}
}

func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) Save(_ context.Context, expenses []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.items = append([]core.Expense(nil), expenses...)
	s.saves++
	return nil
}

// UploadReceipt keeps the payload and returns a drive-style view URL.
func (s *Store) UploadReceipt(_ context.Context, r core.Receipt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	id := fmt.Sprintf("mem-%d", len(s.receipts)+1)
	s.receipts[id] = r
	return core.ReceiptViewURL("", id), nil
}

// Fail sets the errors returned by List, Save and UploadReceipt.
func (s *Store) Fail(list, save, upload error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr, s.saveErr, s.uploadErr = list, save, upload
}

// Saves counts successful Save calls.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Items() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...)
}

func (s *Store) Receipts() map[string]core.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Receipt, len(s.receipts))
	for k, v := range s.receipts {
		out[k] = v
	}
	return out
}
