package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yesan/internal/core"
	"yesan/internal/csvio"
	applog "yesan/internal/log"
	"yesan/internal/sheets"
	"yesan/internal/storage"
)

// Notifier is told about every change of the expense list.
type Notifier interface {
	Notify(ctx context.Context, change core.Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change core.Change)

func (f NotifierFunc) Notify(ctx context.Context, change core.Change) { f(ctx, change) }

// Draft carries the user-editable fields of an expense.
type Draft struct {
	Date        core.Date  `json:"date"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Purchaser   string     `json:"purchaser"`
	ReceiptURL  string     `json:"receiptUrl"`
}

func (d Draft) apply(e *core.Expense) {
	e.Date = d.Date
	e.Category = strings.TrimSpace(d.Category)
	e.Description = strings.TrimSpace(d.Description)
	e.Amount = d.Amount
	e.Purchaser = strings.TrimSpace(d.Purchaser)
	if ref := strings.TrimSpace(d.ReceiptURL); ref != "" {
		e.ReceiptURL = ref
	}
}

// ExpenseService owns the authoritative expense list. Mutations are
// serialized and each one is reported to the notifier.
type ExpenseService struct {
	mu       sync.Mutex
	repo     storage.Repository
	budget   core.Budget
	uploader sheets.ReceiptUploader
	now      func() time.Time
	newID    func() string
	logger   *applog.Logger
	events   *applog.StructuredLogger

	nmu      sync.RWMutex
	notifier Notifier
}

type Option func(*ExpenseService)

// WithUploader stores receipt images remotely instead of inline.
func WithUploader(u sheets.ReceiptUploader) Option {
	return func(s *ExpenseService) { s.uploader = u }
}

func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ExpenseService) { s.newID = newID }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(s *ExpenseService) { s.notifier = n }
}

func NewExpenseService(repo storage.Repository, budget core.Budget, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		repo:   repo,
		budget: budget,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: applog.FromContext(context.Background()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentExpense)
	s.events = applog.NewStructuredLogger(s.logger)
	return s
}

// SetNotifier replaces the notifier. The mirror is built after the service,
// so it is attached here.
func (s *ExpenseService) SetNotifier(n Notifier) {
	s.nmu.Lock()
	s.notifier = n
	s.nmu.Unlock()
}

func (s *ExpenseService) notify(ctx context.Context, change core.Change) {
	s.nmu.RLock()
	n := s.notifier
	s.nmu.RUnlock()
	if n != nil {
		n.Notify(ctx, change)
	}
}

func (s *ExpenseService) today() core.Date { return core.DateOf(s.now()) }

func (s *ExpenseService) Budget() core.Budget { return s.budget }

func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, error) {
	return s.repo.List(ctx)
}

func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	return s.repo.Get(ctx, id)
}

func (s *ExpenseService) validate(e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !s.budget.Has(e.Category) {
		return fmt.Errorf("%w: %q", core.ErrUnknownCategory, e.Category)
	}
	return nil
}

// Create validates the draft and stores it as the newest expense.
func (s *ExpenseService) Create(ctx context.Context, d Draft) (core.Expense, error) {
	e := core.Expense{ID: s.newID()}
	d.apply(&e)
	if err := s.validate(e); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	err := s.repo.Upsert(ctx, e)
	s.mu.Unlock()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.events.LogExpenseChanged(ctx, applog.OpCreate, e.ID, e.Category, e.Amount.String())
	s.notify(ctx, core.Change{Origin: core.OriginLocal})
	return e, nil
}

// Update replaces the user-editable fields. Reimbursement state is kept, as
// is the receipt when the draft carries none.
func (s *ExpenseService) Update(ctx context.Context, id string, d Draft) (core.Expense, error) {
	return s.mutate(ctx, id, applog.OpUpdate, func(e *core.Expense) error {
		d.apply(e)
		return s.validate(*e)
	})
}

func (s *ExpenseService) MarkPaidNow(ctx context.Context, id string) (core.Expense, error) {
	today := s.today()
	return s.mutate(ctx, id, applog.OpReimburse, func(e *core.Expense) error {
		e.MarkPaidNow(today)
		return nil
	})
}

func (s *ExpenseService) SetReimbursed(ctx context.Context, id string, v bool) (core.Expense, error) {
	today := s.today()
	return s.mutate(ctx, id, applog.OpReimburse, func(e *core.Expense) error {
		e.SetReimbursed(v, today)
		return nil
	})
}

func (s *ExpenseService) SetReimbursedAt(ctx context.Context, id string, d core.Date) (core.Expense, error) {
	return s.mutate(ctx, id, applog.OpReimburse, func(e *core.Expense) error {
		e.SetReimbursedAt(d)
		return nil
	})
}

func (s *ExpenseService) mutate(ctx context.Context, id, op string, fn func(*core.Expense) error) (core.Expense, error) {
	s.mu.Lock()
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return core.Expense{}, err
	}
	if err := fn(&e); err != nil {
		s.mu.Unlock()
		return core.Expense{}, err
	}
	err = s.repo.Upsert(ctx, e)
	s.mu.Unlock()
	if err != nil {
		return core.Expense{}, fmt.Errorf("%s expense %s: %w", op, id, err)
	}

	s.events.LogExpenseChanged(ctx, op, e.ID, e.Category, e.Amount.String())
	s.notify(ctx, core.Change{Origin: core.OriginLocal})
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.repo.Delete(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.events.LogExpenseChanged(ctx, applog.OpDelete, id, "", "")
	s.notify(ctx, core.Change{Origin: core.OriginLocal})
	return nil
}

// Import reads a CSV file and puts its rows in front of the existing list, in
// file order.
func (s *ExpenseService) Import(ctx context.Context, r io.Reader) (csvio.Result, error) {
	res, err := csvio.Import(r, s.newID, s.today())
	if err != nil {
		return csvio.Result{}, err
	}
	if len(res.Expenses) == 0 {
		return res, nil
	}

	s.mu.Lock()
	current, err := s.repo.List(ctx)
	if err == nil {
		err = s.repo.ReplaceAll(ctx, append(append([]core.Expense{}, res.Expenses...), current...))
	}
	s.mu.Unlock()
	if err != nil {
		return csvio.Result{}, fmt.Errorf("import expenses: %w", err)
	}

	s.logger.InfoContext(ctx, "Expenses imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldCount, len(res.Expenses),
		"skipped", res.Skipped)
	s.notify(ctx, core.Change{Origin: core.OriginLocal})
	return res, nil
}

func (s *ExpenseService) Export(ctx context.Context, w io.Writer) error {
	list, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	return csvio.Export(w, list)
}

// Reset deletes every expense. The change is flagged so the mirror saves the
// empty list even before its first pull.
func (s *ExpenseService) Reset(ctx context.Context) error {
	s.mu.Lock()
	err := s.repo.ReplaceAll(ctx, nil)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset expenses: %w", err)
	}
	s.logger.WarnContext(ctx, "All expenses deleted", applog.FieldOperation, applog.OpReset)
	s.notify(ctx, core.Change{Origin: core.OriginLocal, Reset: true})
	return nil
}

func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(list, s.budget), nil
}

// ReplaceAll swaps the whole list, e.g. with the mirror's copy. Records are
// normalized on the way in.
func (s *ExpenseService) ReplaceAll(ctx context.Context, list []core.Expense, origin core.Origin) error {
	today := s.today()
	clean := make([]core.Expense, 0, len(list))
	for _, e := range list {
		if e.ID == "" {
			e.ID = s.newID()
		}
		e.Normalize(today)
		clean = append(clean, e)
	}

	s.mu.Lock()
	err := s.repo.ReplaceAll(ctx, clean)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("replace expenses: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense list replaced",
		applog.FieldCount, len(clean),
		applog.FieldOrigin, origin.String())
	s.notify(ctx, core.Change{Origin: origin})
	return nil
}

// UpdateReceipt swaps the receipt reference of one expense if it still
// equals from. It reports whether the swap happened.
func (s *ExpenseService) UpdateReceipt(ctx context.Context, id, from, to string, origin core.Origin) (bool, error) {
	s.mu.Lock()
	e, err := s.repo.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && e.ReceiptURL != from) {
		s.mu.Unlock()
		return false, nil
	}
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	e.ReceiptURL = to
	err = s.repo.Upsert(ctx, e)
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("update receipt %s: %w", id, err)
	}
	s.notify(ctx, core.Change{Origin: origin})
	return true, nil
}

// UploadReceipt stores a receipt image and returns the reference to keep on
// the expense. Without an uploader the image is kept inline as a data URL
// and uploaded by the mirror later.
func (s *ExpenseService) UploadReceipt(ctx context.Context, r core.Receipt) (string, error) {
	if len(r.Data) == 0 {
		return "", core.ErrInvalidDataURL
	}
	if s.uploader == nil {
		return r.DataURL(), nil
	}
	ref, err := s.uploader.UploadReceipt(ctx, r)
	if err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	s.logger.InfoContext(ctx, "Receipt uploaded", applog.FieldOperation, applog.OpUpload, "filename", r.Filename)
	return ref, nil
}
