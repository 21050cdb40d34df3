package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"yesan/internal/core"

	_ "modernc.org/sqlite"
)

var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Expense schema ready", "path", dbPath, "version", version)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const selectColumns = `id, date, category, description, amount, purchaser, receipt_url, reimbursed, reimbursed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e                    core.Expense
		date, amount, paidAt string
		paid                 bool
	)
	if err := s.Scan(&e.ID, &date, &e.Category, &e.Description, &amount, &e.Purchaser, &e.ReceiptURL, &paid, &paidAt); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if e.ReimbursedAt, err = core.ParseDate(paidAt); err != nil {
		return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, err)
	}
	e.Amount = core.ParseAmount(amount)
	e.Reimbursed = paid
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM expenses ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, nil
}

const upsertSQL = `
INSERT INTO expenses (id, seq, date, category, description, amount, purchaser, receipt_url, reimbursed, reimbursed_at)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM expenses), ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    date = excluded.date,
    category = excluded.category,
    description = excluded.description,
    amount = excluded.amount,
    purchaser = excluded.purchaser,
    receipt_url = excluded.receipt_url,
    reimbursed = excluded.reimbursed,
    reimbursed_at = excluded.reimbursed_at,
    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

func (r *SQLiteRepository) Upsert(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, upsertSQL,
		e.ID, e.Date.String(), e.Category, e.Description, e.Amount.String(),
		e.Purchaser, e.ReceiptURL, e.Reimbursed, e.ReimbursedAt.String())
	if err != nil {
		return fmt.Errorf("upsert expense %s: %w", e.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, expenses []core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO expenses (id, seq, date, category, description, amount, purchaser, receipt_url, reimbursed, reimbursed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := len(expenses)
	for i, e := range expenses {
		if _, err := stmt.ExecContext(ctx, e.ID, n-i, e.Date.String(), e.Category, e.Description,
			e.Amount.String(), e.Purchaser, e.ReceiptURL, e.Reimbursed, e.ReimbursedAt.String()); err != nil {
			return fmt.Errorf("insert expense %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	slog.DebugContext(ctx, "Expense list replaced", "count", n)
	return nil
}
