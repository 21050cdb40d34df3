package core

import (
	"errors"
	"strings"
)

var (
	ErrMissingDate        = errors.New("date is required")
	ErrInvalidDate        = errors.New("invalid date")
	ErrMissingCategory    = errors.New("category is required")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// Expense is a single purchase recorded against the budget.
type Expense struct {
	ID           string `json:"id"`
	Date         Date   `json:"date"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	Amount       Money  `json:"amount"`
	Purchaser    string `json:"purchaser"`
	ReceiptURL   string `json:"receiptUrl"`
	Reimbursed   bool   `json:"reimbursed"`
	ReimbursedAt Date   `json:"reimbursedAt"`
}

// Validate checks a submitted expense. Category membership in the budget
// table is checked by the caller, which owns the table.
func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrMissingCategory
	}
	if len([]rune(e.Description)) > 200 {
		return ErrDescriptionTooLong
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarkPaidNow records the reimbursement as happening today. Calling it again
// only moves the date.
func (e *Expense) MarkPaidNow(today Date) {
	e.Reimbursed = true
	e.ReimbursedAt = today
}

// SetReimbursed is the checkbox toggle: checking keeps an existing date or
// stamps today, unchecking clears the date.
func (e *Expense) SetReimbursed(v bool, today Date) {
	if !v {
		e.Reimbursed = false
		e.ReimbursedAt = Date{}
		return
	}
	if e.ReimbursedAt.IsZero() {
		e.ReimbursedAt = today
	}
	e.Reimbursed = true
}

// SetReimbursedAt applies a user-entered reimbursement date. Any date implies
// reimbursed; the zero Date reverts to pending.
func (e *Expense) SetReimbursedAt(d Date) {
	e.ReimbursedAt = d
	e.Reimbursed = !d.IsZero()
}

// Normalize repairs records arriving from CSV files or the mirror so that
// Reimbursed holds exactly when ReimbursedAt is set. A reimbursed record
// without a date is stamped with today.
func (e *Expense) Normalize(today Date) {
	e.Category = strings.TrimSpace(e.Category)
	e.Description = strings.TrimSpace(e.Description)
	e.Purchaser = strings.TrimSpace(e.Purchaser)
	e.ReceiptURL = strings.TrimSpace(e.ReceiptURL)
	switch {
	case !e.ReimbursedAt.IsZero():
		e.Reimbursed = true
	case e.Reimbursed:
		e.ReimbursedAt = today
	}
}
