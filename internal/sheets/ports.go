package sheets

import (
	"context"
	"errors"

	"yesan/internal/core"
	"yesan/internal/csvtable"
)

// ErrUpstream wraps failures reported by a remote backend.
var ErrUpstream = errors.New("upstream error")

// Ports for outbound adapters.
type (
	// TableSource fetches one sheet of the academy export.
	TableSource interface {
		FetchTable(ctx context.Context) (csvtable.Table, error)
	}

	// TitleSource reports the spreadsheet title, which carries the
	// "data as of" date.
	TitleSource interface {
		Title(ctx context.Context) (string, error)
	}

	// ExpenseMirror is the remote copy of the expense list. Save replaces
	// the remote list wholesale, so repeating it is harmless.
	ExpenseMirror interface {
		List(ctx context.Context) ([]core.Expense, error)
		Save(ctx context.Context, expenses []core.Expense) error
	}

	// ReceiptUploader stores a receipt image and returns a public reference.
	ReceiptUploader interface {
		UploadReceipt(ctx context.Context, r core.Receipt) (string, error)
	}

	MirrorStore interface {
		ExpenseMirror
		ReceiptUploader
	}
)
