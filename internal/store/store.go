package store

import (
	"context"
	"errors"
	"time"

	"tarpaulin/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidDocument  = errors.New("invalid document")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("already exists")
)

// MergeWrite merges Fields into the transaction document with the given ID,
// creating the document when it does not exist. Fields not named are kept.
type MergeWrite struct {
	ID     string
	Fields map[string]any
}

type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	// ListRecentTransactions orders by date descending; undated documents last.
	ListRecentTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)
	// ListTransactionsInRange returns documents dated within [from, to].
	ListTransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// PutTransaction replaces the whole document.
	PutTransaction(ctx context.Context, id string, fields map[string]any) error
	// MergeTransactions applies every write or none of them.
	MergeTransactions(ctx context.Context, writes []MergeWrite) error
}

type SalesEntryStore interface {
	CreateSalesEntry(ctx context.Context, entry domain.SalesEntry) (*domain.SalesEntry, error)
	ListSalesEntries(ctx context.Context, limit int) ([]domain.SalesEntry, error)
	// ListSalesEntriesInRange returns entries dated within [from, to], oldest
	// first, ties in insertion order.
	ListSalesEntriesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesEntry, error)
}

type PurchaseStore interface {
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error)
}

type IdentityStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

type Repository interface {
	TransactionStore
	SalesEntryStore
	PurchaseStore
	IdentityStore
	AuditStore
}

// ValidateMerge rejects batches a backend must not partially apply.
func ValidateMerge(writes []MergeWrite) error {
	for _, w := range writes {
		if w.ID == "" || len(w.Fields) == 0 {
			return ErrInvalidDocument
		}
	}
	return nil
}
