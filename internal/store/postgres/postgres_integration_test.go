package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TARPAULIN_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TARPAULIN_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMergeTransactionsKeepsExistingFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	id := fmt.Sprintf("2025-03-12-IT-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	})

	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	if err := s.PutTransaction(ctx, id, map[string]any{
		domain.FieldDate:        day,
		domain.FieldType:        "sale",
		domain.FieldAmount:      decimal.NewFromInt(100),
		domain.FieldGrossProfit: decimal.NewFromInt(40),
	}); err != nil {
		t.Fatalf("put transaction: %v", err)
	}

	if err := s.MergeTransactions(ctx, []store.MergeWrite{{
		ID:     id,
		Fields: map[string]any{domain.FieldAmount: decimal.NewFromInt(250), domain.FieldPieces: 5},
	}}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, err := s.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !got.Amount.Decimal.Equal(decimal.NewFromInt(250)) || got.Pieces != 5 {
		t.Fatalf("expected merged amount and pieces, got %+v", got)
	}
	if !got.GrossProfit.Valid || !got.GrossProfit.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected gross profit to survive the merge, got %+v", got.GrossProfit)
	}
	if !got.Date.Equal(day) {
		t.Fatalf("expected date %s, got %s", day, got.Date)
	}

	inRange, err := s.ListTransactionsInRange(ctx, day, day.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	found := false
	for _, tx := range inRange {
		if tx.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in day range", id)
	}
}

func TestMergeTransactionsRejectsInvalidBatch(t *testing.T) {
	s := openTestStore(t)
	err := s.MergeTransactions(context.Background(), []store.MergeWrite{{ID: "", Fields: map[string]any{"x": 1}}})
	if !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}
