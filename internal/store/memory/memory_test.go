package memory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMergeTransactionsKeepsUnnamedFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.PutTransaction(ctx, "2025-03-12-A-X", map[string]any{
		domain.FieldAmount:      100,
		domain.FieldGrossProfit: 40,
		"note":                  "manual",
	}); err != nil {
		t.Fatalf("put transaction: %v", err)
	}
	err := s.MergeTransactions(ctx, []store.MergeWrite{
		{ID: "2025-03-12-A-X", Fields: map[string]any{domain.FieldAmount: 250}},
		{ID: "2025-03-12-B-Y", Fields: map[string]any{domain.FieldAmount: 10}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	fields, ok := s.Fields("2025-03-12-A-X")
	if !ok {
		t.Fatalf("expected merged document to exist")
	}
	if fields[domain.FieldAmount] != 250 || fields["note"] != "manual" || fields[domain.FieldGrossProfit] != 40 {
		t.Fatalf("unexpected merged fields %#v", fields)
	}
	if _, err := s.GetTransaction(ctx, "2025-03-12-B-Y"); err != nil {
		t.Fatalf("expected merge to create missing document: %v", err)
	}
}

func TestMergeTransactionsIsAllOrNothing(t *testing.T) {
	s := New()
	err := s.MergeTransactions(context.Background(), []store.MergeWrite{
		{ID: "ok", Fields: map[string]any{domain.FieldAmount: 1}},
		{ID: "", Fields: map[string]any{domain.FieldAmount: 2}},
	})
	if !errors.Is(err, store.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if _, ok := s.Fields("ok"); ok {
		t.Fatalf("expected no write to be applied")
	}
}

func TestPutTransactionOverwrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.PutTransaction(ctx, "2025-03-12", map[string]any{domain.FieldAmount: 1, "stale": true})
	_ = s.PutTransaction(ctx, "2025-03-12", map[string]any{domain.FieldAmount: 2})

	fields, _ := s.Fields("2025-03-12")
	if _, stale := fields["stale"]; stale {
		t.Fatalf("expected overwrite to drop old fields")
	}
}

func TestRecentTransactionsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for id, day := range map[string]int{"a": 1, "b": 3, "c": 2} {
		_ = s.PutTransaction(ctx, id, domain.Transaction{
			Type:   domain.TypeSale,
			Date:   time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		}.Fields())
	}
	_ = s.PutTransaction(ctx, "undated", map[string]any{domain.FieldAmount: 5})

	recent, err := s.ListRecentTransactions(ctx, 3)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 3 || recent[0].ID != "b" || recent[1].ID != "c" || recent[2].ID != "a" {
		t.Fatalf("unexpected order %+v", recent)
	}
}

func TestSalesEntriesInRangeAreInclusive(t *testing.T) {
	s := New()
	ctx := context.Background()
	start := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	for _, at := range []time.Time{start.Add(-time.Nanosecond), start, end, end.Add(time.Nanosecond)} {
		if _, err := s.CreateSalesEntry(ctx, domain.SalesEntry{Date: at, Amount: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}
	got, err := s.ListSalesEntriesInRange(ctx, start, end)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both boundary entries, got %d", len(got))
	}
}

func TestSeededUsersResolveToRoles(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-secret")
	t.Setenv("SEED_WORKER_PASSWORD", "worker-secret")
	s := NewSeeded(quietLogger())
	ctx := context.Background()

	admin, err := s.GetUserByEmail(ctx, " Admin@Tarpaulin.local ")
	if err != nil {
		t.Fatalf("expected seeded admin: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("admin-secret")); err != nil {
		t.Fatalf("expected password from env to be hashed: %v", err)
	}
	role, err := s.GetRole(ctx, admin.RoleID)
	if err != nil || role.Name != "Admin" {
		t.Fatalf("expected Admin role, got %+v (%v)", role, err)
	}

	if _, err := s.CreateUser(ctx, domain.UserAccount{Email: "admin@tarpaulin.local", Password: "x"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate email to conflict, got %v", err)
	}
}

func TestAuditLogsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAuditLog(ctx, domain.AuditLog{Action: domain.AuditActionCreate, DocID: "first"})
	_ = s.CreateAuditLog(ctx, domain.AuditLog{Action: domain.AuditActionSync, DocID: "second"})

	logs, _ := s.ListAuditLogs(ctx, 1)
	if len(logs) != 1 || logs[0].DocID != "second" {
		t.Fatalf("unexpected audit logs %+v", logs)
	}
}
