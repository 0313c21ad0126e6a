package rollup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/lock"
	"tarpaulin/backend/internal/store"
	"tarpaulin/backend/internal/store/memory"
)

var (
	kolkata = time.FixedZone("IST", 5*3600+1800)
	syncDay = time.Date(2025, 3, 12, 0, 0, 0, 0, kolkata)
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func entry(branch, worker, size string, pieces int, amount int64, at time.Time) domain.SalesEntry {
	return domain.SalesEntry{
		Date:       at,
		Size:       size,
		Pieces:     pieces,
		Amount:     decimal.NewFromInt(amount),
		Branch:     branch,
		WorkerName: worker,
	}
}

func seed(t *testing.T, s *memory.Store, entries ...domain.SalesEntry) {
	t.Helper()
	for _, e := range entries {
		if _, err := s.CreateSalesEntry(context.Background(), e); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func TestSyncDayGroupsEntriesPerWorker(t *testing.T) {
	s := memory.New()
	seed(t, s,
		entry("A", "X", "18x24", 2, 100, syncDay.Add(9*time.Hour)),
		entry("A", "X", "24x30", 3, 150, syncDay.Add(11*time.Hour)),
	)
	engine := NewEngine(s, lock.NewLocal(), quietLogger(), kolkata)

	result, err := engine.SyncDay(context.Background(), syncDay.Add(15*time.Hour))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(result.Upserts) != 1 || result.Entries != 2 {
		t.Fatalf("expected one upsert from two entries, got %+v", result)
	}

	tx, err := s.GetTransaction(context.Background(), "2025-03-12-A-X")
	if err != nil {
		t.Fatalf("expected summary document: %v", err)
	}
	if tx.Pieces != 5 || !tx.Amount.Decimal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected pieces 5 and amount 250, got %d / %s", tx.Pieces, tx.Amount.Decimal)
	}
	if !strings.Contains(tx.Description, "18x24=2") || !strings.Contains(tx.Description, "24x30=3") {
		t.Fatalf("unexpected description %q", tx.Description)
	}
	if tx.Type != domain.TypeSale || tx.Category != SummaryCategory || tx.SyncStatus != domain.SyncStatusSynced {
		t.Fatalf("unexpected summary fields %+v", tx)
	}
	if !tx.Date.Equal(syncDay) {
		t.Fatalf("expected summary dated at local midnight, got %s", tx.Date)
	}
}

func TestSyncDayIsIdempotent(t *testing.T) {
	s := memory.New()
	seed(t, s,
		entry("Nidagundi", "Ravi", "18x24", 2, 100, syncDay.Add(time.Hour)),
		entry("Basavana Bagewadi", "Ravi", "30x40", 1, 400, syncDay.Add(2*time.Hour)),
	)
	engine := NewEngine(s, lock.NewLocal(), quietLogger(), kolkata)
	ctx := context.Background()

	if _, err := engine.SyncDay(ctx, syncDay); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, _ := s.ListTransactions(ctx)
	if _, err := engine.SyncDay(ctx, syncDay); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, _ := s.ListTransactions(ctx)

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two summaries both times, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || !first[i].Amount.Decimal.Equal(second[i].Amount.Decimal) || first[i].Pieces != second[i].Pieces {
			t.Fatalf("summary %s changed between runs: %+v vs %+v", first[i].ID, first[i], second[i])
		}
	}
	if _, err := s.GetTransaction(ctx, "2025-03-12-Basavana_Bagewadi-Ravi"); err != nil {
		t.Fatalf("expected readable id for plain names: %v", err)
	}
}

func TestSimilarNamesDoNotCollide(t *testing.T) {
	s := memory.New()
	seed(t, s,
		entry("A", "A B", "18x24", 1, 10, syncDay.Add(time.Hour)),
		entry("A", "A_B", "18x24", 2, 20, syncDay.Add(time.Hour)),
	)
	engine := NewEngine(s, lock.NewLocal(), quietLogger(), kolkata)

	result, err := engine.SyncDay(context.Background(), syncDay)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(result.Upserts) != 2 || result.Upserts[0].ID == result.Upserts[1].ID {
		t.Fatalf("expected two distinct summaries, got %+v", result.Upserts)
	}
	txs, _ := s.ListTransactions(context.Background())
	if len(txs) != 2 {
		t.Fatalf("expected two stored summaries, got %d", len(txs))
	}
}

func TestSummaryIDEncoding(t *testing.T) {
	cases := map[[2]string]string{
		{"Basavana Bagewadi", "Ravi"}: "2025-03-12-Basavana_Bagewadi-Ravi",
		{"A", "A B"}:                  "2025-03-12-A-A_B",
		{"A", "A_B"}:                  "2025-03-12-A-A%5FB",
		{"A-B", "C"}:                  "2025-03-12-A%2DB-C",
		{"x/y", "50%"}:                "2025-03-12-x%2Fy-50%25",
	}
	for in, want := range cases {
		if got := SummaryID(syncDay, in[0], in[1]); got != want {
			t.Fatalf("SummaryID(%q, %q): expected %s, got %s", in[0], in[1], want, got)
		}
	}
}

func TestPlanFiltersToDayAndLabelsMissingSize(t *testing.T) {
	entries := []domain.SalesEntry{
		entry("A", "X", "", 2, 10, syncDay),
		entry("A", "X", "18x24", 1, 10, syncDay.Add(24*time.Hour-time.Nanosecond)),
		entry("A", "X", "18x24", 1, 10, syncDay.Add(-time.Nanosecond)),
		entry("A", "X", "18x24", 1, 10, syncDay.Add(24*time.Hour)),
	}
	plans := Plan(syncDay, entries, kolkata)
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %d", len(plans))
	}
	if plans[0].Entries != 2 || plans[0].Description != "N/A=2, 18x24=1" {
		t.Fatalf("unexpected plan %+v", plans[0])
	}
}

func TestSyncDayWithNoEntries(t *testing.T) {
	s := memory.New()
	engine := NewEngine(s, lock.NewLocal(), quietLogger(), kolkata)

	result, err := engine.SyncDay(context.Background(), syncDay)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.NothingToSync {
		t.Fatalf("expected NothingToSync")
	}
}

type failingStore struct {
	*memory.Store
	err error
}

func (f failingStore) MergeTransactions(context.Context, []store.MergeWrite) error {
	return f.err
}

func TestSyncDayBatchFailure(t *testing.T) {
	s := memory.New()
	seed(t, s, entry("A", "X", "18x24", 1, 10, syncDay.Add(time.Hour)))
	cause := errors.New("connection reset")
	engine := NewEngine(failingStore{Store: s, err: cause}, lock.NewLocal(), quietLogger(), kolkata)

	_, err := engine.SyncDay(context.Background(), syncDay)
	if !errors.Is(err, ErrSyncFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrSyncFailed wrapping the cause, got %v", err)
	}
	if txs, _ := s.ListTransactions(context.Background()); len(txs) != 0 {
		t.Fatalf("expected nothing written, got %d", len(txs))
	}
}

func TestSyncDayPermissionDeniedStaysVisible(t *testing.T) {
	s := memory.New()
	seed(t, s, entry("A", "X", "18x24", 1, 10, syncDay.Add(time.Hour)))
	engine := NewEngine(failingStore{Store: s, err: store.ErrPermissionDenied}, lock.NewLocal(), quietLogger(), kolkata)

	_, err := engine.SyncDay(context.Background(), syncDay)
	if !errors.Is(err, store.ErrPermissionDenied) {
		t.Fatalf("expected permission error to be preserved, got %v", err)
	}
}

func TestSyncDayRejectedWhileBusy(t *testing.T) {
	locker := lock.NewLocal()
	release, err := locker.Obtain(context.Background(), lockKey)
	if err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer release()

	engine := NewEngine(memory.New(), locker, quietLogger(), kolkata)
	if _, err := engine.SyncDay(context.Background(), syncDay); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
}
