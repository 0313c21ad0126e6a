package rollup

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/money"
)

const (
	SummaryCategory = "Customer"
	missingSize     = "N/A"
)

type slotKey struct {
	branch string
	worker string
}

// Plan folds the entries dated on day (in loc) into one upsert per branch and
// worker, in the order the slots are first seen.
func Plan(day time.Time, entries []domain.SalesEntry, loc *time.Location) []domain.SummaryUpsert {
	window := money.Day(day.In(loc))
	midnight := window.Start

	slots := make(map[slotKey]int)
	plans := make([]domain.SummaryUpsert, 0, 8)
	for _, entry := range entries {
		if entry.Date.IsZero() || !window.Contains(entry.Date.In(loc)) {
			continue
		}
		key := slotKey{branch: entry.Branch, worker: entry.WorkerName}
		idx, ok := slots[key]
		if !ok {
			idx = len(plans)
			slots[key] = idx
			plans = append(plans, domain.SummaryUpsert{
				ID:         SummaryID(midnight, entry.Branch, entry.WorkerName),
				Day:        money.DayKey(midnight),
				Date:       midnight,
				Branch:     entry.Branch,
				WorkerName: entry.WorkerName,
				Amount:     decimal.Zero,
			})
		}
		p := &plans[idx]
		p.Amount = p.Amount.Add(entry.Amount)
		p.Pieces += entry.Pieces
		p.Entries++
		p.SizeCounts = addSize(p.SizeCounts, entry.Size, entry.Pieces)
	}

	for i := range plans {
		plans[i].Description = describe(plans[i].SizeCounts)
	}
	return plans
}

func addSize(counts []domain.SizeCount, size string, pieces int) []domain.SizeCount {
	size = strings.TrimSpace(size)
	if size == "" {
		size = missingSize
	}
	for i := range counts {
		if counts[i].Size == size {
			counts[i].Pieces += pieces
			return counts
		}
	}
	return append(counts, domain.SizeCount{Size: size, Pieces: pieces})
}

// describe renders size counts as "18x24=2, 24x30=3".
func describe(counts []domain.SizeCount) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Size, c.Pieces))
	}
	return strings.Join(parts, ", ")
}

// Fields is the merge payload written for an upsert.
func Fields(p domain.SummaryUpsert) map[string]any {
	return map[string]any{
		domain.FieldType:        string(domain.TypeSale),
		domain.FieldCategory:    SummaryCategory,
		domain.FieldDate:        p.Date.UTC(),
		domain.FieldDescription: p.Description,
		domain.FieldAmount:      p.Amount,
		domain.FieldPieces:      p.Pieces,
		domain.FieldBranch:      p.Branch,
		domain.FieldWorkerName:  p.WorkerName,
		domain.FieldSyncStatus:  domain.SyncStatusSynced,
	}
}
