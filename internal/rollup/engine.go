// Package rollup folds a day's raw sales entries into summary transactions.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/lock"
	"tarpaulin/backend/internal/money"
	"tarpaulin/backend/internal/store"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrSyncFailed     = errors.New("sync failed, please retry")
)

const lockKey = "daily-sync"

type Store interface {
	ListSalesEntriesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.SalesEntry, error)
	MergeTransactions(ctx context.Context, writes []store.MergeWrite) error
}

type Result struct {
	Day           string
	NothingToSync bool
	Upserts       []domain.SummaryUpsert
	Entries       int
}

type Engine struct {
	store  Store
	locker lock.Locker
	logger logrus.FieldLogger
	loc    *time.Location
}

func NewEngine(s Store, locker lock.Locker, logger logrus.FieldLogger, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: s, locker: locker, logger: logger, loc: loc}
}

// SyncDay recomputes the summaries for day from scratch and merges them in a
// single batch. Running it again without new entries writes the same totals.
func (e *Engine) SyncDay(ctx context.Context, day time.Time) (Result, error) {
	release, err := e.locker.Obtain(ctx, lockKey)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return Result{}, ErrSyncInProgress
		}
		return Result{}, fmt.Errorf("acquire sync lock: %w", err)
	}
	defer release()

	window := money.Day(day.In(e.loc))
	result := Result{Day: money.DayKey(window.Start)}

	entries, err := e.store.ListSalesEntriesInRange(ctx, window.Start, window.End)
	if err != nil {
		return result, fmt.Errorf("load sales entries for %s: %w", result.Day, err)
	}

	result.Upserts = Plan(window.Start, entries, e.loc)
	for _, p := range result.Upserts {
		result.Entries += p.Entries
	}
	if len(result.Upserts) == 0 {
		result.NothingToSync = true
		e.logger.WithField("day", result.Day).Info("no sales entries to sync")
		return result, nil
	}

	writes := make([]store.MergeWrite, 0, len(result.Upserts))
	for _, p := range result.Upserts {
		writes = append(writes, store.MergeWrite{ID: p.ID, Fields: Fields(p)})
	}
	if err := e.store.MergeTransactions(ctx, writes); err != nil {
		e.logger.WithFields(logrus.Fields{
			"day":     result.Day,
			"upserts": len(writes),
		}).WithError(err).Error("sync batch failed")
		return Result{Day: result.Day}, fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	e.logger.WithFields(logrus.Fields{
		"day":     result.Day,
		"entries": result.Entries,
		"upserts": len(writes),
	}).Info("daily sync committed")
	return result, nil
}
