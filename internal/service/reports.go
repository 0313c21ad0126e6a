package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tarpaulin/backend/internal/aggregate"
	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/money"
	"tarpaulin/backend/internal/report"
)

// Dashboard returns the cards for the home screen. The full snapshot is
// cached; profit figures are blanked for non-admins on the way out.
func (s *Service) Dashboard(ctx context.Context) (aggregate.Dashboard, error) {
	admin, err := s.isAdmin(ctx)
	if err != nil {
		return aggregate.Dashboard{}, err
	}

	snapshot, err := s.dashboardSnapshot(ctx)
	if err != nil {
		return aggregate.Dashboard{}, err
	}
	if !admin {
		return snapshot.RestrictToStaff(), nil
	}
	return snapshot, nil
}

func (s *Service) dashboardSnapshot(ctx context.Context) (aggregate.Dashboard, error) {
	if cached, ok, err := s.cache.Get(ctx, dashboardCacheKey); err != nil {
		s.logger.WithField("func", "dashboardSnapshot").WithError(err).Warn("dashboard cache read failed")
	} else if ok {
		return *cached, nil
	}

	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return aggregate.Dashboard{}, fmt.Errorf("load transactions: %w", err)
	}
	snapshot := aggregate.BuildDashboard(txs, s.localNow(), s.weekStart)
	if snapshot.Skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"func":    "dashboardSnapshot",
			"skipped": snapshot.Skipped,
			"total":   len(txs),
		}).Warn("skipped malformed transactions")
	}

	if s.dashboardTTL > 0 {
		if err := s.cache.Set(ctx, dashboardCacheKey, &snapshot, s.dashboardTTL); err != nil {
			s.logger.WithField("func", "dashboardSnapshot").WithError(err).Warn("dashboard cache write failed")
		}
	}
	return snapshot, nil
}

func (s *Service) Insights(ctx context.Context) (aggregate.SalesInsights, error) {
	now := s.localNow()
	from := money.StartOfMonth(now)
	if lastWeek := money.WeeksBack(now, s.weekStart, 1).Start; lastWeek.Before(from) {
		from = lastWeek
	}

	entries, err := s.repo.ListSalesEntriesInRange(ctx, from, money.EndOfDay(now))
	if err != nil {
		return aggregate.SalesInsights{}, fmt.Errorf("load sales entries: %w", err)
	}
	return aggregate.BuildSalesInsights(entries, now, s.weekStart), nil
}

// Export writes the transactions dated within [from, to] (whole local days)
// to w in the given format.
func (s *Service) Export(ctx context.Context, w io.Writer, from time.Time, to time.Time, format string) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = report.FormatCSV
	}
	verr := &domain.ValidationError{}
	if _, err := report.ContentType(format); err != nil {
		verr.Add("format", "must be one of: csv, xlsx")
	}
	if from.IsZero() {
		verr.Add("from", "is required")
	}
	if to.IsZero() {
		verr.Add("to", "is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		verr.Add("to", "must not be before from")
	}
	if !verr.Empty() {
		return verr
	}

	start := money.StartOfDay(from.In(s.loc))
	end := money.EndOfDay(to.In(s.loc))
	txs, err := s.repo.ListTransactionsInRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	return report.Write(w, format, report.Filter(txs, start, end), s.loc)
}

// SyncDay folds the day's sales entries into summary transactions.
func (s *Service) SyncDay(ctx context.Context, day time.Time) (domain.SyncResponse, error) {
	if err := s.RequireAdmin(ctx); err != nil {
		return domain.SyncResponse{}, err
	}
	if day.IsZero() {
		day = s.localNow()
	}

	result, err := s.sync.SyncDay(ctx, day.In(s.loc))
	if err != nil {
		return domain.SyncResponse{}, err
	}

	resp := domain.SyncResponse{
		Day:           result.Day,
		NothingToSync: result.NothingToSync,
		Upserts:       result.Upserts,
		Entries:       result.Entries,
	}
	if resp.Upserts == nil {
		resp.Upserts = []domain.SummaryUpsert{}
	}
	if !result.NothingToSync {
		s.invalidateDashboard(ctx)
		s.logAudit(ctx, domain.AuditActionSync, "transactions", result.Day,
			fmt.Sprintf("%d summaries from %d entries", len(result.Upserts), result.Entries))
	}
	return resp, nil
}

func (s *Service) SuggestCategory(ctx context.Context, req domain.CategorySuggestionRequest) (domain.CategorySuggestion, error) {
	details := strings.TrimSpace(req.TransactionDetails)
	if details == "" {
		verr := &domain.ValidationError{}
		verr.Add("transaction_details", "is required")
		return domain.CategorySuggestion{}, verr
	}
	return s.assistant.SuggestCategory(ctx, details)
}

// DailySummary totals the day's transactions and asks the assistant to put
// them into words.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (domain.DailySummaryResponse, error) {
	if day.IsZero() {
		day = s.localNow()
	}
	window := money.Day(day.In(s.loc))

	txs, err := s.repo.ListTransactionsInRange(ctx, window.Start, window.End)
	if err != nil {
		return domain.DailySummaryResponse{}, fmt.Errorf("load transactions: %w", err)
	}
	totals := domain.DayTotals{Sales: decimal.Zero, Expenses: decimal.Zero, Purchases: decimal.Zero}
	for _, tx := range txs {
		if !tx.Amount.Valid {
			continue
		}
		switch tx.Type {
		case domain.TypeSale:
			totals.Sales = totals.Sales.Add(tx.Amount.Decimal)
		case domain.TypeExpense:
			totals.Expenses = totals.Expenses.Add(tx.Amount.Decimal)
		case domain.TypePurchase:
			totals.Purchases = totals.Purchases.Add(tx.Amount.Decimal)
		}
	}

	summary, err := s.assistant.SummarizeDay(ctx, totals)
	if err != nil {
		return domain.DailySummaryResponse{}, err
	}
	return domain.DailySummaryResponse{Day: money.DayKey(window.Start), Totals: totals, Summary: summary}, nil
}

