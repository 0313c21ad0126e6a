package aggregate

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/money"
)

type Dashboard struct {
	GeneratedAt    time.Time            `json:"generated_at"`
	Stats          Stats                `json:"stats"`
	MonthOverMonth PeriodComparison     `json:"month_over_month"`
	WeekOverWeek   PeriodComparison     `json:"week_over_week"`
	Monthly        MonthlySeries        `json:"monthly"`
	Recent         []domain.Transaction `json:"recent"`
	Skipped        int                  `json:"skipped"`
}

// BuildDashboard recomputes every card from scratch. Skipped is the number of
// distinct malformed records seen, not the sum over cards.
func BuildDashboard(txs []domain.Transaction, now time.Time, weekStart time.Weekday) Dashboard {
	d := Dashboard{
		GeneratedAt:    now,
		Stats:          Totals(txs),
		MonthOverMonth: MonthOverMonth(txs, now),
		WeekOverWeek:   WeekOverWeek(txs, now, weekStart),
		Monthly:        BuildMonthlySeries(txs, now),
		Recent:         Recent(txs, RecentLimit),
	}
	for _, tx := range txs {
		if !tx.HasDate() || !tx.Amount.Valid {
			d.Skipped++
		}
	}
	return d
}

// RestrictToStaff blanks the profit figures that only admins may see.
func (d Dashboard) RestrictToStaff() Dashboard {
	d.Stats.GrossProfit = decimal.Zero
	d.Stats.NetProfit = decimal.Zero
	d.Stats.Profit = decimal.Zero
	d.MonthOverMonth.ProfitChange = 0
	d.WeekOverWeek.ProfitChange = 0
	return d
}

type SalesInsights struct {
	ThisMonthSales   decimal.Decimal `json:"this_month_sales"`
	ThisWeekSales    decimal.Decimal `json:"this_week_sales"`
	LastWeekSales    decimal.Decimal `json:"last_week_sales"`
	WeeklyChange     float64         `json:"weekly_change"`
	WeeklyComparison string          `json:"weekly_comparison"`
	Skipped          int             `json:"skipped"`
}

// BuildSalesInsights summarizes raw sales entries for the entry screen.
func BuildSalesInsights(entries []domain.SalesEntry, now time.Time, weekStart time.Weekday) SalesInsights {
	loc := now.Location()
	month := money.Month(now)
	thisWeek := money.Week(now, weekStart)
	lastWeek := money.WeeksBack(now, weekStart, 1)

	in := SalesInsights{
		ThisMonthSales: decimal.Zero,
		ThisWeekSales:  decimal.Zero,
		LastWeekSales:  decimal.Zero,
	}
	for _, entry := range entries {
		if entry.Date.IsZero() {
			in.Skipped++
			continue
		}
		at := entry.Date.In(loc)
		if month.Contains(at) {
			in.ThisMonthSales = in.ThisMonthSales.Add(entry.Amount)
		}
		if thisWeek.Contains(at) {
			in.ThisWeekSales = in.ThisWeekSales.Add(entry.Amount)
		}
		if lastWeek.Contains(at) {
			in.LastWeekSales = in.LastWeekSales.Add(entry.Amount)
		}
	}
	in.WeeklyChange = PercentageChange(in.ThisWeekSales, in.LastWeekSales)
	in.WeeklyComparison = weeklyComparison(in.ThisWeekSales, in.LastWeekSales, in.WeeklyChange)
	return in
}

func weeklyComparison(thisWeek decimal.Decimal, lastWeek decimal.Decimal, change float64) string {
	if !lastWeek.IsPositive() {
		if thisWeek.IsPositive() {
			return "Great start! No sales recorded last week."
		}
		return "No sales last week to compare."
	}
	rounded := math.Round(change)
	switch {
	case rounded > 0:
		return fmt.Sprintf("Sales this week are %.0f%% higher than last week.", rounded)
	case rounded < 0:
		return fmt.Sprintf("Sales this week are %.0f%% lower than last week.", math.Abs(rounded))
	default:
		return "Sales this week are the same as last week."
	}
}
