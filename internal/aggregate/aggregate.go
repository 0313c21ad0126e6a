// Package aggregate computes dashboard figures from a snapshot of the
// transaction collection. Every function takes an explicit reference time,
// leaves its input untouched and reports how many records it had to skip
// because their amount or date was missing.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/money"
)

const (
	SeriesMonths = 6
	RecentLimit  = 6
)

var hundred = decimal.NewFromInt(100)

type MonthBucket struct {
	Label    string          `json:"label"`
	Month    string          `json:"month"`
	Sales    decimal.Decimal `json:"sales"`
	Expenses decimal.Decimal `json:"expenses"`

	SalesLabel    string `json:"sales_label"`
	ExpensesLabel string `json:"expenses_label"`
}

type MonthlySeries struct {
	Buckets  []MonthBucket              `json:"buckets"`
	Sales    map[string]decimal.Decimal `json:"sales"`
	Expenses map[string]decimal.Decimal `json:"expenses"`
	Skipped  int                        `json:"skipped"`
}

// keyByLabel fills the label-keyed views and the compact axis labels once
// the buckets are final.
func (m *MonthlySeries) keyByLabel() {
	m.Sales = make(map[string]decimal.Decimal, len(m.Buckets))
	m.Expenses = make(map[string]decimal.Decimal, len(m.Buckets))
	for i := range m.Buckets {
		b := &m.Buckets[i]
		b.SalesLabel = money.FormatCompact(b.Sales)
		b.ExpensesLabel = money.FormatCompact(b.Expenses)
		m.Sales[b.Label] = b.Sales
		m.Expenses[b.Label] = b.Expenses
	}
}

// BuildMonthlySeries groups amounts into the six calendar months ending at
// now's month, oldest first. Sales go to Sales, every other type to Expenses.
func BuildMonthlySeries(txs []domain.Transaction, now time.Time) MonthlySeries {
	loc := now.Location()
	buckets := make([]MonthBucket, SeriesMonths)
	for i := range buckets {
		month := money.MonthsBack(now, SeriesMonths-1-i).Start
		buckets[i] = MonthBucket{
			Label:    money.ShortMonth(month),
			Month:    month.Format("2006-01"),
			Sales:    decimal.Zero,
			Expenses: decimal.Zero,
		}
	}
	window := money.Interval{
		Start: money.MonthsBack(now, SeriesMonths-1).Start,
		End:   money.EndOfMonth(now),
	}

	series := MonthlySeries{Buckets: buckets}
	for _, tx := range txs {
		if !tx.HasDate() || !tx.Amount.Valid {
			series.Skipped++
			continue
		}
		at := tx.Date.In(loc)
		if !window.Contains(at) {
			continue
		}
		idx := monthIndex(window.Start, at)
		if tx.Type == domain.TypeSale {
			buckets[idx].Sales = buckets[idx].Sales.Add(tx.Amount.Decimal)
		} else {
			buckets[idx].Expenses = buckets[idx].Expenses.Add(tx.Amount.Decimal)
		}
	}
	series.keyByLabel()
	return series
}

func monthIndex(start time.Time, at time.Time) int {
	return (at.Year()-start.Year())*12 + int(at.Month()) - int(start.Month())
}

type Stats struct {
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	Profit        decimal.Decimal `json:"profit"`
	Skipped       int             `json:"skipped"`
}

func Totals(txs []domain.Transaction) Stats {
	stats := Stats{
		TotalSales:    decimal.Zero,
		TotalExpenses: decimal.Zero,
		GrossProfit:   decimal.Zero,
		NetProfit:     decimal.Zero,
	}
	for _, tx := range txs {
		if !tx.Amount.Valid {
			stats.Skipped++
			continue
		}
		switch tx.Type {
		case domain.TypeSale:
			stats.TotalSales = stats.TotalSales.Add(tx.Amount.Decimal)
			if tx.GrossProfit.Valid {
				stats.GrossProfit = stats.GrossProfit.Add(tx.GrossProfit.Decimal)
			}
			if tx.NetProfit.Valid {
				stats.NetProfit = stats.NetProfit.Add(tx.NetProfit.Decimal)
			}
		case domain.TypeExpense, domain.TypePurchase:
			stats.TotalExpenses = stats.TotalExpenses.Add(tx.Amount.Decimal)
		}
	}
	stats.Profit = stats.TotalSales.Sub(stats.TotalExpenses)
	return stats
}

// PercentageChange is (current-previous)/previous*100 rounded to two
// places. A zero previous period reports 100 when current grew, -100 when
// it went negative and 0 when both are zero.
func PercentageChange(current decimal.Decimal, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		switch current.Sign() {
		case 1:
			return 100
		case -1:
			return -100
		default:
			return 0
		}
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(2).InexactFloat64()
}

type PeriodTotals struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Sales     decimal.Decimal `json:"sales"`
	Expenses  decimal.Decimal `json:"expenses"`
	Purchases decimal.Decimal `json:"purchases"`
}

// Outflow is expenses plus purchases, matching Stats.TotalExpenses.
func (p PeriodTotals) Outflow() decimal.Decimal {
	return money.Sum(p.Expenses, p.Purchases)
}

func (p PeriodTotals) Profit() decimal.Decimal {
	return p.Sales.Sub(p.Outflow())
}

type PeriodComparison struct {
	Current        PeriodTotals `json:"current"`
	Previous       PeriodTotals `json:"previous"`
	SalesChange    float64      `json:"sales_change"`
	ExpensesChange float64      `json:"expenses_change"`
	ProfitChange   float64      `json:"profit_change"`
	Skipped        int          `json:"skipped"`
}

func MonthOverMonth(txs []domain.Transaction, now time.Time) PeriodComparison {
	return compare(txs, now.Location(), money.Month(now), money.MonthsBack(now, 1))
}

func WeekOverWeek(txs []domain.Transaction, now time.Time, weekStart time.Weekday) PeriodComparison {
	return compare(txs, now.Location(), money.Week(now, weekStart), money.WeeksBack(now, weekStart, 1))
}

func compare(txs []domain.Transaction, loc *time.Location, current money.Interval, previous money.Interval) PeriodComparison {
	cmp := PeriodComparison{
		Current:  newPeriod(current),
		Previous: newPeriod(previous),
	}
	for _, tx := range txs {
		if !tx.HasDate() || !tx.Amount.Valid {
			cmp.Skipped++
			continue
		}
		at := tx.Date.In(loc)
		switch {
		case current.Contains(at):
			cmp.Current.add(tx)
		case previous.Contains(at):
			cmp.Previous.add(tx)
		}
	}
	cmp.SalesChange = PercentageChange(cmp.Current.Sales, cmp.Previous.Sales)
	cmp.ExpensesChange = PercentageChange(cmp.Current.Outflow(), cmp.Previous.Outflow())
	cmp.ProfitChange = PercentageChange(cmp.Current.Profit(), cmp.Previous.Profit())
	return cmp
}

func newPeriod(in money.Interval) PeriodTotals {
	return PeriodTotals{
		From:      in.Start,
		To:        in.End,
		Sales:     decimal.Zero,
		Expenses:  decimal.Zero,
		Purchases: decimal.Zero,
	}
}

func (p *PeriodTotals) add(tx domain.Transaction) {
	switch tx.Type {
	case domain.TypeSale:
		p.Sales = p.Sales.Add(tx.Amount.Decimal)
	case domain.TypeExpense:
		p.Expenses = p.Expenses.Add(tx.Amount.Decimal)
	case domain.TypePurchase:
		p.Purchases = p.Purchases.Add(tx.Amount.Decimal)
	}
}

// Recent returns the n latest transactions of any type. Records without a
// date sort last.
func Recent(txs []domain.Transaction, n int) []domain.Transaction {
	if n < 1 {
		n = RecentLimit
	}
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HasDate() != b.HasDate() {
			return a.HasDate()
		}
		return a.Date.After(b.Date)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
