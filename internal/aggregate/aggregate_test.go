package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
)

var refNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func tx(id string, typ domain.TransactionType, amount int64, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:     id,
		Type:   typ,
		Amount: decimal.NewNullDecimal(decimal.NewFromInt(amount)),
		Date:   at,
	}
}

func scenario() []domain.Transaction {
	return []domain.Transaction{
		tx("s1", domain.TypeSale, 1000, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)),
		tx("e1", domain.TypeExpense, 300, time.Date(2025, 3, 6, 10, 0, 0, 0, time.UTC)),
		tx("s2", domain.TypeSale, 800, time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC)),
	}
}

func TestTotalsAndMonthOverMonthScenario(t *testing.T) {
	txs := scenario()

	stats := Totals(txs)
	if !stats.TotalSales.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("expected total sales 1800, got %s", stats.TotalSales)
	}
	if !stats.TotalExpenses.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected total expenses 300, got %s", stats.TotalExpenses)
	}
	if !stats.Profit.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected profit 1500, got %s", stats.Profit)
	}

	mom := MonthOverMonth(txs, refNow)
	if mom.SalesChange != 25 {
		t.Fatalf("expected sales change 25, got %v", mom.SalesChange)
	}
	if !mom.Current.Sales.Equal(decimal.NewFromInt(1000)) || !mom.Previous.Sales.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("unexpected period sales %s / %s", mom.Current.Sales, mom.Previous.Sales)
	}
	if mom.ExpensesChange != 100 {
		t.Fatalf("expected expenses change 100 from a zero previous month, got %v", mom.ExpensesChange)
	}
}

func TestTotalSalesIgnoresOrder(t *testing.T) {
	txs := scenario()
	reversed := []domain.Transaction{txs[2], txs[1], txs[0]}
	if !Totals(txs).TotalSales.Equal(Totals(reversed).TotalSales) {
		t.Fatalf("expected total sales to be order independent")
	}
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		current, previous int64
		want              float64
	}{
		{0, 0, 0},
		{50, 0, 100},
		{-50, 0, -100},
		{80, 100, -20},
		{1000, 800, 25},
		{-50, -100, -50},
		{50, -100, -150},
	}
	for _, tc := range cases {
		got := PercentageChange(decimal.NewFromInt(tc.current), decimal.NewFromInt(tc.previous))
		if got != tc.want {
			t.Fatalf("PercentageChange(%d, %d): expected %v, got %v", tc.current, tc.previous, tc.want, got)
		}
	}
}

func TestMonthlySeriesHasSixBucketsOldestFirst(t *testing.T) {
	txs := append(scenario(),
		tx("old", domain.TypeSale, 999, time.Date(2024, 9, 30, 23, 0, 0, 0, time.UTC)),
		tx("oct", domain.TypePurchase, 50, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)),
		tx("future", domain.TypeSale, 999, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)),
	)

	series := BuildMonthlySeries(txs, refNow)
	if len(series.Buckets) != SeriesMonths {
		t.Fatalf("expected %d buckets, got %d", SeriesMonths, len(series.Buckets))
	}
	wantLabels := []string{"Oct", "Nov", "Dec", "Jan", "Feb", "Mar"}
	for i, label := range wantLabels {
		if series.Buckets[i].Label != label {
			t.Fatalf("bucket %d: expected %s, got %s", i, label, series.Buckets[i].Label)
		}
	}
	if !series.Buckets[0].Expenses.Equal(decimal.NewFromInt(50)) || !series.Buckets[0].Sales.IsZero() {
		t.Fatalf("unexpected October bucket %+v", series.Buckets[0])
	}
	if !series.Buckets[4].Sales.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected February sales 800, got %s", series.Buckets[4].Sales)
	}
	if !series.Buckets[5].Sales.Equal(decimal.NewFromInt(1000)) || !series.Buckets[5].Expenses.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected March bucket %+v", series.Buckets[5])
	}
	if series.Skipped != 0 {
		t.Fatalf("expected nothing skipped, got %d", series.Skipped)
	}
	if len(series.Sales) != SeriesMonths || !series.Sales["Feb"].Equal(decimal.NewFromInt(800)) || !series.Expenses["Nov"].IsZero() {
		t.Fatalf("unexpected label-keyed series %v / %v", series.Sales, series.Expenses)
	}
	if series.Buckets[0].ExpensesLabel != "₹50" || series.Buckets[5].SalesLabel != "₹1,000" {
		t.Fatalf("unexpected axis labels %q / %q", series.Buckets[0].ExpensesLabel, series.Buckets[5].SalesLabel)
	}
}

func TestMalformedRecordsAreSkippedAndCounted(t *testing.T) {
	txs := append(scenario(),
		domain.Transaction{ID: "no-amount", Type: domain.TypeSale, Date: refNow},
		domain.Transaction{ID: "no-date", Type: domain.TypeSale, Amount: decimal.NewNullDecimal(decimal.NewFromInt(5))},
	)

	if got := Totals(txs); got.Skipped != 1 || !got.TotalSales.Equal(decimal.NewFromInt(1805)) {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got := BuildMonthlySeries(txs, refNow).Skipped; got != 2 {
		t.Fatalf("expected two skipped records in series, got %d", got)
	}
	if got := BuildDashboard(txs, refNow, time.Sunday).Skipped; got != 2 {
		t.Fatalf("expected dashboard to count two malformed records, got %d", got)
	}
}

func TestRecentSortsNewestFirstWithoutMutatingInput(t *testing.T) {
	txs := scenario()
	txs = append(txs, domain.Transaction{ID: "undated", Type: domain.TypeExpense})
	before := make([]string, len(txs))
	for i, x := range txs {
		before[i] = x.ID
	}

	got := Recent(txs, 3)
	want := []string{"e1", "s1", "s2"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	for i, id := range before {
		if txs[i].ID != id {
			t.Fatalf("input was reordered at %d", i)
		}
	}

	all := Recent(txs, 10)
	if all[len(all)-1].ID != "undated" {
		t.Fatalf("expected undated record last, got %s", all[len(all)-1].ID)
	}
}

func TestWeekOverWeekUsesWeekStart(t *testing.T) {
	// refNow is a Wednesday. Monday 10th is in the current week only when
	// weeks start on Monday; Sunday 9th flips the other way.
	txs := []domain.Transaction{
		tx("sun", domain.TypeSale, 100, time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)),
		tx("mon", domain.TypeSale, 200, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)),
	}

	sunday := WeekOverWeek(txs, refNow, time.Sunday)
	if !sunday.Current.Sales.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected both days in a sunday-start week, got %s", sunday.Current.Sales)
	}

	monday := WeekOverWeek(txs, refNow, time.Monday)
	if !monday.Current.Sales.Equal(decimal.NewFromInt(200)) || !monday.Previous.Sales.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected monday-start split %s / %s", monday.Current.Sales, monday.Previous.Sales)
	}
	if monday.SalesChange != 100 {
		t.Fatalf("expected 100%% change, got %v", monday.SalesChange)
	}
}

func TestRestrictToStaffHidesProfit(t *testing.T) {
	txs := scenario()
	txs[0].GrossProfit = decimal.NewNullDecimal(decimal.NewFromInt(400))
	d := BuildDashboard(txs, refNow, time.Sunday)
	if !d.Stats.GrossProfit.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected gross profit 400, got %s", d.Stats.GrossProfit)
	}
	staff := d.RestrictToStaff()
	if !staff.Stats.GrossProfit.IsZero() || !staff.Stats.Profit.IsZero() {
		t.Fatalf("expected profit figures to be hidden, got %+v", staff.Stats)
	}
	if !staff.Stats.TotalSales.Equal(d.Stats.TotalSales) {
		t.Fatalf("expected sales to stay visible")
	}
}

func TestSalesInsightsComparisonSentence(t *testing.T) {
	entry := func(amount int64, at time.Time) domain.SalesEntry {
		return domain.SalesEntry{Amount: decimal.NewFromInt(amount), Date: at}
	}
	thisWeek := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		entries []domain.SalesEntry
		want    string
	}{
		{"empty", nil, "No sales last week to compare."},
		{"fresh", []domain.SalesEntry{entry(500, thisWeek)}, "Great start! No sales recorded last week."},
		{"higher", []domain.SalesEntry{entry(150, thisWeek), entry(100, lastWeek)}, "Sales this week are 50% higher than last week."},
		{"lower", []domain.SalesEntry{entry(75, thisWeek), entry(100, lastWeek)}, "Sales this week are 25% lower than last week."},
		{"same", []domain.SalesEntry{entry(100, thisWeek), entry(100, lastWeek)}, "Sales this week are the same as last week."},
	}
	for _, tc := range cases {
		got := BuildSalesInsights(tc.entries, refNow, time.Sunday)
		if got.WeeklyComparison != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got.WeeklyComparison)
		}
	}

	month := BuildSalesInsights([]domain.SalesEntry{
		entry(100, thisWeek),
		entry(100, lastWeek),
		entry(100, time.Date(2025, 2, 27, 9, 0, 0, 0, time.UTC)),
	}, refNow, time.Sunday)
	if !month.ThisMonthSales.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected this month's sales 200, got %s", month.ThisMonthSales)
	}
}
