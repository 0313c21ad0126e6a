package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tarpaulin/backend/internal/domain"
)

func sample() []domain.Transaction {
	return []domain.Transaction{
		{
			ID:          "2025-03-12-A-X",
			Date:        time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
			Type:        domain.TypeSale,
			Description: `18x24=2, 24x30=3 "rush"`,
			Category:    "Customer",
			Amount:      decimal.NewNullDecimal(decimal.NewFromInt(250)),
			WorkerName:  "X",
			Branch:      "A",
			Pieces:      5,
		},
		{
			ID:          "2025-03-13",
			Date:        time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC),
			Type:        domain.TypeExpense,
			Description: "Diesel",
			Category:    "Transport",
			Amount:      decimal.NewNullDecimal(decimal.RequireFromString("99.5")),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(), time.UTC); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[0] != "ID,Date,Type,Description,Category,Amount,Name,Branch,Pieces" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	want := `2025-03-12-A-X,2025-03-12T00:00:00Z,sale,"18x24=2, 24x30=3 ""rush""",Customer,250.00,X,A,5`
	if lines[1] != want {
		t.Fatalf("unexpected row\nwant %s\ngot  %s", want, lines[1])
	}
	if lines[2] != `2025-03-13,2025-03-13T00:00:00Z,expense,"Diesel",Transport,99.50,,,` {
		t.Fatalf("unexpected expense row %q", lines[2])
	}
}

func TestFilterIsInclusive(t *testing.T) {
	txs := append(sample(), domain.Transaction{ID: "undated"})
	got := Filter(txs, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC))
	if len(got) != 1 || got[0].ID != "2025-03-12-A-X" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample(), time.UTC); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][6] != "Name" || rows[1][0] != "2025-03-12-A-X" || rows[1][5] != "250" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
