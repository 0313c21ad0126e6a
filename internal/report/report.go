// Package report renders transaction exports.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tarpaulin/backend/internal/domain"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	sheetName = "Transactions"
)

var Header = []string{"ID", "Date", "Type", "Description", "Category", "Amount", "Name", "Branch", "Pieces"}

// ContentType returns the MIME type for a supported format.
func ContentType(format string) (string, error) {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}
	return "", fmt.Errorf("unsupported report format %q", format)
}

// Filename is the download name for a report generated at now.
func Filename(format string, now time.Time) string {
	return "transactions-report-" + now.Format("2006-01-02") + "." + format
}

// Filter keeps transactions dated within [from, to]. Undated records are
// dropped.
func Filter(txs []domain.Transaction, from time.Time, to time.Time) []domain.Transaction {
	result := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.HasDate() || tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		result = append(result, tx)
	}
	return result
}

func row(tx domain.Transaction, loc *time.Location) []string {
	amount := ""
	if tx.Amount.Valid {
		amount = tx.Amount.Decimal.StringFixed(2)
	}
	pieces := ""
	if tx.Pieces != 0 {
		pieces = strconv.Itoa(tx.Pieces)
	}
	return []string{
		tx.ID,
		tx.Date.In(loc).Format(time.RFC3339),
		string(tx.Type),
		tx.Description,
		tx.Category,
		amount,
		tx.WorkerName,
		tx.Branch,
		pieces,
	}
}

// WriteCSV writes the header and one line per transaction. The description
// column is always quoted; other columns only when they need it.
func WriteCSV(w io.Writer, txs []domain.Transaction, loc *time.Location) error {
	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, tx := range txs {
		cells := row(tx, loc)
		for i, cell := range cells {
			if i == 3 {
				cells[i] = quote(cell)
				continue
			}
			cells[i] = escape(cell)
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escape(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}

// WriteXLSX writes the same columns as WriteCSV to a single worksheet.
// Amounts and pieces are numeric cells.
func WriteXLSX(w io.Writer, txs []domain.Transaction, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	for i, h := range Header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for r, tx := range txs {
		cells := row(tx, loc)
		for c, value := range cells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			var v any = value
			switch {
			case c == 5 && tx.Amount.Valid:
				v = tx.Amount.Decimal.InexactFloat64()
			case c == 8 && tx.Pieces != 0:
				v = tx.Pieces
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "D", "D", 36); err != nil {
		return err
	}
	return f.Write(w)
}

// Write dispatches on format.
func Write(w io.Writer, format string, txs []domain.Transaction, loc *time.Location) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, txs, loc)
	case FormatXLSX:
		return WriteXLSX(w, txs, loc)
	}
	return fmt.Errorf("unsupported report format %q", format)
}
