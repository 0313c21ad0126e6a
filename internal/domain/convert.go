package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseInstant normalizes the date shapes found in stored documents into a
// single UTC instant. Accepted: time.Time, RFC3339/ISO strings, YYYY-MM-DD,
// epoch milliseconds, and {seconds, nanoseconds} timestamp maps.
func ParseInstant(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		return parseInstantString(v)
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v)).UTC(), true
	case int64:
		return time.UnixMilli(v).UTC(), true
	case int:
		return time.UnixMilli(int64(v)).UTC(), true
	case map[string]any:
		return parseTimestampMap(v)
	}
	return time.Time{}, false
}

func parseInstantString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func parseTimestampMap(m map[string]any) (time.Time, bool) {
	secRaw, ok := m["seconds"]
	if !ok {
		secRaw, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, false
	}
	sec, ok := toInt64(secRaw)
	if !ok {
		return time.Time{}, false
	}
	nanoRaw, ok := m["nanoseconds"]
	if !ok {
		nanoRaw = m["_nanoseconds"]
	}
	nanos, _ := toInt64(nanoRaw)
	return time.Unix(sec, nanos).UTC(), true
}

// ParseAmount reads a numeric document field. Non-numeric values and
// non-finite floats are reported as invalid rather than coerced to zero.
func ParseAmount(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return ParseAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

// TransactionFromFields converts a stored document into a Transaction. It
// never fails: unparseable amount or date fields are left invalid so the
// aggregation layer can skip and count them.
func TransactionFromFields(id string, fields map[string]any) Transaction {
	tx := Transaction{
		ID:          id,
		Type:        TransactionType(strings.ToLower(toString(fields[FieldType]))),
		Description: toString(fields[FieldDescription]),
		Category:    toString(fields[FieldCategory]),
		Branch:      toString(fields[FieldBranch]),
		WorkerName:  toString(fields[FieldWorkerName]),
		SyncStatus:  toString(fields[FieldSyncStatus]),
	}
	if tx.WorkerName == "" {
		// entries written by the first revision of the form used "name"
		tx.WorkerName = toString(fields["name"])
	}
	if date, ok := ParseInstant(fields[FieldDate]); ok {
		tx.Date = date
	}
	if amount, ok := ParseAmount(fields[FieldAmount]); ok {
		tx.Amount = decimal.NewNullDecimal(amount)
	}
	if pieces, ok := toInt64(fields[FieldPieces]); ok {
		tx.Pieces = int(pieces)
	}
	if gross, ok := ParseAmount(fields[FieldGrossProfit]); ok {
		tx.GrossProfit = decimal.NewNullDecimal(gross)
	}
	if net, ok := ParseAmount(fields[FieldNetProfit]); ok {
		tx.NetProfit = decimal.NewNullDecimal(net)
	}
	return tx
}
