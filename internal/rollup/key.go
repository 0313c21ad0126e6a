package rollup

import (
	"strings"
	"time"

	"tarpaulin/backend/internal/money"
)

const upperhex = "0123456789ABCDEF"

// SummaryID is the document id of the summary for one (day, branch, worker)
// slot. Names are encoded so that distinct names never share an id: a space
// becomes "_", while "_", "-", "%", "/" and any byte outside [A-Za-z0-9.~]
// are percent-escaped. "Basavana Bagewadi" stays readable as
// "Basavana_Bagewadi" and cannot collide with a literal "Basavana_Bagewadi"
// (which becomes "Basavana%5FBagewadi").
func SummaryID(day time.Time, branch string, worker string) string {
	return money.DayKey(day) + "-" + encodeName(branch) + "-" + encodeName(worker)
}

func encodeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == ' ':
			b.WriteByte('_')
		case isUnreserved(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '.' || c == '~':
		return true
	}
	return false
}
