// parse.go - Best-effort numeric interpretation of raw cells.
//
// Cells arrive as strings and are frequently messy: padded with spaces,
// percentages with a trailing %, ids that the store turned into "101.0".
// Every numeric read in the engine goes through here so the fallback
// rules stay in one place.

package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumericOrDefault interprets a raw cell as a decimal. The second
// return reports whether the cell parsed; when it did not, def is
// returned. Empty cells do not parse.
func ParseNumericOrDefault(raw string, def decimal.Decimal) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, false
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return def, false
	}
	return d, true
}

// ParsePercent interprets a raw percentage cell. A trailing % is
// stripped, so "35", "35%" and " 35 % " all read as 35.
func ParsePercent(raw string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(trimmed, "%")
	return ParseNumericOrDefault(trimmed, decimal.Zero)
}

// NormalizeID canonicalizes an identifier cell. Numeric-looking ids go
// through decimal so "101", "101.0" and " 101 " all compare equal; other
// ids are just trimmed.
func NormalizeID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return d.String()
	}
	return trimmed
}

// CanonicalNumber rewrites a cell into canonical decimal form when it
// parses as a number and leaves it untouched otherwise. The loader runs
// every cell through this.
func CanonicalNumber(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return d.String()
	}
	return raw
}

// SplitList splits a comma-separated cell into trimmed, non-empty items.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
