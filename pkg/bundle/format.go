package bundle

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"dashcore/pkg/table"
)

// Number formats understood by Format besides printf verbs.
const (
	FormatComma   = "comma"
	FormatPercent = "percent"
	FormatCompact = "compact"
)

// Format renders v with a number format. Non-numeric values render as
// their string form; missing values render as sentinel.
func Format(v table.Value, format, sentinel string) string {
	if !v.Valid {
		return sentinel
	}
	if v.Kind != table.KindNumber {
		return v.String()
	}
	return FormatFloat(v.Num, format)
}

// FormatFloat renders f with a number format.
func FormatFloat(f float64, format string) string {
	switch {
	case format == "":
		return humanize.FtoaWithDigits(f, 2)
	case format == FormatComma:
		return humanize.CommafWithDigits(f, 2)
	case format == FormatPercent:
		return humanize.FtoaWithDigits(f*100, 1) + "%"
	case format == FormatCompact:
		value, prefix := humanize.ComputeSI(f)
		return humanize.FtoaWithDigits(value, 1) + prefix
	case strings.Contains(format, "%"):
		return fmt.Sprintf(format, f)
	default:
		return humanize.FtoaWithDigits(f, 2)
	}
}
