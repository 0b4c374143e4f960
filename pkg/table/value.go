package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a column and the values it holds.
type Kind string

const (
	// KindNumber holds float64 values.
	KindNumber Kind = "number"
	// KindCategory holds trimmed strings.
	KindCategory Kind = "category"
	// KindDate holds UTC timestamps.
	KindDate Kind = "date"
)

// Valid reports whether the kind is one of the supported column kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNumber, KindCategory, KindDate:
		return true
	default:
		return false
	}
}

// DefaultLayouts are tried in order when a date column declares none.
var DefaultLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// Value is a single typed cell. A zero Value with Valid == false is the
// explicit missing marker.
type Value struct {
	Kind  Kind
	Num   float64
	Str   string
	Time  time.Time
	Valid bool
}

// Number returns a valid numeric value. NaN and infinities are missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing(KindNumber)
	}
	return Value{Kind: KindNumber, Num: f, Valid: true}
}

// Category returns a valid categorical value.
func Category(s string) Value {
	return Value{Kind: KindCategory, Str: s, Valid: true}
}

// Date returns a valid date value normalised to UTC.
func Date(t time.Time) Value {
	return Value{Kind: KindDate, Time: t.UTC(), Valid: true}
}

// Missing returns the missing marker for kind.
func Missing(kind Kind) Value {
	return Value{Kind: kind}
}

// Parse coerces raw into a value of the given kind. Empty input yields a
// missing value without error.
func Parse(kind Kind, raw string, layouts []string) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Missing(kind), nil
	}
	switch kind {
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Missing(kind), fmt.Errorf("table: %q is not a number", raw)
		}
		return Number(f), nil
	case KindDate:
		if len(layouts) == 0 {
			layouts = DefaultLayouts
		}
		for _, layout := range layouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return Date(ts), nil
			}
		}
		return Missing(kind), fmt.Errorf("table: %q is not a date", raw)
	case KindCategory:
		return Category(raw), nil
	default:
		return Missing(kind), fmt.Errorf("table: unsupported kind %q", kind)
	}
}

// MustParse is Parse for literals known to be valid; it panics otherwise.
func MustParse(kind Kind, raw string) Value {
	v, err := Parse(kind, raw, nil)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare orders values of the same kind. Missing values sort first.
func (v Value) Compare(o Value) int {
	switch {
	case !v.Valid && !o.Valid:
		return 0
	case !v.Valid:
		return -1
	case !o.Valid:
		return 1
	}
	switch v.Kind {
	case KindNumber:
		switch {
		case v.Num < o.Num:
			return -1
		case v.Num > o.Num:
			return 1
		}
		return 0
	case KindDate:
		return v.Time.Compare(o.Time)
	default:
		return strings.Compare(v.Str, o.Str)
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Compare(o) == 0
}

// Float returns the numeric view of the value. Dates map to Unix seconds.
func (v Value) Float() (float64, bool) {
	if !v.Valid {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindDate:
		return float64(v.Time.Unix()), true
	default:
		return 0, false
	}
}

// String renders the value for labels and CSV output. Missing is "".
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	default:
		return v.Str
	}
}

// MarshalJSON encodes numbers as JSON numbers, missing as null and the rest
// as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	if v.Kind == KindNumber {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.String())
}
