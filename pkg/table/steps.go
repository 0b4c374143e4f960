package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Step is one named, pure transformation applied at load time.
type Step interface {
	Name() string
	Apply(ds *Dataset) (*Dataset, error)
}

// DeriveColumns applies steps in order. Zero rows after the last step is an
// EmptyDatasetError.
func DeriveColumns(ds *Dataset, steps ...Step) (*Dataset, error) {
	if ds == nil {
		return nil, &LoadError{Err: fmt.Errorf("dataset nil")}
	}
	out := ds
	for _, step := range steps {
		next, err := step.Apply(out)
		if err != nil {
			return nil, err
		}
		out = next
	}
	if out.Rows() == 0 {
		return nil, &EmptyDatasetError{Dataset: ds.Name()}
	}
	return out, nil
}

func source(ds *Dataset, column string, kinds ...Kind) (*Column, error) {
	col, ok := ds.Column(column)
	if !ok {
		return nil, &DerivationError{Dataset: ds.Name(), Column: column, Reason: "not present", Err: ErrColumnMissing}
	}
	if len(kinds) == 0 {
		return col, nil
	}
	for _, k := range kinds {
		if col.Kind == k {
			return col, nil
		}
	}
	return nil, &DerivationError{Dataset: ds.Name(), Column: column, Reason: fmt.Sprintf("kind %s not supported", col.Kind)}
}

func target(column, as string) string {
	if strings.TrimSpace(as) != "" {
		return as
	}
	return column
}

func derived(ds *Dataset, name string, kind Kind, values []Value, required bool) (*Dataset, error) {
	col := &Column{Name: name, Kind: kind, Derived: true, Values: values}
	if required && col.ValidCount() == 0 && len(values) > 0 {
		return nil, &DerivationError{Dataset: ds.Name(), Column: name, Reason: "no row could be coerced to " + string(kind)}
	}
	return ds.withColumn(col), nil
}

// ParseNumber coerces a textual column into numbers after stripping currency
// symbols, thousands separators, percent signs and whitespace. Replace maps
// whole-cell literals to numbers before stripping.
type ParseNumber struct {
	Column   string
	As       string
	Replace  map[string]float64
	Required bool
}

func (s ParseNumber) Name() string { return "parse_number" }

func (s ParseNumber) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		switch {
		case !v.Valid:
			values[i] = Missing(KindNumber)
		case v.Kind == KindNumber:
			values[i] = v
		default:
			values[i] = s.parse(v.String())
		}
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, s.Required)
}

var numberNoise = strings.NewReplacer("$", "", "£", "", "€", "", "¥", "", ",", "", "%", "", " ", "", "\u00a0", "")

func (s ParseNumber) parse(raw string) Value {
	raw = strings.TrimSpace(raw)
	if f, ok := s.Replace[raw]; ok {
		return Number(f)
	}
	cleaned := numberNoise.Replace(raw)
	if cleaned == "" {
		return Missing(KindNumber)
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Missing(KindNumber)
	}
	return Number(f)
}

// ParseClock converts "m:ss" or "h:mm:ss" strings to fractional minutes.
type ParseClock struct {
	Column   string
	As       string
	Required bool
}

func (s ParseClock) Name() string { return "parse_clock" }

func (s ParseClock) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		values[i] = parseClock(v)
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, s.Required)
}

func parseClock(v Value) Value {
	if !v.Valid {
		return Missing(KindNumber)
	}
	if v.Kind == KindNumber {
		return v
	}
	parts := strings.Split(strings.TrimSpace(v.String()), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Missing(KindNumber)
	}
	nums := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil || f < 0 {
			return Missing(KindNumber)
		}
		nums[i] = f
	}
	if len(nums) == 2 {
		return Number(nums[0] + nums[1]/60)
	}
	return Number(nums[0]*60 + nums[1] + nums[2]/60)
}

// Year extracts the calendar year of a date column as a number.
type Year struct {
	Column string
	As     string
}

func (s Year) Name() string { return "year" }

func (s Year) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindDate)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			values[i] = Missing(KindNumber)
			continue
		}
		values[i] = Number(float64(v.Time.Year()))
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, false)
}

// Bucket assigns each number to the half-open bin [Edges[i], Edges[i+1]).
// Values outside every bin are missing.
type Bucket struct {
	Column string
	As     string
	Edges  []float64
	Labels []string
}

func (s Bucket) Name() string { return "bucket" }

func (s Bucket) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindNumber)
	if err != nil {
		return nil, err
	}
	if len(s.Edges) < 2 {
		return nil, &DerivationError{Dataset: ds.Name(), Column: s.Column, Reason: "bucket needs at least two edges"}
	}
	for i := 1; i < len(s.Edges); i++ {
		if s.Edges[i] <= s.Edges[i-1] {
			return nil, &DerivationError{Dataset: ds.Name(), Column: s.Column, Reason: "bucket edges must increase"}
		}
	}
	labels := s.Labels
	if len(labels) == 0 {
		labels = make([]string, len(s.Edges)-1)
		for i := range labels {
			labels[i] = fmt.Sprintf("%s-%s", trimFloat(s.Edges[i]), trimFloat(s.Edges[i+1]))
		}
	}
	if len(labels) != len(s.Edges)-1 {
		return nil, &DerivationError{Dataset: ds.Name(), Column: s.Column, Reason: fmt.Sprintf("bucket has %d labels for %d bins", len(labels), len(s.Edges)-1)}
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		values[i] = Missing(KindCategory)
		if !v.Valid {
			continue
		}
		for b := 0; b < len(labels); b++ {
			if v.Num >= s.Edges[b] && v.Num < s.Edges[b+1] {
				values[i] = Category(labels[b])
				break
			}
		}
	}
	return derived(ds, target(s.Column, s.As), KindCategory, values, false)
}

func trimFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Scale multiplies a numeric column by Factor.
type Scale struct {
	Column string
	As     string
	Factor float64
}

func (s Scale) Name() string { return "scale" }

func (s Scale) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindNumber)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			values[i] = v
			continue
		}
		values[i] = Number(v.Num * s.Factor)
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, false)
}

// Share expresses each value as a percentage of the column total.
type Share struct {
	Column string
	As     string
}

func (s Share) Name() string { return "share" }

func (s Share) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindNumber)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range col.Values {
		if v.Valid {
			total += v.Num
		}
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid || total == 0 {
			values[i] = Missing(KindNumber)
			continue
		}
		values[i] = Number(v.Num / total * 100)
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, false)
}

// NormalizePercent divides a column by 100 when its maximum exceeds 1, so
// that "85" and "0.85" both end up as ratios.
type NormalizePercent struct {
	Column string
	As     string
}

func (s NormalizePercent) Name() string { return "normalize_percent" }

func (s NormalizePercent) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindNumber)
	if err != nil {
		return nil, err
	}
	_, hi, ok := col.Bounds()
	if !ok || hi.Num <= 1 {
		return derived(ds, target(s.Column, s.As), KindNumber, col.Values, false)
	}
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			values[i] = v
			continue
		}
		values[i] = Number(v.Num / 100)
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, false)
}

// Difference computes Left - Right.
type Difference struct {
	Left  string
	Right string
	As    string
}

func (s Difference) Name() string { return "difference" }

func (s Difference) Apply(ds *Dataset) (*Dataset, error) {
	left, err := source(ds, s.Left, KindNumber)
	if err != nil {
		return nil, err
	}
	right, err := source(ds, s.Right, KindNumber)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.As) == "" {
		return nil, &DerivationError{Dataset: ds.Name(), Column: s.Left, Reason: "difference needs a target column"}
	}
	values := make([]Value, len(left.Values))
	for i := range left.Values {
		l, r := left.Values[i], right.Values[i]
		if !l.Valid || !r.Valid {
			values[i] = Missing(KindNumber)
			continue
		}
		values[i] = Number(l.Num - r.Num)
	}
	return derived(ds, s.As, KindNumber, values, false)
}

// TitleCase trims and title-cases a categorical column.
type TitleCase struct {
	Column string
	As     string
}

func (s TitleCase) Name() string { return "title_case" }

func (s TitleCase) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindCategory)
	if err != nil {
		return nil, err
	}
	caser := cases.Title(language.English)
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			values[i] = v
			continue
		}
		titled := caser.String(strings.TrimSpace(v.Str))
		if titled == "" {
			values[i] = Missing(KindCategory)
			continue
		}
		values[i] = Category(titled)
	}
	return derived(ds, target(s.Column, s.As), KindCategory, values, false)
}

// Melt reshapes value columns into long format: for every source row and
// every value column one row with the ID columns, a Variable category holding
// the value column name and a Value column holding the cell. Value columns
// must share a kind. An empty Values list melts every non-ID column.
type Melt struct {
	ID       []string
	Values   []string
	Variable string
	Value    string
}

func (s Melt) Name() string { return "melt" }

func (s Melt) Apply(ds *Dataset) (*Dataset, error) {
	ids := make([]*Column, 0, len(s.ID))
	isID := make(map[string]bool, len(s.ID))
	for _, name := range s.ID {
		col, err := source(ds, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, col)
		isID[col.Name] = true
	}
	var melted []*Column
	if len(s.Values) == 0 {
		for _, col := range ds.columns {
			if !isID[col.Name] {
				melted = append(melted, col)
			}
		}
	}
	for _, name := range s.Values {
		col, err := source(ds, name)
		if err != nil {
			return nil, err
		}
		melted = append(melted, col)
	}
	if len(melted) == 0 {
		return nil, &DerivationError{Dataset: ds.Name(), Column: s.Value, Reason: "melt has no value columns"}
	}
	kind := melted[0].Kind
	for _, col := range melted[1:] {
		if col.Kind != kind {
			return nil, &DerivationError{Dataset: ds.Name(), Column: col.Name, Reason: fmt.Sprintf("melt mixes %s and %s", kind, col.Kind)}
		}
	}
	variable, value := target("variable", s.Variable), target("value", s.Value)
	rows := ds.Rows() * len(melted)
	out := make([]*Column, 0, len(ids)+2)
	for _, id := range ids {
		out = append(out, &Column{Name: id.Name, Kind: id.Kind, Derived: id.Derived, Values: make([]Value, 0, rows)})
	}
	varCol := &Column{Name: variable, Kind: KindCategory, Derived: true, Values: make([]Value, 0, rows)}
	valCol := &Column{Name: value, Kind: kind, Derived: true, Values: make([]Value, 0, rows)}
	for _, col := range melted {
		for r := 0; r < ds.Rows(); r++ {
			for i, id := range ids {
				out[i].Values = append(out[i].Values, id.Values[r])
			}
			varCol.Values = append(varCol.Values, Category(col.Name))
			valCol.Values = append(valCol.Values, col.Values[r])
		}
	}
	out = append(out, varCol, valCol)
	next, err := New(ds.Name(), out)
	if err != nil {
		return nil, &DerivationError{Dataset: ds.Name(), Column: value, Reason: "melt", Err: err}
	}
	return next, nil
}

// KeepRows keeps rows whose Column renders to one of Values.
type KeepRows struct {
	Column string
	Values []string
}

func (s KeepRows) Name() string { return "keep_rows" }

func (s KeepRows) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, len(s.Values))
	for _, v := range s.Values {
		keep[v] = struct{}{}
	}
	var rows []int
	for i, v := range col.Values {
		if _, ok := keep[v.String()]; ok && v.Valid {
			rows = append(rows, i)
		}
	}
	return ds.Select(rows), nil
}

// DropRows removes rows whose Column renders to one of Values. Missing cells
// are kept.
type DropRows struct {
	Column string
	Values []string
}

func (s DropRows) Name() string { return "drop_rows" }

func (s DropRows) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column)
	if err != nil {
		return nil, err
	}
	drop := make(map[string]struct{}, len(s.Values))
	for _, v := range s.Values {
		drop[v] = struct{}{}
	}
	var rows []int
	for i, v := range col.Values {
		if _, ok := drop[v.String()]; ok && v.Valid {
			continue
		}
		rows = append(rows, i)
	}
	return ds.Select(rows), nil
}

// DropMissing removes rows with a missing cell in any of Columns.
type DropMissing struct {
	Columns []string
}

func (s DropMissing) Name() string { return "drop_missing" }

func (s DropMissing) Apply(ds *Dataset) (*Dataset, error) {
	cols := make([]*Column, 0, len(s.Columns))
	for _, name := range s.Columns {
		col, err := source(ds, name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	var rows []int
	for r := 0; r < ds.Rows(); r++ {
		ok := true
		for _, col := range cols {
			if !col.Values[r].Valid {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return ds.Select(rows), nil
}

// Round rounds a numeric column to Places decimals.
type Round struct {
	Column string
	As     string
	Places int
}

func (s Round) Name() string { return "round" }

func (s Round) Apply(ds *Dataset) (*Dataset, error) {
	col, err := source(ds, s.Column, KindNumber)
	if err != nil {
		return nil, err
	}
	pow := math.Pow(10, float64(s.Places))
	values := make([]Value, len(col.Values))
	for i, v := range col.Values {
		if !v.Valid {
			values[i] = v
			continue
		}
		values[i] = Number(math.Round(v.Num*pow) / pow)
	}
	return derived(ds, target(s.Column, s.As), KindNumber, values, false)
}
