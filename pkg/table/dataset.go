package table

import (
	"fmt"
	"strings"
)

// Column is one typed column. Columns are shared between datasets derived
// from one another and must not be modified once attached to a Dataset.
type Column struct {
	Name    string
	Kind    Kind
	Derived bool
	Values  []Value
}

// Bounds returns the minimum and maximum valid values of the column.
func (c *Column) Bounds() (lo, hi Value, ok bool) {
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v.Compare(lo) < 0 {
			lo = v
		}
		if v.Compare(hi) > 0 {
			hi = v
		}
	}
	return lo, hi, ok
}

// Categories returns the distinct valid values rendered as strings, in order
// of first appearance.
func (c *Column) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		s := v.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidCount returns the number of non-missing cells.
func (c *Column) ValidCount() int {
	n := 0
	for _, v := range c.Values {
		if v.Valid {
			n++
		}
	}
	return n
}

// ColumnInfo describes a column without its values.
type ColumnInfo struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Derived bool   `json:"derived,omitempty"`
}

// Dataset is an immutable columnar table.
type Dataset struct {
	name    string
	rows    int
	columns []*Column
	index   map[string]int
}

// New assembles a dataset from columns of equal length.
func New(name string, columns []*Column) (*Dataset, error) {
	ds := &Dataset{name: name, index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if col == nil || strings.TrimSpace(col.Name) == "" {
			return nil, fmt.Errorf("table: column %d has no name", i)
		}
		if !col.Kind.Valid() {
			return nil, fmt.Errorf("table: column %s has unsupported kind %q", col.Name, col.Kind)
		}
		if _, dup := ds.index[col.Name]; dup {
			return nil, fmt.Errorf("table: duplicate column %s", col.Name)
		}
		if i == 0 {
			ds.rows = len(col.Values)
		} else if len(col.Values) != ds.rows {
			return nil, fmt.Errorf("table: column %s has %d rows, want %d", col.Name, len(col.Values), ds.rows)
		}
		ds.index[col.Name] = i
		ds.columns = append(ds.columns, col)
	}
	return ds, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Rows returns the row count.
func (d *Dataset) Rows() int { return d.rows }

// Column looks a column up by name, falling back to a case-insensitive match.
func (d *Dataset) Column(name string) (*Column, bool) {
	if i, ok := d.index[name]; ok {
		return d.columns[i], true
	}
	for _, col := range d.columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return nil, false
}

// Columns returns the columns in order. The slice is a copy.
func (d *Dataset) Columns() []*Column {
	return append([]*Column(nil), d.columns...)
}

// Schema describes the columns in order.
func (d *Dataset) Schema() []ColumnInfo {
	out := make([]ColumnInfo, len(d.columns))
	for i, col := range d.columns {
		out[i] = ColumnInfo{Name: col.Name, Kind: col.Kind, Derived: col.Derived}
	}
	return out
}

// Value returns the cell at row of the named column; missing when either is
// out of range.
func (d *Dataset) Value(row int, column string) Value {
	col, ok := d.Column(column)
	if !ok || row < 0 || row >= d.rows {
		return Value{}
	}
	return col.Values[row]
}

// withColumn returns a copy of d with col appended, or replacing the column
// of the same name in place.
func (d *Dataset) withColumn(col *Column) *Dataset {
	next := &Dataset{name: d.name, rows: d.rows, columns: d.Columns(), index: make(map[string]int, len(d.columns)+1)}
	for k, v := range d.index {
		next.index[k] = v
	}
	if i, ok := d.index[col.Name]; ok {
		next.columns[i] = col
		return next
	}
	next.index[col.Name] = len(next.columns)
	next.columns = append(next.columns, col)
	return next
}

// Select returns a dataset holding only the given rows, in the given order.
func (d *Dataset) Select(rows []int) *Dataset {
	next := &Dataset{name: d.name, rows: len(rows), index: d.index}
	for _, col := range d.columns {
		values := make([]Value, len(rows))
		for i, r := range rows {
			values[i] = col.Values[r]
		}
		next.columns = append(next.columns, &Column{Name: col.Name, Kind: col.Kind, Derived: col.Derived, Values: values})
	}
	return next
}
