package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Raw is an untyped table as read from a source: a header row and string
// records of the same width.
type Raw struct {
	Header  []string
	Records [][]string
}

// Source produces a raw table. Implementations perform all I/O; Load never
// touches the network or disk itself.
type Source interface {
	Read(ctx context.Context) (Raw, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Raw, error)

// Read implements Source.
func (f SourceFunc) Read(ctx context.Context) (Raw, error) { return f(ctx) }

// ColumnSpec declares how a source column is coerced.
type ColumnSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Kind     Kind     `yaml:"kind" json:"kind"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Layouts  []string `yaml:"layouts,omitempty" json:"layouts,omitempty"`
	// Rename sets the column name used downstream.
	Rename string `yaml:"rename,omitempty" json:"rename,omitempty"`
}

// Load reads src and coerces it into a dataset. Columns absent from schema
// are kept as categories and unnamed ones are dropped. Declared optional
// columns absent from the source are added as all-missing columns so that
// views may reference them.
func Load(ctx context.Context, src Source, name string, schema []ColumnSpec) (*Dataset, error) {
	if src == nil {
		return nil, &LoadError{Dataset: name, Err: errors.New("source not configured")}
	}
	raw, err := src.Read(ctx)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	if len(raw.Header) == 0 {
		return nil, &LoadError{Dataset: name, Err: errors.New("header row missing")}
	}
	for i, rec := range raw.Records {
		if len(rec) != len(raw.Header) {
			return nil, &LoadError{Dataset: name, Err: fmt.Errorf("record %d has %d fields, header has %d", i+1, len(rec), len(raw.Header))}
		}
	}

	positions := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		positions[strings.TrimSpace(h)] = i
	}
	specs := make(map[int]ColumnSpec, len(schema))
	var absent []ColumnSpec
	for _, spec := range schema {
		if !spec.Kind.Valid() {
			return nil, &LoadError{Dataset: name, Column: spec.Name, Err: fmt.Errorf("unsupported kind %q", spec.Kind)}
		}
		pos, ok := lookupHeader(positions, spec.Name)
		if !ok {
			if spec.Required {
				return nil, &LoadError{Dataset: name, Column: spec.Name, Err: ErrColumnMissing}
			}
			absent = append(absent, spec)
			continue
		}
		specs[pos] = spec
	}
	if len(raw.Records) == 0 {
		return nil, &EmptyDatasetError{Dataset: name}
	}

	columns := make([]*Column, 0, len(raw.Header)+len(absent))
	for pos, header := range raw.Header {
		spec, declared := specs[pos]
		if !declared && strings.TrimSpace(header) == "" {
			// trailing separators leave unnamed columns behind
			continue
		}
		if !declared {
			spec = ColumnSpec{Name: strings.TrimSpace(header), Kind: KindCategory}
		}
		col := &Column{Name: columnName(spec, header), Kind: spec.Kind, Values: make([]Value, len(raw.Records))}
		valid := 0
		var firstErr error
		for r, rec := range raw.Records {
			v, err := Parse(spec.Kind, rec[pos], spec.Layouts)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if v.Valid {
				valid++
			}
			col.Values[r] = v
		}
		if spec.Required && valid == 0 {
			return nil, &DerivationError{Dataset: name, Column: col.Name, Reason: "no row could be coerced to " + string(spec.Kind), Err: firstErr}
		}
		columns = append(columns, col)
	}
	for _, spec := range absent {
		columns = append(columns, &Column{Name: columnName(spec, spec.Name), Kind: spec.Kind, Values: make([]Value, len(raw.Records))})
		for r := range raw.Records {
			columns[len(columns)-1].Values[r] = Missing(spec.Kind)
		}
	}
	ds, err := New(name, columns)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	return ds, nil
}

func columnName(spec ColumnSpec, header string) string {
	if strings.TrimSpace(spec.Rename) != "" {
		return strings.TrimSpace(spec.Rename)
	}
	if strings.TrimSpace(spec.Name) != "" {
		return strings.TrimSpace(spec.Name)
	}
	return strings.TrimSpace(header)
}

func lookupHeader(positions map[string]int, name string) (int, bool) {
	name = strings.TrimSpace(name)
	if pos, ok := positions[name]; ok {
		return pos, true
	}
	for h, pos := range positions {
		if strings.EqualFold(h, name) {
			return pos, true
		}
	}
	return 0, false
}
