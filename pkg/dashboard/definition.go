// Package dashboard is the public contract between dashboard plugins and the
// host. A plugin contributes one or more Definitions; the host fetches each
// source, derives the dataset and starts an engine per dashboard.
//
// Plugins import only dashcore/pkg/... packages.
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"dashcore/pkg/bundle"
	"dashcore/pkg/filter"
	"dashcore/pkg/table"
	"dashcore/pkg/view"
)

// Format names a source decoder.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatSQL  Format = "sql"
)

// Source locates the raw table. URL schemes: file paths, http(s)://,
// blob://<key>, sqlite://<path>, postgres://<dsn>. Query is required for
// SQL sources; Sheet selects an XLSX sheet (default first).
type Source struct {
	URL    string `yaml:"url" json:"url"`
	Format Format `yaml:"format,omitempty" json:"format,omitempty"`
	Sheet  string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Query  string `yaml:"query,omitempty" json:"query,omitempty"`
}

// ResolvedFormat returns Format, inferring it from the URL when unset.
func (s Source) ResolvedFormat() Format {
	if s.Format != "" {
		return s.Format
	}
	lower := strings.ToLower(s.URL)
	switch {
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return FormatSQL
	case strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Definition declares one dashboard end to end.
type Definition struct {
	Key         string
	Title       string
	Description string
	Source      Source
	Schema      []table.ColumnSpec
	Steps       []table.Step
	Controls    []filter.Spec
	Views       []view.Spec
	Outputs     bundle.Specs
}

// Validate checks the parts of a definition that do not need the data.
// Column references are checked when the engine is built.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return errors.New("dashboard: key required")
	}
	if strings.ContainsAny(d.Key, " /") {
		return fmt.Errorf("dashboard %s: key must not contain spaces or slashes", d.Key)
	}
	if strings.TrimSpace(d.Source.URL) == "" {
		return fmt.Errorf("dashboard %s: source url required", d.Key)
	}
	switch d.Source.ResolvedFormat() {
	case FormatCSV, FormatXLSX:
	case FormatSQL:
		if strings.TrimSpace(d.Source.Query) == "" {
			return fmt.Errorf("dashboard %s: sql source requires a query", d.Key)
		}
	default:
		return fmt.Errorf("dashboard %s: unsupported format %q", d.Key, d.Source.Format)
	}
	if len(d.Views) == 0 {
		return fmt.Errorf("dashboard %s: at least one view required", d.Key)
	}
	for i, step := range d.Steps {
		if step == nil {
			return fmt.Errorf("dashboard %s: step %d is nil", d.Key, i)
		}
	}
	return nil
}

// Descriptor is the data-free summary of a definition.
type Descriptor struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Plugin      string   `json:"plugin,omitempty"`
	Source      string   `json:"source"`
	Controls    []string `json:"controls"`
	Views       []string `json:"views"`
	Outputs     []string `json:"outputs"`
}

// Descriptor summarises d.
func (d Definition) Descriptor() Descriptor {
	desc := Descriptor{
		Key:         d.Key,
		Title:       d.Title,
		Description: d.Description,
		Source:      d.Source.URL,
		Controls:    make([]string, 0, len(d.Controls)),
		Views:       make([]string, 0, len(d.Views)),
	}
	for _, c := range d.Controls {
		desc.Controls = append(desc.Controls, c.ID)
	}
	for _, v := range d.Views {
		desc.Views = append(desc.Views, v.ID)
	}
	outs := d.Outputs.Outputs()
	desc.Outputs = make([]string, 0, len(outs))
	for _, o := range outs {
		desc.Outputs = append(desc.Outputs, o.OutputID())
	}
	return desc
}
