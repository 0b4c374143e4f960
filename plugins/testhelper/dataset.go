// Package testhelper builds engines for plugin tests from inline CSV. It is
// the one package under plugins/ allowed to import internal/ and must only
// be used from _test.go files.
package testhelper

import (
	"context"
	"testing"

	"dashcore/internal/engine"
	"dashcore/internal/source"
	"dashcore/pkg/dashboard"
	"dashcore/pkg/table"
)

// Dataset loads csv through the definition's schema and steps.
func Dataset(t testing.TB, def dashboard.Definition, csv string) *table.Dataset {
	t.Helper()
	src := table.SourceFunc(func(context.Context) (table.Raw, error) {
		return source.DecodeCSV([]byte(csv))
	})
	ds, err := table.Load(context.Background(), src, def.Key, def.Schema)
	if err != nil {
		t.Fatalf("load %s: %v", def.Key, err)
	}
	ds, err = table.DeriveColumns(ds, def.Steps...)
	if err != nil {
		t.Fatalf("derive %s: %v", def.Key, err)
	}
	return ds
}

// Engine validates def and returns an engine over csv.
func Engine(t testing.TB, def dashboard.Definition, csv string) *engine.Engine {
	t.Helper()
	if err := def.Validate(); err != nil {
		t.Fatalf("validate %s: %v", def.Key, err)
	}
	eng, err := engine.New(engine.Config{
		Name:     def.Key,
		Dataset:  Dataset(t, def, csv),
		Controls: def.Controls,
		Views:    def.Views,
		Outputs:  def.Outputs,
	})
	if err != nil {
		t.Fatalf("engine %s: %v", def.Key, err)
	}
	return eng
}

// Registered runs p.Register and returns its single definition.
func Registered(t testing.TB, p dashboard.Plugin) dashboard.Definition {
	t.Helper()
	reg := dashboard.NewRegistry()
	if err := p.Register(reg); err != nil {
		t.Fatalf("register %s: %v", p.Name(), err)
	}
	defs := reg.Dashboards()
	if len(defs) != 1 {
		t.Fatalf("%s registered %d dashboards, want 1", p.Name(), len(defs))
	}
	return defs[0]
}
