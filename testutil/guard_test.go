package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = format }

func TestPredicates(t *testing.T) {
	cases := []struct {
		in       string
		internal bool
		engine   bool
	}{
		{"dashcore/internal/engine", true, true},
		{"dashcore/internal/engine/sub", true, true},
		{"dashcore/internal/source", true, false},
		{"dashcore/pkg/filter", false, false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.internal {
			t.Errorf("InternalImportForbidden(%q)=%v", c.in, got)
		}
		if got := EngineImportForbidden(c.in); got != c.engine {
			t.Errorf("EngineImportForbidden(%q)=%v", c.in, got)
		}
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("a.go", "package tmp\nimport \"fmt\"\nfunc A(){fmt.Println(1)}\n")
	write("b.go", "package tmp\nimport _ \"dashcore/internal/engine\"\n")
	write("b_test.go", "package tmp\nimport _ \"dashcore/internal/source\"\n")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "b.go") {
		t.Fatalf("unexpected violations %v", viols)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestFailIfViolations(t *testing.T) {
	r := &recorder{}
	failIfViolations(r, "x", "y", nil)
	if r.msg != "" {
		t.Fatalf("unexpected failure")
	}
	failIfViolations(r, "x", "y", []string{"a"})
	if r.msg == "" {
		t.Fatalf("expected failure")
	}
}

func TestAssertNoTransitiveDependency(t *testing.T) {
	AssertNoTransitiveDependency(t, "dashcore/pkg/...", InternalImportForbidden, "pkg must stay independent of internal")
}
