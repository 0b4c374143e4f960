package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyBlobPackageImportsInfra keeps the backends behind Open: no other
// package may import internal/infra/blob directly.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	const infra = "dashcore/internal/infra/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "dashcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var violations []string
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, "dashcore/internal/blob") || strings.HasPrefix(pkg.PkgPath, infra) {
			continue
		}
		for path := range pkg.Imports {
			if path == infra || strings.HasPrefix(path, infra+"/") {
				violations = append(violations, pkg.PkgPath+": "+path)
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of blob backend: %s", v)
	}
}
