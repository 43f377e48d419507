package datastore

import (
	"go/types"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestSessionImplementationsHardening ensures only sanctioned persistence
// packages provide concrete implementations of the query.Session interface.
// This guards architectural drift from introducing additional backends
// outside the vetted locations without an explicit test update.
func TestSessionImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "specstore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var session *types.Interface
	for _, p := range pkgs {
		if p.PkgPath == "specstore/pkg/query" {
			obj := p.Types.Scope().Lookup("Session")
			if obj == nil {
				t.Fatalf("query.Session not found")
			}
			iface, ok := obj.Type().Underlying().(*types.Interface)
			if !ok {
				t.Fatalf("query.Session is not an interface")
			}
			session = iface
		}
	}
	if session == nil {
		t.Fatalf("failed to resolve Session interface")
	}
	allowed := map[string]struct{}{
		"specstore/internal/infra/persistence/memory": {},
	}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if types.Implements(types.NewPointer(named), session) {
				if _, ok := allowed[p.PkgPath]; !ok {
					unexpected = append(unexpected, p.PkgPath+"."+name)
				}
			}
		}
	}
	if len(unexpected) > 0 {
		t.Fatalf("unexpected Session implementations (update the allowed list intentionally when adding a backend): %v", unexpected)
	}
}
