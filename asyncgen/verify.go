package asyncgen

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/uezo/aiolinebot/asyncgen/provider"
)

// Drift compares an existing generated file against a fresh extraction of
// the reference package.
type Drift struct {
	// Missing are endpoint methods of the reference client that have no
	// twin in the generated file. The file was generated against an older
	// version of the reference package.
	Missing []string

	// Stale are twins in the generated file whose endpoint no longer exists
	// in the reference package.
	Stale []string
}

// Empty reports whether the generated file matches the reference package.
func (d *Drift) Empty() bool {
	return len(d.Missing) == 0 && len(d.Stale) == 0
}

// Verify parses an existing generated file and reports its drift against a
// fresh extraction. Regeneration replaces the artifact wholesale, so a clean
// regenerate always clears drift in both directions.
func Verify(ctx context.Context, cfg *Config, generated []byte) (*Drift, error) {
	cfg = applyConfigDefaults(cfg, "")

	desc, err := provider.Extract(ctx, provider.Options{
		Package:        cfg.Package,
		ClientType:     cfg.ClientType,
		ExcludeMethods: cfg.ExcludeMethods,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract client descriptor: %w", err)
	}

	twins, err := generatedTwins(cfg.OutFile, generated)
	if err != nil {
		return nil, err
	}

	drift := &Drift{}
	fresh := make(map[string]bool)
	for _, name := range desc.EndpointNames() {
		fresh[name] = true
		if !twins[name] {
			drift.Missing = append(drift.Missing, name)
		}
	}
	for name := range twins {
		if !fresh[name] {
			drift.Stale = append(drift.Stale, name)
		}
	}
	sort.Strings(drift.Stale)
	return drift, nil
}

// VerifyFile reads the generated file from dir and verifies it.
func VerifyFile(ctx context.Context, cfg *Config, dir string) (*Drift, error) {
	cfg = applyConfigDefaults(cfg, dir)
	content, err := os.ReadFile(filepath.Join(dir, cfg.OutFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read generated file: %w", err)
	}
	return Verify(ctx, cfg, content)
}

// generatedTwins parses generated source and returns the endpoint names that
// have an exported Async twin on the generated client.
func generatedTwins(filename string, src []byte) (map[string]bool, error) {
	file, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated file: %w", err)
	}

	twins := make(map[string]bool)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		star, ok := fn.Recv.List[0].Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		if recv, ok := star.X.(*ast.Ident); !ok || recv.Name != "Client" {
			continue
		}
		name := fn.Name.Name
		if !fn.Name.IsExported() || !strings.HasSuffix(name, "Async") {
			continue
		}
		if endpoint := strings.TrimSuffix(name, "Async"); endpoint != "" {
			twins[endpoint] = true
		}
	}
	return twins, nil
}
