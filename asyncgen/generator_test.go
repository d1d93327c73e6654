package asyncgen_test

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uezo/aiolinebot/asyncgen"
	"github.com/uezo/aiolinebot/asyncgen/sink"
)

const fixturePkg = "github.com/uezo/aiolinebot/internal/testfixtures/linebotapi"

var allEndpoints = []string{
	"BroadcastMessage",
	"DeleteRichMenu",
	"GetFollowerIDs",
	"GetMessageContent",
	"GetMessageQuota",
	"GetProfile",
	"PushMessage",
	"ReplyMessage",
}

func TestGenerateToMemory(t *testing.T) {
	mem := sink.NewMemorySink()
	result, err := asyncgen.FromPackage(fixturePkg, "Client").
		OutPackage("linebotasync").
		To(context.Background(), mem)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	if len(result.Endpoints) != len(allEndpoints) {
		t.Fatalf("endpoints = %v, want %v", result.Endpoints, allEndpoints)
	}
	for i, name := range allEndpoints {
		if result.Endpoints[i] != name {
			t.Fatalf("endpoints = %v, want %v", result.Endpoints, allEndpoints)
		}
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", result.Warnings)
	}
	if result.Output != asyncgen.DefaultOutFile {
		t.Errorf("output = %q, want %q", result.Output, asyncgen.DefaultOutFile)
	}

	src := mem.Get(asyncgen.DefaultOutFile)
	if src == nil {
		t.Fatal("generated file not written to sink")
	}
	if !bytes.Equal(src, result.Source) {
		t.Error("sink content differs from result source")
	}
	if _, err := parser.ParseFile(token.NewFileSet(), result.Output, src, parser.ParseComments); err != nil {
		t.Fatalf("generated source does not parse: %v", err)
	}
}

func TestGenerateIdempotent(t *testing.T) {
	ctx := context.Background()
	run := func() []byte {
		t.Helper()
		mem := sink.NewMemorySink()
		result, err := asyncgen.FromPackage(fixturePkg, "Client").
			OutPackage("linebotasync").
			To(ctx, mem)
		if err != nil {
			t.Fatalf("generation failed: %v", err)
		}
		return result.Source
	}

	if !bytes.Equal(run(), run()) {
		t.Error("re-running generation produced different output")
	}
}

func TestGenerateToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "linebotasync")
	result, err := asyncgen.FromPackage(fixturePkg, "Client").
		ToDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, result.Output))
	if err != nil {
		t.Fatalf("generated file not written: %v", err)
	}
	// The package name defaults to the output directory's base name.
	if !strings.Contains(string(content), "package linebotasync") {
		t.Error("generated file missing defaulted package clause")
	}
}

func TestGenerateExclusions(t *testing.T) {
	mem := sink.NewMemorySink()
	result, err := asyncgen.FromPackage(fixturePkg, "Client").
		Exclude("GetProfile", "DeleteRichMenu").
		OutPackage("linebotasync").
		To(context.Background(), mem)
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	for _, name := range result.Endpoints {
		if name == "GetProfile" || name == "DeleteRichMenu" {
			t.Errorf("excluded endpoint %s still generated", name)
		}
	}
	if len(result.Endpoints) != len(allEndpoints)-2 {
		t.Errorf("endpoints = %d, want %d", len(result.Endpoints), len(allEndpoints)-2)
	}
	if strings.Contains(string(result.Source), "GetProfileAsync") {
		t.Error("excluded endpoint has a twin in the generated source")
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  asyncgen.Config
	}{
		{name: "missing package", cfg: asyncgen.Config{ClientType: "Client", OutPackage: "out"}},
		{name: "missing client type", cfg: asyncgen.Config{Package: fixturePkg, OutPackage: "out"}},
		{name: "missing out package", cfg: asyncgen.Config{Package: fixturePkg, ClientType: "Client"}},
		{name: "non-go out file", cfg: asyncgen.Config{Package: fixturePkg, ClientType: "Client", OutPackage: "out", OutFile: "client.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := asyncgen.GenerateTo(context.Background(), &tt.cfg, sink.NewMemorySink()); err == nil {
				t.Error("GenerateTo() succeeded, want config error")
			}
		})
	}
}

func TestVerifyNoDrift(t *testing.T) {
	ctx := context.Background()
	cfg := &asyncgen.Config{Package: fixturePkg, ClientType: "Client", OutPackage: "linebotasync"}

	result, err := asyncgen.GenerateTo(ctx, cfg, sink.NewMemorySink())
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	drift, err := asyncgen.Verify(ctx, cfg, result.Source)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !drift.Empty() {
		t.Errorf("drift = %+v, want none", drift)
	}
}

func TestVerifyMissingTwin(t *testing.T) {
	ctx := context.Background()

	// Generate without GetProfile, then verify against the full surface:
	// the file lags behind the reference package.
	stale, err := asyncgen.GenerateTo(ctx, &asyncgen.Config{
		Package: fixturePkg, ClientType: "Client", OutPackage: "linebotasync",
		ExcludeMethods: []string{"GetProfile"},
	}, sink.NewMemorySink())
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	drift, err := asyncgen.Verify(ctx, &asyncgen.Config{
		Package: fixturePkg, ClientType: "Client", OutPackage: "linebotasync",
	}, stale.Source)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(drift.Missing) != 1 || drift.Missing[0] != "GetProfile" {
		t.Errorf("Missing = %v, want [GetProfile]", drift.Missing)
	}
	if len(drift.Stale) != 0 {
		t.Errorf("Stale = %v, want none", drift.Stale)
	}
}

func TestVerifyStaleTwin(t *testing.T) {
	ctx := context.Background()

	// Generate the full surface, then verify against a reference surface
	// without GetProfile: the file carries a twin for a method that no
	// longer qualifies. Regeneration clears it, since the artifact is
	// replaced wholesale.
	full, err := asyncgen.GenerateTo(ctx, &asyncgen.Config{
		Package: fixturePkg, ClientType: "Client", OutPackage: "linebotasync",
	}, sink.NewMemorySink())
	if err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	drift, err := asyncgen.Verify(ctx, &asyncgen.Config{
		Package: fixturePkg, ClientType: "Client", OutPackage: "linebotasync",
		ExcludeMethods: []string{"GetProfile"},
	}, full.Source)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(drift.Stale) != 1 || drift.Stale[0] != "GetProfile" {
		t.Errorf("Stale = %v, want [GetProfile]", drift.Stale)
	}
	if len(drift.Missing) != 0 {
		t.Errorf("Missing = %v, want none", drift.Missing)
	}
}

func TestVerifyFile(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "linebotasync")
	cfg := &asyncgen.Config{Package: fixturePkg, ClientType: "Client"}

	if _, err := asyncgen.Generate(ctx, cfg, dir); err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	drift, err := asyncgen.VerifyFile(ctx, cfg, dir)
	if err != nil {
		t.Fatalf("VerifyFile() error = %v", err)
	}
	if !drift.Empty() {
		t.Errorf("drift = %+v, want none", drift)
	}
}
