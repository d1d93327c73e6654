package asyncgen

import (
	"context"
	"fmt"

	"github.com/uezo/aiolinebot/asyncgen/emitter"
	"github.com/uezo/aiolinebot/asyncgen/ir"
	"github.com/uezo/aiolinebot/asyncgen/provider"
	"github.com/uezo/aiolinebot/asyncgen/sink"
)

// Result reports one generation run.
type Result struct {
	// Endpoints are the sorted names of the endpoint methods that received
	// twins. An empty slice means the reference package exposed no
	// qualifying methods; callers that expect coverage should treat that as
	// a regression (see the check command).
	Endpoints []string

	// Warnings are the extraction diagnostics. Each warned method or
	// constructor is absent from the generated surface.
	Warnings []ir.Warning

	// Output is the path the generated file was written to, relative to the
	// sink root.
	Output string

	// Source is the formatted content of the generated file.
	Source []byte
}

// Generate runs extraction and synthesis for cfg and writes the generated
// file under outDir. Generation is a pure function of the loaded reference
// package: re-running against the same dependency version produces identical
// output and replaces the previous artifact wholesale.
func Generate(ctx context.Context, cfg *Config, outDir string) (*Result, error) {
	if outDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	cfg = applyConfigDefaults(cfg, outDir)
	return generate(ctx, cfg, sink.NewFilesystemSink(outDir))
}

// GenerateTo runs generation against an arbitrary output sink. Used by tests
// and callers that post-process the output before writing it.
func GenerateTo(ctx context.Context, cfg *Config, out sink.OutputSink) (*Result, error) {
	cfg = applyConfigDefaults(cfg, "")
	return generate(ctx, cfg, out)
}

func generate(ctx context.Context, cfg *Config, out sink.OutputSink) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	desc, err := provider.Extract(ctx, provider.Options{
		Package:        cfg.Package,
		ClientType:     cfg.ClientType,
		ExcludeMethods: cfg.ExcludeMethods,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract client descriptor: %w", err)
	}

	em := emitter.New(emitter.Options{
		PackageName:   cfg.OutPackage,
		RuntimeImport: cfg.RuntimeImport,
	})
	src, err := em.Emit(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize twins: %w", err)
	}

	if err := out.WriteFile(ctx, cfg.OutFile, src); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", cfg.OutFile, err)
	}

	return &Result{
		Endpoints: desc.EndpointNames(),
		Warnings:  desc.Warnings,
		Output:    cfg.OutFile,
		Source:    src,
	}, nil
}

// Generator provides a fluent API for generation.
// Create with FromPackage() and configure with method chaining.
//
// Example:
//
//	asyncgen.FromPackage("github.com/line/line-bot-sdk-go/v8/linebot", "Client").
//	    Exclude("SetEndpointBase").
//	    OutPackage("linebotasync").
//	    ToDir(ctx, "./linebotasync")
type Generator struct {
	cfg Config
}

// FromPackage creates a Generator for the given reference package and client
// type. This is the entry point for the fluent API.
func FromPackage(pkg, clientType string) *Generator {
	return &Generator{cfg: Config{Package: pkg, ClientType: clientType}}
}

// Exclude adds exported methods that must not receive a twin.
// Can be called multiple times.
func (g *Generator) Exclude(methods ...string) *Generator {
	g.cfg.ExcludeMethods = append(g.cfg.ExcludeMethods, methods...)
	return g
}

// OutPackage sets the package clause of the generated file.
func (g *Generator) OutPackage(name string) *Generator {
	g.cfg.OutPackage = name
	return g
}

// OutFile sets the generated file name.
func (g *Generator) OutFile(name string) *Generator {
	g.cfg.OutFile = name
	return g
}

// Runtime overrides the session runtime import path.
func (g *Generator) Runtime(importPath string) *Generator {
	g.cfg.RuntimeImport = importPath
	return g
}

// ToDir generates the file into the specified directory.
// This is a terminal operation that writes to disk.
func (g *Generator) ToDir(ctx context.Context, dir string) (*Result, error) {
	return Generate(ctx, &g.cfg, dir)
}

// To generates into the given sink without touching the filesystem.
func (g *Generator) To(ctx context.Context, out sink.OutputSink) (*Result, error) {
	return GenerateTo(ctx, &g.cfg, out)
}
