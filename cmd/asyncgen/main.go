// Command asyncgen generates context-aware twins for a synchronous HTTP API
// client package and checks existing generated files for drift.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/uezo/aiolinebot/asyncgen"
	"github.com/uezo/aiolinebot/asyncgen/sink"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     GenCmd     `cmd:"" help:"Generate the dual-mode client for a reference package."`
	Check   CheckCmd   `cmd:"" help:"Report endpoint coverage and drift without writing files."`

	Verbose bool `help:"Enable debug logging." short:"v"`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

type GenCmd struct {
	Out        string   `arg:"" help:"Output directory for the generated file."`
	Package    string   `help:"Reference client package import path." short:"p" required:""`
	Type       string   `help:"Client type name within the package." short:"t" default:"Client"`
	OutPackage string   `help:"Package name of the generated file (default: base name of the output directory)."`
	OutFile    string   `help:"Generated file name." default:"client_gen.go"`
	Runtime    string   `help:"Session runtime import path override."`
	Exclude    []string `help:"Exported methods that must not receive a twin." short:"x"`
}

func (c *GenCmd) Run(logger zerolog.Logger) error {
	cfg := &asyncgen.Config{
		Package:        c.Package,
		ClientType:     c.Type,
		OutPackage:     c.OutPackage,
		OutFile:        c.OutFile,
		RuntimeImport:  c.Runtime,
		ExcludeMethods: c.Exclude,
	}
	result, err := asyncgen.Generate(context.Background(), cfg, c.Out)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		logger.Warn().Str("code", w.Code).Str("method", w.Method).Msg(w.Message)
	}
	logger.Info().
		Int("endpoints", len(result.Endpoints)).
		Str("output", filepath.Join(c.Out, result.Output)).
		Msg("generated")

	if len(result.Endpoints) == 0 {
		return fmt.Errorf("no endpoint methods discovered in %s.%s; the async surface would be empty", c.Package, c.Type)
	}
	return nil
}

type CheckCmd struct {
	Out     string   `arg:"" optional:"" help:"Directory holding a previously generated file to diff against."`
	Package string   `help:"Reference client package import path." short:"p" required:""`
	Type    string   `help:"Client type name within the package." short:"t" default:"Client"`
	OutFile string   `help:"Generated file name." default:"client_gen.go"`
	Exclude []string `help:"Exported methods that must not receive a twin." short:"x"`
}

func (c *CheckCmd) Run(logger zerolog.Logger) error {
	ctx := context.Background()
	cfg := &asyncgen.Config{
		Package:        c.Package,
		ClientType:     c.Type,
		OutPackage:     "client",
		OutFile:        c.OutFile,
		ExcludeMethods: c.Exclude,
	}

	result, err := asyncgen.GenerateTo(ctx, cfg, sink.NewMemorySink())
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		logger.Warn().Str("code", w.Code).Str("method", w.Method).Msg(w.Message)
	}
	logger.Info().
		Int("endpoints", len(result.Endpoints)).
		Strs("names", result.Endpoints).
		Msg("endpoint coverage")
	if len(result.Endpoints) == 0 {
		return fmt.Errorf("no endpoint methods discovered in %s.%s", c.Package, c.Type)
	}

	if c.Out == "" {
		return nil
	}
	drift, err := asyncgen.VerifyFile(ctx, cfg, c.Out)
	if err != nil {
		return err
	}
	if !drift.Empty() {
		return fmt.Errorf("generated file is out of date: missing twins [%s], stale twins [%s]; re-run gen",
			strings.Join(drift.Missing, ", "), strings.Join(drift.Stale, ", "))
	}
	logger.Info().Msg("generated file matches the reference package")
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("asyncgen"),
		kong.Description("Generate context-aware async twins for synchronous HTTP API clients."),
		kong.UsageOnError(),
	)

	level := zerolog.InfoLevel
	if cli.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	err := ctx.Run(logger)
	ctx.FatalIfErrorf(err)
}
