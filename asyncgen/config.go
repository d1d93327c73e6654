// Package asyncgen generates context-aware twins for synchronous HTTP API
// clients. Given a reference client package, it extracts a descriptor for
// every public request-issuing method, rewrites each method into a twin that
// takes a context and routes through a shared non-blocking session, and emits
// the result as a generated Go file. The synchronous surface is never
// re-implemented: the generated client embeds the reference client and both
// surfaces share its request construction, response parsing and error
// mapping.
package asyncgen

import (
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"

	"github.com/uezo/aiolinebot/asyncgen/emitter"
)

// DefaultOutFile is the generated file name used when none is configured.
const DefaultOutFile = "client_gen.go"

// Config holds the configuration for one generation run.
type Config struct {
	// Package is the import path of the reference client package.
	// e.g. "github.com/line/line-bot-sdk-go/v8/linebot"
	Package string `validate:"required"`

	// ClientType is the name of the client type within Package.
	ClientType string `validate:"required"`

	// OutPackage is the package clause of the generated file.
	// Defaults to the base name of the output directory.
	OutPackage string

	// OutFile is the generated file name, relative to the sink root.
	// Default: "client_gen.go". Must end in .go and must not be a test file.
	OutFile string `validate:"omitempty,endswith=.go"`

	// RuntimeImport is the import path of the session runtime the generated
	// code depends on. Default: emitter.DefaultRuntimeImport.
	RuntimeImport string

	// ExcludeMethods lists exported methods of the client type that are not
	// endpoint methods and must not receive a twin.
	ExcludeMethods []string
}

var validate = validator.New()

// applyConfigDefaults returns a copy of cfg with defaults filled in.
func applyConfigDefaults(cfg *Config, outDir string) *Config {
	result := *cfg
	if result.OutFile == "" {
		result.OutFile = DefaultOutFile
	}
	if result.OutPackage == "" && outDir != "" {
		result.OutPackage = path.Base(path.Clean(outDir))
	}
	if result.RuntimeImport == "" {
		result.RuntimeImport = emitter.DefaultRuntimeImport
	}
	return &result
}

// validateConfig checks a defaulted config.
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.OutPackage == "" {
		return fmt.Errorf("invalid config: OutPackage is required when generating to a sink")
	}
	return nil
}
