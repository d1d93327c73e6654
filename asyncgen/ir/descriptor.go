// Package ir defines the intermediate descriptor model produced by the
// provider and consumed by the emitter. Descriptors capture everything needed
// to synthesize a context-aware twin for each endpoint method of a reference
// client: the verbatim parameter specification and a reference to the
// method's own request-building and response-parsing code.
package ir

import (
	"go/ast"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"
)

// ClientDescriptor describes one reference client type as extracted from its
// package. It is created once per generation run and never mutated by the
// provider after Extract returns.
type ClientDescriptor struct {
	// Package is the loaded reference package, including type information
	// used by the emitter to resolve and qualify identifiers.
	Package *packages.Package

	// Named is the reference client type.
	Named *types.Named

	// TypeName is the client type's name within the reference package.
	TypeName string

	// ModulePath and ModuleVersion identify the module providing the
	// reference package, when known. Stamped into the generated header.
	ModulePath    string
	ModuleVersion string

	// Fields classifies the client struct's fields. Mirrored fields are
	// re-declared on the generated client; transport fields are replaced by
	// the shared session.
	Fields []FieldDescriptor

	// Constructors are the exported package functions returning the client
	// type, captured for rewriting.
	Constructors []FuncDescriptor

	// Endpoints holds one descriptor per qualifying endpoint method, in
	// source order.
	Endpoints []EndpointDescriptor

	// Helpers are the unexported methods reachable from endpoint bodies
	// (transport helpers and the like), in source order. They are rewritten
	// alongside the endpoints so both call paths share one implementation.
	Helpers []FuncDescriptor

	// Warnings collects generation-time diagnostics. A warned method is
	// omitted from Endpoints rather than failing the run.
	Warnings []Warning
}

// FieldDescriptor is one field of the reference client struct.
type FieldDescriptor struct {
	Name string
	Type types.Type

	// Transport marks the blocking HTTP transport field (*http.Client). Its
	// role is taken over by the generated session.
	Transport bool
}

// ParamDescriptor preserves one parameter of an endpoint method verbatim.
type ParamDescriptor struct {
	Name string
	Type types.Type
}

// EndpointDescriptor describes one public request-issuing method.
type EndpointDescriptor struct {
	Name string
	Doc  string

	// Params is the ordered parameter specification. For variadic methods
	// the final parameter's type is the slice type.
	Params   []ParamDescriptor
	Variadic bool

	// Results are the method's result types, in order.
	Results []types.Type

	// Streaming marks endpoints whose results include an io.ReadCloser; the
	// synthesized twin returns a streaming content handle instead.
	Streaming bool

	// Decl is the captured method declaration: the same request-building and
	// response-parsing code the synchronous path runs.
	Decl *ast.FuncDecl
}

// FuncDescriptor captures a constructor or helper method declaration.
type FuncDescriptor struct {
	Name string
	Decl *ast.FuncDecl
	Sig  *types.Signature
}

// Warning is a non-fatal extraction diagnostic.
type Warning struct {
	// Code identifies the warning category, e.g. "UNSUPPORTED_REFERENCE".
	Code string

	// Method is the method or function the warning applies to, if any.
	Method string

	Message string
}

// Warning codes emitted by the provider.
const (
	WarnUnsupportedReference   = "UNSUPPORTED_REFERENCE"
	WarnUnsupportedSignature   = "UNSUPPORTED_SIGNATURE"
	WarnUnsupportedConstructor = "UNSUPPORTED_CONSTRUCTOR"
	WarnUnsupportedField       = "UNSUPPORTED_FIELD"
)

// Endpoint returns the endpoint descriptor with the given name, or nil.
func (d *ClientDescriptor) Endpoint(name string) *EndpointDescriptor {
	for i := range d.Endpoints {
		if d.Endpoints[i].Name == name {
			return &d.Endpoints[i]
		}
	}
	return nil
}

// EndpointNames returns the sorted names of all extracted endpoints.
func (d *ClientDescriptor) EndpointNames() []string {
	names := make([]string, len(d.Endpoints))
	for i, e := range d.Endpoints {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}

// MirroredFields returns the non-transport fields in declaration order.
func (d *ClientDescriptor) MirroredFields() []FieldDescriptor {
	var fields []FieldDescriptor
	for _, f := range d.Fields {
		if !f.Transport {
			fields = append(fields, f)
		}
	}
	return fields
}

// TransportFields returns the blocking transport fields in declaration order.
func (d *ClientDescriptor) TransportFields() []FieldDescriptor {
	var fields []FieldDescriptor
	for _, f := range d.Fields {
		if f.Transport {
			fields = append(fields, f)
		}
	}
	return fields
}
