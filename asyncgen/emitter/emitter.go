// Package emitter synthesizes the dual-mode client source from a client
// descriptor. For every endpoint method it rewrites the captured declaration
// into a context-aware twin routed through the shared session, and emits a
// single generated file: the client struct embedding the reference client,
// rewritten constructors, the twins, a view exposing the twins under their
// original names, and the rewritten transport helpers both surfaces share.
package emitter

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/printer"
	"go/types"
	"path"
	"sort"
	"strings"

	"github.com/uezo/aiolinebot/asyncgen/ir"
)

// DefaultRuntimeImport is the import path of the session runtime the
// generated code depends on.
const DefaultRuntimeImport = "github.com/uezo/aiolinebot/asyncclient"

// Options configures an Emitter.
type Options struct {
	// PackageName is the package clause of the generated file.
	PackageName string

	// RuntimeImport overrides the session runtime import path.
	RuntimeImport string
}

// Emitter renders one generated file from one descriptor. It rewrites the
// descriptor's captured declarations in place, so an Emitter is single-use:
// create a fresh descriptor (and Emitter) for every run.
type Emitter struct {
	opts    Options
	desc    *ir.ClientDescriptor
	refName string
	runtime string

	// imports maps import path to local name for everything the generated
	// file references.
	imports map[string]string

	fieldsByName   map[string]ir.FieldDescriptor
	endpointByName map[string]*ir.EndpointDescriptor
	helperNames    map[string]bool

	body bytes.Buffer
	used bool
}

// New returns an Emitter for the given options.
func New(opts Options) *Emitter {
	if opts.RuntimeImport == "" {
		opts.RuntimeImport = DefaultRuntimeImport
	}
	return &Emitter{
		opts:    opts,
		runtime: path.Base(opts.RuntimeImport),
		imports: make(map[string]string),
	}
}

// Emit renders the generated file for desc and returns gofmt-formatted
// source.
func (e *Emitter) Emit(desc *ir.ClientDescriptor) ([]byte, error) {
	if e.used {
		return nil, fmt.Errorf("emitter is single-use; create a new one per run")
	}
	e.used = true
	if e.opts.PackageName == "" {
		return nil, fmt.Errorf("no output package name specified")
	}
	e.desc = desc
	e.refName = desc.Package.Types.Name()

	e.fieldsByName = make(map[string]ir.FieldDescriptor, len(desc.Fields))
	for _, f := range desc.Fields {
		e.fieldsByName[f.Name] = f
	}
	e.endpointByName = make(map[string]*ir.EndpointDescriptor, len(desc.Endpoints))
	for i := range desc.Endpoints {
		e.endpointByName[desc.Endpoints[i].Name] = &desc.Endpoints[i]
	}
	e.helperNames = make(map[string]bool, len(desc.Helpers))
	for _, h := range desc.Helpers {
		e.helperNames[h.Name] = true
	}

	e.ensureImport("context", "context")
	e.ensureImport("sync", "sync")
	e.ensureImport("time", "time")
	e.ensureImport(desc.Package.PkgPath, e.refName)
	e.ensureImport(e.opts.RuntimeImport, e.runtime)

	e.emitClientStruct()
	for i := range desc.Constructors {
		if err := e.emitConstructor(&desc.Constructors[i]); err != nil {
			return nil, err
		}
	}
	e.emitSessionPlumbing()
	for i := range desc.Endpoints {
		if err := e.emitEndpoint(&desc.Endpoints[i]); err != nil {
			return nil, err
		}
	}
	e.emitAsyncView()
	for i := range desc.Helpers {
		if err := e.emitHelper(&desc.Helpers[i]); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	e.emitHeader(&out)
	e.emitImports(&out)
	out.Write(e.body.Bytes())

	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated source does not format: %w", err)
	}
	return src, nil
}

func (e *Emitter) emitHeader(out *bytes.Buffer) {
	fmt.Fprintf(out, "// Code generated by asyncgen. DO NOT EDIT.\n//\n")
	fmt.Fprintf(out, "// Reference: %s.%s\n", e.desc.Package.PkgPath, e.desc.TypeName)
	if e.desc.ModulePath != "" {
		fmt.Fprintf(out, "// Module: %s", e.desc.ModulePath)
		if e.desc.ModuleVersion != "" {
			fmt.Fprintf(out, " %s", e.desc.ModuleVersion)
		}
		fmt.Fprintf(out, "\n")
	}
	fmt.Fprintf(out, "\npackage %s\n\n", e.opts.PackageName)
}

func (e *Emitter) emitImports(out *bytes.Buffer) {
	paths := make([]string, 0, len(e.imports))
	for p := range e.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Fprintf(out, "import (\n")
	for _, p := range paths {
		name := e.imports[p]
		if name == path.Base(p) {
			fmt.Fprintf(out, "\t%q\n", p)
		} else {
			fmt.Fprintf(out, "\t%s %q\n", name, p)
		}
	}
	fmt.Fprintf(out, ")\n\n")
}

// ensureImport records an import and returns its local name.
func (e *Emitter) ensureImport(importPath, name string) string {
	if existing, ok := e.imports[importPath]; ok {
		return existing
	}
	e.imports[importPath] = name
	return name
}

// qualifier renders type names for textual signatures, importing the owning
// packages as a side effect.
func (e *Emitter) qualifier(p *types.Package) string {
	if p == e.desc.Package.Types {
		return e.ensureImport(e.desc.Package.PkgPath, e.refName)
	}
	return e.ensureImport(p.Path(), p.Name())
}

func (e *Emitter) typeString(t types.Type) string {
	return types.TypeString(t, e.qualifier)
}

func (e *Emitter) emitClientStruct() {
	fmt.Fprintf(&e.body, "// Client is the dual-mode twin of %s.%s. The embedded reference client\n", e.refName, e.desc.TypeName)
	fmt.Fprintf(&e.body, "// provides the synchronous surface unchanged. Every endpoint method also has\n")
	fmt.Fprintf(&e.body, "// a context-aware twin with an Async suffix, and Async() exposes the twins\n")
	fmt.Fprintf(&e.body, "// under their original names. Both surfaces share the client's configuration\n")
	fmt.Fprintf(&e.body, "// and the reference package's request and error types.\n")
	fmt.Fprintf(&e.body, "type Client struct {\n")
	fmt.Fprintf(&e.body, "\t*%s.%s\n\n", e.refName, e.desc.TypeName)
	for _, f := range e.desc.MirroredFields() {
		fmt.Fprintf(&e.body, "\t%s %s\n", f.Name, e.typeString(f.Type))
	}
	fmt.Fprintf(&e.body, "\n\tsessionTimeout time.Duration\n")
	fmt.Fprintf(&e.body, "\tsessionOpts    []%s.Option\n\n", e.runtime)
	fmt.Fprintf(&e.body, "\tsessOnce sync.Once\n")
	fmt.Fprintf(&e.body, "\tsess     *%s.Session\n", e.runtime)
	fmt.Fprintf(&e.body, "}\n\n")
}

func (e *Emitter) emitSessionPlumbing() {
	fmt.Fprintf(&e.body, "// ConfigureSession appends options applied when the session is created on\n")
	fmt.Fprintf(&e.body, "// first async use. Options added after the first async call have no effect.\n")
	fmt.Fprintf(&e.body, "func (c *Client) ConfigureSession(opts ...%s.Option) {\n", e.runtime)
	fmt.Fprintf(&e.body, "\tc.sessionOpts = append(c.sessionOpts, opts...)\n")
	fmt.Fprintf(&e.body, "}\n\n")

	fmt.Fprintf(&e.body, "// session returns the shared async transport, creating it on first use.\n")
	fmt.Fprintf(&e.body, "func (c *Client) session() *%s.Session {\n", e.runtime)
	fmt.Fprintf(&e.body, "\tc.sessOnce.Do(func() {\n")
	fmt.Fprintf(&e.body, "\t\topts := make([]%s.Option, 0, len(c.sessionOpts)+1)\n", e.runtime)
	fmt.Fprintf(&e.body, "\t\tif c.sessionTimeout > 0 {\n")
	fmt.Fprintf(&e.body, "\t\t\topts = append(opts, %s.WithTimeout(c.sessionTimeout))\n", e.runtime)
	fmt.Fprintf(&e.body, "\t\t}\n")
	fmt.Fprintf(&e.body, "\t\topts = append(opts, c.sessionOpts...)\n")
	fmt.Fprintf(&e.body, "\t\tc.sess = %s.NewSession(opts...)\n", e.runtime)
	fmt.Fprintf(&e.body, "\t})\n")
	fmt.Fprintf(&e.body, "\treturn c.sess\n")
	fmt.Fprintf(&e.body, "}\n\n")

	fmt.Fprintf(&e.body, "// Close releases the async session and its connection pool. Close is\n")
	fmt.Fprintf(&e.body, "// idempotent; async calls made after Close fail with %s.ErrSessionClosed.\n", e.runtime)
	fmt.Fprintf(&e.body, "// The synchronous surface is unaffected.\n")
	fmt.Fprintf(&e.body, "func (c *Client) Close() error {\n")
	fmt.Fprintf(&e.body, "\treturn c.session().Close()\n")
	fmt.Fprintf(&e.body, "}\n\n")
}

// emitConstructor rewrites a reference constructor into its dual-mode form
// and prints it.
func (e *Emitter) emitConstructor(fn *ir.FuncDescriptor) error {
	r := e.newRewriter(fn.Decl)
	if err := r.rewriteConstructor(fn); err != nil {
		return fmt.Errorf("constructor %s: %w", fn.Name, err)
	}
	if doc := fn.Decl.Doc.Text(); doc != "" {
		e.printDoc(doc)
	}
	return e.printDecl(fn.Decl)
}

// emitEndpoint rewrites one endpoint method into its context-aware twin. For
// streaming endpoints the rewritten method is demoted to an unexported inner
// method returning the raw body, and a wrapper converting it into a stream
// handle is emitted alongside.
func (e *Emitter) emitEndpoint(ep *ir.EndpointDescriptor) error {
	name := ep.Name
	twin := name + "Async"
	if ep.Streaming {
		twin = innerStreamName(name)
	}

	r := e.newRewriter(ep.Decl)
	if err := r.rewriteMethod(twin); err != nil {
		return fmt.Errorf("endpoint %s: %w", name, err)
	}

	if !ep.Streaming {
		e.printDoc(fmt.Sprintf("%s is the context-aware twin of %s.%s.\n", twin, e.desc.TypeName, name))
	}
	if err := e.printDecl(ep.Decl); err != nil {
		return err
	}
	if ep.Streaming {
		e.emitStreamWrapper(ep)
	}
	return nil
}

// emitStreamWrapper prints the exported twin of a streaming endpoint,
// converting the raw response body into a stream handle.
func (e *Emitter) emitStreamWrapper(ep *ir.EndpointDescriptor) {
	recv := receiverName(ep.Decl)
	params := e.paramList(ep)
	if !ep.Variadic {
		params += fmt.Sprintf(", opts ...%s.StreamOption", e.runtime)
	}

	e.printDoc(fmt.Sprintf("%sAsync is the context-aware twin of %s.%s. The response body is\nreturned as a stream of bounded chunks; the caller owns releasing it.\n", ep.Name, e.desc.TypeName, ep.Name))
	fmt.Fprintf(&e.body, "func (%s *Client) %sAsync(ctx context.Context%s) (*%s.Stream, error) {\n", recv, ep.Name, params, e.runtime)
	fmt.Fprintf(&e.body, "\trc, err := %s.%s(ctx%s)\n", recv, innerStreamName(ep.Name), e.argList(ep))
	fmt.Fprintf(&e.body, "\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	if ep.Variadic {
		fmt.Fprintf(&e.body, "\treturn %s.NewStream(rc), nil\n", e.runtime)
	} else {
		fmt.Fprintf(&e.body, "\treturn %s.NewStream(rc, opts...), nil\n", e.runtime)
	}
	fmt.Fprintf(&e.body, "}\n\n")
}

// emitAsyncView prints the original-name async surface.
func (e *Emitter) emitAsyncView() {
	fmt.Fprintf(&e.body, "// AsyncView exposes the context-aware twins under their original endpoint\n")
	fmt.Fprintf(&e.body, "// names. A promoted method name cannot be redeclared on Client itself, so\n")
	fmt.Fprintf(&e.body, "// the original-name surface lives on this view. Each view method forwards\n")
	fmt.Fprintf(&e.body, "// to the matching Async method.\n")
	fmt.Fprintf(&e.body, "type AsyncView struct {\n\tc *Client\n}\n\n")

	fmt.Fprintf(&e.body, "// Async returns the original-name async surface of the client.\n")
	fmt.Fprintf(&e.body, "func (c *Client) Async() AsyncView {\n\treturn AsyncView{c: c}\n}\n\n")

	for i := range e.desc.Endpoints {
		ep := &e.desc.Endpoints[i]
		params := e.paramList(ep)
		results := e.resultList(ep)
		forward := fmt.Sprintf("v.c.%sAsync(ctx%s)", ep.Name, e.argList(ep))
		if ep.Streaming && !ep.Variadic {
			params += fmt.Sprintf(", opts ...%s.StreamOption", e.runtime)
			forward = fmt.Sprintf("v.c.%sAsync(ctx%s, opts...)", ep.Name, e.argList(ep))
		}

		fmt.Fprintf(&e.body, "// %s calls %sAsync.\n", ep.Name, ep.Name)
		fmt.Fprintf(&e.body, "func (v AsyncView) %s(ctx context.Context%s)%s {\n", ep.Name, params, results)
		if len(ep.Results) == 0 {
			fmt.Fprintf(&e.body, "\t%s\n", forward)
		} else {
			fmt.Fprintf(&e.body, "\treturn %s\n", forward)
		}
		fmt.Fprintf(&e.body, "}\n\n")
	}
}

// emitHelper rewrites one unexported transport helper shared by the twins.
func (e *Emitter) emitHelper(fn *ir.FuncDescriptor) error {
	r := e.newRewriter(fn.Decl)
	if err := r.rewriteMethod(fn.Name); err != nil {
		return fmt.Errorf("helper %s: %w", fn.Name, err)
	}
	return e.printDecl(fn.Decl)
}

// paramList renders the original parameters of an endpoint, with a leading
// comma. Variadic parameters are rendered with the ellipsis form.
func (e *Emitter) paramList(ep *ir.EndpointDescriptor) string {
	var sb strings.Builder
	for i, p := range ep.Params {
		typ := e.typeString(p.Type)
		if ep.Variadic && i == len(ep.Params)-1 {
			if slice, ok := p.Type.(*types.Slice); ok {
				typ = "..." + e.typeString(slice.Elem())
			}
		}
		fmt.Fprintf(&sb, ", %s %s", p.Name, typ)
	}
	return sb.String()
}

// argList renders the forwarding argument list for the original parameters,
// with a leading comma.
func (e *Emitter) argList(ep *ir.EndpointDescriptor) string {
	var sb strings.Builder
	for i, p := range ep.Params {
		if ep.Variadic && i == len(ep.Params)-1 {
			fmt.Fprintf(&sb, ", %s...", p.Name)
		} else {
			fmt.Fprintf(&sb, ", %s", p.Name)
		}
	}
	return sb.String()
}

// resultList renders the twin's result list, with a leading space when
// non-empty. Streaming endpoints return the stream handle instead of the raw
// body.
func (e *Emitter) resultList(ep *ir.EndpointDescriptor) string {
	if ep.Streaming {
		return fmt.Sprintf(" (*%s.Stream, error)", e.runtime)
	}
	switch len(ep.Results) {
	case 0:
		return ""
	case 1:
		return " " + e.typeString(ep.Results[0])
	default:
		parts := make([]string, len(ep.Results))
		for i, rt := range ep.Results {
			parts[i] = e.typeString(rt)
		}
		return " (" + strings.Join(parts, ", ") + ")"
	}
}

// printDoc writes a doc comment, line by line.
func (e *Emitter) printDoc(doc string) {
	for _, line := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		if line == "" {
			fmt.Fprintf(&e.body, "//\n")
		} else {
			fmt.Fprintf(&e.body, "// %s\n", line)
		}
	}
}

// printDecl prints a rewritten declaration. Interior comments are dropped
// (printer needs the enclosing file to place them); the final format.Source
// pass normalizes layout.
func (e *Emitter) printDecl(decl *ast.FuncDecl) error {
	decl.Doc = nil
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&e.body, e.desc.Package.Fset, decl); err != nil {
		return fmt.Errorf("failed to print %s: %w", decl.Name.Name, err)
	}
	fmt.Fprintf(&e.body, "\n\n")
	return nil
}

// innerStreamName is the unexported name of the rewritten streaming method
// whose exported wrapper converts the body into a stream handle.
func innerStreamName(name string) string {
	return lowerFirst(name) + "Async"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// receiverName returns the receiver identifier of a method declaration.
func receiverName(decl *ast.FuncDecl) string {
	if decl.Recv != nil && len(decl.Recv.List) > 0 && len(decl.Recv.List[0].Names) > 0 {
		return decl.Recv.List[0].Names[0].Name
	}
	return "c"
}
