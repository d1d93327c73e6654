// Package provider implements the request descriptor extractor. It loads the
// reference client package with go/packages and statically derives one
// endpoint descriptor per public request-issuing method, without ever
// instantiating the reference client or touching the network.
package provider

import (
	"context"
	"fmt"
	"go/ast"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/packages"

	"github.com/uezo/aiolinebot/asyncgen/ir"
)

// Options configures one extraction run.
type Options struct {
	// Package is the import path of the reference client package.
	Package string

	// ClientType is the name of the reference client type within Package.
	ClientType string

	// ExcludeMethods lists exported methods that are not endpoint methods
	// and must not receive a generated twin. "Close" is always excluded:
	// the generated client declares its own.
	ExcludeMethods []string
}

// Methods that are never endpoint methods, regardless of configuration.
var defaultExclusions = map[string]bool{
	"Close":  true,
	"String": true,
}

// Extract loads the reference package and produces the client descriptor.
//
// Zero qualifying endpoint methods is not an error: the descriptor is
// returned with an empty Endpoints slice, and downstream consumers observe
// the regression through Result or the check command.
func Extract(ctx context.Context, opts Options) (*ir.ClientDescriptor, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("no reference package specified")
	}
	if opts.ClientType == "" {
		return nil, fmt.Errorf("no client type specified")
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo |
			packages.NeedModule,
	}

	pkgs, err := packages.Load(cfg, opts.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference package: %w", err)
	}
	var pkg *packages.Package
	for _, p := range pkgs {
		if p.PkgPath == opts.Package {
			pkg = p
			break
		}
	}
	if pkg == nil && len(pkgs) == 1 {
		pkg = pkgs[0]
	}
	if pkg == nil {
		return nil, fmt.Errorf("package %s not found", opts.Package)
	}
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package %s has errors: %v", pkg.PkgPath, pkg.Errors)
	}

	obj := pkg.Types.Scope().Lookup(opts.ClientType)
	if obj == nil {
		return nil, fmt.Errorf("type %s not found in %s", opts.ClientType, pkg.PkgPath)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a type", pkg.PkgPath, opts.ClientType)
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a named type", pkg.PkgPath, opts.ClientType)
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return nil, fmt.Errorf("%s.%s is not a struct type", pkg.PkgPath, opts.ClientType)
	}

	x := &extractor{
		pkg:       pkg,
		named:     named,
		info:      pkg.TypesInfo,
		scope:     pkg.Types.Scope(),
		excluded:  make(map[string]bool),
		fields:    make(map[string]ir.FieldDescriptor),
		badFields: make(map[string]bool),
		methods:   make(map[string]*ast.FuncDecl),
		status:    make(map[string]int),
		deps:      make(map[string][]string),
	}
	for name := range defaultExclusions {
		x.excluded[name] = true
	}
	for _, name := range opts.ExcludeMethods {
		x.excluded[name] = true
	}

	desc := &ir.ClientDescriptor{
		Package:  pkg,
		Named:    named,
		TypeName: opts.ClientType,
	}
	if pkg.Module != nil {
		desc.ModulePath = pkg.Module.Path
		desc.ModuleVersion = pkg.Module.Version
	}

	x.classifyFields(desc)
	x.collectMethods()
	x.extractEndpoints(desc)
	x.collectHelpers(desc)
	x.extractConstructors(desc)

	return desc, nil
}

// extractor accumulates per-run state during extraction.
type extractor struct {
	pkg   *packages.Package
	named *types.Named
	info  *types.Info
	scope *types.Scope

	excluded  map[string]bool
	fields    map[string]ir.FieldDescriptor
	badFields map[string]bool
	methods   map[string]*ast.FuncDecl

	// status memoizes method validation: 0 unknown, 1 visiting/ok, 2 bad.
	status map[string]int
	deps   map[string][]string
}

const (
	statusOK  = 1
	statusBad = 2
)

// classifyFields splits the client struct fields into mirrored config fields
// and blocking transport fields.
func (x *extractor) classifyFields(desc *ir.ClientDescriptor) {
	st := x.named.Underlying().(*types.Struct)
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		fd := ir.FieldDescriptor{
			Name:      f.Name(),
			Type:      f.Type(),
			Transport: isBlockingTransport(f.Type()),
		}
		if !fd.Transport && !x.renderable(f.Type()) {
			desc.Warnings = append(desc.Warnings, ir.Warning{
				Code:    ir.WarnUnsupportedField,
				Message: fmt.Sprintf("field %s has a type private to %s; methods using it are omitted", f.Name(), x.pkg.PkgPath),
			})
			x.badFields[f.Name()] = true
		}
		x.fields[f.Name()] = fd
		desc.Fields = append(desc.Fields, fd)
	}
}

// isBlockingTransport reports whether t is *net/http.Client.
func isBlockingTransport(t types.Type) bool {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	named, ok := ptr.Elem().(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "net/http" && obj.Name() == "Client"
}

// renderable reports whether t can be re-declared outside the reference
// package, i.e. it names no unexported types private to that package.
func (x *extractor) renderable(t types.Type) bool {
	switch typ := t.(type) {
	case *types.Basic:
		return true
	case *types.Named:
		obj := typ.Obj()
		if obj.Pkg() == x.pkg.Types && !obj.Exported() {
			return false
		}
		for i := 0; i < typ.TypeArgs().Len(); i++ {
			if !x.renderable(typ.TypeArgs().At(i)) {
				return false
			}
		}
		return true
	case *types.Alias:
		return x.renderable(types.Unalias(typ))
	case *types.Pointer:
		return x.renderable(typ.Elem())
	case *types.Slice:
		return x.renderable(typ.Elem())
	case *types.Array:
		return x.renderable(typ.Elem())
	case *types.Chan:
		return x.renderable(typ.Elem())
	case *types.Map:
		return x.renderable(typ.Key()) && x.renderable(typ.Elem())
	case *types.Interface:
		return typ.Empty()
	case *types.Struct:
		for i := 0; i < typ.NumFields(); i++ {
			if !x.renderable(typ.Field(i).Type()) {
				return false
			}
		}
		return true
	case *types.Signature:
		for i := 0; i < typ.Params().Len(); i++ {
			if !x.renderable(typ.Params().At(i).Type()) {
				return false
			}
		}
		for i := 0; i < typ.Results().Len(); i++ {
			if !x.renderable(typ.Results().At(i).Type()) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// collectMethods indexes every method declared on the client type.
func (x *extractor) collectMethods() {
	for _, file := range x.pkg.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil {
				continue
			}
			def, ok := x.info.Defs[fn.Name].(*types.Func)
			if !ok {
				continue
			}
			recv := def.Signature().Recv()
			if recv == nil {
				continue
			}
			rt := recv.Type()
			if ptr, ok := rt.(*types.Pointer); ok {
				rt = ptr.Elem()
			}
			if rn, ok := rt.(*types.Named); ok && rn.Obj() == x.named.Obj() {
				x.methods[fn.Name.Name] = fn
			}
		}
	}
}

// extractEndpoints applies the endpoint predicate to every exported method
// and records a descriptor for each qualifying one, in source order.
func (x *extractor) extractEndpoints(desc *ir.ClientDescriptor) {
	names := make([]string, 0, len(x.methods))
	for name := range x.methods {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return x.methods[names[i]].Pos() < x.methods[names[j]].Pos()
	})

	for _, name := range names {
		fn := x.methods[name]
		if !fn.Name.IsExported() || x.excluded[name] {
			continue
		}

		sig := x.info.Defs[fn.Name].(*types.Func).Signature()
		if reason := x.checkSignature(fn, sig); reason != "" {
			desc.Warnings = append(desc.Warnings, ir.Warning{
				Code: ir.WarnUnsupportedSignature, Method: name, Message: reason,
			})
			continue
		}
		if reason := x.methodOK(name); reason != "" {
			desc.Warnings = append(desc.Warnings, ir.Warning{
				Code: ir.WarnUnsupportedReference, Method: name, Message: reason,
			})
			continue
		}

		ep := ir.EndpointDescriptor{
			Name:     name,
			Doc:      fn.Doc.Text(),
			Variadic: sig.Variadic(),
			Decl:     fn,
		}
		for i := 0; i < sig.Params().Len(); i++ {
			p := sig.Params().At(i)
			ep.Params = append(ep.Params, ir.ParamDescriptor{Name: p.Name(), Type: p.Type()})
		}
		for i := 0; i < sig.Results().Len(); i++ {
			rt := sig.Results().At(i).Type()
			ep.Results = append(ep.Results, rt)
			if isReadCloser(rt) {
				ep.Streaming = true
			}
		}
		desc.Endpoints = append(desc.Endpoints, ep)
	}
}

// checkSignature validates the introspectable-signature requirements of an
// endpoint method.
func (x *extractor) checkSignature(fn *ast.FuncDecl, sig *types.Signature) string {
	if fn.Body == nil {
		return "method has no body"
	}
	if _, ok := sig.Recv().Type().(*types.Pointer); !ok {
		return "method has a value receiver"
	}
	for i := 0; i < sig.Params().Len(); i++ {
		p := sig.Params().At(i)
		if p.Name() == "" || p.Name() == "_" {
			return "method has an unnamed parameter"
		}
		if p.Name() == "ctx" {
			return "parameter name ctx collides with the synthesized context parameter"
		}
		if !x.renderable(p.Type()) {
			return fmt.Sprintf("parameter %s has a type private to %s", p.Name(), x.pkg.PkgPath)
		}
	}
	streaming := false
	for i := 0; i < sig.Results().Len(); i++ {
		rt := sig.Results().At(i).Type()
		if isReadCloser(rt) {
			streaming = true
		}
		if !x.renderable(rt) {
			return fmt.Sprintf("result %d has a type private to %s", i, x.pkg.PkgPath)
		}
	}
	if streaming {
		if sig.Results().Len() != 2 || !isReadCloser(sig.Results().At(0).Type()) || !isError(sig.Results().At(1).Type()) {
			return "streaming method must return (io.ReadCloser, error)"
		}
	}
	return ""
}

func isReadCloser(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "io" && obj.Name() == "ReadCloser"
}

func isError(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	return named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}

// methodOK validates the method body and, transitively, every sibling method
// it reaches. It returns an empty string on success or the failure reason.
func (x *extractor) methodOK(name string) string {
	switch x.status[name] {
	case statusOK:
		return ""
	case statusBad:
		return fmt.Sprintf("depends on unsupported method %s", name)
	}
	// Mark as visiting so mutual recursion between siblings terminates.
	x.status[name] = statusOK

	deps, reason := x.validateBody(x.methods[name])
	if reason != "" {
		x.status[name] = statusBad
		return reason
	}
	x.deps[name] = deps
	for _, dep := range deps {
		if x.excluded[dep] {
			x.status[name] = statusBad
			return fmt.Sprintf("calls excluded method %s", dep)
		}
		depDecl := x.methods[dep]
		if depDecl.Name.IsExported() {
			// An exported sibling only gets a twin if its own signature
			// qualifies, so a call into it must check that too.
			depSig := x.info.Defs[depDecl.Name].(*types.Func).Signature()
			if r := x.checkSignature(depDecl, depSig); r != "" {
				x.status[name] = statusBad
				return fmt.Sprintf("calls %s: %s", dep, r)
			}
		}
		if r := x.methodOK(dep); r != "" {
			x.status[name] = statusBad
			return fmt.Sprintf("calls %s: %s", dep, r)
		}
	}
	return ""
}

// validateBody checks that a method body only touches things the rewritten
// twin can express: mirrored fields, the blocking transport in Do position,
// sibling methods in call position, and exported package-level declarations
// of the reference package. It returns the sibling methods the body calls.
func (x *extractor) validateBody(fn *ast.FuncDecl) (deps []string, reason string) {
	var recvVar types.Object
	if len(fn.Recv.List[0].Names) > 0 {
		recvVar = x.info.Defs[fn.Recv.List[0].Names[0]]
	}

	// Pre-pass: record transport selectors appearing as recv.field.Do(...)
	// and selectors appearing in call position.
	sanctioned := make(map[ast.Node]bool)
	callFuns := make(map[ast.Node]bool)
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		outer, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		callFuns[outer] = true
		if outer.Sel.Name != "Do" {
			return true
		}
		inner, ok := outer.X.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		id, ok := inner.X.(*ast.Ident)
		if !ok || recvVar == nil || x.info.Uses[id] != recvVar {
			return true
		}
		if f, ok := x.fields[inner.Sel.Name]; ok && f.Transport {
			sanctioned[inner] = true
		}
		return true
	})

	seen := make(map[string]bool)
	astutil.Apply(fn.Body, func(c *astutil.Cursor) bool {
		if reason != "" {
			return false
		}
		id, ok := c.Node().(*ast.Ident)
		if !ok {
			return true
		}
		obj := x.info.Uses[id]
		if obj == nil {
			return true
		}

		if recvVar != nil && obj == recvVar {
			sel, ok := c.Parent().(*ast.SelectorExpr)
			if !ok || sel.X != id {
				reason = "receiver escapes the method (passed or stored outside a selector)"
				return false
			}
			member := sel.Sel.Name
			switch {
			case x.badFields[member]:
				reason = fmt.Sprintf("uses field %s with an unsupported type", member)
			case fieldIsTransport(x.fields, member):
				if !sanctioned[sel] {
					reason = fmt.Sprintf("uses transport field %s outside a Do call", member)
				}
			case fieldExists(x.fields, member):
				// Mirrored field: fine.
			case x.methods[member] != nil:
				if !callFuns[sel] {
					reason = fmt.Sprintf("takes method %s as a value", member)
					return false
				}
				if !seen[member] {
					seen[member] = true
					deps = append(deps, member)
				}
			default:
				reason = fmt.Sprintf("references unknown member %s", member)
			}
			return true
		}

		// Package-level declarations of the reference package must be
		// exported so the generated code can qualify them.
		if obj.Pkg() == x.pkg.Types && x.scope.Lookup(id.Name) == obj {
			if !id.IsExported() && obj != x.named.Obj() {
				reason = fmt.Sprintf("references unexported package-level %s", id.Name)
			}
		}
		return true
	}, nil)

	return deps, reason
}

func fieldExists(fields map[string]ir.FieldDescriptor, name string) bool {
	_, ok := fields[name]
	return ok
}

func fieldIsTransport(fields map[string]ir.FieldDescriptor, name string) bool {
	f, ok := fields[name]
	return ok && f.Transport
}

// collectHelpers gathers the unexported methods reachable from the accepted
// endpoints, in source order.
func (x *extractor) collectHelpers(desc *ir.ClientDescriptor) {
	reach := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		for _, dep := range x.deps[name] {
			decl := x.methods[dep]
			if decl == nil || decl.Name.IsExported() || reach[dep] {
				continue
			}
			reach[dep] = true
			visit(dep)
		}
	}
	for _, ep := range desc.Endpoints {
		visit(ep.Name)
	}

	names := make([]string, 0, len(reach))
	for name := range reach {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return x.methods[names[i]].Pos() < x.methods[names[j]].Pos()
	})
	for _, name := range names {
		decl := x.methods[name]
		desc.Helpers = append(desc.Helpers, ir.FuncDescriptor{
			Name: name,
			Decl: decl,
			Sig:  x.info.Defs[decl.Name].(*types.Func).Signature(),
		})
	}
}

// extractConstructors captures the exported package functions returning the
// client type, for rewriting into dual-mode constructors.
func (x *extractor) extractConstructors(desc *ir.ClientDescriptor) {
	type ctor struct {
		decl *ast.FuncDecl
		sig  *types.Signature
	}
	var ctors []ctor
	for _, file := range x.pkg.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !fn.Name.IsExported() {
				continue
			}
			def, ok := x.info.Defs[fn.Name].(*types.Func)
			if !ok {
				continue
			}
			sig := def.Signature()
			if x.returnsClient(sig) {
				ctors = append(ctors, ctor{fn, sig})
			}
		}
	}
	sort.Slice(ctors, func(i, j int) bool { return ctors[i].decl.Pos() < ctors[j].decl.Pos() })

	for _, c := range ctors {
		if reason := x.checkConstructor(c.decl, c.sig); reason != "" {
			desc.Warnings = append(desc.Warnings, ir.Warning{
				Code: ir.WarnUnsupportedConstructor, Method: c.decl.Name.Name, Message: reason,
			})
			continue
		}
		desc.Constructors = append(desc.Constructors, ir.FuncDescriptor{
			Name: c.decl.Name.Name,
			Decl: c.decl,
			Sig:  c.sig,
		})
	}
}

// returnsClient reports whether the first result is *Client.
func (x *extractor) returnsClient(sig *types.Signature) bool {
	if sig.Results().Len() == 0 {
		return false
	}
	ptr, ok := sig.Results().At(0).Type().(*types.Pointer)
	if !ok {
		return false
	}
	named, ok := ptr.Elem().(*types.Named)
	return ok && named.Obj() == x.named.Obj()
}

// checkConstructor validates that a constructor is rewritable: plain
// parameters, a recognized result shape, and a keyed client literal.
func (x *extractor) checkConstructor(fn *ast.FuncDecl, sig *types.Signature) string {
	if fn.Body == nil {
		return "constructor has no body"
	}
	switch sig.Results().Len() {
	case 1:
	case 2:
		if !isError(sig.Results().At(1).Type()) {
			return "second result is not error"
		}
	default:
		return "unsupported result arity"
	}
	for i := 0; i < sig.Params().Len(); i++ {
		p := sig.Params().At(i)
		if p.Name() == "" || p.Name() == "_" {
			return "constructor has an unnamed parameter"
		}
		if _, ok := p.Type().Underlying().(*types.Signature); ok {
			return fmt.Sprintf("parameter %s is a function (functional options are not rewritable)", p.Name())
		}
		if !x.renderable(p.Type()) {
			return fmt.Sprintf("parameter %s has a type private to %s", p.Name(), x.pkg.PkgPath)
		}
	}

	lit := x.clientLiteral(fn.Body)
	if lit == nil {
		return "constructor does not build the client with a composite literal"
	}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return "client literal has unkeyed fields"
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return "client literal has a non-identifier key"
		}
		if x.badFields[key.Name] {
			return fmt.Sprintf("client literal sets field %s with an unsupported type", key.Name)
		}
	}

	if _, reason := x.validateBody(&ast.FuncDecl{Recv: &ast.FieldList{List: []*ast.Field{{}}}, Name: fn.Name, Body: fn.Body}); reason != "" {
		return reason
	}
	return ""
}

// clientLiteral finds the single composite literal of the client type in a
// constructor body, unwrapping an enclosing &.
func (x *extractor) clientLiteral(body *ast.BlockStmt) *ast.CompositeLit {
	var lit *ast.CompositeLit
	count := 0
	ast.Inspect(body, func(n ast.Node) bool {
		cl, ok := n.(*ast.CompositeLit)
		if !ok || cl.Type == nil {
			return true
		}
		tv, ok := x.info.Types[cl.Type]
		if !ok {
			return true
		}
		if named, ok := tv.Type.(*types.Named); ok && named.Obj() == x.named.Obj() {
			lit = cl
			count++
		}
		return true
	})
	if count != 1 {
		return nil
	}
	return lit
}
