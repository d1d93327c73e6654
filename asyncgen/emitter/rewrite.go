package emitter

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"reflect"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/uezo/aiolinebot/asyncgen/ir"
)

// rewriter applies the twin rewrite rules to one captured declaration:
//
//   - a leading ctx context.Context parameter is prepended and threaded
//     through sibling calls;
//   - recv.<transport>.Do(req) becomes recv.session().Do(ctx, req);
//   - http.NewRequest becomes http.NewRequestWithContext;
//   - calls to sibling endpoint methods are renamed to their twins;
//   - identifiers resolving to exported package-level declarations of the
//     reference package are qualified, so both surfaces share the reference
//     package's models, constants and error types.
type rewriter struct {
	e    *Emitter
	decl *ast.FuncDecl
	info *types.Info

	recvVar types.Object
	hasCtx  bool
}

func (e *Emitter) newRewriter(decl *ast.FuncDecl) *rewriter {
	r := &rewriter{e: e, decl: decl, info: e.desc.Package.TypesInfo}
	if decl.Recv != nil && len(decl.Recv.List) > 0 && len(decl.Recv.List[0].Names) > 0 {
		r.recvVar = r.info.Defs[decl.Recv.List[0].Names[0]]
	}
	return r
}

// rewriteMethod turns a captured endpoint or helper method into its
// context-aware form under the given name.
func (r *rewriter) rewriteMethod(name string) error {
	r.hasCtx = true
	r.decl.Name = ast.NewIdent(name)
	// The receiver becomes the generated client type.
	r.decl.Recv.List[0].Type = &ast.StarExpr{X: ast.NewIdent("Client")}
	r.prependCtxParam()
	return r.apply()
}

// rewriteConstructor turns a captured constructor into its dual-mode form:
// same name and signature, result type swapped to the generated client, the
// embedded sync client constructed first from the same arguments, and the
// client literal adjusted (transport initializer folded into the session
// timeout, embedded sync client added).
func (r *rewriter) rewriteConstructor(fn *ir.FuncDescriptor) error {
	r.decl.Type.Results.List[0].Type = &ast.StarExpr{X: ast.NewIdent("Client")}

	lit := r.clientLiteral()
	if lit == nil {
		return fmt.Errorf("client literal not found")
	}
	r.rewriteClientLiteral(lit)
	r.insertSyncConstruction(fn)
	if err := r.apply(); err != nil {
		return err
	}
	// The literal rewrite mixes synthesized nodes into positioned source;
	// stale offsets would make the printer interleave one-line and
	// multi-line layout. Strip positions so the constructor prints
	// canonically.
	clearPositions(r.decl)
	return nil
}

// clearPositions strips token positions from a rewritten declaration so the
// printer lays it out canonically. Ellipsis and Assign positions stay valid
// when set: a valid position is what marks a variadic call or an alias
// declaration.
func clearPositions(node ast.Node) {
	posType := reflect.TypeOf(token.NoPos)
	ast.Inspect(node, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		v := reflect.ValueOf(n).Elem()
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if f.Type() != posType {
				continue
			}
			name := v.Type().Field(i).Name
			if (name == "Ellipsis" || name == "Assign") && token.Pos(f.Int()).IsValid() {
				f.SetInt(1)
				continue
			}
			f.SetInt(0)
		}
		return true
	})
}

func (r *rewriter) prependCtxParam() {
	ctxField := &ast.Field{
		Names: []*ast.Ident{ast.NewIdent("ctx")},
		Type:  &ast.SelectorExpr{X: ast.NewIdent("context"), Sel: ast.NewIdent("Context")},
	}
	r.decl.Type.Params.List = append([]*ast.Field{ctxField}, r.decl.Type.Params.List...)
}

// apply walks the declaration and applies the rewrite rules in place.
func (r *rewriter) apply() error {
	var failure error
	astutil.Apply(r.decl, func(c *astutil.Cursor) bool {
		if failure != nil {
			return false
		}
		switch n := c.Node().(type) {
		case *ast.CallExpr:
			if r.hasCtx {
				if r.rewriteTransportCall(c, n) {
					return true
				}
				r.rewriteNewRequest(n)
				r.rewriteSiblingCall(n)
			}
		case *ast.Ident:
			if err := r.rewriteIdent(c, n); err != nil {
				failure = err
				return false
			}
		}
		return true
	}, nil)
	return failure
}

// rewriteTransportCall replaces recv.<transport>.Do(req) with
// recv.session().Do(ctx, req).
func (r *rewriter) rewriteTransportCall(c *astutil.Cursor, call *ast.CallExpr) bool {
	outer, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || outer.Sel.Name != "Do" {
		return false
	}
	inner, ok := outer.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	id, ok := inner.X.(*ast.Ident)
	if !ok || r.recvVar == nil || r.info.Uses[id] != r.recvVar {
		return false
	}
	f, ok := r.e.fieldsByName[inner.Sel.Name]
	if !ok || !f.Transport {
		return false
	}

	c.Replace(&ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X: &ast.CallExpr{
				Fun: &ast.SelectorExpr{X: ast.NewIdent(id.Name), Sel: ast.NewIdent("session")},
			},
			Sel: ast.NewIdent("Do"),
		},
		Args:     append([]ast.Expr{ast.NewIdent("ctx")}, call.Args...),
		Ellipsis: call.Ellipsis,
	})
	return true
}

// rewriteNewRequest switches request construction onto the caller's context.
func (r *rewriter) rewriteNewRequest(call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "NewRequest" {
		return
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok {
		return
	}
	pkgName, ok := r.info.Uses[id].(*types.PkgName)
	if !ok || pkgName.Imported().Path() != "net/http" {
		return
	}
	sel.Sel = ast.NewIdent("NewRequestWithContext")
	call.Args = append([]ast.Expr{ast.NewIdent("ctx")}, call.Args...)
}

// rewriteSiblingCall renames recv.<method>(args) to the method's twin and
// threads ctx through. Unexported helpers keep their names; exported
// endpoints get the Async suffix; streaming endpoints are called through the
// inner method so the raw body type is preserved.
func (r *rewriter) rewriteSiblingCall(call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok || r.recvVar == nil || r.info.Uses[id] != r.recvVar {
		return
	}
	name := sel.Sel.Name
	if ep, ok := r.e.endpointByName[name]; ok {
		if ep.Streaming {
			sel.Sel = ast.NewIdent(innerStreamName(name))
		} else {
			sel.Sel = ast.NewIdent(name + "Async")
		}
	} else if !r.e.helperNames[name] {
		return
	}
	call.Args = append([]ast.Expr{ast.NewIdent("ctx")}, call.Args...)
}

// rewriteIdent qualifies references to exported package-level declarations of
// the reference package and records imports the body carries over.
func (r *rewriter) rewriteIdent(c *astutil.Cursor, id *ast.Ident) error {
	obj := r.info.Uses[id]
	if obj == nil {
		return nil
	}
	if pkgName, ok := obj.(*types.PkgName); ok {
		r.e.ensureImport(pkgName.Imported().Path(), pkgName.Name())
		return nil
	}
	// Never touch the Sel of a selector; qualification happens on the base
	// identifier only.
	if parent, ok := c.Parent().(*ast.SelectorExpr); ok && parent.Sel == id {
		return nil
	}
	refTypes := r.e.desc.Package.Types
	if obj.Pkg() != refTypes {
		return nil
	}
	if r.e.desc.Package.Types.Scope().Lookup(id.Name) != obj {
		return nil
	}
	if !id.IsExported() {
		return fmt.Errorf("%s references unexported package-level %s", r.decl.Name.Name, id.Name)
	}
	refName := r.e.ensureImport(r.e.desc.Package.PkgPath, r.e.refName)
	c.Replace(&ast.SelectorExpr{X: ast.NewIdent(refName), Sel: ast.NewIdent(id.Name)})
	return nil
}

// clientLiteral finds the constructor's composite literal of the client type.
func (r *rewriter) clientLiteral() *ast.CompositeLit {
	var lit *ast.CompositeLit
	ast.Inspect(r.decl.Body, func(n ast.Node) bool {
		cl, ok := n.(*ast.CompositeLit)
		if !ok || cl.Type == nil {
			return true
		}
		tv, ok := r.info.Types[cl.Type]
		if !ok {
			return true
		}
		if named, ok := tv.Type.(*types.Named); ok && named.Obj() == r.e.desc.Named.Obj() {
			lit = cl
			return false
		}
		return true
	})
	return lit
}

// rewriteClientLiteral retypes the literal to the generated client, drops the
// blocking transport initializer (folding a plain timeout into the session
// timeout) and wires in the embedded sync client.
func (r *rewriter) rewriteClientLiteral(lit *ast.CompositeLit) {
	lit.Type = ast.NewIdent("Client")

	elts := []ast.Expr{&ast.KeyValueExpr{
		Key:   ast.NewIdent(r.e.desc.TypeName),
		Value: ast.NewIdent("syncClient"),
	}}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			continue
		}
		f, isField := r.e.fieldsByName[key.Name]
		if isField && f.Transport {
			if timeout := r.transportTimeout(kv.Value); timeout != nil {
				elts = append(elts, &ast.KeyValueExpr{
					Key:   ast.NewIdent("sessionTimeout"),
					Value: timeout,
				})
			}
			continue
		}
		elts = append(elts, kv)
	}
	lit.Elts = elts
}

// transportTimeout extracts the Timeout value from a &http.Client{...}
// initializer, if that is what the transport field is set to.
func (r *rewriter) transportTimeout(value ast.Expr) ast.Expr {
	unary, ok := value.(*ast.UnaryExpr)
	if !ok || unary.Op != token.AND {
		return nil
	}
	cl, ok := unary.X.(*ast.CompositeLit)
	if !ok || cl.Type == nil {
		return nil
	}
	tv, ok := r.info.Types[cl.Type]
	if !ok {
		return nil
	}
	named, ok := tv.Type.(*types.Named)
	if !ok || named.Obj().Pkg() == nil || named.Obj().Pkg().Path() != "net/http" || named.Obj().Name() != "Client" {
		return nil
	}
	for _, elt := range cl.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		if key, ok := kv.Key.(*ast.Ident); ok && key.Name == "Timeout" {
			return kv.Value
		}
	}
	return nil
}

// insertSyncConstruction prepends construction of the embedded sync client
// from the constructor's own arguments.
func (r *rewriter) insertSyncConstruction(fn *ir.FuncDescriptor) {
	refName := r.e.ensureImport(r.e.desc.Package.PkgPath, r.e.refName)
	call := &ast.CallExpr{
		Fun: &ast.SelectorExpr{X: ast.NewIdent(refName), Sel: ast.NewIdent(fn.Name)},
	}
	params := fn.Sig.Params()
	for i := 0; i < params.Len(); i++ {
		call.Args = append(call.Args, ast.NewIdent(params.At(i).Name()))
	}
	if fn.Sig.Variadic() {
		call.Ellipsis = token.Pos(1)
	}

	var stmts []ast.Stmt
	if fn.Sig.Results().Len() == 2 {
		stmts = append(stmts,
			&ast.AssignStmt{
				Lhs: []ast.Expr{ast.NewIdent("syncClient"), ast.NewIdent("syncErr")},
				Tok: token.DEFINE,
				Rhs: []ast.Expr{call},
			},
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{X: ast.NewIdent("syncErr"), Op: token.NEQ, Y: ast.NewIdent("nil")},
				Body: &ast.BlockStmt{List: []ast.Stmt{
					&ast.ReturnStmt{Results: []ast.Expr{ast.NewIdent("nil"), ast.NewIdent("syncErr")}},
				}},
			},
		)
	} else {
		stmts = append(stmts, &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent("syncClient")},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{call},
		})
	}
	r.decl.Body.List = append(stmts, r.decl.Body.List...)
}
