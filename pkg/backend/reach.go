package backend

import (
	"cfront/pkg/compiler"
)

// liveFunctions returns the function definitions of unit that can be
// reached from an externally visible function or from a file-scope
// initializer. Static functions nothing refers to, which includes every
// unused builtin, are left out.
func liveFunctions(unit *compiler.TranslationUnit) []*compiler.FunctionDecl {
	funcs := make(map[string]*compiler.FunctionDecl)
	for _, f := range unit.Functions() {
		funcs[f.Name] = f
	}

	reachable := make(map[string]bool)
	var worklist []string
	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}

	for _, f := range unit.Functions() {
		if f.Storage != compiler.StorageStatic {
			addReachable(f.Name)
		}
	}
	for _, s := range unit.Decls {
		if decl, ok := s.(*compiler.VariableDecl); ok && decl.Init != nil {
			refs := make(map[string]bool)
			findRefsExpr(decl.Init, refs)
			for name := range refs {
				addReachable(name)
			}
		}
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		fDecl, exists := funcs[curr]
		if !exists {
			continue // external
		}
		refs := make(map[string]bool)
		findRefsStmt(fDecl.Body, refs)
		for name := range refs {
			addReachable(name)
		}
	}

	var live []*compiler.FunctionDecl
	for _, f := range unit.Functions() {
		if reachable[f.Name] {
			live = append(live, f)
		}
	}
	return live
}

// findRefsExpr collects the functions e calls or takes the address of.
func findRefsExpr(e compiler.Expr, refs map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *compiler.VarRef:
		if n.Sym != nil && n.Sym.Kind == compiler.SymFunc {
			refs[n.Name] = true
		}
	case *compiler.CallExpr:
		findRefsExpr(n.Func, refs)
		for _, arg := range n.Args {
			findRefsExpr(arg, refs)
		}
	case *compiler.BinaryExpr:
		findRefsExpr(n.Left, refs)
		findRefsExpr(n.Right, refs)
	case *compiler.LogicalExpr:
		findRefsExpr(n.Left, refs)
		findRefsExpr(n.Right, refs)
	case *compiler.AssignExpr:
		findRefsExpr(n.Left, refs)
		findRefsExpr(n.Right, refs)
	case *compiler.CommaExpr:
		findRefsExpr(n.Left, refs)
		findRefsExpr(n.Right, refs)
	case *compiler.UnaryExpr:
		findRefsExpr(n.Right, refs)
	case *compiler.PostfixExpr:
		findRefsExpr(n.Left, refs)
	case *compiler.CastExpr:
		findRefsExpr(n.Expr, refs)
	case *compiler.IndexExpr:
		findRefsExpr(n.Left, refs)
		findRefsExpr(n.Index, refs)
	case *compiler.MemberExpr:
		findRefsExpr(n.Left, refs)
	case *compiler.ConditionalExpr:
		findRefsExpr(n.Cond, refs)
		findRefsExpr(n.Then, refs)
		findRefsExpr(n.Else, refs)
	case *compiler.InitializerList:
		for _, el := range n.Elements {
			findRefsExpr(el, refs)
		}
	case *compiler.SizeofExpr, *compiler.IntLiteral, *compiler.FloatLiteral, *compiler.StringLiteral:
		// operands of sizeof are not evaluated
	}
}

// findRefsStmt collects the functions s calls or takes the address of.
func findRefsStmt(s compiler.Stmt, refs map[string]bool) {
	if s == nil {
		return
	}
	switch n := s.(type) {
	case *compiler.VariableDecl:
		findRefsExpr(n.Init, refs)
	case *compiler.DeclStmt:
		for _, d := range n.Decls {
			findRefsExpr(d.Init, refs)
		}
	case *compiler.ReturnStmt:
		findRefsExpr(n.Expr, refs)
	case *compiler.BlockStmt:
		for _, child := range n.Stmts {
			findRefsStmt(child, refs)
		}
	case *compiler.IfStmt:
		findRefsExpr(n.Condition, refs)
		findRefsStmt(n.Body, refs)
		findRefsStmt(n.ElseBody, refs)
	case *compiler.WhileStmt:
		findRefsExpr(n.Condition, refs)
		findRefsStmt(n.Body, refs)
	case *compiler.DoWhileStmt:
		findRefsStmt(n.Body, refs)
		findRefsExpr(n.Condition, refs)
	case *compiler.ForStmt:
		findRefsStmt(n.Init, refs)
		findRefsExpr(n.Cond, refs)
		findRefsExpr(n.Post, refs)
		findRefsStmt(n.Body, refs)
	case *compiler.ExprStmt:
		findRefsExpr(n.Expr, refs)
	case *compiler.LabeledStmt:
		findRefsStmt(n.Body, refs)
	case *compiler.SwitchStmt:
		findRefsExpr(n.Target, refs)
		for _, clause := range n.Clauses {
			for _, child := range clause.Body {
				findRefsStmt(child, refs)
			}
		}
	case *compiler.AsmStmt, *compiler.FunctionDecl, *compiler.TypedefStmt, *compiler.TagDecl:
		// nothing evaluated
	}
}
