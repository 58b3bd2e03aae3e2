// Package enumvalidator flags string literals assigned to enum-typed struct
// fields. Every named string type with declared constants (ChangeCategory,
// ChannelType, Priority, ...) counts as an enum: assigning a raw literal
// bypasses the constant set and is how typos ship.
package enumvalidator

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "enumvalidator",
	Doc:      "reports string literals assigned to enum-typed struct fields",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	ins := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	ins.Preorder([]ast.Node{(*ast.AssignStmt)(nil)}, func(n ast.Node) {
		assign := n.(*ast.AssignStmt)
		for i, lhs := range assign.Lhs {
			if i >= len(assign.Rhs) {
				break
			}

			sel, ok := lhs.(*ast.SelectorExpr)
			if !ok {
				continue
			}

			lit, ok := assign.Rhs[i].(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}

			// Only struct field selections, not package-qualified names
			selection, ok := pass.TypesInfo.Selections[sel]
			if !ok || selection.Kind() != types.FieldVal {
				continue
			}

			if !isStringEnum(selection.Obj().Type()) {
				continue
			}

			pass.Reportf(assign.Pos(), "enum field %s assigned string literal", sel.Sel.Name)
		}
	})

	return nil, nil
}

// isStringEnum reports whether t is a defined type whose underlying type is
// string. Plain string and aliases of it resolve to *types.Basic and fall out.
func isStringEnum(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	basic, ok := named.Underlying().(*types.Basic)
	return ok && basic.Kind() == types.String
}
