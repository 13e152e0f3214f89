// Package analyzer checks workflow functions for constructs that break deterministic replay.
package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = New()

// New returns a new instance of the analyzer. Use when flags need to be set independently.
func New() *analysis.Analyzer {
	a := &analysis.Analyzer{
		Name:     "orchestrator",
		Doc:      "Checks workflows for non-deterministic code and invalid signatures",
		Requires: []*analysis.Analyzer{inspect.Analyzer},
	}

	checkRandom := a.Flags.Bool("checkrandom", true, "report use of math/rand in workflows")

	a.Run = func(pass *analysis.Pass) (interface{}, error) {
		return run(pass, *checkRandom)
	}

	return a
}

// Replacements for functions that read the wall clock or wait on it
var timeReplacements = map[string]string{
	"Now":       "workflow.Now",
	"Since":     "workflow.Now",
	"Until":     "workflow.Now",
	"Sleep":     "workflow.Sleep",
	"After":     "workflow.ScheduleTimer",
	"AfterFunc": "workflow.ScheduleTimer",
	"NewTimer":  "workflow.ScheduleTimer",
	"NewTicker": "workflow.ScheduleTimer",
	"Tick":      "workflow.ScheduleTimer",
}

func run(pass *analysis.Pass, checkRandom bool) (interface{}, error) {
	inspector := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.FuncDecl)(nil)}

	inspector.Preorder(nodeFilter, func(node ast.Node) {
		funcDecl := node.(*ast.FuncDecl)

		if !isWorkflow(funcDecl) {
			return
		}

		checkSignature(pass, funcDecl)

		if funcDecl.Body == nil {
			return
		}

		ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.RangeStmt:
				t := pass.TypesInfo.TypeOf(n.X)
				if t == nil {
					return true
				}

				if _, ok := t.Underlying().(*types.Map); ok {
					pass.Reportf(n.Pos(), "iterating over a map is not deterministic and not allowed in workflows")
				}

			case *ast.GoStmt:
				pass.Reportf(n.Pos(), "goroutines are not allowed in workflows, schedule activities or sub-workflows instead")

			case *ast.SelectStmt:
				pass.Reportf(n.Pos(), "select is not deterministic and not allowed in workflows")

			case *ast.CallExpr:
				checkCall(pass, n, checkRandom)
			}

			return true
		})
	})

	return nil, nil
}

func checkSignature(pass *analysis.Pass, funcDecl *ast.FuncDecl) {
	if params := funcDecl.Type.Params.NumFields(); params > 2 {
		pass.Reportf(funcDecl.Pos(), "workflow %q accepts more than one input", funcDecl.Name.Name)
	}

	if funcDecl.Type.Results == nil || len(funcDecl.Type.Results.List) == 0 {
		pass.Reportf(funcDecl.Pos(), "workflow %q doesn't return anything. needs to return at least `error`", funcDecl.Name.Name)
		return
	}

	if funcDecl.Type.Results.NumFields() > 2 {
		pass.Reportf(funcDecl.Pos(), "workflow %q returns more than two values", funcDecl.Name.Name)
		return
	}

	lastResult := funcDecl.Type.Results.List[len(funcDecl.Type.Results.List)-1]
	if types.ExprString(lastResult.Type) != "error" {
		pass.Reportf(funcDecl.Pos(), "workflow %q doesn't return `error` as last return value", funcDecl.Name.Name)
	}
}

func checkCall(pass *analysis.Pass, call *ast.CallExpr, checkRandom bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}

	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return
	}

	// Methods, e.g. on a *rand.Rand, are not checked
	if sig, ok := fn.Type().(*types.Signature); ok && sig.Recv() != nil {
		return
	}

	switch fn.Pkg().Path() {
	case "time":
		if replacement, ok := timeReplacements[fn.Name()]; ok {
			pass.Reportf(call.Pos(), "time.%s is not deterministic, use %s in workflows", fn.Name(), replacement)
		}

	case "math/rand", "math/rand/v2", "crypto/rand":
		if checkRandom {
			pass.Reportf(call.Pos(), "random numbers are not deterministic, generate them in an activity")
		}
	}
}

func isWorkflow(funcDecl *ast.FuncDecl) bool {
	params := funcDecl.Type.Params.List

	// Need at least workflow.Context
	if len(params) < 1 {
		return false
	}

	firstParam, ok := params[0].Type.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	xname, ok := firstParam.X.(*ast.Ident)
	if !ok {
		return false
	}

	return xname.Name+"."+firstParam.Sel.Name == "workflow.Context"
}
