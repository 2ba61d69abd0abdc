package callgraph

import (
	"testing"

	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
	"github.com/seclab-ucsb/turi-go/internal/obslog"
)

func block(label string, stmts ...ir.Stmt) *ir.Block {
	return &ir.Block{Label: label, Statements: stmts}
}

func methodOf(class, name string, blocks ...*ir.Block) *ir.Method {
	byLabel := make(map[string]*ir.Block, len(blocks))
	for _, b := range blocks {
		byLabel[b.Label] = b
	}
	return &ir.Method{
		ClassName: class, Name: name,
		Attrs:        map[string]struct{}{},
		Blocks:       blocks,
		BlockByLabel: byLabel,
	}
}

// TestPrev_MatchesInvokesResolvingToTarget covers spec §8 testable property
// 3: CallGraph.Prev(m) equals the set of methods c such that some Block of
// c contains an Invoke resolving to m.
func TestPrev_MatchesInvokesResolvingToTarget(t *testing.T) {
	callee := methodOf("Callee", "m", block("r", &ir.ReturnVoidStmt{}))
	classCallee := &ir.Class{Name: "Callee", Attrs: map[string]struct{}{}, Methods: []*ir.Method{callee}}

	callExpr := &ir.InvokeExpr{Invoke: ir.StaticInvoke, ClassName: "Callee", MethodName: "m"}
	callStmt := &ir.InvokeStmt{InvokeExpr: callExpr}
	callerBlock := block("c", callStmt, &ir.ReturnVoidStmt{})
	caller := methodOf("Caller", "main", callerBlock)
	classCaller := &ir.Class{Name: "Caller", Attrs: map[string]struct{}{}, Methods: []*ir.Method{caller}}

	other := methodOf("Other", "noop", block("b0", &ir.ReturnVoidStmt{}))
	classOther := &ir.Class{Name: "Other", Attrs: map[string]struct{}{}, Methods: []*ir.Method{other}}

	idx, err := index.Build([]*ir.Class{classCallee, classCaller, classOther})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	g := Build(idx, h, obslog.Nop())

	prev := g.Prev(callee)
	if len(prev) != 1 || prev[0] != caller {
		t.Fatalf("expected Prev(Callee.m) = [Caller.main], got %v", prev)
	}

	next := g.Next(caller)
	if len(next) != 1 || next[0] != callee {
		t.Fatalf("expected Next(Caller.main) = [Callee.m], got %v", next)
	}

	sites := g.CallSites(caller, callee)
	if len(sites) != 1 || sites[0] != callExpr {
		t.Errorf("expected call site to be the recorded InvokeExpr, got %v", sites)
	}

	if prevOther := g.Prev(other); len(prevOther) != 0 {
		t.Errorf("expected Other.noop to have no predecessors, got %v", prevOther)
	}
}

// TestBuild_VirtualDispatchFansOutToEveryOverride covers scenario 2's
// dispatch-to-all-overrides behavior at the call-graph level.
func TestBuild_VirtualDispatchFansOutToEveryOverride(t *testing.T) {
	mA := methodOf("A", "m", block("b0", &ir.ReturnVoidStmt{}))
	mB := methodOf("B", "m", block("b0", &ir.ReturnVoidStmt{}))
	classA := &ir.Class{Name: "A", Attrs: map[string]struct{}{}, Methods: []*ir.Method{mA}}
	classB := &ir.Class{Name: "B", SuperClass: "A", Attrs: map[string]struct{}{}, Methods: []*ir.Method{mB}}

	callExpr := &ir.InvokeExpr{Invoke: ir.VirtualInvoke, ClassName: "A", MethodName: "m"}
	callerBlock := block("c", &ir.InvokeStmt{InvokeExpr: callExpr}, &ir.ReturnVoidStmt{})
	caller := methodOf("Caller", "main", callerBlock)
	classCaller := &ir.Class{Name: "Caller", Attrs: map[string]struct{}{}, Methods: []*ir.Method{caller}}

	idx, err := index.Build([]*ir.Class{classA, classB, classCaller})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	g := Build(idx, h, obslog.Nop())

	next := g.Next(caller)
	if len(next) != 2 {
		t.Fatalf("expected edges to both A.m and B.m, got %v", next)
	}
}

// TestBuild_DropsExternalTargets covers spec §4.5: invokes to classes
// outside the project produce no edge.
func TestBuild_DropsExternalTargets(t *testing.T) {
	callExpr := &ir.InvokeExpr{Invoke: ir.StaticInvoke, ClassName: "java.lang.String", MethodName: "valueOf"}
	callerBlock := block("c", &ir.InvokeStmt{InvokeExpr: callExpr}, &ir.ReturnVoidStmt{})
	caller := methodOf("Caller", "main", callerBlock)
	classCaller := &ir.Class{Name: "Caller", Attrs: map[string]struct{}{}, Methods: []*ir.Method{caller}}

	idx, err := index.Build([]*ir.Class{classCaller})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	g := Build(idx, h, obslog.Nop())
	if next := g.Next(caller); len(next) != 0 {
		t.Errorf("expected no edges for external invoke, got %v", next)
	}
}
