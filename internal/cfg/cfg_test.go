package cfg

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

// TestGotoSuppressesFallThrough covers spec §8 scenario 3, case 1.
func TestGotoSuppressesFallThrough(t *testing.T) {
	b0 := block("b0", &ir.GotoStmt{Target: "b2"})
	b1 := block("b1", &ir.ReturnVoidStmt{})
	b2 := block("b2", &ir.ReturnVoidStmt{})
	m := methodOf("C", "f", b0, b1, b2)

	g := BuildIntra(m, obslog.Nop())

	if got := g.Succ[b0]; len(got) != 1 || got[0] != b2 {
		t.Errorf("expected b0 -> [b2] only, got %v", got)
	}
}

// TestSystemExitSuppressesFallThrough covers scenario 3, case 2.
func TestSystemExitSuppressesFallThrough(t *testing.T) {
	exitCall := &ir.InvokeStmt{InvokeExpr: &ir.InvokeExpr{
		Invoke: ir.StaticInvoke, ClassName: "java.lang.System", MethodName: "exit", MethodParams: []string{"int"},
	}}
	b0 := block("b0", exitCall)
	b1 := block("b1", &ir.ReturnVoidStmt{})
	m := methodOf("C", "f", b0, b1)

	g := BuildIntra(m, obslog.Nop())

	if got := g.Succ[b0]; len(got) != 0 {
		t.Errorf("expected no fall-through after System.exit, got %v", got)
	}
}

// TestOrdinaryInvokeFallsThrough covers scenario 3, case 3.
func TestOrdinaryInvokeFallsThrough(t *testing.T) {
	call := &ir.InvokeStmt{InvokeExpr: &ir.InvokeExpr{
		Invoke: ir.StaticInvoke, ClassName: "C", MethodName: "g", MethodParams: nil,
	}}
	b0 := block("b0", call)
	b1 := block("b1", &ir.ReturnVoidStmt{})
	m := methodOf("C", "f", b0, b1)

	g := BuildIntra(m, obslog.Nop())

	if got := g.Succ[b0]; len(got) != 1 || got[0] != b1 {
		t.Errorf("expected exactly one fall-through edge to b1, got %v", got)
	}
}

// TestReturnEdgeRoundTrip covers spec §8 scenario 4.
func TestReturnEdgeRoundTrip(t *testing.T) {
	calleeEntry := block("r", &ir.ReturnStmt{Value: &ir.Local{Name: "r0"}})
	callee := methodOf("Callee", "m", calleeEntry)

	callExpr := &ir.InvokeExpr{Invoke: ir.StaticInvoke, ClassName: "Callee", MethodName: "m"}
	callStmt := &ir.AssignStmt{LeftOp: &ir.Local{Name: "r1"}, RightOp: callExpr}
	callerBlock := block("c", callStmt, &ir.ReturnVoidStmt{})
	caller := methodOf("Caller", "main", callerBlock)

	classCallee := &ir.Class{Name: "Callee", Attrs: map[string]struct{}{}, Methods: []*ir.Method{callee}}
	classCaller := &ir.Class{Name: "Caller", Attrs: map[string]struct{}{}, Methods: []*ir.Method{caller}}

	idx, err := index.Build([]*ir.Class{classCallee, classCaller})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	full := BuildFull(idx, h, true, obslog.Nop())

	foundCallToEntry := false
	for _, s := range full.Succ[callerBlock] {
		if s == calleeEntry {
			foundCallToEntry = true
		}
	}
	if !foundCallToEntry {
		t.Errorf("expected c -> entry(m) edge")
	}

	foundReturnToCall := false
	for _, s := range full.Succ[calleeEntry] {
		if s == callerBlock {
			foundReturnToCall = true
		}
	}
	if !foundReturnToCall {
		t.Errorf("expected r -> c return edge")
	}
}

// TestReturnEdgeRoundTrip_VoidCallee covers the ReturnVoid half of scenario
// 4: a void-returning callee (the common case for constructors and
// setters) still gets a return edge back to its call site.
func TestReturnEdgeRoundTrip_VoidCallee(t *testing.T) {
	calleeEntry := block("r", &ir.ReturnVoidStmt{})
	callee := methodOf("Callee", "m", calleeEntry)

	callExpr := &ir.InvokeExpr{Invoke: ir.StaticInvoke, ClassName: "Callee", MethodName: "m"}
	callStmt := &ir.InvokeStmt{InvokeExpr: callExpr}
	callerBlock := block("c", callStmt, &ir.ReturnVoidStmt{})
	caller := methodOf("Caller", "main", callerBlock)

	classCallee := &ir.Class{Name: "Callee", Attrs: map[string]struct{}{}, Methods: []*ir.Method{callee}}
	classCaller := &ir.Class{Name: "Caller", Attrs: map[string]struct{}{}, Methods: []*ir.Method{caller}}

	idx, err := index.Build([]*ir.Class{classCallee, classCaller})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	full := BuildFull(idx, h, true, obslog.Nop())

	foundReturnToCall := false
	for _, s := range full.Succ[calleeEntry] {
		if s == callerBlock {
			foundReturnToCall = true
		}
	}
	if !foundReturnToCall {
		t.Errorf("expected r -> c return edge for a void-returning callee")
	}
}

func TestBuildFull_SkipsExternalInvoke(t *testing.T) {
	callExpr := &ir.InvokeExpr{Invoke: ir.StaticInvoke, ClassName: "java.lang.String", MethodName: "valueOf"}
	callStmt := &ir.AssignStmt{LeftOp: &ir.Local{Name: "r1"}, RightOp: callExpr}
	b0 := block("b0", callStmt, &ir.ReturnVoidStmt{})
	m := methodOf("C", "f", b0)
	class := &ir.Class{Name: "C", Attrs: map[string]struct{}{}, Methods: []*ir.Method{m}}

	idx, err := index.Build([]*ir.Class{class})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)

	full := BuildFull(idx, h, false, obslog.Nop())
	if len(full.Succ[b0]) != 0 {
		t.Errorf("expected no call edge for external invoke, got %v", full.Succ[b0])
	}
}
