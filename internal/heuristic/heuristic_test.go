package heuristic

import (
	"testing"

	"github.com/seclab-ucsb/turi-go/internal/callgraph"
	"github.com/seclab-ucsb/turi-go/internal/cfg"
	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
	"github.com/seclab-ucsb/turi-go/internal/obslog"
	"github.com/seclab-ucsb/turi-go/internal/slicer"
)

func buildGraphs(t *testing.T, classes []*ir.Class) *slicer.Graphs {
	t.Helper()
	idx, err := index.Build(classes)
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	h := hierarchy.Build(idx)
	full := cfg.BuildFull(idx, h, true, obslog.Nop())
	cg := callgraph.Build(idx, h, obslog.Nop())
	return &slicer.Graphs{Idx: idx, Hierarchy: h, Full: full, CallGraph: cg, Log: obslog.Nop()}
}

// TestRun_ResolvesThisReceiverToDeclaringClass covers spec §4.8 steps 1-2:
// a getClass() call on `this` backward-slices to the IdentityStmt binding
// it, surfacing the declaring class as a class resolvent.
func TestRun_ResolvesThisReceiverToDeclaringClass(t *testing.T) {
	getClassCall := &ir.InvokeExpr{
		Invoke: ir.VirtualInvoke, ClassName: "java.lang.Object", MethodName: "getClass",
		Base: &ir.Local{Name: "this0", Type: "Shape"},
	}
	b0 := &ir.Block{Label: "b0", Statements: []ir.Stmt{
		&ir.IdentityStmt{LeftOp: &ir.Local{Name: "this0", Type: "Shape"}, RightOp: &ir.ConstExpr{Value: "@this"}},
		&ir.AssignStmt{LeftOp: &ir.Local{Name: "cls", Type: "java.lang.Class"}, RightOp: getClassCall},
		&ir.ReturnVoidStmt{},
	}}
	mReflect := &ir.Method{ClassName: "Shape", Name: "reflect", Attrs: map[string]struct{}{}, Blocks: []*ir.Block{b0},
		BlockByLabel: map[string]*ir.Block{"b0": b0}}
	classShape := &ir.Class{Name: "Shape", Attrs: map[string]struct{}{}, Methods: []*ir.Method{mReflect}}

	g := buildGraphs(t, []*ir.Class{classShape})

	results := Run(g, nil, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 reflection target, got %d", len(results))
	}
	found := false
	for _, c := range results[0].Classes {
		if c == "Shape" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Shape among resolved classes, got %v", results[0].Classes)
	}
}

// TestApplyStubWrites_MergesStubResolvedClasses covers spec §4.8 step 4.
func TestApplyStubWrites_MergesStubResolvedClasses(t *testing.T) {
	field := ir.Field{Name: "cached", Type: "java.lang.Object", DeclaringClass: "Loader"}
	stubCall := &ir.InvokeExpr{
		Invoke: ir.StaticInvoke, ClassName: "Loader", MethodName: "getClassesForPackage",
		Args: []ir.Expr{&ir.ConstExpr{Value: "com.example"}},
	}
	b0 := &ir.Block{Label: "b0", Statements: []ir.Stmt{
		&ir.AssignStmt{
			LeftOp:  &ir.InstanceFieldRef{Base: &ir.Local{Name: "this1", Type: "Loader"}, Field: field},
			RightOp: stubCall,
		},
		&ir.ReturnVoidStmt{},
	}}
	mPopulate := &ir.Method{ClassName: "Loader", Name: "populate", Attrs: map[string]struct{}{}, Blocks: []*ir.Block{b0},
		BlockByLabel: map[string]*ir.Block{"b0": b0}}
	classLoader := &ir.Class{Name: "Loader", Attrs: map[string]struct{}{}, Methods: []*ir.Method{mPopulate}}
	classWidget := &ir.Class{Name: "com.example.Widget", Attrs: map[string]struct{}{}}
	classGadget := &ir.Class{Name: "com.example.Gadget", Attrs: map[string]struct{}{}}

	idx, err := index.Build([]*ir.Class{classLoader, classWidget, classGadget})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	g := &slicer.Graphs{Idx: idx, Log: obslog.Nop()}

	classSet := map[string]struct{}{}
	applyStubWrites(g, classLoader, field, DefaultRegistry(), classSet)

	if _, ok := classSet["com.example.Widget"]; !ok {
		t.Errorf("expected stub resolution to include com.example.Widget, got %v", classSet)
	}
	if _, ok := classSet["com.example.Gadget"]; !ok {
		t.Errorf("expected stub resolution to include com.example.Gadget, got %v", classSet)
	}
}

// TestCollectionStoreArgs_FindsAddCallArgument covers the lookup half of
// spec §4.8 step 3.
func TestCollectionStoreArgs_FindsAddCallArgument(t *testing.T) {
	field := ir.Field{Name: "handlers", Type: "java.util.List", DeclaringClass: "Registry"}
	addCall := &ir.InvokeExpr{
		Invoke: ir.VirtualInvoke, ClassName: "java.util.List", MethodName: "add",
		Base: &ir.InstanceFieldRef{Base: &ir.Local{Name: "this2", Type: "Registry"}, Field: field},
		Args: []ir.Expr{&ir.Local{Name: "h", Type: "java.lang.Object"}},
	}
	b0 := &ir.Block{Label: "b0", Statements: []ir.Stmt{
		&ir.InvokeStmt{InvokeExpr: addCall},
		&ir.ReturnVoidStmt{},
	}}
	mRegister := &ir.Method{ClassName: "Registry", Name: "register", Attrs: map[string]struct{}{}, Blocks: []*ir.Block{b0},
		BlockByLabel: map[string]*ir.Block{"b0": b0}}
	classRegistry := &ir.Class{Name: "Registry", Attrs: map[string]struct{}{}, Methods: []*ir.Method{mRegister}}

	sites := collectionStoreArgs(classRegistry, field)
	if len(sites) != 1 || sites[0].Var != "h" || sites[0].Method != mRegister {
		t.Errorf("expected one store site binding var h in register, got %+v", sites)
	}
}
