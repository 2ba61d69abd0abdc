package ir

import "testing"

func TestIsInvoke_StandaloneAndEmbedded(t *testing.T) {
	inv := &InvokeExpr{Invoke: StaticInvoke, ClassName: "java.lang.System", MethodName: "exit", MethodParams: []string{"int"}}

	standalone := &InvokeStmt{InvokeExpr: inv}
	if !IsInvoke(standalone) {
		t.Errorf("expected standalone InvokeStmt to classify as invoke")
	}

	embedded := &AssignStmt{LeftOp: &Local{Name: "r1"}, RightOp: inv}
	if !IsInvoke(embedded) {
		t.Errorf("expected Assign with InvokeExpr RHS to classify as invoke")
	}
	if !IsAssign(embedded) {
		t.Errorf("expected Assign with InvokeExpr RHS to still classify as assign")
	}

	got, ok := InvokeOf(embedded)
	if !ok || got != inv {
		t.Errorf("InvokeOf(embedded) = %v, %v; want %v, true", got, ok, inv)
	}
}

func TestIsInvoke_NonInvokeAssign(t *testing.T) {
	assign := &AssignStmt{LeftOp: &Local{Name: "r1"}, RightOp: &Local{Name: "r2"}}
	if IsInvoke(assign) {
		t.Errorf("plain assign should not classify as invoke")
	}
}

func TestIsReturn(t *testing.T) {
	if !IsReturn(&ReturnStmt{}) {
		t.Errorf("ReturnStmt should classify as return")
	}
	if !IsReturn(&ReturnVoidStmt{}) {
		t.Errorf("ReturnVoidStmt should classify as return")
	}
	if IsReturn(&GotoStmt{}) {
		t.Errorf("GotoStmt should not classify as return")
	}
}

func TestExprPredicates(t *testing.T) {
	if !IsLocal(&Local{Name: "r0"}) {
		t.Errorf("Local should classify as local")
	}
	if IsLocal(&ParamRef{Index: 0}) {
		t.Errorf("ParamRef should not classify as local")
	}
	if !IsParamRef(&ParamRef{Index: 0}) {
		t.Errorf("ParamRef should classify as paramref")
	}
}
