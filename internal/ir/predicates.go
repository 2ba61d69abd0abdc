package ir

// This file is the IR contract spec §4.1 calls out by name: pure
// classification functions over Stmt/Expr. Every other package in this
// module classifies nodes through these predicates rather than by type
// switch or reflection, so the tagged union stays the single source of
// truth for "what kind of node is this".

// IsAssign reports whether s is an AssignStmt.
func IsAssign(s Stmt) bool { return s.Kind() == StmtAssign }

// IsIdentity reports whether s is an IdentityStmt.
func IsIdentity(s Stmt) bool { return s.Kind() == StmtIdentity }

// IsGoto reports whether s is a GotoStmt.
func IsGoto(s Stmt) bool { return s.Kind() == StmtGoto }

// IsIf reports whether s is an IfStmt.
func IsIf(s Stmt) bool { return s.Kind() == StmtIf }

// IsSwitch reports whether s is a SwitchStmt.
func IsSwitch(s Stmt) bool { return s.Kind() == StmtSwitch }

// IsReturn reports whether s returns control from its method, with or
// without a value.
func IsReturn(s Stmt) bool {
	return s.Kind() == StmtReturn || s.Kind() == StmtReturnVoid
}

// IsInvoke reports whether s is, or carries, an invoke expression: either
// a standalone InvokeStmt, or an AssignStmt whose RightOp is an
// *InvokeExpr (spec §4.1: "Invoke is special ... both an Assign and an
// Invoke for classification purposes").
func IsInvoke(s Stmt) bool {
	_, ok := InvokeOf(s)
	return ok
}

// InvokeOf extracts the InvokeExpr carried by s, covering both the
// standalone and the embedded-in-Assign forms. ok is false for any other
// statement kind.
func InvokeOf(s Stmt) (expr *InvokeExpr, ok bool) {
	switch st := s.(type) {
	case *InvokeStmt:
		return st.InvokeExpr, true
	case *AssignStmt:
		if inv, ok := st.RightOp.(*InvokeExpr); ok {
			return inv, true
		}
	}
	return nil, false
}

// IsLocal reports whether e is a Local reference.
func IsLocal(e Expr) bool { return e != nil && e.Kind() == ExprLocal }

// IsParamRef reports whether e is a ParamRef.
func IsParamRef(e Expr) bool { return e != nil && e.Kind() == ExprParamRef }

// IsInstanceFieldRef reports whether e is an InstanceFieldRef.
func IsInstanceFieldRef(e Expr) bool { return e != nil && e.Kind() == ExprInstanceFieldRef }

// IsStaticFieldRef reports whether e is a StaticFieldRef.
func IsStaticFieldRef(e Expr) bool { return e != nil && e.Kind() == ExprStaticFieldRef }

// IsArrayRef reports whether e is an ArrayRef.
func IsArrayRef(e Expr) bool { return e != nil && e.Kind() == ExprArrayRef }

// IsBinOp reports whether e is a BinOp.
func IsBinOp(e Expr) bool { return e != nil && e.Kind() == ExprBinOp }

// IsCast reports whether e is a CastExpr.
func IsCast(e Expr) bool { return e != nil && e.Kind() == ExprCast }

// IsLength reports whether e is a LengthExpr.
func IsLength(e Expr) bool { return e != nil && e.Kind() == ExprLength }

// IsPhi reports whether e is a PhiExpr.
func IsPhi(e Expr) bool { return e != nil && e.Kind() == ExprPhi }

// IsInvokeExpr reports whether e is an InvokeExpr.
func IsInvokeExpr(e Expr) bool { return e != nil && e.Kind() == ExprInvoke }
