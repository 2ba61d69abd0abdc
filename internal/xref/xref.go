// Package xref implements the cross-reference engine (spec §4.9): locate
// syntactic uses of a named entity (method, field, or local) across every
// statement in the project, classified as a read or a write.
package xref

import (
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// Kind discriminates the three query shapes spec §4.9 defines.
type Kind int

const (
	KindMethod Kind = iota
	KindClassVar
	KindMethodVar
)

// Access classifies where a matched leaf occurred in its statement.
type Access int

const (
	Read Access = iota
	Write
)

func (a Access) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// Query is the (entity, kind) cross-reference request.
type Query struct {
	Kind Kind

	// KindMethod: match Invokes whose (class, method, params) equal this.
	Class  string
	Method string
	Params []string

	// KindClassVar: match InstanceFieldRef/StaticFieldRef leaves whose
	// (field.name, field.declaring_class) equal this.
	FieldName  string
	FieldClass string

	// KindMethodVar: match Local leaves whose (name, type) equal this.
	// VarType may be left empty to match by name alone.
	VarName string
	VarType string
}

// Hit is one (class, method, statement, access) result tuple.
type Hit struct {
	Class  *ir.Class
	Method *ir.Method
	Stmt   ir.Stmt
	Access Access
}

// Find scans every statement in the project for q, restricted to none or
// all methods — callers wanting a restricted scope should filter idx
// themselves before calling, since the index is the only scoping knob this
// package takes (spec §4.9: "optionally restricted").
func Find(idx *index.Index, q Query) []Hit {
	var hits []Hit

	for _, className := range idx.ClassOrder {
		class := idx.Classes[className]
		for _, m := range class.Methods {
			for _, b := range m.Blocks {
				for _, s := range b.Statements {
					if q.Kind == KindMethod {
						if invoke, ok := ir.InvokeOf(s); ok &&
							invoke.ClassName == q.Class && invoke.MethodName == q.Method &&
							paramsEqual(invoke.MethodParams, q.Params) {
							hits = append(hits, Hit{Class: class, Method: m, Stmt: s, Access: Read})
						}
						continue
					}

					lhs := stmtLHS(s)
					if exprMatches(lhs, q) {
						hits = append(hits, Hit{Class: class, Method: m, Stmt: s, Access: Write})
						continue
					}
					for _, e := range stmtOperands(s) {
						if exprMatches(e, q) {
							hits = append(hits, Hit{Class: class, Method: m, Stmt: s, Access: Read})
							break
						}
					}
				}
			}
		}
	}

	return hits
}

func paramsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stmtLHS returns the left-hand-side path of s, the subtree classified as
// a write when a query entity is found within it.
func stmtLHS(s ir.Stmt) ir.Expr {
	switch st := s.(type) {
	case *ir.AssignStmt:
		return st.LeftOp
	case *ir.IdentityStmt:
		return st.LeftOp
	}
	return nil
}

// stmtOperands returns every other operand of s: everything a query match
// classifies as a read.
func stmtOperands(s ir.Stmt) []ir.Expr {
	switch st := s.(type) {
	case *ir.AssignStmt:
		return []ir.Expr{st.RightOp}
	case *ir.IdentityStmt:
		return []ir.Expr{st.RightOp}
	case *ir.InvokeStmt:
		return []ir.Expr{st.InvokeExpr}
	case *ir.IfStmt:
		return []ir.Expr{st.Condition}
	case *ir.SwitchStmt:
		return []ir.Expr{st.Key}
	case *ir.ReturnStmt:
		return []ir.Expr{st.Value}
	}
	return nil
}

// exprMatches walks e's full subtree looking for a leaf matching q.
func exprMatches(e ir.Expr, q Query) bool {
	if e == nil {
		return false
	}
	switch v := e.(type) {
	case *ir.Local:
		return q.Kind == KindMethodVar && v.Name == q.VarName && (q.VarType == "" || v.Type == q.VarType)
	case *ir.InstanceFieldRef:
		if q.Kind == KindClassVar && v.Field.Name == q.FieldName && v.Field.DeclaringClass == q.FieldClass {
			return true
		}
		return exprMatches(v.Base, q)
	case *ir.StaticFieldRef:
		return q.Kind == KindClassVar && v.Field.Name == q.FieldName && v.Field.DeclaringClass == q.FieldClass
	case *ir.ArrayRef:
		return exprMatches(v.Base, q) || exprMatches(v.Index, q)
	case *ir.BinOp:
		return exprMatches(v.Value1, q) || exprMatches(v.Value2, q)
	case *ir.CastExpr:
		return exprMatches(v.Value, q)
	case *ir.LengthExpr:
		return exprMatches(v.Value, q)
	case *ir.PhiExpr:
		for _, pv := range v.Values {
			if exprMatches(pv.Value, q) {
				return true
			}
		}
		return false
	case *ir.InvokeExpr:
		if exprMatches(v.Base, q) {
			return true
		}
		for _, a := range v.Args {
			if exprMatches(a, q) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
