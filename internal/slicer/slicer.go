// Package slicer implements the backward and forward taint slicers (spec
// §4.6, §4.7): bounded transitive-closure walks over the interprocedural
// CFG that propagate a per-method tainted-variable set from a seed.
package slicer

import (
	"go.uber.org/zap"

	"github.com/seclab-ucsb/turi-go/internal/callgraph"
	"github.com/seclab-ucsb/turi-go/internal/cfg"
	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// Default termination bounds, per spec §4.6.
const (
	DefaultMaxIter       = 5000
	DefaultMaxItersBlock = 30
)

// SeedKind discriminates the slicer seed descriptor shapes spec §6 allows.
type SeedKind int

const (
	SeedMethodVar SeedKind = iota
	SeedObjectField
	SeedMethod
)

// Seed is the query input: a mapping with type-specific keys (spec §6
// "Seed descriptor format").
type Seed struct {
	Kind   SeedKind
	Class  string
	Method string
	Params []string

	// SeedMethodVar
	Var string

	// SeedObjectField
	ObjectClass string
	Field       string
}

// Graphs bundles the Project-owned derived graphs a slicer reads through.
// They are built lazily once by the Project and shared by reference across
// every slicer bound to it (spec §5 "Shared resource policy").
type Graphs struct {
	Idx       *index.Index
	Hierarchy *hierarchy.Hierarchy
	Full      *cfg.Full
	CallGraph *callgraph.CallGraph
	Log       *zap.Logger
}

type taintSet map[string]struct{}

func newTaintSet(names ...string) taintSet {
	s := make(taintSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s taintSet) has(name string) bool { _, ok := s[name]; return ok }

func (s taintSet) add(name string) bool {
	if _, ok := s[name]; ok {
		return false
	}
	s[name] = struct{}{}
	return true
}

// methodTaint is the per-block taint state: method -> tainted names,
// partitioned by the method whose locals the names belong to (spec §4.6).
type methodTaint map[*ir.Method]taintSet

// mergeInto implements the per-method union merge rule (spec §4.6, §8
// invariant 6): result is the union of taint sets for every method present
// in either map.
func mergeInto(dst methodTaint, src methodTaint) bool {
	changed := false
	for m, names := range src {
		if dst[m] == nil {
			dst[m] = make(taintSet)
		}
		for n := range names {
			if dst[m].add(n) {
				changed = true
			}
		}
	}
	return changed
}

// Result is the outcome of a bounded slice query.
type Result struct {
	Tainted        map[*ir.Block]methodTaint
	AffectedBlocks []*ir.Block
	TotalIters     int
	Truncated      bool

	affectedSeen map[*ir.Block]struct{}
}

// AllTaintedNames flattens every tainted name across every method and
// block this result recorded, discarding the block/method partitioning.
// Callers that only care about the set of distinct values reached (the
// reflection heuristic) use this instead of walking Tainted directly.
func (r *Result) AllTaintedNames() map[string]struct{} {
	out := make(map[string]struct{})
	for _, mt := range r.Tainted {
		for _, names := range mt {
			for n := range names {
				out[n] = struct{}{}
			}
		}
	}
	return out
}

func (r *Result) markAffected(b *ir.Block) {
	if r.affectedSeen == nil {
		r.affectedSeen = make(map[*ir.Block]struct{})
	}
	if _, ok := r.affectedSeen[b]; ok {
		return
	}
	r.affectedSeen[b] = struct{}{}
	r.AffectedBlocks = append(r.AffectedBlocks, b)
}

// seedPoint is a single (block, statement index, variable) starting point
// found while resolving a Seed against the project's class table.
type seedPoint struct {
	Block     *ir.Block
	Method    *ir.Method
	StmtIndex int
	Var       string
}

// resolveMethodVarSeeds implements the method_var seed kind: every Block
// in the method that assigns or identity-binds a local named varName,
// paired with the statement index (spec §4.6).
func resolveMethodVarSeeds(g *Graphs, class, methodName string, params []string, varName string) ([]seedPoint, *ir.Method) {
	m, ok := g.Idx.Lookup(class, methodName, params)
	if !ok {
		g.Log.Warn("slicer: seed method not found", zap.String("class", class), zap.String("method", methodName))
		return nil, nil
	}

	var points []seedPoint
	for _, b := range m.Blocks {
		for i, s := range b.Statements {
			var left ir.Expr
			switch st := s.(type) {
			case *ir.AssignStmt:
				left = st.LeftOp
			case *ir.IdentityStmt:
				left = st.LeftOp
			default:
				continue
			}
			if loc, ok := left.(*ir.Local); ok && loc.Name == varName {
				points = append(points, seedPoint{Block: b, Method: m, StmtIndex: i, Var: varName})
			}
		}
	}
	return points, m
}

// resolveObjectFieldSeeds implements the object_field seed kind: find
// statements assigning to base.field, and if the right-hand-side is a
// local, reduce to the method_var case on that local (spec §4.6).
func resolveObjectFieldSeeds(g *Graphs, class, methodName string, params []string, objectClass, fieldName string) ([]seedPoint, *ir.Method) {
	m, ok := g.Idx.Lookup(class, methodName, params)
	if !ok {
		g.Log.Warn("slicer: seed method not found", zap.String("class", class), zap.String("method", methodName))
		return nil, nil
	}

	var points []seedPoint
	for _, b := range m.Blocks {
		for i, s := range b.Statements {
			as, ok := s.(*ir.AssignStmt)
			if !ok {
				continue
			}
			fref, ok := as.LeftOp.(*ir.InstanceFieldRef)
			if !ok || fref.Field.Name != fieldName || fref.Field.DeclaringClass != objectClass {
				continue
			}
			if loc, ok := as.RightOp.(*ir.Local); ok {
				points = append(points, seedPoint{Block: b, Method: m, StmtIndex: i, Var: loc.Name})
			}
		}
	}
	return points, m
}

// resolveMethodSeeds implements the forward-only `method` seed kind: every
// Block that assigns the return of a call to class.methodName — the
// assigned local is the seed (spec §4.7).
func resolveMethodSeeds(g *Graphs, class, methodName string) []seedPoint {
	var points []seedPoint
	for _, m := range g.Idx.SortedMethods() {
		for _, b := range m.Blocks {
			for i, s := range b.Statements {
				as, ok := s.(*ir.AssignStmt)
				if !ok {
					continue
				}
				inv, ok := as.RightOp.(*ir.InvokeExpr)
				if !ok || inv.ClassName != class || inv.MethodName != methodName {
					continue
				}
				if loc, ok := as.LeftOp.(*ir.Local); ok {
					points = append(points, seedPoint{Block: b, Method: m, StmtIndex: i, Var: loc.Name})
				}
			}
		}
	}
	return points
}

// rhsUses lists the variable/field names an expression reads, per the
// right-hand-side use table in spec §4.6 step 3.
func rhsUses(e ir.Expr) []string {
	switch v := e.(type) {
	case *ir.Local:
		return []string{v.Name}
	case *ir.BinOp:
		return append(rhsUses(v.Value1), rhsUses(v.Value2)...)
	case *ir.CastExpr:
		return rhsUses(v.Value)
	case *ir.LengthExpr:
		return rhsUses(v.Value)
	case *ir.InstanceFieldRef:
		return append(rhsUses(v.Base), v.Field.Name)
	case *ir.StaticFieldRef:
		return []string{v.Field.Name}
	case *ir.ArrayRef:
		return rhsUses(v.Base)
	case *ir.PhiExpr:
		var out []string
		for _, pv := range v.Values {
			out = append(out, rhsUses(pv.Value)...)
		}
		return out
	case *ir.InvokeExpr:
		var out []string
		if v.Base != nil {
			out = append(out, rhsUses(v.Base)...)
		}
		for _, a := range v.Args {
			out = append(out, rhsUses(a)...)
		}
		return out
	default:
		return nil
	}
}

// resolveTargets resolves invoke's concrete dispatch targets, skipping
// external classes and unresolvable dispatch with a warning rather than an
// error (spec §7).
func resolveTargets(g *Graphs, invoke *ir.InvokeExpr, containerMethod *ir.Method) []*ir.Method {
	if g.Idx.IsExternal(invoke.ClassName) {
		g.Log.Warn("slicer: external invoke target, skipping",
			zap.String("invoke", invoke.Signature()))
		return nil
	}
	staticMethod, ok := g.Idx.Lookup(invoke.ClassName, invoke.MethodName, invoke.MethodParams)
	if !ok {
		return nil
	}
	targets, err := g.Hierarchy.ResolveInvoke(invoke, staticMethod, containerMethod)
	if err != nil {
		g.Log.Warn("slicer: unresolvable dispatch, treating as external",
			zap.String("invoke", invoke.Signature()), zap.Error(err))
		return nil
	}
	return targets
}

// returnBlocksOf finds every block of m containing a Return statement.
func returnBlocksOf(m *ir.Method) []*ir.Block {
	var out []*ir.Block
	for _, b := range m.Blocks {
		for _, s := range b.Statements {
			if s.Kind() == ir.StmtReturn {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

func returnStmtOf(b *ir.Block) *ir.ReturnStmt {
	for _, s := range b.Statements {
		if rs, ok := s.(*ir.ReturnStmt); ok {
			return rs
		}
	}
	return nil
}

// findInvokeBlock locates the Block of m containing the statement carrying
// invoke, by pointer identity. Used to recover "the caller's enclosing
// Block" for a call site already resolved through the call graph.
func findInvokeBlock(m *ir.Method, invoke *ir.InvokeExpr) *ir.Block {
	for _, b := range m.Blocks {
		for _, s := range b.Statements {
			if inv, ok := ir.InvokeOf(s); ok && inv == invoke {
				return b
			}
		}
	}
	return nil
}
