// Package callgraph builds the method-level digraph derived from resolved
// invocations, including per-call-site indexing (spec §4.5).
package callgraph

import (
	"go.uber.org/zap"

	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// CallGraph is the method-level digraph. succ/pred are built as ordered
// slices so Next/Prev enumeration is reproducible across runs.
type CallGraph struct {
	succ      map[*ir.Method][]*ir.Method
	pred      map[*ir.Method][]*ir.Method
	callSites map[*ir.Method]map[*ir.Method][]*ir.InvokeExpr
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		succ:      make(map[*ir.Method][]*ir.Method),
		pred:      make(map[*ir.Method][]*ir.Method),
		callSites: make(map[*ir.Method]map[*ir.Method][]*ir.InvokeExpr),
	}
}

func (g *CallGraph) addEdge(caller, callee *ir.Method, site *ir.InvokeExpr) {
	if g.callSites[caller] == nil {
		g.callSites[caller] = make(map[*ir.Method][]*ir.InvokeExpr)
	}
	if len(g.callSites[caller][callee]) == 0 {
		g.succ[caller] = append(g.succ[caller], callee)
		g.pred[callee] = append(g.pred[callee], caller)
	}
	g.callSites[caller][callee] = append(g.callSites[caller][callee], site)
}

// Build constructs the call graph: for every Invoke in every method, the
// resolved concrete targets whose class is in the project get an edge
// from caller to target, with the raw InvokeExpr recorded as a call site.
// External targets are silently dropped (spec §4.5, §7).
func Build(idx *index.Index, h *hierarchy.Hierarchy, log *zap.Logger) *CallGraph {
	g := newCallGraph()

	for _, caller := range idx.SortedMethods() {
		for _, b := range caller.Blocks {
			for _, s := range b.Statements {
				invoke, ok := ir.InvokeOf(s)
				if !ok {
					continue
				}
				if idx.IsExternal(invoke.ClassName) {
					continue
				}
				staticMethod, ok := idx.Lookup(invoke.ClassName, invoke.MethodName, invoke.MethodParams)
				if !ok {
					continue
				}

				targets, err := h.ResolveInvoke(invoke, staticMethod, caller)
				if err != nil {
					log.Warn("callgraph: unresolvable dispatch, dropping call site",
						zap.String("caller", caller.Signature()),
						zap.String("invoke", invoke.Signature()), zap.Error(err))
					continue
				}

				for _, target := range targets {
					if idx.IsExternal(target.ClassName) {
						continue
					}
					g.addEdge(caller, target, invoke)
				}
			}
		}
	}

	return g
}

// Next returns caller's successors: methods it may directly invoke.
func (g *CallGraph) Next(m *ir.Method) []*ir.Method { return g.succ[m] }

// Prev returns callee's predecessors: methods that may directly invoke it.
// This equals "the set of methods c such that some Block of c contains an
// Invoke resolving to m" (spec §8 invariant 3) by construction.
func (g *CallGraph) Prev(m *ir.Method) []*ir.Method { return g.pred[m] }

// CallSites returns the raw InvokeExpr nodes in caller that resolve to
// callee.
func (g *CallGraph) CallSites(caller, callee *ir.Method) []*ir.InvokeExpr {
	return g.callSites[caller][callee]
}
