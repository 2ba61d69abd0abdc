package cfg

import (
	"go.uber.org/zap"

	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// Full is the interprocedural CFG over every block of every method in the
// project: intra-method edges (§4.3) plus, for every resolved Invoke, an
// edge to the callee's entry block and — when built with return edges —
// an edge back from every block containing a Return to the call site
// (spec §4.4).
type Full struct {
	Succ      map[*ir.Block][]*ir.Block
	Pred      map[*ir.Block][]*ir.Block
	RetEdges  bool
	intraByMethod map[*ir.Method]*Intra
}

func newFull(retEdges bool) *Full {
	return &Full{
		Succ:          make(map[*ir.Block][]*ir.Block),
		Pred:          make(map[*ir.Block][]*ir.Block),
		RetEdges:      retEdges,
		intraByMethod: make(map[*ir.Method]*Intra),
	}
}

func (g *Full) addEdge(from, to *ir.Block) {
	for _, s := range g.Succ[from] {
		if s == to {
			return
		}
	}
	g.Succ[from] = append(g.Succ[from], to)
	g.Pred[to] = append(g.Pred[to], from)
}

// IntraOf returns the cached intra-method CFG for m, building it on first
// use. Exposed so callers (the slicer) can tell a normal fall-through
// successor from a call edge without re-deriving it.
func (g *Full) IntraOf(m *ir.Method, log *zap.Logger) *Intra {
	if c, ok := g.intraByMethod[m]; ok {
		return c
	}
	c := BuildIntra(m, log)
	g.intraByMethod[m] = c
	return c
}

// resolvableTargets resolves every Invoke reachable through invoke and
// filters out external, ABSTRACT and NATIVE targets (spec §4.4 step 1).
// External references and unresolvable dispatch are logged and skipped,
// never surfaced as an error (spec §7).
func resolvableTargets(idx *index.Index, h *hierarchy.Hierarchy, invoke *ir.InvokeExpr, staticMethod, containerMethod *ir.Method, log *zap.Logger) []*ir.Method {
	if idx.IsExternal(invoke.ClassName) {
		log.Warn("cfg: external invoke target, skipping call site",
			zap.String("invoke", invoke.Signature()))
		return nil
	}

	targets, err := h.ResolveInvoke(invoke, staticMethod, containerMethod)
	if err != nil {
		log.Warn("cfg: unresolvable dispatch, treating call site as external",
			zap.String("invoke", invoke.Signature()), zap.Error(err))
		return nil
	}

	var out []*ir.Method
	for _, t := range targets {
		if t.HasAttr("ABSTRACT") || t.HasAttr("NATIVE") {
			continue
		}
		if len(t.Blocks) == 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// BuildFull constructs the interprocedural CFG over every method in idx.
// When retEdges is true, every target block containing a Return gets an
// edge back to the calling block (spec §4.4 step 3 / Scenario 4).
func BuildFull(idx *index.Index, h *hierarchy.Hierarchy, retEdges bool, log *zap.Logger) *Full {
	g := newFull(retEdges)

	for _, className := range idx.ClassOrder {
		class := idx.Classes[className]
		for _, m := range class.Methods {
			intra := g.IntraOf(m, log)
			for from, tos := range intra.Succ {
				for _, to := range tos {
					g.addEdge(from, to)
				}
			}

			for _, b := range m.Blocks {
				for _, s := range b.Statements {
					invoke, ok := ir.InvokeOf(s)
					if !ok {
						continue
					}
					staticMethod, ok := idx.Lookup(invoke.ClassName, invoke.MethodName, invoke.MethodParams)
					if !ok {
						continue
					}

					for _, target := range resolvableTargets(idx, h, invoke, staticMethod, m, log) {
						entry := target.Entry()
						if entry == nil {
							continue
						}
						g.addEdge(b, entry)

						if retEdges {
							for _, rb := range returnBlocksOf(target) {
								g.addEdge(rb, b)
							}
						}
					}
				}
			}
		}
	}

	return g
}

// returnBlocksOf finds every block of m containing a Return or ReturnVoid
// statement, in source order, for return-edge wiring.
func returnBlocksOf(m *ir.Method) []*ir.Block {
	var out []*ir.Block
	for _, b := range m.Blocks {
		for _, s := range b.Statements {
			if ir.IsReturn(s) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}
