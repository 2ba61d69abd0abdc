// Package cfg builds the intra-method, interprocedural and
// interprocedural-with-return-edges control-flow graphs over the IR's
// Block nodes (spec §4.3, §4.4).
package cfg

import (
	"sort"

	"go.uber.org/zap"

	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// Intra is the per-method block graph.
type Intra struct {
	Method *ir.Method
	Succ   map[*ir.Block][]*ir.Block
	Pred   map[*ir.Block][]*ir.Block
}

func newIntra(m *ir.Method) *Intra {
	return &Intra{
		Method: m,
		Succ:   make(map[*ir.Block][]*ir.Block),
		Pred:   make(map[*ir.Block][]*ir.Block),
	}
}

func (g *Intra) addEdge(from, to *ir.Block) {
	for _, s := range g.Succ[from] {
		if s == to {
			return
		}
	}
	g.Succ[from] = append(g.Succ[from], to)
	g.Pred[to] = append(g.Pred[to], from)
}

// isSystemExit reports whether s invokes java.lang.System.exit, the one
// invoke spec §4.3 calls out as cutting fall-through like a Goto or
// Return.
func isSystemExit(s ir.Stmt) bool {
	invoke, ok := ir.InvokeOf(s)
	return ok && invoke.ClassName == "java.lang.System" && invoke.MethodName == "exit"
}

// cutsFallThrough reports whether last — the final statement of a block —
// suppresses the block's fall-through edge to the next block in source
// order (spec §4.3: "unless its last statement is Goto, Return, or an
// Invoke of java.lang.System.exit").
func cutsFallThrough(last ir.Stmt) bool {
	if last == nil {
		return false
	}
	switch last.Kind() {
	case ir.StmtGoto, ir.StmtReturn, ir.StmtReturnVoid:
		return true
	}
	return isSystemExit(last)
}

// BuildIntra constructs the intra-method CFG for m. log receives a warning
// for every statement kind this package has no typed edge rule for
// (ThrowStmt, monitor enter/exit, breakpoints) — spec §4.3: such
// statements "neither cut nor add edges".
func BuildIntra(m *ir.Method, log *zap.Logger) *Intra {
	g := newIntra(m)

	for i, b := range m.Blocks {
		last := b.Last()

		for _, s := range b.Statements {
			if st, ok := s.(*ir.UnknownStmt); ok {
				log.Warn("cfg: unknown statement kind, treated as fall-through",
					zap.String("method", m.Signature()),
					zap.String("block", b.Label),
					zap.String("raw_kind", st.RawKind),
				)
			}
		}

		if last != nil {
			switch st := last.(type) {
			case *ir.GotoStmt:
				if target, ok := m.BlockByLabel[st.Target]; ok {
					g.addEdge(b, target)
				}
			case *ir.IfStmt:
				if target, ok := m.BlockByLabel[st.Target]; ok {
					g.addEdge(b, target)
				}
			case *ir.SwitchStmt:
				if st.DefaultTarget != "" {
					if target, ok := m.BlockByLabel[st.DefaultTarget]; ok {
						g.addEdge(b, target)
					}
				}
				values := make([]string, 0, len(st.LookupValuesAndTargets))
				for v := range st.LookupValuesAndTargets {
					values = append(values, v)
				}
				sort.Strings(values)
				for _, v := range values {
					if target, ok := m.BlockByLabel[st.LookupValuesAndTargets[v]]; ok {
						g.addEdge(b, target)
					}
				}
			}
		}

		if !cutsFallThrough(last) && i+1 < len(m.Blocks) {
			g.addEdge(b, m.Blocks[i+1])
		}
	}

	for _, b := range m.Blocks {
		for _, pred := range m.ExceptionalPredsOf(b) {
			g.addEdge(pred, b)
		}
	}

	return g
}
