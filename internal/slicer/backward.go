package slicer

import "github.com/seclab-ucsb/turi-go/internal/ir"

// Backward is a bound backward slicer query engine (spec §4.6). Construct
// one per query via NewBackward; it owns no state beyond its bounds.
type Backward struct {
	g             *Graphs
	maxIter       int
	maxItersBlock int
}

// NewBackward constructs a backward slicer bound to g, using the spec's
// default termination bounds.
func NewBackward(g *Graphs) *Backward {
	return &Backward{g: g, maxIter: DefaultMaxIter, maxItersBlock: DefaultMaxItersBlock}
}

// WithBounds overrides the default MAX_ITER / MAX_ITERS_BLOCK bounds.
func (s *Backward) WithBounds(maxIter, maxItersBlock int) *Backward {
	s.maxIter = maxIter
	s.maxItersBlock = maxItersBlock
	return s
}

// Slice runs the backward worklist algorithm from seed and returns the
// bounded, possibly-truncated result (spec §4.6).
func (s *Backward) Slice(seed Seed) *Result {
	var points []seedPoint
	switch seed.Kind {
	case SeedMethodVar:
		points, _ = resolveMethodVarSeeds(s.g, seed.Class, seed.Method, seed.Params, seed.Var)
	case SeedObjectField:
		points, _ = resolveObjectFieldSeeds(s.g, seed.Class, seed.Method, seed.Params, seed.ObjectClass, seed.Field)
	default:
		s.g.Log.Warn("backward slicer: unsupported seed kind for this direction")
	}

	r := &Result{Tainted: make(map[*ir.Block]methodTaint)}
	if len(points) == 0 {
		return r
	}

	// seedLimit[b] bounds examination to stmts[:limit+1] the first (and
	// every subsequent) time b is dequeued as the literal seed block:
	// backward slicing only cares what happens at-or-before the seed
	// statement.
	seedLimit := make(map[*ir.Block]int)
	var queue []*ir.Block

	for _, p := range points {
		seedTaint(r, p)
		if cur, ok := seedLimit[p.Block]; !ok || p.StmtIndex > cur {
			seedLimit[p.Block] = p.StmtIndex
		}
		queue = append(queue, p.Block)
	}

	itersPerBlock := make(map[*ir.Block]int)
	enqueue := func(b *ir.Block) { queue = append(queue, b) }

	for len(queue) > 0 {
		if r.TotalIters >= s.maxIter {
			r.Truncated = true
			break
		}
		curr := queue[0]
		queue = queue[1:]

		if itersPerBlock[curr] >= s.maxItersBlock {
			r.Truncated = true
			continue
		}
		itersPerBlock[curr]++
		r.TotalIters++

		method := s.g.Idx.BlocksToMethods[curr]
		if method == nil {
			continue
		}
		taint := r.Tainted[curr][method]
		if taint == nil {
			continue
		}

		stmts := curr.Statements
		if limit, ok := seedLimit[curr]; ok && limit+1 < len(stmts) {
			stmts = stmts[:limit+1]
		}

		changed, calls := backwardDefUse(taint, stmts)
		if backwardReceiverArg(taint, stmts) {
			changed = true
		}
		if changed {
			r.markAffected(curr)
		}

		for _, inv := range calls {
			for _, target := range resolveTargets(s.g, inv, method) {
				for _, rb := range returnBlocksOf(target) {
					ret := returnStmtOf(rb)
					if ret == nil {
						continue
					}
					loc, ok := ret.Value.(*ir.Local)
					if !ok {
						continue
					}
					if tainted := taintBlockVar(r, rb, target, loc.Name); tainted {
						r.markAffected(rb)
					}
					enqueue(rb)
				}
			}
		}

		backwardParamToCaller(s.g, r, method, taint, stmts, enqueue)

		for _, pred := range s.g.Full.Pred[curr] {
			if r.Tainted[pred] == nil {
				r.Tainted[pred] = make(methodTaint)
			}
			if mergeInto(r.Tainted[pred], r.Tainted[curr]) {
				r.markAffected(pred)
			}
			enqueue(pred)
		}
	}

	return r
}

func seedTaint(r *Result, p seedPoint) {
	taintBlockVar(r, p.Block, p.Method, p.Var)
}

func taintBlockVar(r *Result, b *ir.Block, m *ir.Method, name string) bool {
	if r.Tainted[b] == nil {
		r.Tainted[b] = make(methodTaint)
	}
	if r.Tainted[b][m] == nil {
		r.Tainted[b][m] = make(taintSet)
	}
	added := r.Tainted[b][m].add(name)
	if added {
		r.markAffected(b)
	}
	return added
}

// backwardDefUse implements spec §4.6 step 3's def-use expansion: for each
// statement that assigns to a currently-tainted variable, the variables
// its right-hand-side uses join the taint set. Array stores extend the
// base array variable's definition set the same way; instance-field stores
// match by field name only, per the spec's edge case note. Tainted
// assignments whose right-hand-side is an InvokeExpr are returned for
// call-return expansion by the caller.
func backwardDefUse(taint taintSet, stmts []ir.Stmt) (changed bool, calls []*ir.InvokeExpr) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ir.AssignStmt:
			defTainted := false
			if loc, ok := st.LeftOp.(*ir.Local); ok && taint.has(loc.Name) {
				defTainted = true
			}
			if aref, ok := st.LeftOp.(*ir.ArrayRef); ok {
				if baseLoc, ok := aref.Base.(*ir.Local); ok && taint.has(baseLoc.Name) {
					defTainted = true
				}
			}
			if fref, ok := st.LeftOp.(*ir.InstanceFieldRef); ok && taint.has(fref.Field.Name) {
				defTainted = true
			}
			if !defTainted {
				continue
			}
			for _, u := range rhsUses(st.RightOp) {
				if taint.add(u) {
					changed = true
				}
			}
			if inv, ok := st.RightOp.(*ir.InvokeExpr); ok {
				calls = append(calls, inv)
			}
		case *ir.IdentityStmt:
			loc, ok := st.LeftOp.(*ir.Local)
			if !ok || !taint.has(loc.Name) {
				continue
			}
			if _, isParam := st.RightOp.(*ir.ParamRef); !isParam && loc.Type != "" {
				if taint.add(loc.Type) {
					changed = true
				}
			}
		}
	}
	return changed, calls
}

// backwardReceiverArg implements spec §4.6's bidirectional receiver/argument
// taint for standalone (non-assigning) invokes.
func backwardReceiverArg(taint taintSet, stmts []ir.Stmt) bool {
	changed := false
	for _, s := range stmts {
		invStmt, ok := s.(*ir.InvokeStmt)
		if !ok {
			continue
		}
		inv := invStmt.InvokeExpr

		baseTainted := false
		if loc, ok := inv.Base.(*ir.Local); ok {
			baseTainted = taint.has(loc.Name)
		}
		argTainted := false
		for _, a := range inv.Args {
			if loc, ok := a.(*ir.Local); ok && taint.has(loc.Name) {
				argTainted = true
				break
			}
		}

		if baseTainted {
			for _, a := range inv.Args {
				if loc, ok := a.(*ir.Local); ok && taint.add(loc.Name) {
					changed = true
				}
			}
		}
		if argTainted {
			if loc, ok := inv.Base.(*ir.Local); ok && taint.add(loc.Name) {
				changed = true
			}
		}
	}
	return changed
}

// backwardParamToCaller implements spec §4.6 step 4: for every Identity
// statement binding a tainted parameter, every call-graph predecessor's
// call site gets the matching argument local tainted in its own block.
func backwardParamToCaller(g *Graphs, r *Result, method *ir.Method, taint taintSet, stmts []ir.Stmt, enqueue func(*ir.Block)) {
	for _, s := range stmts {
		ids, ok := s.(*ir.IdentityStmt)
		if !ok {
			continue
		}
		pref, ok := ids.RightOp.(*ir.ParamRef)
		if !ok {
			continue
		}
		loc, ok := ids.LeftOp.(*ir.Local)
		if !ok || !taint.has(loc.Name) {
			continue
		}

		for _, caller := range g.CallGraph.Prev(method) {
			for _, site := range g.CallGraph.CallSites(caller, method) {
				if pref.Index < 0 || pref.Index >= len(site.Args) {
					continue
				}
				argLoc, ok := site.Args[pref.Index].(*ir.Local)
				if !ok {
					continue
				}
				callerBlock := findInvokeBlock(caller, site)
				if callerBlock == nil {
					continue
				}
				taintBlockVar(r, callerBlock, caller, argLoc.Name)
				enqueue(callerBlock)
			}
		}
	}
}
