package slicer

import "github.com/seclab-ucsb/turi-go/internal/ir"

// Forward is a bound forward slicer query engine (spec §4.7): symmetric to
// Backward, walking successor CFG edges and propagating taint through uses
// rather than defs.
type Forward struct {
	g             *Graphs
	maxIter       int
	maxItersBlock int
}

// NewForward constructs a forward slicer bound to g, using the spec's
// default termination bounds.
func NewForward(g *Graphs) *Forward {
	return &Forward{g: g, maxIter: DefaultMaxIter, maxItersBlock: DefaultMaxItersBlock}
}

// WithBounds overrides the default MAX_ITER / MAX_ITERS_BLOCK bounds.
func (s *Forward) WithBounds(maxIter, maxItersBlock int) *Forward {
	s.maxIter = maxIter
	s.maxItersBlock = maxItersBlock
	return s
}

// Slice runs the forward worklist algorithm from seed (spec §4.7).
func (s *Forward) Slice(seed Seed) *Result {
	var points []seedPoint
	switch seed.Kind {
	case SeedMethodVar:
		points, _ = resolveMethodVarSeeds(s.g, seed.Class, seed.Method, seed.Params, seed.Var)
	case SeedMethod:
		points = resolveMethodSeeds(s.g, seed.Class, seed.Method)
	default:
		s.g.Log.Warn("forward slicer: unsupported seed kind for this direction")
	}

	r := &Result{Tainted: make(map[*ir.Block]methodTaint)}
	if len(points) == 0 {
		return r
	}

	// seedStart[b] bounds examination to stmts[start:] the first (and
	// every subsequent) time b is dequeued as the literal seed block:
	// forward slicing only cares what happens at-or-after the seed
	// statement.
	seedStart := make(map[*ir.Block]int)
	var queue []*ir.Block

	for _, p := range points {
		seedTaint(r, p)
		if cur, ok := seedStart[p.Block]; !ok || p.StmtIndex < cur {
			seedStart[p.Block] = p.StmtIndex
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
		if start, ok := seedStart[curr]; ok && start > 0 && start < len(stmts) {
			stmts = stmts[start:]
		}

		changed, calls := forwardDefUse(taint, stmts)
		if forwardReceiverArg(taint, stmts) {
			changed = true
		}
		if changed {
			r.markAffected(curr)
		}

		forwardParamToCallee(s.g, r, method, taint, calls, enqueue)
		forwardFieldStore(s.g, r, taint, stmts, enqueue)
		forwardControlDependence(s.g, r, method, curr, taint)

		for _, succ := range s.g.Full.Succ[curr] {
			if r.Tainted[succ] == nil {
				r.Tainted[succ] = make(methodTaint)
			}
			if mergeInto(r.Tainted[succ], r.Tainted[curr]) {
				r.markAffected(succ)
			}
			enqueue(succ)
		}
	}

	return r
}

// forwardDefUse implements spec §4.7's inverted step 3: find statements
// that *use* a currently-tainted variable and taint whatever they set.
// Invokes whose base or any argument is tainted are returned for
// parameter-to-callee propagation, independent of whether the invoke also
// defines a tainted local.
func forwardDefUse(taint taintSet, stmts []ir.Stmt) (changed bool, calls []*ir.InvokeExpr) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ir.AssignStmt:
			useTainted := false
			for _, u := range rhsUses(st.RightOp) {
				if taint.has(u) {
					useTainted = true
					break
				}
			}
			if aref, ok := st.LeftOp.(*ir.ArrayRef); ok {
				if baseLoc, ok := aref.Base.(*ir.Local); ok && taint.has(baseLoc.Name) {
					useTainted = true
				}
			}
			if useTainted {
				if loc, ok := st.LeftOp.(*ir.Local); ok && taint.add(loc.Name) {
					changed = true
				}
			}
			if inv, ok := st.RightOp.(*ir.InvokeExpr); ok && invokeReadsTaint(inv, taint) {
				calls = append(calls, inv)
			}
		case *ir.InvokeStmt:
			if invokeReadsTaint(st.InvokeExpr, taint) {
				calls = append(calls, st.InvokeExpr)
			}
		}
	}
	return changed, calls
}

// forwardReceiverArg implements spec §4.6 step 3's bidirectional
// receiver/argument taint for standalone (non-assigning) invokes, mirrored
// for the forward direction: within the same method, a tainted base taints
// every argument and a tainted argument taints the base, independent of
// the cross-method propagation forwardParamToCallee performs.
func forwardReceiverArg(taint taintSet, stmts []ir.Stmt) bool {
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

func invokeReadsTaint(inv *ir.InvokeExpr, taint taintSet) bool {
	if loc, ok := inv.Base.(*ir.Local); ok && taint.has(loc.Name) {
		return true
	}
	for _, a := range inv.Args {
		if loc, ok := a.(*ir.Local); ok && taint.has(loc.Name) {
			return true
		}
	}
	return false
}

// forwardParamToCallee implements spec §4.7's parameter-to-callee
// propagation: for each tainted argument, the resolved target's matching
// ParamRef identity binding in its entry block gets tainted under the
// callee method.
func forwardParamToCallee(g *Graphs, r *Result, containerMethod *ir.Method, taint taintSet, calls []*ir.InvokeExpr, enqueue func(*ir.Block)) {
	for _, inv := range calls {
		targets := resolveTargets(g, inv, containerMethod)
		for i, a := range inv.Args {
			if loc, ok := a.(*ir.Local); !ok || !taint.has(loc.Name) {
				continue
			}
			for _, target := range targets {
				entry := target.Entry()
				if entry == nil {
					continue
				}
				for _, s := range entry.Statements {
					ids, ok := s.(*ir.IdentityStmt)
					if !ok {
						continue
					}
					pref, ok := ids.RightOp.(*ir.ParamRef)
					if !ok || pref.Index != i {
						continue
					}
					paramLoc, ok := ids.LeftOp.(*ir.Local)
					if !ok {
						continue
					}
					taintBlockVar(r, entry, target, paramLoc.Name)
					enqueue(entry)
				}
			}
		}
	}
}

// forwardFieldStore implements spec §4.7's known imprecision: assigning a
// tainted local to obj.field taints field_name under every method of the
// field's declaring class, seeded at each method's entry block.
func forwardFieldStore(g *Graphs, r *Result, taint taintSet, stmts []ir.Stmt, enqueue func(*ir.Block)) {
	for _, s := range stmts {
		as, ok := s.(*ir.AssignStmt)
		if !ok {
			continue
		}
		fref, ok := as.LeftOp.(*ir.InstanceFieldRef)
		if !ok {
			continue
		}
		loc, ok := as.RightOp.(*ir.Local)
		if !ok || !taint.has(loc.Name) {
			continue
		}

		declClass, ok := g.Idx.Classes[fref.Field.DeclaringClass]
		if !ok {
			continue
		}
		for _, m2 := range declClass.Methods {
			entry := m2.Entry()
			if entry == nil {
				continue
			}
			taintBlockVar(r, entry, m2, fref.Field.Name)
			enqueue(entry)
		}
	}
}

// forwardControlDependence implements spec §4.7's control-dependence rule:
// a conditional whose condition reads a tainted var adds all of its target
// blocks to affected_blocks, independent of whether new taint propagates.
// Switch statements are handled the same way, keyed on the switch key
// rather than an If condition, resolving the default target and every
// case target through the enclosing method's BlockByLabel.
func forwardControlDependence(g *Graphs, r *Result, method *ir.Method, curr *ir.Block, taint taintSet) {
	switch st := curr.Last().(type) {
	case *ir.IfStmt:
		for _, u := range rhsUses(st.Condition) {
			if !taint.has(u) {
				continue
			}
			for _, target := range g.Full.Succ[curr] {
				r.markAffected(target)
			}
			return
		}
	case *ir.SwitchStmt:
		keyTainted := false
		for _, u := range rhsUses(st.Key) {
			if taint.has(u) {
				keyTainted = true
				break
			}
		}
		if !keyTainted {
			return
		}
		if st.DefaultTarget != "" {
			if target, ok := method.BlockByLabel[st.DefaultTarget]; ok {
				r.markAffected(target)
			}
		}
		for _, label := range st.LookupValuesAndTargets {
			if target, ok := method.BlockByLabel[label]; ok {
				r.markAffected(target)
			}
		}
	}
}
