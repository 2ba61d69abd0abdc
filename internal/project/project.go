// Package project wires the index, Hierarchy, CFG, call graph, slicers,
// cross-reference engine and reflection heuristic into the single
// constructor and query surface spec §6 describes: Project(app_path,
// input_format?, sdk?, prelifted_ir?, cache_path?), plus lazily-built
// derived graphs shared by reference across every slicer bound to it
// (spec §5 "Shared resource policy").
package project

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seclab-ucsb/turi-go/internal/cache"
	"github.com/seclab-ucsb/turi-go/internal/callgraph"
	"github.com/seclab-ucsb/turi-go/internal/cfg"
	"github.com/seclab-ucsb/turi-go/internal/config"
	"github.com/seclab-ucsb/turi-go/internal/heuristic"
	"github.com/seclab-ucsb/turi-go/internal/hierarchy"
	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
	"github.com/seclab-ucsb/turi-go/internal/obslog"
	"github.com/seclab-ucsb/turi-go/internal/slicer"
	"github.com/seclab-ucsb/turi-go/internal/xref"
)

// Lifter produces a project's class table from an application path. Spec
// §6: "the lifter must expose classes ... the host package for that lifter
// is pluggable" — this module owns no lifter implementation, only the
// contract a caller's lifter must satisfy.
type Lifter interface {
	Lift(appPath, inputFormat, sdk string) ([]*ir.Class, error)
}

// Params are the Project constructor arguments (spec §6: "Project(app_path,
// input_format?, sdk?, prelifted_ir?, cache_path?)"). Go has no optional
// parameters, so the constructor takes this struct instead of a long
// positional argument list.
type Params struct {
	AppPath     string
	InputFormat string
	SDK         string

	// PreliftedIR, when non-nil, is used directly: no cache lookup, no
	// lifter invocation.
	PreliftedIR []*ir.Class

	// CachePath, when set, is consulted before the lifter runs and
	// repopulated afterward (spec §6's construction algorithm).
	CachePath string

	Lifter Lifter
	Config *config.Config
	Log    *zap.Logger
}

// Project owns a project's class table and the derived graphs built over
// it. The graphs are built lazily on first access and cached thereafter;
// every slicer, the cross-reference engine and the reflection heuristic
// share them by reference (spec §5).
type Project struct {
	idx *index.Index
	cfg *config.Config
	log *zap.Logger

	hierarchy *hierarchy.Hierarchy
	full      *cfg.Full
	fullRet   *cfg.Full
	callGraph *callgraph.CallGraph
}

// New constructs a Project per spec §6's algorithm: prelifted IR wins over
// the cache, the cache wins over invoking the lifter, and a freshly-lifted
// class table is written back to CachePath when one was supplied but
// didn't already exist.
func New(p Params) (*Project, error) {
	log := p.Log
	if log == nil {
		log = obslog.Nop()
	}
	cfgv := p.Config
	if cfgv == nil {
		cfgv = config.DefaultConfig()
	}

	classes, err := resolveClasses(p, log)
	if err != nil {
		return nil, err
	}

	idx, err := index.Build(classes)
	if err != nil {
		return nil, fmt.Errorf("project: building index: %w", err)
	}

	return &Project{idx: idx, cfg: cfgv, log: log}, nil
}

func resolveClasses(p Params, log *zap.Logger) ([]*ir.Class, error) {
	if p.PreliftedIR != nil {
		return p.PreliftedIR, nil
	}

	var c *cache.Cache
	if p.CachePath != "" {
		opened, err := cache.Open(p.CachePath)
		if err != nil {
			return nil, fmt.Errorf("project: opening cache: %w", err)
		}
		defer opened.Close()
		c = opened

		classes, found, err := c.Load(p.AppPath)
		if err != nil {
			return nil, fmt.Errorf("project: loading cache: %w", err)
		}
		if found {
			log.Info("project: restored class table from cache", zap.String("app_path", p.AppPath))
			return classes, nil
		}
	}

	if p.Lifter == nil {
		return nil, fmt.Errorf("project: no cache hit for %q and no lifter configured", p.AppPath)
	}
	classes, err := p.Lifter.Lift(p.AppPath, p.InputFormat, p.SDK)
	if err != nil {
		return nil, fmt.Errorf("project: lifting %q: %w", p.AppPath, err)
	}

	if c != nil {
		if err := c.Save(p.AppPath, p.InputFormat, p.SDK, classes); err != nil {
			return nil, fmt.Errorf("project: populating cache: %w", err)
		}
	}

	return classes, nil
}

// Classes returns the project's class table, keyed by name.
func (p *Project) Classes() map[string]*ir.Class { return p.idx.Classes }

// Methods returns the project's method table.
func (p *Project) Methods() map[index.MethodKey]*ir.Method { return p.idx.Methods }

// BlocksToMethods returns the block-to-owning-method reverse index.
func (p *Project) BlocksToMethods() map[*ir.Block]*ir.Method { return p.idx.BlocksToMethods }

// StmtsToBlocks returns the statement-to-owning-block reverse index.
func (p *Project) StmtsToBlocks() map[ir.Stmt]*ir.Block { return p.idx.StmtsToBlocks }

// StmtsToClasses returns the statement-to-owning-class reverse index.
func (p *Project) StmtsToClasses() map[ir.Stmt]*ir.Class { return p.idx.StmtsToClasses }

// Hierarchy returns the project's class hierarchy, building it on first
// access or when force is true.
func (p *Project) Hierarchy(force bool) *hierarchy.Hierarchy {
	if force || p.hierarchy == nil {
		p.hierarchy = hierarchy.Build(p.idx)
	}
	return p.hierarchy
}

// CFGFull returns the interprocedural CFG without return edges.
func (p *Project) CFGFull(force bool) *cfg.Full {
	if force || p.full == nil {
		p.full = cfg.BuildFull(p.idx, p.Hierarchy(false), false, p.log)
	}
	return p.full
}

// CFGFullRetEdges returns the interprocedural CFG with return edges (spec
// §4.4 step 3 / Scenario 4).
func (p *Project) CFGFullRetEdges(force bool) *cfg.Full {
	if force || p.fullRet == nil {
		p.fullRet = cfg.BuildFull(p.idx, p.Hierarchy(false), true, p.log)
	}
	return p.fullRet
}

// CFGMethods returns the per-method intra-procedural CFG for every method
// in the project (spec §6's cfgmethods() accessor).
func (p *Project) CFGMethods(force bool) map[*ir.Method]*cfg.Intra {
	full := p.CFGFull(force)
	out := make(map[*ir.Method]*cfg.Intra, len(p.idx.Methods))
	for _, m := range p.idx.SortedMethods() {
		out[m] = full.IntraOf(m, p.log)
	}
	return out
}

// CallGraph returns the project's method-level call graph.
func (p *Project) CallGraph(force bool) *callgraph.CallGraph {
	if force || p.callGraph == nil {
		p.callGraph = callgraph.Build(p.idx, p.Hierarchy(false), p.log)
	}
	return p.callGraph
}

// graphs assembles the slicer.Graphs bundle a slicer needs, using the
// return-edge CFG: call-return taint expansion (spec §4.6 step 3b) and
// Scenario 4's round trip both require the return edge back to the call
// site.
func (p *Project) graphs() *slicer.Graphs {
	return &slicer.Graphs{
		Idx:       p.idx,
		Hierarchy: p.Hierarchy(false),
		Full:      p.CFGFullRetEdges(false),
		CallGraph: p.CallGraph(false),
		Log:       p.log,
	}
}

// BackwardSlicer constructs a new backward slicer bound to this Project,
// using the configured termination bounds (spec §6: "backwardslicer()").
func (p *Project) BackwardSlicer() *slicer.Backward {
	return slicer.NewBackward(p.graphs()).WithBounds(p.cfg.Analysis.MaxIter, p.cfg.Analysis.MaxItersBlock)
}

// ForwardSlicer constructs a new forward slicer bound to this Project,
// using the configured termination bounds (spec §6: "forwardslicer()").
func (p *Project) ForwardSlicer() *slicer.Forward {
	return slicer.NewForward(p.graphs()).WithBounds(p.cfg.Analysis.MaxIter, p.cfg.Analysis.MaxItersBlock)
}

// XRef runs a cross-reference query against this project (spec §6:
// "x_ref(entity, kind)", see §4.9).
func (p *Project) XRef(q xref.Query) []xref.Hit {
	return xref.Find(p.idx, q)
}

// ReflectionTargets finds every reflective dispatch site in the project
// (spec §4.8 step 1).
func (p *Project) ReflectionTargets() []heuristic.Target {
	return heuristic.FindTargets(p.graphs())
}

// RunReflectionHeuristic resolves every reflective dispatch site's
// candidate concrete classes (spec §4.8), using the project's configured
// collection types and the given stub registry. A nil registry uses
// heuristic.DefaultRegistry().
func (p *Project) RunReflectionHeuristic(registry heuristic.Registry) []heuristic.Result {
	return heuristic.Run(p.graphs(), p.cfg.Heuristic.CollectionTypes, registry)
}
