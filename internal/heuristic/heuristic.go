// Package heuristic implements the reflection heuristic (spec §4.8): it
// uses the backward slicer to guess the concrete classes involved at a
// reflective dispatch site identified by a call to
// java.lang.Object.getClass().
package heuristic

import (
	"sort"
	"strings"

	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
	"github.com/seclab-ucsb/turi-go/internal/slicer"
)

// maxCollectionRecursionDepth bounds the collection-field recursion step
// (spec §4.8 step 3). The source recurses without a declared bound; a
// bound here keeps the heuristic's cost proportional to its usefulness.
// Up to four nested collection-field hops are followed; values stored any
// deeper than that are not resolved, whether the chain is cyclic or not.
const maxCollectionRecursionDepth = 4

// Stub evaluates a well-known reflective helper (generalizing the source's
// single hard-coded getClassesForPackage) against the project's class
// table and returns the concrete classes it resolves to (spec §4.8 step 4,
// SPEC_FULL §8's pluggable stub registry supplement).
type Stub func(idx *index.Index, args []ir.Expr) []string

// Registry maps a stubbed method's name to its evaluator.
type Registry map[string]Stub

// DefaultRegistry returns the one stub the source system hard-codes,
// generalized to a registry entry.
func DefaultRegistry() Registry {
	return Registry{"getClassesForPackage": stubGetClassesForPackage}
}

func stubGetClassesForPackage(idx *index.Index, args []ir.Expr) []string {
	if len(args) == 0 {
		return nil
	}
	c, ok := args[0].(*ir.ConstExpr)
	if !ok {
		return nil
	}
	prefix := c.Value + "."
	var out []string
	for _, name := range idx.ClassOrder {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Target is one reflection site: a getClass() invocation and the local
// variable that is its receiver.
type Target struct {
	Method   *ir.Method
	Block    *ir.Block
	Stmt     ir.Stmt
	Receiver string
}

// Result is the outcome for one Target: the set of concrete classes the
// heuristic resolved, sorted for determinism.
type Result struct {
	Target  Target
	Classes []string
}

// FindTargets scans the project for every java.lang.Object.getClass()
// invocation with a local receiver (spec §4.8 step 1).
func FindTargets(g *slicer.Graphs) []Target {
	var out []Target
	for _, m := range g.Idx.SortedMethods() {
		for _, b := range m.Blocks {
			for _, s := range b.Statements {
				invoke, ok := ir.InvokeOf(s)
				if !ok || invoke.ClassName != "java.lang.Object" || invoke.MethodName != "getClass" {
					continue
				}
				loc, ok := invoke.Base.(*ir.Local)
				if !ok {
					continue
				}
				out = append(out, Target{Method: m, Block: b, Stmt: s, Receiver: loc.Name})
			}
		}
	}
	return out
}

// Run finds every reflection target in the project and resolves each to
// its set of candidate concrete classes.
func Run(g *slicer.Graphs, collectionTypes []string, registry Registry) []Result {
	if registry == nil {
		registry = DefaultRegistry()
	}

	var results []Result
	for _, t := range FindTargets(g) {
		classes := resolveTarget(g, t.Method, t.Receiver, collectionTypes, registry, maxCollectionRecursionDepth)
		sort.Strings(classes)
		results = append(results, Result{Target: t, Classes: classes})
	}
	return results
}

// resolveTarget backward-slices varName in m and classifies every tainted
// value per spec §4.8 step 2: a class-name match is a class resolvent; a
// name matching a field of an already-found class is a field resolvent,
// recursively expanded by steps 3 and 4.
func resolveTarget(g *slicer.Graphs, m *ir.Method, varName string, collectionTypes []string, registry Registry, depth int) []string {
	result := slicer.NewBackward(g).Slice(slicer.Seed{
		Kind: slicer.SeedMethodVar, Class: m.ClassName, Method: m.Name, Params: m.Params, Var: varName,
	})
	taintedNames := result.AllTaintedNames()

	classSet := map[string]struct{}{}
	for name := range taintedNames {
		if _, ok := g.Idx.Classes[name]; ok {
			classSet[name] = struct{}{}
		}
	}

	classSnapshot := make([]string, 0, len(classSet))
	for c := range classSet {
		classSnapshot = append(classSnapshot, c)
	}
	sort.Strings(classSnapshot)

	for name := range taintedNames {
		if _, isClass := classSet[name]; isClass {
			continue
		}
		for _, className := range classSnapshot {
			class := g.Idx.Classes[className]
			field, ok := class.Fields[name]
			if !ok {
				continue
			}
			resolveFieldResolvent(g, class, field, collectionTypes, registry, depth, classSet)
			applyStubWrites(g, class, field, registry, classSet)
		}
	}

	out := make([]string, 0, len(classSet))
	for c := range classSet {
		out = append(out, c)
	}
	return out
}

// resolveFieldResolvent implements spec §4.8 step 3: a resolvent field
// whose declared type is a collection type contributes the backward-sliced
// classes of every value stored into it via collection.add(x).
func resolveFieldResolvent(g *slicer.Graphs, class *ir.Class, field ir.Field, collectionTypes []string, registry Registry, depth int, classSet map[string]struct{}) {
	if depth <= 0 || !isCollectionType(field.Type, collectionTypes) {
		return
	}
	for _, site := range collectionStoreArgs(class, field) {
		for _, c := range resolveTarget(g, site.Method, site.Var, collectionTypes, registry, depth-1) {
			classSet[c] = struct{}{}
		}
	}
}

type storeSite struct {
	Method *ir.Method
	Var    string
}

// collectionStoreArgs finds every collection.add(x) call in class whose
// receiver is field, returning the method and local name of each x that is
// itself a local.
func collectionStoreArgs(class *ir.Class, field ir.Field) []storeSite {
	var out []storeSite
	for _, m := range class.Methods {
		for _, b := range m.Blocks {
			for _, s := range b.Statements {
				invoke, ok := ir.InvokeOf(s)
				if !ok || invoke.MethodName != "add" || len(invoke.Args) == 0 {
					continue
				}
				fref, ok := invoke.Base.(*ir.InstanceFieldRef)
				if !ok || fref.Field.Name != field.Name || fref.Field.DeclaringClass != field.DeclaringClass {
					continue
				}
				loc, ok := invoke.Args[0].(*ir.Local)
				if !ok {
					continue
				}
				out = append(out, storeSite{Method: m, Var: loc.Name})
			}
		}
	}
	return out
}

// applyStubWrites implements spec §4.8 step 4: when a resolvent field is
// written by a call to a stubbed method, the stub's evaluation merges
// directly into classSet.
func applyStubWrites(g *slicer.Graphs, class *ir.Class, field ir.Field, registry Registry, classSet map[string]struct{}) {
	for _, m := range class.Methods {
		for _, b := range m.Blocks {
			for _, s := range b.Statements {
				as, ok := s.(*ir.AssignStmt)
				if !ok {
					continue
				}
				fref, ok := as.LeftOp.(*ir.InstanceFieldRef)
				if !ok || fref.Field.Name != field.Name || fref.Field.DeclaringClass != field.DeclaringClass {
					continue
				}
				invoke, ok := as.RightOp.(*ir.InvokeExpr)
				if !ok {
					continue
				}
				stub, ok := registry[invoke.MethodName]
				if !ok {
					continue
				}
				for _, c := range stub(g.Idx, invoke.Args) {
					classSet[c] = struct{}{}
				}
			}
		}
	}
}

func isCollectionType(t string, collectionTypes []string) bool {
	for _, c := range collectionTypes {
		if c == t {
			return true
		}
	}
	return false
}
