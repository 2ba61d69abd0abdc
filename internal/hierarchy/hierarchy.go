// Package hierarchy builds the class/interface subtype index and resolves
// a static invocation expression to the set of concrete methods that may
// execute it at runtime (spec §4.2).
package hierarchy

import (
	"fmt"
	"sort"

	"github.com/seclab-ucsb/turi-go/internal/index"
	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// NoConcreteDispatch is returned by ResolveInvoke when dispatch rule 2
// (spec §4.2) finds no concrete override anywhere in the subtype lattice.
// Callers (CFG, CallGraph) catch it and treat the site as external.
type NoConcreteDispatch struct {
	Class  string
	Method string
	Params []string
}

func (e *NoConcreteDispatch) Error() string {
	return fmt.Sprintf("no concrete dispatch target for %s.%s%v", e.Class, e.Method, e.Params)
}

// Hierarchy is the class-subclass index built from a project's class
// table.
type Hierarchy struct {
	idx *index.Index

	// subclasses[c] holds c's direct subclasses.
	subclasses map[string][]string
	// allSubclasses[c] holds c's transitive subclass closure.
	allSubclasses map[string][]string
	// implementers[i] holds classes (including transitive subclasses)
	// implementing interface i.
	implementers map[string][]string
}

// Build constructs the Hierarchy from idx's class table.
func Build(idx *index.Index) *Hierarchy {
	h := &Hierarchy{
		idx:           idx,
		subclasses:    make(map[string][]string),
		allSubclasses: make(map[string][]string),
		implementers:  make(map[string][]string),
	}

	for _, name := range idx.ClassOrder {
		c := idx.Classes[name]
		if c.SuperClass != "" {
			h.subclasses[c.SuperClass] = append(h.subclasses[c.SuperClass], name)
		}
		for _, iface := range c.Interfaces {
			h.implementers[iface] = append(h.implementers[iface], name)
		}
	}
	for k := range h.subclasses {
		sort.Strings(h.subclasses[k])
	}

	for _, name := range idx.ClassOrder {
		h.allSubclasses[name] = h.transitiveSubclasses(name)
	}
	// An interface's implementers also include the transitive subclasses
	// of each direct implementer.
	for iface, direct := range h.implementers {
		seen := map[string]struct{}{}
		all := make([]string, 0, len(direct))
		for _, d := range direct {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				all = append(all, d)
			}
			for _, sub := range h.allSubclasses[d] {
				if _, ok := seen[sub]; !ok {
					seen[sub] = struct{}{}
					all = append(all, sub)
				}
			}
		}
		sort.Strings(all)
		h.implementers[iface] = all
	}

	return h
}

func (h *Hierarchy) transitiveSubclasses(class string) []string {
	var out []string
	seen := map[string]struct{}{}
	var walk func(string)
	walk = func(c string) {
		for _, sub := range h.subclasses[c] {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			out = append(out, sub)
			walk(sub)
		}
	}
	walk(class)
	sort.Strings(out)
	return out
}

// Subclasses returns the direct subclasses of class.
func (h *Hierarchy) Subclasses(class string) []string { return h.subclasses[class] }

// AllSubclasses returns the transitive subclass closure of class.
func (h *Hierarchy) AllSubclasses(class string) []string { return h.allSubclasses[class] }

// Implementers returns the classes (including their transitive
// subclasses) that implement interface iface.
func (h *Hierarchy) Implementers(iface string) []string { return h.implementers[iface] }

// isSpecialDispatch reports whether invoke must dispatch exactly to
// staticMethod: constructors, private methods, super-calls and static
// calls all resolve statically (spec §4.2 rule 1).
func isSpecialDispatch(invoke *ir.InvokeExpr) bool {
	return invoke.Invoke == ir.SpecialInvoke || invoke.Invoke == ir.StaticInvoke
}

// ResolveInvoke implements spec §4.2's dispatch algorithm: special/static
// calls resolve to staticMethod; virtual/interface calls enumerate every
// concrete override reachable from staticMethod.ClassName through the
// subtype lattice. containerMethod is accepted for parity with the
// original dispatch signature (callers, e.g. the slicer, use it for
// context) but does not affect resolution.
func (h *Hierarchy) ResolveInvoke(invoke *ir.InvokeExpr, staticMethod *ir.Method, containerMethod *ir.Method) ([]*ir.Method, error) {
	if isSpecialDispatch(invoke) {
		return []*ir.Method{staticMethod}, nil
	}

	if invoke.Invoke != ir.VirtualInvoke && invoke.Invoke != ir.InterfaceInvoke {
		return nil, &NoConcreteDispatch{Class: invoke.ClassName, Method: invoke.MethodName, Params: invoke.MethodParams}
	}

	candidates := []string{staticMethod.ClassName}
	candidates = append(candidates, h.AllSubclasses(staticMethod.ClassName)...)
	if invoke.Invoke == ir.InterfaceInvoke {
		candidates = append(candidates, h.Implementers(staticMethod.ClassName)...)
	}

	seen := map[string]struct{}{}
	var targets []*ir.Method
	for _, className := range candidates {
		if _, dup := seen[className]; dup {
			continue
		}
		seen[className] = struct{}{}

		if _, ok := h.idx.Classes[className]; !ok {
			continue
		}
		m, ok := h.idx.Lookup(className, staticMethod.Name, staticMethod.Params)
		if !ok {
			continue
		}
		// Rule 2 enumerates concrete (non-ABSTRACT) overrides only.
		// NATIVE methods have no body but are still concrete targets;
		// it's up to CFG/CallGraph construction (spec §4.4/§4.5) to skip
		// them when they need an entry block to wire an edge to.
		if m.HasAttr("ABSTRACT") {
			continue
		}
		targets = append(targets, m)
	}

	if len(targets) == 0 {
		return nil, &NoConcreteDispatch{Class: invoke.ClassName, Method: invoke.MethodName, Params: invoke.MethodParams}
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].ClassName != targets[j].ClassName {
			return targets[i].ClassName < targets[j].ClassName
		}
		return targets[i].Name < targets[j].Name
	})
	return targets, nil
}
