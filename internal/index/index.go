// Package index builds the reverse maps spec §3 calls "derived indices":
// method table, block-to-method, statement-to-block, statement-to-class.
// It is the project index component from spec §2 — a leaf package so that
// Hierarchy, CFG, CallGraph, the slicers, cross-reference and the
// reflection heuristic can all depend on it without any of them needing to
// import the higher-level Project type that owns their lazily-built
// caches (internal/project).
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seclab-ucsb/turi-go/internal/ir"
)

// MethodKey is the (class_name, name, params) identity tuple spec §3
// requires to be unique within a project.
type MethodKey struct {
	Class  string
	Name   string
	Params string // Params joined with "," — order-sensitive, matches spec's ordered-sequence identity
}

// KeyOf derives a method's identity key from its declared shape.
func KeyOf(class, name string, params []string) MethodKey {
	return MethodKey{Class: class, Name: name, Params: strings.Join(params, ",")}
}

// KeyOfMethod derives m's identity key.
func KeyOfMethod(m *ir.Method) MethodKey {
	return KeyOf(m.ClassName, m.Name, m.Params)
}

// Index holds the class table and the reverse maps derived from it.
// Classes is ordered (ClassOrder) so iteration-sensitive results (like
// Hierarchy.AllSubclasses enumeration and cross-reference hit lists) are
// reproducible across runs, per spec §5's determinism requirement.
type Index struct {
	ClassOrder []string
	Classes    map[string]*ir.Class
	Methods    map[MethodKey]*ir.Method

	BlocksToMethods map[*ir.Block]*ir.Method
	StmtsToBlocks   map[ir.Stmt]*ir.Block
	StmtsToClasses  map[ir.Stmt]*ir.Class
}

// Build constructs an Index from a freshly-lifted (or cache-restored)
// class table, eagerly populating every reverse map — spec §3's invariant
// that "the reverse indices agree" is established once here rather than
// lazily, following turi/project.py's constructor (SPEC_FULL §8).
func Build(classes []*ir.Class) (*Index, error) {
	idx := &Index{
		ClassOrder:      make([]string, 0, len(classes)),
		Classes:         make(map[string]*ir.Class, len(classes)),
		Methods:         make(map[MethodKey]*ir.Method),
		BlocksToMethods: make(map[*ir.Block]*ir.Method),
		StmtsToBlocks:   make(map[ir.Stmt]*ir.Block),
		StmtsToClasses:  make(map[ir.Stmt]*ir.Class),
	}

	for _, c := range classes {
		if _, dup := idx.Classes[c.Name]; dup {
			return nil, fmt.Errorf("index: duplicate class %q", c.Name)
		}
		idx.ClassOrder = append(idx.ClassOrder, c.Name)
		idx.Classes[c.Name] = c

		for _, m := range c.Methods {
			key := KeyOfMethod(m)
			if _, dup := idx.Methods[key]; dup {
				return nil, fmt.Errorf("index: duplicate method %s", m.Signature())
			}
			idx.Methods[key] = m

			for _, b := range m.Blocks {
				idx.BlocksToMethods[b] = m
				for _, s := range b.Statements {
					idx.StmtsToBlocks[s] = b
					idx.StmtsToClasses[s] = c
				}
			}
		}
	}

	sort.Strings(idx.ClassOrder)
	return idx, nil
}

// IsExternal reports whether className does not belong to this project's
// class table — spec §3: "An InvokeExpr whose class_name is not in the
// Project's class table is treated as external".
func (idx *Index) IsExternal(className string) bool {
	_, ok := idx.Classes[className]
	return !ok
}

// Lookup resolves a static (class, name, params) tuple to the declared
// Method, if present in this project.
func (idx *Index) Lookup(class, name string, params []string) (*ir.Method, bool) {
	m, ok := idx.Methods[KeyOf(class, name, params)]
	return m, ok
}

// SortedMethods returns every method in the project ordered by
// (class, name, params), for callers that need deterministic enumeration
// over the whole project (spec §5).
func (idx *Index) SortedMethods() []*ir.Method {
	keys := make([]MethodKey, 0, len(idx.Methods))
	for k := range idx.Methods {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Class != keys[j].Class {
			return keys[i].Class < keys[j].Class
		}
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Params < keys[j].Params
	})
	out := make([]*ir.Method, len(keys))
	for i, k := range keys {
		out[i] = idx.Methods[k]
	}
	return out
}
