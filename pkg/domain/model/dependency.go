package model

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// DependencyGraph maps master fields to the fields whose options depend on
// them. It is built per form and never mutated afterwards.
type DependencyGraph struct {
	// masters of each dependent field, in DependsOn order
	masters map[string][]string
	// dependents of each master field, in schema order
	dependents map[string][]string
	// masterOrder lists every master once, in order of first appearance
	masterOrder []string
	// dependentOrder lists every dependent field in schema order
	dependentOrder []string
}

// BuildDependencyGraph parses the DependsOn lists of fields. A field that
// depends on itself or on an unknown field, or a dependency cycle, is a
// configuration error.
func BuildDependencyGraph(fields []FieldDescriptor) (*DependencyGraph, error) {
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}

	g := &DependencyGraph{
		masters:    make(map[string][]string),
		dependents: make(map[string][]string),
	}

	for _, f := range fields {
		masters := f.Masters()
		if len(masters) == 0 {
			continue
		}
		var unique []string
		for _, m := range masters {
			if m == f.Name {
				return nil, goerr.Wrap(ErrConfiguration, "field depends on itself",
					goerr.V(FieldNameKey, f.Name))
			}
			if _, ok := known[m]; !ok {
				return nil, goerr.Wrap(ErrConfiguration, "field depends on an unknown field",
					goerr.V(FieldNameKey, f.Name), goerr.V("depends_on", m))
			}
			if slices.Contains(unique, m) {
				continue
			}
			unique = append(unique, m)

			if _, seen := g.dependents[m]; !seen {
				g.masterOrder = append(g.masterOrder, m)
			}
			g.dependents[m] = append(g.dependents[m], f.Name)
		}
		g.masters[f.Name] = unique
		g.dependentOrder = append(g.dependentOrder, f.Name)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, goerr.Wrap(ErrConfiguration, "dependency cycle between fields",
			goerr.V("cycle", cycle))
	}

	return g, nil
}

const (
	white = iota
	grey
	black
)

func (g *DependencyGraph) findCycle() []string {
	color := make(map[string]int)
	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		path = append(path, name)
		for _, m := range g.masters[name] {
			switch color[m] {
			case grey:
				start := slices.Index(path, m)
				cycle = append(slices.Clone(path[start:]), m)
				return true
			case white:
				if visit(m) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range g.dependentOrder {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

// Changed returns the fields to re-resolve when master changes
func (g *DependencyGraph) Changed(master string) []string {
	if g == nil {
		return nil
	}
	return slices.Clone(g.dependents[master])
}

// Masters returns every field that has at least one dependent
func (g *DependencyGraph) Masters() []string {
	if g == nil {
		return nil
	}
	return slices.Clone(g.masterOrder)
}

// Dependents returns every field that depends on another, in schema order
func (g *DependencyGraph) Dependents() []string {
	if g == nil {
		return nil
	}
	return slices.Clone(g.dependentOrder)
}

// DependsOn returns the masters of field
func (g *DependencyGraph) DependsOn(field string) []string {
	if g == nil {
		return nil
	}
	return slices.Clone(g.masters[field])
}

// HasDependencies reports whether field depends on any master
func (g *DependencyGraph) HasDependencies(field string) bool {
	return g != nil && len(g.masters[field]) > 0
}

// IsMaster reports whether changing field affects another field
func (g *DependencyGraph) IsMaster(field string) bool {
	return g != nil && len(g.dependents[field]) > 0
}
