// Package unitgraph renders recovered units as a lattice graph: one
// node per locator, edges to the members that implement it.
package unitgraph

import (
	"github.com/zboralski/lattice"

	"rekindle/internal/scan"
)

// Build constructs a lattice.Graph from scanned units. Each unit's
// locator becomes a node with edges to its build and populate entry
// points, its override field, its named references, and its refresh
// methods.
func Build(units []*scan.Unit) *lattice.Graph {
	g := &lattice.Graph{}
	for _, u := range units {
		g.Nodes = append(g.Nodes, u.Locator)
		if u.Build != nil {
			g.Edges = append(g.Edges, lattice.Edge{Caller: u.Locator, Callee: u.Build.FullName()})
		}
		if u.Populate != nil {
			g.Edges = append(g.Edges, lattice.Edge{Caller: u.Locator, Callee: u.Populate.FullName()})
		}
		if u.Override != nil {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: u.Locator,
				Callee: u.Override.Decl.FullName() + "." + u.Override.Name,
			})
		}
		for _, ref := range u.NamedRefs {
			g.Edges = append(g.Edges, lattice.Edge{Caller: u.Locator, Callee: "name:" + ref.Name})
		}
		for _, m := range u.RefreshMethods {
			g.Edges = append(g.Edges, lattice.Edge{Caller: u.Locator, Callee: m.FullName()})
		}
	}
	g.Dedup()
	return g
}
