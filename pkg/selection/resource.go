// Package selection evaluates compiled selector expressions against a
// resource graph, producing the set of selected unique IDs.
package selection

import (
	"sort"

	"github.com/arthur-debert/strata/pkg/config"
)

// Resource is one addressable node in the project graph
type Resource struct {
	UniqueID    string
	Name        string
	PackageName string

	// Path is the project-relative source path, forward slashes
	Path string

	// FQN is the dotted address split into components, package first
	FQN []string

	Tags         []string
	ResourceType string
	Group        string
	Access       string
	Version      string

	// TestType distinguishes generic from singular tests; empty on
	// non-test resources
	TestType string

	// Config is the effective configuration after hierarchy merging;
	// may be nil when no configuration applies
	Config *config.Effective

	// DependsOn lists the unique IDs this resource consumes
	DependsOn []string
}

// IsTest reports whether the resource participates in indirect
// selection
func (r *Resource) IsTest() bool {
	return r.ResourceType == "test"
}

// Graph indexes resources by ID with parent and child adjacency
type Graph struct {
	resources map[string]*Resource
	children  map[string][]string
}

// NewGraph builds the adjacency indices. Dangling DependsOn entries
// are tolerated; they simply have no resource to walk to.
func NewGraph(resources []*Resource) *Graph {
	g := &Graph{
		resources: make(map[string]*Resource, len(resources)),
		children:  make(map[string][]string),
	}
	for _, r := range resources {
		g.resources[r.UniqueID] = r
	}
	for _, r := range resources {
		for _, dep := range r.DependsOn {
			g.children[dep] = append(g.children[dep], r.UniqueID)
		}
	}
	return g
}

// Resource looks up one node by ID
func (g *Graph) Resource(id string) (*Resource, bool) {
	r, ok := g.resources[id]
	return r, ok
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.resources)
}

// IDs returns every node ID in sorted order
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.resources))
	for id := range g.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parents collects ancestors of id up to depth hops away
func (g *Graph) Parents(id string, depth uint32) []string {
	return g.walk(id, depth, func(node string) []string {
		r, ok := g.resources[node]
		if !ok {
			return nil
		}
		return r.DependsOn
	})
}

// Children collects descendants of id up to depth hops away
func (g *Graph) Children(id string, depth uint32) []string {
	return g.walk(id, depth, func(node string) []string {
		return g.children[node]
	})
}

// walk is a bounded breadth-first traversal; the start node is not
// part of the result
func (g *Graph) walk(start string, depth uint32, next func(string) []string) []string {
	seen := map[string]bool{start: true}
	frontier := []string{start}
	var out []string

	for hop := uint32(0); hop < depth && len(frontier) > 0; hop++ {
		var nextFrontier []string
		for _, node := range frontier {
			for _, neighbor := range next(node) {
				if seen[neighbor] {
					continue
				}
				seen[neighbor] = true
				out = append(out, neighbor)
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		frontier = nextFrontier
	}
	return out
}
