package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/projectd/pkg/paths"
)

// ImportGraph is the file-level module graph of one program snapshot: an
// edge from A to B means A imports B. Built fresh on every builder update;
// queried for reverse-dependency closures and import cycles.
type ImportGraph struct {
	graph  *simple.DirectedGraph
	ids    map[paths.Path]int64
	byID   map[int64]paths.Path
	nextID int64
}

// NewImportGraph creates an empty import graph.
func NewImportGraph() *ImportGraph {
	return &ImportGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[paths.Path]int64),
		byID:  make(map[int64]paths.Path),
	}
}

// AddFile adds a file node. Adding an existing file is a no-op.
func (g *ImportGraph) AddFile(path paths.Path) {
	if _, exists := g.ids[path]; exists {
		return
	}
	g.ids[path] = g.nextID
	g.byID[g.nextID] = path
	g.graph.AddNode(simple.Node(g.nextID))
	g.nextID++
}

// AddImport adds an edge from importer to imported, creating nodes as
// needed. Self-imports are ignored (gonum rejects self-edges, and a file
// importing itself is already in its own affected set).
func (g *ImportGraph) AddImport(importer, imported paths.Path) {
	if importer == imported {
		return
	}
	g.AddFile(importer)
	g.AddFile(imported)

	from, to := g.ids[importer], g.ids[imported]
	if !g.graph.HasEdgeFromTo(from, to) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(from), g.graph.Node(to)))
	}
}

// Contains reports whether path is a node.
func (g *ImportGraph) Contains(path paths.Path) bool {
	_, ok := g.ids[path]
	return ok
}

// Size returns the node count.
func (g *ImportGraph) Size() int {
	return len(g.ids)
}

// Importers returns the direct reverse dependencies of path.
func (g *ImportGraph) Importers(path paths.Path) []paths.Path {
	id, ok := g.ids[path]
	if !ok {
		return nil
	}
	var out []paths.Path
	nodes := g.graph.To(id)
	for nodes.Next() {
		out = append(out, g.byID[nodes.Node().ID()])
	}
	sortPaths(out)
	return out
}

// AffectedBy returns path plus the transitive closure of its importers: the
// files whose output may change when path changes. Result is sorted.
func (g *ImportGraph) AffectedBy(path paths.Path) []paths.Path {
	id, ok := g.ids[path]
	if !ok {
		return nil
	}

	visited := map[int64]bool{id: true}
	queue := []int64{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		importers := g.graph.To(current)
		for importers.Next() {
			next := importers.Node().ID()
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	out := make([]paths.Path, 0, len(visited))
	for nodeID := range visited {
		out = append(out, g.byID[nodeID])
	}
	sortPaths(out)
	return out
}

func sortPaths(ps []paths.Path) {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
}
