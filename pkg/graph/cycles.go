package graph

import (
	"github.com/ritzau/projectd/pkg/paths"
)

// Cycle is a set of files that import each other.
type Cycle struct {
	Files []paths.Path `json:"files"`
}

// Cycles returns one entry per group of files that import each other: the
// strongly connected components of size > 1, found with an iterative
// Tarjan walk keyed by canonical path. Node and successor order is sorted,
// so the result is deterministic for a given graph.
func (g *ImportGraph) Cycles() []Cycle {
	roots := make([]paths.Path, 0, len(g.ids))
	for path := range g.ids {
		roots = append(roots, path)
	}
	sortPaths(roots)

	var (
		counter int
		index   = make(map[paths.Path]int, len(roots))
		low     = make(map[paths.Path]int, len(roots))
		onStack = make(map[paths.Path]bool, len(roots))
		stack   []paths.Path
		cycles  []Cycle
	)

	// frame is one node mid-traversal: its successor list and how far
	// along it we are. An explicit frame stack replaces recursion so deep
	// import chains cannot exhaust the goroutine stack.
	type frame struct {
		node  paths.Path
		succs []paths.Path
		next  int
	}

	successors := func(path paths.Path) []paths.Path {
		var out []paths.Path
		iter := g.graph.From(g.ids[path])
		for iter.Next() {
			out = append(out, g.byID[iter.Node().ID()])
		}
		sortPaths(out)
		return out
	}

	discover := func(path paths.Path) {
		index[path] = counter
		low[path] = counter
		counter++
		stack = append(stack, path)
		onStack[path] = true
	}

	for _, root := range roots {
		if _, seen := index[root]; seen {
			continue
		}
		discover(root)
		frames := []frame{{node: root, succs: successors(root)}}

		for len(frames) > 0 {
			f := &frames[len(frames)-1]

			if f.next < len(f.succs) {
				next := f.succs[f.next]
				f.next++
				if _, seen := index[next]; !seen {
					discover(next)
					frames = append(frames, frame{node: next, succs: successors(next)})
				} else if onStack[next] {
					if index[next] < low[f.node] {
						low[f.node] = index[next]
					}
				}
				continue
			}

			// All successors handled: if this node roots a component,
			// unwind it; single nodes are not cycles.
			if low[f.node] == index[f.node] {
				var files []paths.Path
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					files = append(files, top)
					if top == f.node {
						break
					}
				}
				if len(files) > 1 {
					sortPaths(files)
					cycles = append(cycles, Cycle{Files: files})
				}
			}

			finished := f.node
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if low[finished] < low[parent.node] {
					low[parent.node] = low[finished]
				}
			}
		}
	}
	return cycles
}
