// Package proximity builds spatial adjacency groups over the sessions in a
// room and stabilizes their group identifiers across tick-to-tick flicker.
package proximity

import (
	"sort"
	"strings"

	"github.com/jaehyeon-kim/agora/internal/space/session"
)

// Group is a transient connected component of nearby idle sessions.
// Groups are recomputed from scratch every tick and never mutated.
type Group struct {
	// Members are the session ids, sorted ascending.
	Members []string
	// Signature is the sorted member ids joined with ":".
	Signature string
}

// BuildGroups computes the proximity groups for one room's sessions.
//
// Only sessions whose motion state is idle participate. Positions are
// quantized to tile coordinates by integer division with tileSize; two
// sessions are adjacent iff their Chebyshev tile distance is <= radius.
// Connected components are extracted by BFS; singletons are not groups.
//
// Precondition: tileSize must be > 0; radius must be >= 0.
// Postcondition: Returns components of size >= 2, sorted by signature, each
// with a sorted member list. Deterministic for the same input set.
func BuildGroups(views []session.View, tileSize, radius int) []Group {
	idle := make([]session.View, 0, len(views))
	for _, v := range views {
		if v.Pos.Motion == session.MotionIdle {
			idle = append(idle, v)
		}
	}
	if len(idle) < 2 {
		return nil
	}

	// Adjacency over all idle pairs.
	adj := make(map[string][]string, len(idle))
	for i := 0; i < len(idle); i++ {
		for j := i + 1; j < len(idle); j++ {
			if withinRadius(idle[i].Pos, idle[j].Pos, tileSize, radius) {
				adj[idle[i].ID] = append(adj[idle[i].ID], idle[j].ID)
				adj[idle[j].ID] = append(adj[idle[j].ID], idle[i].ID)
			}
		}
	}

	visited := make(map[string]bool, len(idle))
	var groups []Group
	for _, v := range idle {
		if visited[v.ID] {
			continue
		}
		component := bfs(v.ID, adj, visited)
		if len(component) < 2 {
			continue
		}
		sort.Strings(component)
		groups = append(groups, Group{
			Members:   component,
			Signature: strings.Join(component, ":"),
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Signature < groups[j].Signature })
	return groups
}

// withinRadius reports whether two positions fall within the Chebyshev tile
// radius, so diagonal and axis-aligned neighbors are treated identically.
func withinRadius(a, b session.Position, tileSize, radius int) bool {
	dx := abs(a.X/tileSize - b.X/tileSize)
	dy := abs(a.Y/tileSize - b.Y/tileSize)
	if dy > dx {
		dx = dy
	}
	return dx <= radius
}

// bfs walks the component containing start, marking every node visited.
func bfs(start string, adj map[string][]string, visited map[string]bool) []string {
	queue := []string{start}
	visited[start] = true
	var component []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		component = append(component, id)
		for _, next := range adj[id] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return component
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
