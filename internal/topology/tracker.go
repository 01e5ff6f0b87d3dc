package topology

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNodeNotFound is returned when selecting an address the current
	// graph does not contain.
	ErrNodeNotFound = errors.New("topology: node not found")
	// ErrNotReady is returned before the first graph has been built.
	ErrNotReady = errors.New("topology: no graph built yet")
)

// Tracker holds the latest graph and the node selected for detail display.
// Only the selection survives a rebuild.
type Tracker struct {
	mu         sync.RWMutex
	graph      *Graph
	selected   *uint16 // user selection, nil means follow the graph
	hops       map[uint16]int
	generation uint64
	updatedAt  time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{hops: make(map[uint16]int)}
}

// Update replaces the current graph. A user selection is kept while its
// address is still present; otherwise the graph's own detail node is used.
func (t *Tracker) Update(g *Graph) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.graph = g
	t.generation++
	t.updatedAt = time.Now()

	if t.selected != nil {
		if _, ok := g.FindNode(*t.selected); !ok {
			t.selected = nil
		}
	}
	t.hops = t.recalculateHops()
}

// Select pins the detail node to the given short address.
func (t *Tracker) Select(rloc16 uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.graph == nil {
		return ErrNotReady
	}
	if _, ok := t.graph.FindNode(rloc16); !ok {
		return ErrNodeNotFound
	}
	t.selected = &rloc16
	return nil
}

// ClearSelection returns to following the graph's detail node.
func (t *Tracker) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = nil
}

// Selected returns a copy of the node chosen for detail display, or nil.
func (t *Tracker) Selected() *GraphNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	if t.selected != nil {
		if i, ok := t.graph.FindNode(*t.selected); ok {
			nodeCopy := t.graph.Nodes[i]
			return &nodeCopy
		}
	}
	if t.graph.SelectedNode != nil {
		nodeCopy := *t.graph.SelectedNode
		return &nodeCopy
	}
	return nil
}

// Current returns the latest graph with the tracker's selection applied,
// or nil before the first update.
func (t *Tracker) Current() *Graph {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	graphCopy := *t.graph
	if t.selected != nil {
		if i, ok := graphCopy.FindNode(*t.selected); ok {
			graphCopy.SelectedNode = &graphCopy.Nodes[i]
		}
	}
	return &graphCopy
}

// Node returns a copy of the node with the given short address, or nil.
func (t *Tracker) Node(rloc16 uint16) *GraphNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.graph == nil {
		return nil
	}
	if i, ok := t.graph.FindNode(rloc16); ok {
		nodeCopy := t.graph.Nodes[i]
		return &nodeCopy
	}
	return nil
}

// Hops returns the hop count from the border router to rloc16, or -1 when
// it is unreachable or unknown.
func (t *Tracker) Hops(rloc16 uint16) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h, ok := t.hops[rloc16]; ok {
		return h
	}
	return -1
}

// Generation counts updates since creation.
func (t *Tracker) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

// UpdatedAt returns the time of the last update.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// recalculateHops runs a BFS over the links starting at the graph's
// detail node.
func (t *Tracker) recalculateHops() map[uint16]int {
	hops := make(map[uint16]int)
	g := t.graph
	if g == nil || g.SelectedNode == nil {
		return hops
	}

	start := -1
	for i := range g.Nodes {
		if &g.Nodes[i] == g.SelectedNode {
			start = i
			break
		}
	}
	if start < 0 {
		return hops
	}

	neighbors := make(map[int][]int, len(g.Nodes))
	for _, l := range g.Links {
		neighbors[l.Source] = append(neighbors[l.Source], l.Target)
		neighbors[l.Target] = append(neighbors[l.Target], l.Source)
	}

	dist := map[int]int{start: 0}
	queue := []int{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, n := range neighbors[current] {
			if _, visited := dist[n]; visited {
				continue
			}
			dist[n] = dist[current] + 1
			queue = append(queue, n)
		}
	}

	for i, d := range dist {
		if i < 0 || i >= len(g.Nodes) {
			continue
		}
		addr := g.Nodes[i].Rloc16
		if prev, ok := hops[addr]; !ok || d < prev {
			hops[addr] = d
		}
	}
	return hops
}
