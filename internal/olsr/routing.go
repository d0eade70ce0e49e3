package olsr

import (
	"container/heap"
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// RouteEntry is one row of the computed routing table: how to reach dest
// and at what hop distance.
type RouteEntry struct {
	Dest     netip.Addr
	NextHop  netip.Addr
	Distance int
}

// RoutingTable is the engine's current set of computed routes, keyed by
// destination (C7).
type RoutingTable struct {
	routes map[netip.Addr]RouteEntry
}

// Lookup returns the route to dest, if one is known.
func (t *RoutingTable) Lookup(dest netip.Addr) (RouteEntry, bool) {
	if t == nil {
		return RouteEntry{}, false
	}
	r, ok := t.routes[dest]
	return r, ok
}

// Entries returns all routes, sorted by destination for stable output.
func (t *RoutingTable) Entries() []RouteEntry {
	if t == nil {
		return nil
	}
	out := make([]RouteEntry, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dest.Less(out[j].Dest) })
	return out
}

// String renders the routing table as a fixed-width text listing, in the
// same destination/next-hop/distance shape a CLI "-dump" flag reports.
func (t *RoutingTable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-16s %s\n", "Destination", "Next Hop", "Distance")
	for _, r := range t.Entries() {
		fmt.Fprintf(&b, "%-16s %-16s %d\n", r.Dest, r.NextHop, r.Distance)
	}
	return b.String()
}

// graphEdge is one directed, unit-weight edge in the routing graph.
type graphEdge struct {
	to netip.Addr
}

// BuildGraph assembles the directed routing graph from the three live
// databases that feed it: symmetric 1-hop neighbors and the 2-hop edges
// through them from the neighbor manager, and MPR-advertised topology edges from the
// topology manager. Every OLSR link is modeled as unit weight, matching the
// protocol's hop-count metric (RFC 3626 §10 and §Non-goals: no per-link
// weighting).
func BuildGraph(selfIP netip.Addr, nm *NeighborManager, tm *TopologyManager) map[netip.Addr][]graphEdge {
	graph := make(map[netip.Addr][]graphEdge)
	ensure := func(ip netip.Addr) {
		if _, ok := graph[ip]; !ok {
			graph[ip] = nil
		}
	}
	addEdge := func(from, to netip.Addr) {
		ensure(from)
		ensure(to)
		for _, e := range graph[from] {
			if e.to == to {
				return
			}
		}
		graph[from] = append(graph[from], graphEdge{to: to})
	}

	ensure(selfIP)
	for ip, n := range nm.neighbors {
		if n.Symmetric {
			addEdge(selfIP, ip)
		}
	}
	for key := range nm.twoHopSet {
		if n, ok := nm.neighbors[key.neighbor]; ok && n.Symmetric {
			addEdge(key.neighbor, key.twoHop)
		}
	}
	for _, edge := range tm.Edges() {
		addEdge(edge.LastAddr, edge.DestAddr)
	}
	return graph
}

// dijkstraItem is one entry in the shortest-path priority queue.
type dijkstraItem struct {
	node netip.Addr
	dist int
}

type dijkstraQueue []dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x interface{}) { *q = append(*q, x.(dijkstraItem)) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Dijkstra computes shortest (unit-weight, hop-count) distances and parent
// pointers from source over graph, using a binary heap priority queue.
func Dijkstra(graph map[netip.Addr][]graphEdge, source netip.Addr) (dist map[netip.Addr]int, parent map[netip.Addr]netip.Addr) {
	const infinite = int(^uint(0) >> 1)

	dist = make(map[netip.Addr]int, len(graph))
	parent = make(map[netip.Addr]netip.Addr, len(graph))
	for node := range graph {
		dist[node] = infinite
	}
	dist[source] = 0

	pq := &dijkstraQueue{{node: source, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(dijkstraItem)
		if cur.dist != dist[cur.node] {
			continue // stale entry, a shorter path to this node was already found
		}
		for _, e := range graph[cur.node] {
			nd := cur.dist + 1
			if nd < dist[e.to] {
				dist[e.to] = nd
				parent[e.to] = cur.node
				heap.Push(pq, dijkstraItem{node: e.to, dist: nd})
			}
		}
	}
	return dist, parent
}

// ComputeRoutingTable runs Dijkstra from selfIP over the graph built from nm
// and tm, then backtraces each reachable destination's shortest path to
// find its first hop.
func ComputeRoutingTable(selfIP netip.Addr, nm *NeighborManager, tm *TopologyManager) *RoutingTable {
	const infinite = int(^uint(0) >> 1)

	graph := BuildGraph(selfIP, nm, tm)
	dist, parent := Dijkstra(graph, selfIP)

	routes := make(map[netip.Addr]RouteEntry)
	for dest, d := range dist {
		if dest == selfIP || d == infinite {
			continue
		}
		cur := dest
		var nextHop netip.Addr
		for {
			p, ok := parent[cur]
			if !ok {
				break
			}
			nextHop = cur
			if p == selfIP {
				break
			}
			cur = p
		}
		if !nextHop.IsValid() {
			continue
		}
		routes[dest] = RouteEntry{Dest: dest, NextHop: nextHop, Distance: d}
	}
	return &RoutingTable{routes: routes}
}
