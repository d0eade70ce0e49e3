package olsr

import (
	"net/netip"
	"time"

	"github.com/olsr-go/olsrd/internal/wire"
)

// NeighborTuple is the engine's record of a 1-hop neighbor's status and
// advertised willingness (RFC 3626 §4.2, §8.1).
type NeighborTuple struct {
	MainAddr    netip.Addr
	Symmetric   bool
	Willingness uint8
}

// twoHopKey identifies one (1-hop neighbor, 2-hop neighbor) edge.
type twoHopKey struct {
	neighbor netip.Addr
	twoHop   netip.Addr
}

// TwoHopTuple is one edge in the 2-hop topology reachable through a given
// symmetric 1-hop neighbor (RFC 3626 §4.3.2).
type TwoHopTuple struct {
	NeighborMainAddr netip.Addr
	TwoHopAddr       netip.Addr
	ExpirationTime   time.Time
}

// MPRSelectorTuple records that sender has selected this node as one of
// its multipoint relays (RFC 3626 §4.3.4, §8.4.1).
type MPRSelectorTuple struct {
	MainAddr       netip.Addr
	ExpirationTime time.Time
}

// NeighborManager is the 1-hop/2-hop/MPR-selector database (C4).
type NeighborManager struct {
	selfIP netip.Addr

	neighbors     map[netip.Addr]*NeighborTuple
	twoHopSet     map[twoHopKey]*TwoHopTuple
	currentMPRSet map[netip.Addr]struct{}
	mprSelectors  map[netip.Addr]*MPRSelectorTuple
}

// NewNeighborManager returns an empty neighbor manager for the node at selfIP.
func NewNeighborManager(selfIP netip.Addr) *NeighborManager {
	return &NeighborManager{
		selfIP:        selfIP,
		neighbors:     make(map[netip.Addr]*NeighborTuple),
		twoHopSet:     make(map[twoHopKey]*TwoHopTuple),
		currentMPRSet: make(map[netip.Addr]struct{}),
		mprSelectors:  make(map[netip.Addr]*MPRSelectorTuple),
	}
}

// UpdateStatus applies the link-set's current view of a neighbor (its
// advertised willingness and whether the link with it is symmetric) to the
// neighbor table. Called once per processed HELLO, after link sensing, and
// again for every known neighbor by the engine's cleanup pass.
func (m *NeighborManager) UpdateStatus(neighborIP netip.Addr, willingness uint8, symmetric bool) {
	n, ok := m.neighbors[neighborIP]
	if !ok {
		n = &NeighborTuple{MainAddr: neighborIP}
		m.neighbors[neighborIP] = n
	}
	n.Willingness = willingness
	n.Symmetric = symmetric
}

// ProcessTwoHop updates the 2-hop set from one HELLO's link groups, per RFC
// 3626 §8.3. Groups of neighbor type SYM or MPR add/refresh a 2-hop edge
// through sender to each listed address other than this node; groups of
// neighbor type NOT (a link loss the sender is reporting) remove the edges
// to their listed addresses.
func (m *NeighborManager) ProcessTwoHop(sender netip.Addr, info HelloInfo, validity time.Duration, now time.Time) {
	for _, group := range info.Groups {
		switch group.NeighborType {
		case wire.NeighborSym, wire.NeighborMPR:
			for _, twoHop := range group.Addresses {
				if twoHop == m.selfIP {
					continue
				}
				key := twoHopKey{neighbor: sender, twoHop: twoHop}
				t, ok := m.twoHopSet[key]
				if !ok {
					t = &TwoHopTuple{NeighborMainAddr: sender, TwoHopAddr: twoHop}
					m.twoHopSet[key] = t
				}
				t.ExpirationTime = now.Add(validity)
			}
		case wire.NeighborNot:
			for _, twoHop := range group.Addresses {
				delete(m.twoHopSet, twoHopKey{neighbor: sender, twoHop: twoHop})
			}
		}
	}
}

// ProcessMPRSelector records sender as having selected this node as an MPR,
// if its HELLO advertises this node under an MPR-type group (RFC 3626
// §8.4.1). Absence is handled by expiry, not immediate removal, matching the
// RFC's timer-based model.
func (m *NeighborManager) ProcessMPRSelector(sender netip.Addr, info HelloInfo, validity time.Duration, now time.Time) {
	selected := false
	for _, group := range info.Groups {
		if group.NeighborType != wire.NeighborMPR {
			continue
		}
		for _, addr := range group.Addresses {
			if addr == m.selfIP {
				selected = true
				break
			}
		}
		if selected {
			break
		}
	}
	if !selected {
		return
	}
	sel, ok := m.mprSelectors[sender]
	if !ok {
		sel = &MPRSelectorTuple{MainAddr: sender}
		m.mprSelectors[sender] = sel
	}
	sel.ExpirationTime = now.Add(validity)
}

// IsMPRSelector reports whether sender currently has this node selected as
// an MPR (used by the forwarding predicate).
func (m *NeighborManager) IsMPRSelector(sender netip.Addr) bool {
	_, ok := m.mprSelectors[sender]
	return ok
}

// MPRSelectors returns the set of neighbors that currently select this node
// as an MPR, for inclusion in outgoing TC advertised-neighbor lists.
func (m *NeighborManager) MPRSelectors() []netip.Addr {
	out := make([]netip.Addr, 0, len(m.mprSelectors))
	for ip := range m.mprSelectors {
		out = append(out, ip)
	}
	return out
}

// SymmetricNeighbors returns the set N of symmetric 1-hop neighbors.
func (m *NeighborManager) SymmetricNeighbors() map[netip.Addr]struct{} {
	out := make(map[netip.Addr]struct{})
	for ip, n := range m.neighbors {
		if n.Symmetric {
			out[ip] = struct{}{}
		}
	}
	return out
}

// Strict2Hop returns the set N2: addresses reachable through a symmetric
// 1-hop neighbor, excluding this node itself and any of its own symmetric
// 1-hop neighbors (RFC 3626 §8.3).
func (m *NeighborManager) Strict2Hop() map[netip.Addr]struct{} {
	sym := m.SymmetricNeighbors()
	strict := make(map[netip.Addr]struct{})
	for key := range m.twoHopSet {
		if _, symNeighbor := sym[key.neighbor]; !symNeighbor {
			continue
		}
		if key.twoHop == m.selfIP {
			continue
		}
		if _, isSym1Hop := sym[key.twoHop]; isSym1Hop {
			continue
		}
		strict[key.twoHop] = struct{}{}
	}
	return strict
}

// ReachabilityMap builds the coverage map SelectMPR needs: each symmetric
// 1-hop neighbor mapped to the strict 2-hop addresses it provides.
func (m *NeighborManager) ReachabilityMap() map[netip.Addr]map[netip.Addr]struct{} {
	sym := m.SymmetricNeighbors()
	strict := m.Strict2Hop()

	reach := make(map[netip.Addr]map[netip.Addr]struct{}, len(sym))
	for ip := range sym {
		reach[ip] = make(map[netip.Addr]struct{})
	}
	for key := range m.twoHopSet {
		if _, ok := reach[key.neighbor]; !ok {
			continue
		}
		if _, ok := strict[key.twoHop]; !ok {
			continue
		}
		reach[key.neighbor][key.twoHop] = struct{}{}
	}
	return reach
}

// RecalculateMPR re-runs MPR selection from the current neighbor/2-hop
// tables and stores the result, returning the new MPR set.
func (m *NeighborManager) RecalculateMPR() map[netip.Addr]struct{} {
	candidates := make(map[netip.Addr]uint8, len(m.neighbors))
	for ip, n := range m.neighbors {
		if n.Symmetric {
			candidates[ip] = n.Willingness
		}
	}
	m.currentMPRSet = SelectMPR(candidates, m.ReachabilityMap())
	return m.currentMPRSet
}

// CurrentMPRSet returns the MPR set computed by the last RecalculateMPR call.
func (m *NeighborManager) CurrentMPRSet() map[netip.Addr]struct{} {
	return m.currentMPRSet
}

// Addrs returns the main address of every known 1-hop neighbor, regardless
// of current symmetry, for reconciliation against the link set.
func (m *NeighborManager) Addrs() []netip.Addr {
	out := make([]netip.Addr, 0, len(m.neighbors))
	for ip := range m.neighbors {
		out = append(out, ip)
	}
	return out
}

// Neighbor returns the neighbor tuple for ip, if known.
func (m *NeighborManager) Neighbor(ip netip.Addr) (NeighborTuple, bool) {
	n, ok := m.neighbors[ip]
	if !ok {
		return NeighborTuple{}, false
	}
	return *n, true
}

// Cleanup removes expired 2-hop edges and MPR-selector entries. Neighbor
// entries themselves track the link set's lifetime, not their own timer,
// and are pruned by the caller alongside LinkSet.Cleanup.
func (m *NeighborManager) Cleanup(now time.Time) {
	for k, t := range m.twoHopSet {
		if t.ExpirationTime.Before(now) {
			delete(m.twoHopSet, k)
		}
	}
	for ip, s := range m.mprSelectors {
		if s.ExpirationTime.Before(now) {
			delete(m.mprSelectors, ip)
		}
	}
}

// PruneNeighbor removes a neighbor and any 2-hop edges reached through it,
// called when the link set expires that neighbor's link tuple entirely.
func (m *NeighborManager) PruneNeighbor(ip netip.Addr) {
	delete(m.neighbors, ip)
	for key := range m.twoHopSet {
		if key.neighbor == ip {
			delete(m.twoHopSet, key)
		}
	}
}
