package olsr

import (
	"net/netip"
	"time"
)

// topologyKey identifies one topology edge: a destination reachable via the
// given last-hop originator (RFC 3626 §4.4, "T_dest_addr"/"T_last_addr").
type topologyKey struct {
	dest netip.Addr
	last netip.Addr
}

// TopologyTuple is one edge of the network-wide topology, learned from a TC
// message: last is an MPR that advertised dest as one of its MPR selectors.
type TopologyTuple struct {
	DestAddr       netip.Addr
	LastAddr       netip.Addr
	Seq            uint16
	ExpirationTime time.Time
}

// TopologyManager is the topology database (C6): the set of advertised
// (dest, last-hop) edges collected from MPR-flooded TC messages, keyed by
// ANSN so that stale or out-of-order TCs cannot overwrite fresher state.
type TopologyManager struct {
	// ansnByOriginator tracks the most recently accepted ANSN per TC
	// originator, independent of which destinations that ANSN advertised.
	ansnByOriginator map[netip.Addr]uint16
	edges            map[topologyKey]*TopologyTuple
}

// NewTopologyManager returns an empty topology database.
func NewTopologyManager() *TopologyManager {
	return &TopologyManager{
		ansnByOriginator: make(map[netip.Addr]uint16),
		edges:            make(map[topologyKey]*TopologyTuple),
	}
}

// ProcessTC applies a TC message's advertised-neighbor list from originator
// at the given ANSN. Per RFC 3626 §9.5: a TC with an ANSN older than the
// last one recorded for this originator is discarded outright. A TC with a
// newer ANSN replaces every edge from this originator with the newly
// advertised set. A TC with an ANSN equal to the last one recorded is
// treated as a refresh: existing edges from this originator have their
// expiration extended and any destination missing from the local table is
// inserted, but no edge is ever deleted on an equal-ANSN TC (only a newer
// one fully replaces the set).
func (m *TopologyManager) ProcessTC(originator netip.Addr, ansn uint16, advertised []netip.Addr, validity time.Duration, now time.Time) {
	last, known := m.ansnByOriginator[originator]

	switch {
	case known && !isNewerSeq(ansn, last) && ansn != last:
		// Strictly older ANSN: ignore.
		return

	case !known || isNewerSeq(ansn, last):
		// Newer originator or strictly newer ANSN: replace the full set.
		for k := range m.edges {
			if k.last == originator {
				delete(m.edges, k)
			}
		}
		m.ansnByOriginator[originator] = ansn
		for _, dest := range advertised {
			m.edges[topologyKey{dest: dest, last: originator}] = &TopologyTuple{
				DestAddr:       dest,
				LastAddr:       originator,
				Seq:            ansn,
				ExpirationTime: now.Add(validity),
			}
		}

	default:
		// Equal ANSN: refresh existing edges, insert any that are missing,
		// delete none.
		for _, dest := range advertised {
			key := topologyKey{dest: dest, last: originator}
			t, ok := m.edges[key]
			if !ok {
				t = &TopologyTuple{DestAddr: dest, LastAddr: originator, Seq: ansn}
				m.edges[key] = t
			}
			t.Seq = ansn
			t.ExpirationTime = now.Add(validity)
		}
	}
}

// Edges returns a snapshot of all current topology edges, for routing table
// computation.
func (m *TopologyManager) Edges() []TopologyTuple {
	out := make([]TopologyTuple, 0, len(m.edges))
	for _, t := range m.edges {
		out = append(out, *t)
	}
	return out
}

// Cleanup removes expired topology edges. An originator whose last edge
// expires also loses its recorded ANSN, so a re-appearing originator is
// treated as new rather than compared against stale state.
func (m *TopologyManager) Cleanup(now time.Time) {
	remaining := make(map[netip.Addr]struct{})
	for k, t := range m.edges {
		if t.ExpirationTime.Before(now) {
			delete(m.edges, k)
			continue
		}
		remaining[k.last] = struct{}{}
	}
	for originator := range m.ansnByOriginator {
		if _, ok := remaining[originator]; !ok {
			delete(m.ansnByOriginator, originator)
		}
	}
}
