package olsr

import (
	"net/netip"
	"time"

	"github.com/olsr-go/olsrd/internal/wire"
)

// LinkTuple is one known neighbor's link state, as sensed from HELLO
// exchanges on the local segment (RFC 3626 §4.1, §7.1.1).
type LinkTuple struct {
	NeighborIP netip.Addr
	AsymTime   time.Time // "I have recently heard from them" expiry
	SymTime    time.Time // "bidirectional confirmed" expiry
	Time       time.Time // max(AsymTime, SymTime): total tuple lifetime
}

// Symmetric reports whether the link is currently confirmed bidirectional.
func (l LinkTuple) Symmetric(now time.Time) bool {
	return now.Before(l.SymTime)
}

// Asymmetric reports whether the link is currently one-way only.
func (l LinkTuple) Asymmetric(now time.Time) bool {
	return now.Before(l.AsymTime) && !l.Symmetric(now)
}

// HelloInfo is a decoded HELLO body reduced to the fields link sensing and
// neighbor management need, with each link code split into its link and
// neighbor types (wire.HelloBody carries bare link codes).
type HelloInfo struct {
	Willingness uint8
	Groups      []NeighborGroup
}

// NeighborGroup is one HELLO link message: a link/neighbor type pair and
// the addresses advertised under it.
type NeighborGroup struct {
	LinkType     wire.LinkType
	NeighborType wire.NeighborType
	Addresses    []netip.Addr
}

// HelloInfoFromWire adapts a decoded wire.HelloBody into a HelloInfo.
func HelloInfoFromWire(body wire.HelloBody) HelloInfo {
	info := HelloInfo{Willingness: body.Willingness}
	for _, lm := range body.Links {
		lt, nt := wire.DecodeLinkCode(lm.Code)
		info.Groups = append(info.Groups, NeighborGroup{
			LinkType:     lt,
			NeighborType: nt,
			Addresses:    lm.Neighbors,
		})
	}
	return info
}

// LinkSet is the per-neighbor link-state database (C3).
type LinkSet struct {
	selfIP netip.Addr
	links  map[netip.Addr]*LinkTuple
}

// NewLinkSet returns an empty link set for the node at selfIP.
func NewLinkSet(selfIP netip.Addr) *LinkSet {
	return &LinkSet{selfIP: selfIP, links: make(map[netip.Addr]*LinkTuple)}
}

// Get returns the link tuple for a neighbor, if known.
func (s *LinkSet) Get(neighbor netip.Addr) (LinkTuple, bool) {
	t, ok := s.links[neighbor]
	if !ok {
		return LinkTuple{}, false
	}
	return *t, true
}

// ProcessHello applies an incoming HELLO from sender to the link set,
// returning the resulting link tuple. validity is the HELLO's Vtime.
func (s *LinkSet) ProcessHello(sender netip.Addr, info HelloInfo, validity time.Duration, now time.Time) LinkTuple {
	link, ok := s.links[sender]
	if !ok {
		link = &LinkTuple{NeighborIP: sender, SymTime: now.Add(-time.Second)}
		s.links[sender] = link
	}

	link.AsymTime = now.Add(validity)

	for _, group := range info.Groups {
		found := false
		for _, addr := range group.Addresses {
			if addr == s.selfIP {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		switch group.LinkType {
		case wire.LinkLost:
			link.SymTime = now.Add(-time.Second)
		case wire.LinkAsym, wire.LinkSym:
			link.SymTime = now.Add(validity)
		}
		break
	}

	if link.SymTime.After(link.AsymTime) {
		link.Time = link.SymTime
	} else {
		link.Time = link.AsymTime
	}
	return *link
}

// Cleanup removes link tuples whose total lifetime has elapsed.
func (s *LinkSet) Cleanup(now time.Time) {
	for ip, link := range s.links {
		if link.Time.Before(now) {
			delete(s.links, ip)
		}
	}
}

// BuildHelloGroups assembles the three link groups (MPR, SYM, ASYM) needed
// for an outgoing HELLO, from the current link set and MPR set. Empty
// groups are omitted.
func (s *LinkSet) BuildHelloGroups(mprSet map[netip.Addr]struct{}, now time.Time) []NeighborGroup {
	var mprNeighbors, symNeighbors, asymNeighbors []netip.Addr

	for _, link := range s.links {
		if link.Time.Before(now) {
			continue
		}
		switch {
		case link.Symmetric(now):
			if _, isMPR := mprSet[link.NeighborIP]; isMPR {
				mprNeighbors = append(mprNeighbors, link.NeighborIP)
			} else {
				symNeighbors = append(symNeighbors, link.NeighborIP)
			}
		case link.Asymmetric(now):
			asymNeighbors = append(asymNeighbors, link.NeighborIP)
		}
	}

	var groups []NeighborGroup
	if len(mprNeighbors) > 0 {
		groups = append(groups, NeighborGroup{LinkType: wire.LinkSym, NeighborType: wire.NeighborMPR, Addresses: mprNeighbors})
	}
	if len(symNeighbors) > 0 {
		groups = append(groups, NeighborGroup{LinkType: wire.LinkSym, NeighborType: wire.NeighborSym, Addresses: symNeighbors})
	}
	if len(asymNeighbors) > 0 {
		groups = append(groups, NeighborGroup{LinkType: wire.LinkAsym, NeighborType: wire.NeighborNot, Addresses: asymNeighbors})
	}
	return groups
}
