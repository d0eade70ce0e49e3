package olsr

import "net/netip"

// RouteData resolves the next hop for an application DATA message destined
// for dest, consulting the current routing table. When dest is this node
// (the payload has arrived) it returns delivered=true and ok=true with no
// next hop; when no route is known it returns ok=false.
//
// This is not part of RFC 3626; see the supplemented-features note for why
// it exists alongside the protocol core.
func RouteData(selfIP, dest netip.Addr, rt *RoutingTable) (nextHop netip.Addr, delivered, ok bool) {
	if dest == selfIP {
		return netip.Addr{}, true, true
	}
	route, found := rt.Lookup(dest)
	if !found {
		return netip.Addr{}, false, false
	}
	return route.NextHop, false, true
}
