package olsr

import (
	"net/netip"
	"sort"
)

// SelectMPR runs the RFC 3626 §8.3.1 MPR selection algorithm.
//
// candidates maps each symmetric 1-hop neighbor to its advertised
// willingness. coverage maps each of those same neighbors to the set of
// strict 2-hop addresses it can reach. Iteration over both maps is in
// sorted-by-address order, making selection deterministic: ties in the
// greedy step are broken by "first encountered wins" over that fixed order.
func SelectMPR(candidates map[netip.Addr]uint8, coverage map[netip.Addr]map[netip.Addr]struct{}) map[netip.Addr]struct{} {
	orderedCandidates := sortedKeys(candidates)

	n2 := make(map[netip.Addr]struct{})
	for _, covered := range coverage {
		for addr := range covered {
			n2[addr] = struct{}{}
		}
	}

	mpr := make(map[netip.Addr]struct{})

	if len(n2) == 0 {
		for _, c := range orderedCandidates {
			if candidates[c] == WillAlways {
				mpr[c] = struct{}{}
			}
		}
		return mpr
	}

	// Degree snapshot, taken once before selection begins.
	degree := make(map[netip.Addr]int, len(coverage))
	for ip, covered := range coverage {
		degree[ip] = len(covered)
	}

	subtract := func(ip netip.Addr) {
		for addr := range coverage[ip] {
			delete(n2, addr)
		}
	}

	// Step 1: WILL_ALWAYS candidates are always selected.
	for _, c := range orderedCandidates {
		if candidates[c] == WillAlways {
			mpr[c] = struct{}{}
			subtract(c)
		}
	}

	// Step 2: unique providers for any remaining target are selected;
	// WILL_NEVER candidates are not counted as providers. The
	// reverse map (target -> providers) is a snapshot of N2 as it stood
	// after step 1; it is not recomputed as providers are added below.
	orderedTargets := sortedSet(n2)
	for _, target := range orderedTargets {
		var provider netip.Addr
		providers := 0
		for _, c := range orderedCandidates {
			if candidates[c] == WillNever {
				continue
			}
			if _, ok := coverage[c][target]; ok {
				providers++
				provider = c
				if providers > 1 {
					break
				}
			}
		}
		if providers == 1 {
			if _, already := mpr[provider]; !already {
				mpr[provider] = struct{}{}
			}
			subtract(provider)
		}
	}

	// Step 3: greedy cover of whatever remains.
	for len(n2) > 0 {
		var best netip.Addr
		bestReach := -1
		haveBest := false

		for _, c := range orderedCandidates {
			if _, already := mpr[c]; already {
				continue
			}
			if candidates[c] == WillNever {
				continue
			}
			reach := 0
			for addr := range coverage[c] {
				if _, in := n2[addr]; in {
					reach++
				}
			}
			if reach == 0 {
				continue
			}

			better := false
			switch {
			case !haveBest:
				better = true
			case reach > bestReach:
				better = true
			case reach == bestReach:
				switch {
				case candidates[c] > candidates[best]:
					better = true
				case candidates[c] == candidates[best] && degree[c] > degree[best]:
					better = true
				}
			}
			if better {
				best = c
				bestReach = reach
				haveBest = true
			}
		}

		if !haveBest {
			break
		}
		mpr[best] = struct{}{}
		subtract(best)
	}

	return mpr
}

func sortedKeys(m map[netip.Addr]uint8) []netip.Addr {
	out := make([]netip.Addr, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sortedSet(m map[netip.Addr]struct{}) []netip.Addr {
	out := make([]netip.Addr, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
