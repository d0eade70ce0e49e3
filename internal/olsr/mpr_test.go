package olsr

import (
	"net/netip"
	"testing"
)

func TestSelectMPR_WillAlwaysAlwaysIncluded(t *testing.T) {
	b := mustAddr(t, "10.0.0.2")
	c := mustAddr(t, "10.0.0.3")
	x := mustAddr(t, "10.0.0.10")

	candidates := map[netip.Addr]uint8{b: WillAlways, c: WillDefault}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		b: {},
		c: {x: {}},
	}

	mpr := SelectMPR(candidates, coverage)
	if _, ok := mpr[b]; !ok {
		t.Errorf("WILL_ALWAYS candidate %s must always be selected, got %+v", b, mpr)
	}
}

func TestSelectMPR_WillNeverNeverIncluded(t *testing.T) {
	b := mustAddr(t, "10.0.0.2")
	c := mustAddr(t, "10.0.0.3")
	x := mustAddr(t, "10.0.0.10")

	candidates := map[netip.Addr]uint8{b: WillNever, c: WillDefault}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		b: {x: {}},
		c: {x: {}},
	}

	mpr := SelectMPR(candidates, coverage)
	if _, ok := mpr[b]; ok {
		t.Errorf("WILL_NEVER candidate %s must never be selected, got %+v", b, mpr)
	}
	if _, ok := mpr[c]; !ok {
		t.Errorf("expected %s to cover %s since %s can't, got %+v", c, x, b, mpr)
	}
}

func TestSelectMPR_EmptyN2ReturnsOnlyWillAlways(t *testing.T) {
	b := mustAddr(t, "10.0.0.2")
	c := mustAddr(t, "10.0.0.3")

	candidates := map[netip.Addr]uint8{b: WillAlways, c: WillDefault}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		b: {},
		c: {},
	}

	mpr := SelectMPR(candidates, coverage)
	if len(mpr) != 1 {
		t.Fatalf("got %+v, want exactly the WILL_ALWAYS candidate", mpr)
	}
	if _, ok := mpr[b]; !ok {
		t.Errorf("expected %s in result", b)
	}
}

// TestSelectMPR_UniqueProviderScenario pins spec.md §8's worked example:
// candidates {B, C, D} all willingness=3; coverage {B:{x,y}, C:{x}, D:{z}}.
// x has two providers (B, C) so it's skipped in the unique-provider pass; y
// and z each have exactly one provider (B and D respectively), so both are
// selected there, leaving nothing for the greedy step. Expected MPR = {B, D}.
func TestSelectMPR_UniqueProviderScenario(t *testing.T) {
	b := mustAddr(t, "10.0.0.2")
	c := mustAddr(t, "10.0.0.3")
	d := mustAddr(t, "10.0.0.4")
	x := mustAddr(t, "10.0.0.10")
	y := mustAddr(t, "10.0.0.11")
	z := mustAddr(t, "10.0.0.12")

	candidates := map[netip.Addr]uint8{b: WillDefault, c: WillDefault, d: WillDefault}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		b: {x: {}, y: {}},
		d: {z: {}},
	}
	coverage[c] = map[netip.Addr]struct{}{x: {}}

	mpr := SelectMPR(candidates, coverage)

	if _, ok := mpr[d]; !ok {
		t.Errorf("D is the unique provider for z and must be selected, got %+v", mpr)
	}
	if _, ok := mpr[b]; !ok {
		t.Errorf("B covers more of the remainder than C and must be selected, got %+v", mpr)
	}

	covered := make(map[netip.Addr]struct{})
	for m := range mpr {
		for addr := range coverage[m] {
			covered[addr] = struct{}{}
		}
	}
	for _, want := range []netip.Addr{x, y, z} {
		if _, ok := covered[want]; !ok {
			t.Errorf("MPR set %+v does not cover %s", mpr, want)
		}
	}
}

// TestSelectMPR_CoversAllReachableN2 is the general covering-invariant
// property from spec.md §8: every strict 2-hop address reachable by some
// non-WILL_NEVER candidate ends up covered by the chosen MPR set.
func TestSelectMPR_CoversAllReachableN2(t *testing.T) {
	n1 := mustAddr(t, "10.0.0.2")
	n2 := mustAddr(t, "10.0.0.3")
	n3 := mustAddr(t, "10.0.0.4")
	x1 := mustAddr(t, "10.0.0.10")
	x2 := mustAddr(t, "10.0.0.11")
	x3 := mustAddr(t, "10.0.0.12")
	x4 := mustAddr(t, "10.0.0.13")

	candidates := map[netip.Addr]uint8{n1: WillDefault, n2: WillDefault, n3: WillLow}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		n1: {x1: {}, x2: {}},
		n2: {x2: {}, x3: {}},
		n3: {x3: {}, x4: {}},
	}

	mpr := SelectMPR(candidates, coverage)

	covered := make(map[netip.Addr]struct{})
	for m := range mpr {
		for addr := range coverage[m] {
			covered[addr] = struct{}{}
		}
	}
	for _, want := range []netip.Addr{x1, x2, x3, x4} {
		if _, ok := covered[want]; !ok {
			t.Errorf("MPR set %+v does not cover %s", mpr, want)
		}
	}
}

func TestSelectMPR_DeterministicAcrossRuns(t *testing.T) {
	n1 := mustAddr(t, "10.0.0.2")
	n2 := mustAddr(t, "10.0.0.3")
	n3 := mustAddr(t, "10.0.0.4")
	x1 := mustAddr(t, "10.0.0.10")
	x2 := mustAddr(t, "10.0.0.11")

	candidates := map[netip.Addr]uint8{n1: WillDefault, n2: WillDefault, n3: WillDefault}
	coverage := map[netip.Addr]map[netip.Addr]struct{}{
		n1: {x1: {}, x2: {}},
		n2: {x1: {}, x2: {}},
		n3: {x1: {}, x2: {}},
	}

	first := SelectMPR(candidates, coverage)
	for i := 0; i < 10; i++ {
		got := SelectMPR(candidates, coverage)
		if len(got) != len(first) {
			t.Fatalf("run %d: non-deterministic MPR set size: %+v vs %+v", i, got, first)
		}
		for ip := range first {
			if _, ok := got[ip]; !ok {
				t.Fatalf("run %d: non-deterministic MPR set membership: %+v vs %+v", i, got, first)
			}
		}
	}
}
