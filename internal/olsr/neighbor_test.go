package olsr

import (
	"net/netip"
	"testing"
	"time"

	"github.com/olsr-go/olsrd/internal/wire"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("netip.ParseAddr(%q) error: %v", s, err)
	}
	return a
}

func TestNeighborManager_ProcessTwoHop(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	sender := mustAddr(t, "10.0.0.2")
	now := time.Unix(1000, 0)

	tests := []struct {
		name   string
		groups []NeighborGroup
		want   []netip.Addr
	}{
		{
			name: "sym group adds two-hop edges",
			groups: []NeighborGroup{
				{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{mustAddr(t, "10.0.0.3"), mustAddr(t, "10.0.0.4")}},
			},
			want: []netip.Addr{mustAddr(t, "10.0.0.3"), mustAddr(t, "10.0.0.4")},
		},
		{
			name: "mpr group adds two-hop edges",
			groups: []NeighborGroup{
				{NeighborType: wire.NeighborMPR, Addresses: []netip.Addr{mustAddr(t, "10.0.0.5")}},
			},
			want: []netip.Addr{mustAddr(t, "10.0.0.5")},
		},
		{
			name: "self address excluded",
			groups: []NeighborGroup{
				{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{self, mustAddr(t, "10.0.0.6")}},
			},
			want: []netip.Addr{mustAddr(t, "10.0.0.6")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewNeighborManager(self)
			m.ProcessTwoHop(sender, HelloInfo{Groups: tt.groups}, 6*time.Second, now)

			got := make(map[netip.Addr]struct{})
			for k := range m.twoHopSet {
				if k.neighbor == sender {
					got[k.twoHop] = struct{}{}
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d two-hop edges, want %d", len(got), len(tt.want))
			}
			for _, addr := range tt.want {
				if _, ok := got[addr]; !ok {
					t.Errorf("missing expected two-hop addr %s", addr)
				}
			}
		})
	}
}

func TestNeighborManager_ProcessTwoHop_NotNeighborRemoves(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	sender := mustAddr(t, "10.0.0.2")
	twoHop := mustAddr(t, "10.0.0.3")
	now := time.Unix(1000, 0)

	m := NewNeighborManager(self)
	m.ProcessTwoHop(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{twoHop}},
	}}, 6*time.Second, now)

	if _, ok := m.twoHopSet[twoHopKey{neighbor: sender, twoHop: twoHop}]; !ok {
		t.Fatalf("expected two-hop edge to be recorded")
	}

	m.ProcessTwoHop(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborNot, Addresses: []netip.Addr{twoHop}},
	}}, 6*time.Second, now)

	if _, ok := m.twoHopSet[twoHopKey{neighbor: sender, twoHop: twoHop}]; ok {
		t.Fatalf("expected two-hop edge to be removed after NOT_NEIGH report")
	}
}

func TestNeighborManager_Strict2Hop_ExcludesSelfAndSym1Hop(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	n1 := mustAddr(t, "10.0.0.2")
	n2 := mustAddr(t, "10.0.0.3")
	strictTwoHop := mustAddr(t, "10.0.0.4")
	now := time.Unix(1000, 0)

	m := NewNeighborManager(self)
	m.UpdateStatus(n1, WillDefault, true)
	m.UpdateStatus(n2, WillDefault, true)

	m.ProcessTwoHop(n1, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{n2, strictTwoHop, self}},
	}}, 6*time.Second, now)

	strict := m.Strict2Hop()
	if _, ok := strict[n2]; ok {
		t.Errorf("Strict2Hop should exclude addresses that are already symmetric 1-hop neighbors")
	}
	if _, ok := strict[self]; ok {
		t.Errorf("Strict2Hop should exclude self address")
	}
	if _, ok := strict[strictTwoHop]; !ok {
		t.Errorf("Strict2Hop should include %s", strictTwoHop)
	}
	if len(strict) != 1 {
		t.Errorf("Strict2Hop = %+v, want exactly one entry", strict)
	}
}

func TestNeighborManager_RecalculateMPR(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	n1 := mustAddr(t, "10.0.0.2")
	n2 := mustAddr(t, "10.0.0.3")
	th1 := mustAddr(t, "10.0.0.10")
	th2 := mustAddr(t, "10.0.0.11")
	now := time.Unix(1000, 0)

	m := NewNeighborManager(self)
	m.UpdateStatus(n1, WillDefault, true)
	m.UpdateStatus(n2, WillDefault, true)

	// n1 reaches both strict 2-hops; n2 reaches none, so only n1 is needed.
	m.ProcessTwoHop(n1, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{th1, th2}},
	}}, 6*time.Second, now)

	mpr := m.RecalculateMPR()
	if _, ok := mpr[n1]; !ok {
		t.Errorf("expected n1 to be selected as MPR, got %+v", mpr)
	}
	if _, ok := mpr[n2]; ok {
		t.Errorf("n2 provides no unique coverage and should not be selected, got %+v", mpr)
	}
}

func TestNeighborManager_MPRSelector(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	sender := mustAddr(t, "10.0.0.2")
	other := mustAddr(t, "10.0.0.3")
	now := time.Unix(1000, 0)

	m := NewNeighborManager(self)

	m.ProcessMPRSelector(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborMPR, Addresses: []netip.Addr{other}},
	}}, 6*time.Second, now)
	if m.IsMPRSelector(sender) {
		t.Fatalf("should not be selected: MPR group does not include self")
	}

	m.ProcessMPRSelector(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborMPR, Addresses: []netip.Addr{self}},
	}}, 6*time.Second, now)
	if !m.IsMPRSelector(sender) {
		t.Fatalf("expected sender to be recorded as an MPR selector")
	}
}

func TestNeighborManager_Cleanup(t *testing.T) {
	self := mustAddr(t, "10.0.0.1")
	sender := mustAddr(t, "10.0.0.2")
	twoHop := mustAddr(t, "10.0.0.3")
	now := time.Unix(1000, 0)

	m := NewNeighborManager(self)
	m.ProcessTwoHop(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborSym, Addresses: []netip.Addr{twoHop}},
	}}, time.Second, now)
	m.ProcessMPRSelector(sender, HelloInfo{Groups: []NeighborGroup{
		{NeighborType: wire.NeighborMPR, Addresses: []netip.Addr{self}},
	}}, time.Second, now)

	m.Cleanup(now.Add(5 * time.Second))

	if len(m.twoHopSet) != 0 {
		t.Errorf("expected two-hop set to be emptied after expiry, got %+v", m.twoHopSet)
	}
	if len(m.mprSelectors) != 0 {
		t.Errorf("expected MPR selector set to be emptied after expiry, got %+v", m.mprSelectors)
	}
}
