package olsr

import (
	"net/netip"
	"time"
)

// DuplicateTuple records a previously-seen (originator, sequence) pair so
// the flooding layer can suppress reprocessing and re-forwarding.
type DuplicateTuple struct {
	Originator     netip.Addr
	Seq            uint16
	Retransmitted  bool
	ExpirationTime time.Time
}

type duplicateKey struct {
	originator netip.Addr
	seq        uint16
}

// DuplicateSet is the per-(originator, msg-seq) duplicate table (C2).
type DuplicateSet struct {
	entries map[duplicateKey]*DuplicateTuple
}

// NewDuplicateSet returns an empty duplicate set.
func NewDuplicateSet() *DuplicateSet {
	return &DuplicateSet{entries: make(map[duplicateKey]*DuplicateTuple)}
}

// IsDuplicate reports whether (originator, seq) has already been recorded.
func (s *DuplicateSet) IsDuplicate(originator netip.Addr, seq uint16) bool {
	_, ok := s.entries[duplicateKey{originator, seq}]
	return ok
}

// Record inserts a new entry for (originator, seq) if one is not already
// present, with expiration now+DupHoldTime. Returns the tuple (existing or
// newly created).
func (s *DuplicateSet) Record(originator netip.Addr, seq uint16, now time.Time) *DuplicateTuple {
	key := duplicateKey{originator, seq}
	if t, ok := s.entries[key]; ok {
		return t
	}
	t := &DuplicateTuple{
		Originator:     originator,
		Seq:            seq,
		ExpirationTime: now.Add(DupHoldTime),
	}
	s.entries[key] = t
	return t
}

// MarkRetransmitted flags (originator, seq) as already forwarded, if present.
func (s *DuplicateSet) MarkRetransmitted(originator netip.Addr, seq uint16) {
	if t, ok := s.entries[duplicateKey{originator, seq}]; ok {
		t.Retransmitted = true
	}
}

// IsRetransmitted reports whether (originator, seq) is recorded and already
// marked as forwarded.
func (s *DuplicateSet) IsRetransmitted(originator netip.Addr, seq uint16) bool {
	t, ok := s.entries[duplicateKey{originator, seq}]
	return ok && t.Retransmitted
}

// Cleanup removes entries whose expiration has passed.
func (s *DuplicateSet) Cleanup(now time.Time) {
	for k, v := range s.entries {
		if v.ExpirationTime.Before(now) {
			delete(s.entries, k)
		}
	}
}
