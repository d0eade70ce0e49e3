package wire

import (
	"encoding/binary"
	"net/netip"
)

// TCBody is the decoded contents of a topology-control message.
type TCBody struct {
	ANSN                uint16
	AdvertisedNeighbors []netip.Addr
}

// EncodeTC packs a TC body: ANSN (2B), reserved (2B), then a flat list of
// advertised-neighbor IPv4 addresses.
func EncodeTC(ansn uint16, advertised []netip.Addr) []byte {
	buf := make([]byte, 4+len(advertised)*4)
	binary.BigEndian.PutUint16(buf[0:2], ansn)
	binary.BigEndian.PutUint16(buf[2:4], 0)
	for i, addr := range advertised {
		a4 := addr.As4()
		copy(buf[4+i*4:], a4[:])
	}
	return buf
}

// DecodeTC unpacks a TC body. Truncated trailing data is tolerated: parsing
// stops at the largest fully-readable address.
func DecodeTC(body []byte) (TCBody, error) {
	if len(body) < 4 {
		return TCBody{}, ErrTooShort
	}

	tc := TCBody{ANSN: binary.BigEndian.Uint16(body[0:2])}

	cursor := 4
	for cursor+4 <= len(body) {
		var a4 [4]byte
		copy(a4[:], body[cursor:cursor+4])
		tc.AdvertisedNeighbors = append(tc.AdvertisedNeighbors, netip.AddrFrom4(a4))
		cursor += 4
	}
	return tc, nil
}
