package wire

import "net/netip"

// dataHeaderLen is the fixed part of a data body: destination (4) plus
// next-hop (4).
const dataHeaderLen = 8

// DataBody is a unicast data-plane message forwarded hop-by-hop along the
// routing table. It is not part of RFC 3626; it exists so the routing table
// computed by the core has a consumer, mirroring the teacher's own
// DataMessage/sendData/handleData path. See SPEC_FULL.md §"Supplemented
// features".
type DataBody struct {
	Destination netip.Addr
	NextHop     netip.Addr
	Payload     []byte
}

// EncodeData packs a data body.
func EncodeData(destination, nextHop netip.Addr, payload []byte) []byte {
	buf := make([]byte, dataHeaderLen+len(payload))
	d4 := destination.As4()
	n4 := nextHop.As4()
	copy(buf[0:4], d4[:])
	copy(buf[4:8], n4[:])
	copy(buf[dataHeaderLen:], payload)
	return buf
}

// DecodeData unpacks a data body.
func DecodeData(body []byte) (DataBody, error) {
	if len(body) < dataHeaderLen {
		return DataBody{}, ErrTooShort
	}
	var d4, n4 [4]byte
	copy(d4[:], body[0:4])
	copy(n4[:], body[4:8])
	payload := make([]byte, len(body)-dataHeaderLen)
	copy(payload, body[dataHeaderLen:])
	return DataBody{
		Destination: netip.AddrFrom4(d4),
		NextHop:     netip.AddrFrom4(n4),
		Payload:     payload,
	}, nil
}
