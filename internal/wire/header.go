package wire

import (
	"encoding/binary"
	"net/netip"
)

// EncodePacketHeader packs the 4-byte packet header. bodyLen is the combined
// length, in bytes, of every message following the header.
func EncodePacketHeader(bodyLen int, seq uint16) []byte {
	buf := make([]byte, PacketHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(PacketHeaderLen+bodyLen))
	binary.BigEndian.PutUint16(buf[2:4], seq)
	return buf
}

// DecodePacketHeader unpacks the leading 4 bytes of a datagram.
func DecodePacketHeader(buf []byte) (PacketHeader, error) {
	if len(buf) < PacketHeaderLen {
		return PacketHeader{}, ErrTooShort
	}
	return PacketHeader{
		Length: binary.BigEndian.Uint16(buf[0:2]),
		Seq:    binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

// MessageHeader is the 12-byte header common to every OLSR message.
type MessageHeader struct {
	Type       MessageType
	VTime      uint8 // mantissa/exponent encoded validity time
	Size       uint16
	Originator netip.Addr
	TTL        uint8
	HopCount   uint8
	Seq        uint16
}

// EncodeMessageHeader packs a message header. bodyLen is the length of the
// message body that follows. Originator must be a valid 4-byte IPv4 address.
func EncodeMessageHeader(typ MessageType, vtimeSeconds float64, bodyLen int, originator netip.Addr, ttl, hopCount uint8, seq uint16) ([]byte, error) {
	if !originator.Is4() {
		return nil, ErrInvalidIP
	}
	buf := make([]byte, MessageHeaderLen)
	buf[0] = byte(typ)
	buf[1] = EncodeTime(vtimeSeconds)
	binary.BigEndian.PutUint16(buf[2:4], uint16(MessageHeaderLen+bodyLen))
	ip4 := originator.As4()
	copy(buf[4:8], ip4[:])
	buf[8] = ttl
	buf[9] = hopCount
	binary.BigEndian.PutUint16(buf[10:12], seq)
	return buf, nil
}

// DecodeMessageHeader unpacks the leading 12 bytes of a message.
func DecodeMessageHeader(buf []byte) (MessageHeader, error) {
	if len(buf) < MessageHeaderLen {
		return MessageHeader{}, ErrTooShort
	}
	var ip4 [4]byte
	copy(ip4[:], buf[4:8])
	return MessageHeader{
		Type:       MessageType(buf[0]),
		VTime:      buf[1],
		Size:       binary.BigEndian.Uint16(buf[2:4]),
		Originator: netip.AddrFrom4(ip4),
		TTL:        buf[8],
		HopCount:   buf[9],
		Seq:        binary.BigEndian.Uint16(buf[10:12]),
	}, nil
}

// RewriteForward decrements TTL and increments HopCount in place on the raw
// 12-byte message header prefix of msg, as required when forwarding an MPR
// flood (RFC 3626 §3.4.1). msg must be at least MessageHeaderLen bytes.
func RewriteForward(msg []byte) error {
	if len(msg) < MessageHeaderLen {
		return ErrTooShort
	}
	msg[8]--
	msg[9]++
	return nil
}

// NewLinkCode packs a link code byte from a link type and neighbor type
// (RFC 3626 §6.1.1, bits 0-1 link type, bits 2-3 neighbor type, bits 4-7
// reserved zero).
func NewLinkCode(lt LinkType, nt NeighborType) (uint8, error) {
	if lt > LinkLost {
		return 0, ErrInvalidArgument
	}
	if nt > NeighborMPR {
		return 0, ErrInvalidArgument
	}
	return (uint8(nt) << 2) | uint8(lt), nil
}

// DecodeLinkCode splits a link code byte into its link type and neighbor
// type components.
func DecodeLinkCode(code uint8) (LinkType, NeighborType) {
	return LinkType(code & 0x03), NeighborType((code >> 2) & 0x03)
}
