// Package wire implements the OLSR (RFC 3626) on-wire packet and message
// codec: packet and message headers, the mantissa/exponent time encoding,
// HELLO and TC message bodies, and link-code bit packing. Everything here is
// pure encode/decode — no state, no clock, no sockets.
package wire

import "errors"

// ErrTooShort is returned when a buffer is too small to hold the structure
// being decoded.
var ErrTooShort = errors.New("wire: buffer too short")

// ErrInvalidIP is returned when an address passed to an encoder is not a
// valid IPv4 address.
var ErrInvalidIP = errors.New("wire: invalid IPv4 address")

// ErrInvalidArgument flags a logic precondition violation — an invalid link
// type or neighbor type passed to NewLinkCode. Such calls are bugs in the
// caller, not runtime conditions, per the error-handling design: they
// surface as an error rather than corrupting the wire image. Willingness is
// not validated: EncodeHello writes whatever byte it is given.
var ErrInvalidArgument = errors.New("wire: invalid argument")

// MessageType is the OLSR message-header Type field (RFC 3626 §3.3.2).
type MessageType uint8

const (
	MessageHello MessageType = 1
	MessageTC    MessageType = 2
	MessageData  MessageType = 5 // not part of RFC 3626; local data-plane extension, see DESIGN.md
)

// LinkType is the low 2 bits of a HELLO link code.
type LinkType uint8

const (
	LinkUnspec LinkType = 0
	LinkAsym   LinkType = 1
	LinkSym    LinkType = 2
	LinkLost   LinkType = 3
)

// NeighborType is bits 2-3 of a HELLO link code.
type NeighborType uint8

const (
	NeighborNot NeighborType = 0
	NeighborSym NeighborType = 1
	NeighborMPR NeighborType = 2
)

// PacketHeaderLen is the fixed size, in bytes, of the packet header.
const PacketHeaderLen = 4

// MessageHeaderLen is the fixed size, in bytes, of the message header.
const MessageHeaderLen = 12

// PacketHeader is the 4-byte header prefixing every OLSR datagram.
type PacketHeader struct {
	Length uint16 // includes this header
	Seq    uint16
}
