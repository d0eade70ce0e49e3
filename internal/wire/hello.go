package wire

import (
	"encoding/binary"
	"net/netip"
)

// linkMessageHeaderLen is the fixed part of a link message: link code (1),
// reserved (1), size (2).
const linkMessageHeaderLen = 4

// LinkMessage is one neighbor group within a HELLO body: a link code shared
// by every listed address.
type LinkMessage struct {
	Code      uint8
	Neighbors []netip.Addr
}

// HelloBody is the decoded contents of a HELLO message.
type HelloBody struct {
	HTime       float64 // decoded seconds
	Willingness uint8
	Links       []LinkMessage
}

// EncodeHello packs a HELLO body: 2-byte reserved, 1-byte encoded Htime,
// 1-byte willingness, followed by zero or more link messages. Empty link
// groups should not be passed in — callers build only non-empty groups.
func EncodeHello(htimeSeconds float64, willingness uint8, links []LinkMessage) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], 0)
	buf[2] = EncodeTime(htimeSeconds)
	buf[3] = willingness

	for _, lm := range links {
		lmLen := linkMessageHeaderLen + len(lm.Neighbors)*4
		lmBuf := make([]byte, lmLen)
		lmBuf[0] = lm.Code
		lmBuf[1] = 0
		binary.BigEndian.PutUint16(lmBuf[2:4], uint16(lmLen))
		for i, addr := range lm.Neighbors {
			a4 := addr.As4()
			copy(lmBuf[linkMessageHeaderLen+i*4:], a4[:])
		}
		buf = append(buf, lmBuf...)
	}
	return buf
}

// DecodeHello unpacks a HELLO body. Truncated trailing data is tolerated:
// parsing stops at the largest fully-readable link message, and within a
// link message at the largest fully-readable address, without failing the
// whole body.
func DecodeHello(body []byte) (HelloBody, error) {
	if len(body) < 4 {
		return HelloBody{}, ErrTooShort
	}

	htimeByte := body[2]
	willingness := body[3]

	hb := HelloBody{
		HTime:       DecodeTime(htimeByte),
		Willingness: willingness,
	}

	cursor := 4
	for cursor+linkMessageHeaderLen <= len(body) {
		code := body[cursor]
		lmSize := int(binary.BigEndian.Uint16(body[cursor+2 : cursor+4]))
		if lmSize < linkMessageHeaderLen {
			break
		}

		end := cursor + lmSize
		if end > len(body) {
			end = len(body)
		}

		var neighbors []netip.Addr
		ipCursor := cursor + linkMessageHeaderLen
		for ipCursor+4 <= end {
			var a4 [4]byte
			copy(a4[:], body[ipCursor:ipCursor+4])
			neighbors = append(neighbors, netip.AddrFrom4(a4))
			ipCursor += 4
		}

		hb.Links = append(hb.Links, LinkMessage{Code: code, Neighbors: neighbors})

		if end != cursor+lmSize {
			// lmSize claimed more than the buffer holds; we consumed what
			// was readable and there is nothing further to parse.
			break
		}
		cursor += lmSize
	}

	return hb, nil
}
