package websocket

import (
	"encoding/binary"
	"math"
)

// Frame is one decoded base frame.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Extended payload length continued, if payload len == 127  |
//	+ - - - - - - - - - - - - - - - +-------------------------------+
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------- - - - - - - - - - - - - - - - +
//	:                     Payload Data continued ...                :
//	+ - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - +
//	|                     Payload Data continued ...                |
//	+---------------------------------------------------------------+
//
// See https://tools.ietf.org/html/rfc6455#section-5.2
//
// Payload is owned by the receiver of the Frame and has already
// been unmasked when Masked is set.
type Frame struct {
	Fin    bool
	RSV1   bool
	RSV2   bool
	RSV3   bool
	Opcode Opcode
	Masked bool

	Payload []byte
}

// Message is a complete application message, possibly
// reassembled from several fragments. Opcode and the reserved
// bits are those of the first fragment.
type Message struct {
	RSV1   bool
	RSV2   bool
	RSV3   bool
	Opcode Opcode
	Masked bool

	Payload []byte
}

// Type returns the MessageType for data messages.
func (m Message) Type() MessageType {
	return MessageType(m.Opcode)
}

func (f Frame) message() Message {
	return Message{
		RSV1:    f.RSV1,
		RSV2:    f.RSV2,
		RSV3:    f.RSV3,
		Opcode:  f.Opcode,
		Masked:  f.Masked,
		Payload: f.Payload,
	}
}

// First byte contains fin, rsv1, rsv2, rsv3 and the opcode.
// Second byte contains mask flag and payload len.
// Next 8 bytes are the maximum extended payload length.
// Last 4 bytes are the mask key.
const maxHeaderSize = 1 + 1 + 8 + 4

// maxControlPayload is the maximum length of a control frame payload.
// See https://tools.ietf.org/html/rfc6455#section-5.5.
const maxControlPayload = 125

// header is the parsed fixed part of a frame up to the payload.
type header struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode Opcode

	payloadLength uint64

	masked  bool
	maskKey [4]byte
}

func (h header) frame(payload []byte) Frame {
	return Frame{
		Fin:     h.fin,
		RSV1:    h.rsv1,
		RSV2:    h.rsv2,
		RSV3:    h.rsv3,
		Opcode:  h.opcode,
		Masked:  h.masked,
		Payload: payload,
	}
}

// parseHeader parses the header at the start of b.
// It returns the header and its size on the wire. When b does not
// yet hold the whole header, ok is false and nothing is consumed.
func parseHeader(b []byte) (h header, n int, ok bool, err error) {
	if len(b) < 2 {
		return header{}, 0, false, nil
	}

	h.fin = b[0]&(1<<7) != 0
	h.rsv1 = b[0]&(1<<6) != 0
	h.rsv2 = b[0]&(1<<5) != 0
	h.rsv3 = b[0]&(1<<4) != 0
	h.opcode = Opcode(b[0] & 0xf)

	h.masked = b[1]&(1<<7) != 0
	payloadLength := b[1] &^ (1 << 7)

	n = 2
	switch payloadLength {
	case 126:
		n += 2
	case 127:
		// The most significant bit of the 64 bit length must be 0.
		if len(b) > 2 && b[2]&(1<<7) != 0 {
			return header{}, 0, false, ErrLengthMSB
		}
		n += 8
	}
	if h.masked {
		n += 4
	}
	if len(b) < n {
		return header{}, 0, false, nil
	}

	switch payloadLength {
	case 126:
		h.payloadLength = uint64(binary.BigEndian.Uint16(b[2:]))
	case 127:
		h.payloadLength = binary.BigEndian.Uint64(b[2:])
	default:
		h.payloadLength = uint64(payloadLength)
	}

	if h.masked {
		copy(h.maskKey[:], b[n-4:n])
	}

	return h, n, true, nil
}

// appendHeader appends the wire form of h to b.
// See https://tools.ietf.org/html/rfc6455#section-5.2
func appendHeader(b []byte, h header) []byte {
	var b0 byte
	if h.fin {
		b0 |= 1 << 7
	}
	if h.rsv1 {
		b0 |= 1 << 6
	}
	if h.rsv2 {
		b0 |= 1 << 5
	}
	if h.rsv3 {
		b0 |= 1 << 4
	}
	b0 |= byte(h.opcode)

	var b1 byte
	if h.masked {
		b1 |= 1 << 7
	}

	switch {
	case h.payloadLength <= 125:
		b = append(b, b0, b1|byte(h.payloadLength))
	case h.payloadLength <= math.MaxUint16:
		b = append(b, b0, b1|126)
		b = binary.BigEndian.AppendUint16(b, uint16(h.payloadLength))
	default:
		b = append(b, b0, b1|127)
		b = binary.BigEndian.AppendUint64(b, h.payloadLength)
	}

	if h.masked {
		b = append(b, h.maskKey[:]...)
	}
	return b
}
