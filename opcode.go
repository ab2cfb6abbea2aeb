package websocket

import (
	"fmt"
)

// Opcode represents a WebSocket frame opcode.
// See https://tools.ietf.org/html/rfc6455#section-11.8
type Opcode int

// Opcode constants.
const (
	OpContinuation Opcode = iota
	OpText
	OpBinary
	// 3 - 7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	OpClose
	OpPing
	OpPong
	// 11-15 are reserved for further control frames.
)

// Control reports whether o is in the control range 0x8-0xF,
// including the reserved control opcodes.
func (o Opcode) Control() bool {
	return o >= OpClose && o <= 0xf
}

// Data reports whether o begins a text or binary message.
func (o Opcode) Data() bool {
	switch o {
	case OpText, OpBinary:
		return true
	}
	return false
}

func (o Opcode) valid() bool {
	return o >= 0 && o <= 0xf
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return fmt.Sprintf("opcode(%d)", int(o))
}
