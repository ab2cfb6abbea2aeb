package websocket

import (
	"fmt"

	"golang.org/x/xerrors"
)

// FrameOption is an option that can be passed to EncodeFrame.
type FrameOption interface {
	apply(fo *frameOptions) error
}

type frameOptions struct {
	text      bool
	opcode    Opcode
	hasOpcode bool
	fin       bool
	rsv       [3]bool
}

type frameOptionFunc func(fo *frameOptions) error

func (f frameOptionFunc) apply(fo *frameOptions) error {
	return f(fo)
}

// Text marks the payload as UTF-8 so the frame is sent with the
// text opcode, unless WithOpcode is also passed.
func Text() FrameOption {
	return frameOptionFunc(func(fo *frameOptions) error {
		fo.text = true
		return nil
	})
}

// WithOpcode sets the opcode, an integer between 0 and 15.
func WithOpcode(op int) FrameOption {
	return frameOptionFunc(func(fo *frameOptions) error {
		if op < 0 || op > 0xf {
			return xerrors.Errorf("opcode %v is not an integer between 0 and 15: %w", op, ErrInvalidFrameOption)
		}
		fo.opcode = Opcode(op)
		fo.hasOpcode = true
		return nil
	})
}

// WithFin sets the FIN bit, 0 or 1. It defaults to 1.
func WithFin(fin int) FrameOption {
	return frameOptionFunc(func(fo *frameOptions) error {
		b, err := bit("fin", fin)
		fo.fin = b
		return err
	})
}

// WithRSV1 sets the first reserved bit, 0 or 1.
func WithRSV1(v int) FrameOption {
	return withRSV(1, v)
}

// WithRSV2 sets the second reserved bit, 0 or 1.
func WithRSV2(v int) FrameOption {
	return withRSV(2, v)
}

// WithRSV3 sets the third reserved bit, 0 or 1.
func WithRSV3(v int) FrameOption {
	return withRSV(3, v)
}

func withRSV(n int, v int) FrameOption {
	return frameOptionFunc(func(fo *frameOptions) error {
		b, err := bit(fmt.Sprintf("rsv%d", n), v)
		fo.rsv[n-1] = b
		return err
	})
}

func bit(name string, v int) (bool, error) {
	if v != 0 && v != 1 {
		return false, xerrors.Errorf("%v %v is not an integer between 0 and 1: %w", name, v, ErrInvalidFrameOption)
	}
	return v == 1, nil
}

// EncodeFrame returns p framed as a single unmasked frame.
//
// By default the frame is final, the reserved bits are clear and the
// opcode is binary, or text when Text is passed.
// The payload length is encoded in 7 bits up to 125 bytes, in 16 bits
// up to 65535 bytes and in 63 bits otherwise.
func EncodeFrame(p []byte, opts ...FrameOption) (_ []byte, err error) {
	fo := frameOptions{
		fin: true,
	}
	for _, o := range opts {
		err = o.apply(&fo)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode frame: %w", err)
		}
	}

	h := header{
		fin:           fo.fin,
		rsv1:          fo.rsv[0],
		rsv2:          fo.rsv[1],
		rsv3:          fo.rsv[2],
		opcode:        OpBinary,
		payloadLength: uint64(len(p)),
	}
	switch {
	case fo.hasOpcode:
		h.opcode = fo.opcode
	case fo.text:
		h.opcode = OpText
	}

	b := make([]byte, 0, maxHeaderSize+len(p))
	b = appendHeader(b, h)
	return append(b, p...), nil
}
