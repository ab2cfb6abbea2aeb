package websocket

import (
	"math"

	"golang.org/x/xerrors"
)

// DecoderOptions represents the options available to NewDecoder.
type DecoderOptions struct {
	// MaxBufferedPayload limits the payload length of a frame that
	// does not arrive within a single chunk and so has to be held
	// in memory until the rest of it is read.
	// Frames completed within one chunk are not subject to it.
	//
	// Zero means no limit.
	MaxBufferedPayload int64
}

// Decoder turns chunks read from a transport into frames.
// Frames may be split across chunks at any byte offset, the
// incomplete tail of one chunk is retained until the next.
//
// A Decoder belongs to a single stream and is not safe for
// concurrent use. Chunks must be decoded, and the returned
// Frames drained, in the order they were read.
type Decoder struct {
	opts    DecoderOptions
	partial partialFrameStore

	err error
}

// NewDecoder returns a Decoder. opts may be nil.
func NewDecoder(opts *DecoderOptions) *Decoder {
	d := &Decoder{}
	if opts != nil {
		d.opts = *opts
	}
	return d
}

// Err returns the error that stopped the Decoder, if any.
// Once set, every later Decode reports it.
func (d *Decoder) Err() error {
	return d.err
}

// Decode returns the frames that chunk completes, combined with any
// state retained from earlier chunks. Decoding is lazy: nothing is
// parsed until Next is called on the returned Frames.
//
// A nil or empty chunk yields no frames and leaves the retained state
// untouched.
func (d *Decoder) Decode(chunk []byte) *Frames {
	return &Frames{
		d:   d,
		buf: chunk,
	}
}

func (d *Decoder) fail(err error) error {
	if d.err == nil {
		d.err = xerrors.Errorf("failed to decode frame: %w", err)
	}
	return d.err
}

// resume combines buf with the retained partial frame, if any.
// It returns a frame if buf completed a partially filled payload,
// and the bytes left to parse.
func (d *Decoder) resume(buf []byte) (_ Frame, ok bool, rest []byte, err error) {
	if !d.partial.isSet {
		return Frame{}, false, buf, nil
	}

	pf, err := d.partial.get()
	if err != nil {
		return Frame{}, false, nil, err
	}

	if pf.payload == nil {
		b := make([]byte, len(pf.rest)+len(buf))
		n := copy(b, pf.rest)
		copy(b[n:], buf)
		return Frame{}, false, b, nil
	}

	need := len(pf.payload) - pf.filled
	if len(buf) < need {
		pf.filled += copy(pf.payload[pf.filled:], buf)
		return Frame{}, false, nil, d.partial.set(pf)
	}

	copy(pf.payload[pf.filled:], buf[:need])
	if pf.h.masked {
		Mask(pf.h.maskKey, 0, pf.payload)
	}
	return pf.h.frame(pf.payload), true, buf[need:], nil
}

// next parses one frame from the start of buf. If buf ends before
// the frame does, the tail is retained and ok is false.
func (d *Decoder) next(buf []byte) (_ Frame, ok bool, rest []byte, err error) {
	h, n, ok, err := parseHeader(buf)
	if err != nil {
		return Frame{}, false, nil, err
	}
	if !ok {
		rest := make([]byte, len(buf))
		copy(rest, buf)
		return Frame{}, false, nil, d.partial.set(partialFrame{
			rest: rest,
		})
	}

	avail := uint64(len(buf) - n)
	if h.payloadLength > avail {
		if h.payloadLength > math.MaxInt ||
			d.opts.MaxBufferedPayload > 0 && h.payloadLength > uint64(d.opts.MaxBufferedPayload) {
			return Frame{}, false, nil, xerrors.Errorf("frame payload of %v bytes: %w", h.payloadLength, ErrBufferedPayloadTooLarge)
		}

		payload := make([]byte, h.payloadLength)
		filled := copy(payload, buf[n:])
		return Frame{}, false, nil, d.partial.set(partialFrame{
			h:       h,
			payload: payload,
			filled:  filled,
		})
	}

	end := n + int(h.payloadLength)
	payload := make([]byte, h.payloadLength)
	copy(payload, buf[n:end])
	if h.masked {
		Mask(h.maskKey, 0, payload)
	}
	return h.frame(payload), true, buf[end:], nil
}

// Frames iterates over the frames decoded from one chunk.
//
//	fs := d.Decode(chunk)
//	for fs.Next() {
//		f := fs.Frame()
//		// ...
//	}
//	if err := fs.Err(); err != nil {
//		// ...
//	}
type Frames struct {
	d   *Decoder
	buf []byte

	resumed bool
	done    bool
	frame   Frame
	err     error
}

// Next advances to the next frame. It returns false when the chunk
// is exhausted or decoding failed, see Err.
func (fs *Frames) Next() bool {
	if fs.done {
		return false
	}
	if fs.d.err != nil {
		return fs.stop(fs.d.err)
	}

	if !fs.resumed {
		fs.resumed = true
		if len(fs.buf) == 0 {
			return fs.stop(nil)
		}

		f, ok, rest, err := fs.d.resume(fs.buf)
		fs.buf = rest
		if err != nil {
			return fs.stop(fs.d.fail(err))
		}
		if ok {
			fs.frame = f
			return true
		}
	}

	if len(fs.buf) == 0 {
		return fs.stop(nil)
	}

	f, ok, rest, err := fs.d.next(fs.buf)
	fs.buf = rest
	if err != nil {
		return fs.stop(fs.d.fail(err))
	}
	if !ok {
		return fs.stop(nil)
	}
	fs.frame = f
	return true
}

func (fs *Frames) stop(err error) bool {
	fs.done = true
	fs.frame = Frame{}
	fs.buf = nil
	fs.err = err
	return false
}

// Frame returns the current frame.
func (fs *Frames) Frame() Frame {
	return fs.frame
}

// Err returns the error that ended iteration, if any.
func (fs *Frames) Err() error {
	return fs.err
}

// All drains fs and returns every frame it yields.
func (fs *Frames) All() ([]Frame, error) {
	var frames []Frame
	for fs.Next() {
		frames = append(frames, fs.Frame())
	}
	return frames, fs.Err()
}
