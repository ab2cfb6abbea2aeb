package websocket

import (
	"bytes"
	"math/rand"
	"strconv"
	"testing"

	"github.com/gobwas/ws"

	"github.com/framewire/websocket/internal/test/assert"
	"github.com/framewire/websocket/internal/test/xrand"
)

// maskedFrame returns p framed and masked the way a client sends it.
func maskedFrame(t testing.TB, op Opcode, fin bool, p []byte) []byte {
	t.Helper()

	f := ws.NewFrame(ws.OpCode(op), fin, append([]byte(nil), p...))
	f = ws.MaskFrameWith(f, xrand.MaskKey())
	b, err := ws.CompileFrame(f)
	assert.Success(t, err)
	return b
}

func mustEncode(t testing.TB, p []byte, opts ...FrameOption) []byte {
	t.Helper()

	b, err := EncodeFrame(p, opts...)
	assert.Success(t, err)
	return b
}

// scenario is a text frame, an empty ping and a masked binary frame.
func scenario(t testing.TB) ([]byte, []Frame) {
	t.Helper()

	bin := xrand.Bytes(64)

	var b []byte
	b = append(b, mustEncode(t, []byte("message1"), Text())...)
	b = append(b, mustEncode(t, nil, WithOpcode(int(OpPing)))...)
	b = append(b, maskedFrame(t, OpBinary, true, bin)...)

	return b, []Frame{
		{Fin: true, Opcode: OpText, Payload: []byte("message1")},
		{Fin: true, Opcode: OpPing},
		{Fin: true, Opcode: OpBinary, Masked: true, Payload: bin},
	}
}

func decodeChunks(t testing.TB, d *Decoder, chunks ...[]byte) []Frame {
	t.Helper()

	var frames []Frame
	for _, c := range chunks {
		fs, err := d.Decode(c).All()
		assert.Success(t, err)
		frames = append(frames, fs...)
	}
	return frames
}

func TestDecoder(t *testing.T) {
	t.Parallel()

	t.Run("whole", func(t *testing.T) {
		t.Parallel()

		b, exp := scenario(t)
		frames := decodeChunks(t, NewDecoder(nil), b)
		assert.Equal(t, "frames", exp, frames)
	})

	t.Run("splitAtEveryOffset", func(t *testing.T) {
		t.Parallel()

		b, exp := scenario(t)
		for i := 0; i <= len(b); i++ {
			frames := decodeChunks(t, NewDecoder(nil), b[:i], b[i:])
			assert.Equal(t, "frames split at "+strconv.Itoa(i), exp, frames)
		}
	})

	t.Run("byteByByte", func(t *testing.T) {
		t.Parallel()

		b, exp := scenario(t)
		var chunks [][]byte
		for i := range b {
			chunks = append(chunks, b[i:i+1])
		}
		frames := decodeChunks(t, NewDecoder(nil), chunks...)
		assert.Equal(t, "frames", exp, frames)
	})

	t.Run("randomChunks", func(t *testing.T) {
		t.Parallel()

		var b []byte
		var exp []Frame
		for i := 0; i < 50; i++ {
			p := xrand.Bytes(xrand.Int(70000))
			if xrand.Bool() {
				b = append(b, maskedFrame(t, OpBinary, true, p)...)
				exp = append(exp, Frame{Fin: true, Opcode: OpBinary, Masked: true, Payload: p})
			} else {
				b = append(b, mustEncode(t, p)...)
				exp = append(exp, Frame{Fin: true, Opcode: OpBinary, Payload: p})
			}
		}

		d := NewDecoder(nil)
		var frames []Frame
		for len(b) > 0 {
			n := rand.Intn(len(b)) + 1
			frames = append(frames, decodeChunks(t, d, b[:n])...)
			b = b[n:]
		}
		assert.Equal(t, "frames", exp, frames)
	})

	t.Run("chunkReused", func(t *testing.T) {
		t.Parallel()

		b, exp := scenario(t)
		d := NewDecoder(nil)
		buf := make([]byte, 5)

		var frames []Frame
		for len(b) > 0 {
			n := copy(buf, b)
			frames = append(frames, decodeChunks(t, d, buf[:n])...)
			for i := range buf {
				buf[i] = 0
			}
			b = b[n:]
		}
		assert.Equal(t, "frames", exp, frames)
	})

	t.Run("emptyChunk", func(t *testing.T) {
		t.Parallel()

		b, exp := scenario(t)
		d := NewDecoder(nil)
		frames := decodeChunks(t, d, b[:3], nil, []byte{}, b[3:])
		assert.Equal(t, "frames", exp, frames)
	})

	t.Run("lazy", func(t *testing.T) {
		t.Parallel()

		d := NewDecoder(nil)
		fs := d.Decode([]byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1})
		assert.Success(t, d.Err())

		assert.Equal(t, "next", false, fs.Next())
		assert.ErrorIs(t, ErrLengthMSB, fs.Err())
		assert.ErrorIs(t, ErrLengthMSB, d.Err())
	})

	t.Run("lengthMSB", func(t *testing.T) {
		t.Parallel()

		d := NewDecoder(nil)
		b := append(mustEncode(t, []byte("ok")), 0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1)

		frames, err := d.Decode(b).All()
		assert.ErrorIs(t, ErrLengthMSB, err)
		assert.Equal(t, "frames before error", []Frame{{Fin: true, Opcode: OpBinary, Payload: []byte("ok")}}, frames)

		frames, err = d.Decode(mustEncode(t, []byte("after"))).All()
		assert.ErrorIs(t, ErrLengthMSB, err)
		assert.Equal(t, "frames after error", 0, len(frames))
	})

	t.Run("lengthMSBOnly", func(t *testing.T) {
		t.Parallel()

		frames, err := NewDecoder(nil).Decode([]byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1, 0xff}).All()
		assert.ErrorIs(t, ErrLengthMSB, err)
		assert.Equal(t, "frames", 0, len(frames))
	})

	t.Run("maxBufferedPayload", func(t *testing.T) {
		t.Parallel()

		b := mustEncode(t, xrand.Bytes(200))
		opts := &DecoderOptions{MaxBufferedPayload: 100}

		// A frame read whole is never buffered.
		frames := decodeChunks(t, NewDecoder(opts), b)
		assert.Equal(t, "frames", 1, len(frames))

		d := NewDecoder(opts)
		_, err := d.Decode(b[:10]).All()
		assert.ErrorIs(t, ErrBufferedPayloadTooLarge, err)
		assert.ErrorIs(t, ErrBufferedPayloadTooLarge, d.Err())

		d = NewDecoder(&DecoderOptions{MaxBufferedPayload: 200})
		frames = decodeChunks(t, d, b[:10], b[10:])
		assert.Equal(t, "frames", 1, len(frames))
	})

	t.Run("hugeLength", func(t *testing.T) {
		t.Parallel()

		b := []byte{0x82, 127, 0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1}
		_, err := NewDecoder(&DecoderOptions{MaxBufferedPayload: 1 << 30}).Decode(b).All()
		assert.ErrorIs(t, ErrBufferedPayloadTooLarge, err)
	})
}

func TestPartialFrameStore(t *testing.T) {
	t.Parallel()

	var s partialFrameStore

	_, err := s.get()
	assert.ErrorIs(t, ErrPartialFrameNotSet, err)

	exp := partialFrame{rest: []byte{0x82}}
	err = s.set(exp)
	assert.Success(t, err)

	err = s.set(partialFrame{rest: []byte{0x81}})
	assert.ErrorIs(t, ErrPartialFrameSet, err)

	pf, err := s.get()
	assert.Success(t, err)
	assert.Equal(t, "partial frame", exp, pf)

	_, err = s.get()
	assert.ErrorIs(t, ErrPartialFrameNotSet, err)
}

func BenchmarkDecoder(b *testing.B) {
	for _, size := range []int{16, 512, 4096, 65536} {
		frame := maskedFrame(b, OpBinary, true, xrand.Bytes(size))
		chunk := bytes.Repeat(frame, 16)

		b.Run(strconv.Itoa(size), func(b *testing.B) {
			b.SetBytes(int64(len(chunk)))
			b.ReportAllocs()

			d := NewDecoder(nil)
			for i := 0; i < b.N; i++ {
				fs := d.Decode(chunk)
				for fs.Next() {
				}
				if fs.Err() != nil {
					b.Fatal(fs.Err())
				}
			}
		})
	}
}
