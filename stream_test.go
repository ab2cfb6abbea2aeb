package websocket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/framewire/websocket/internal/test/assert"
	"github.com/framewire/websocket/internal/test/xrand"
)

func chunkRead(b []byte) ReadFunc {
	return func() ([]byte, error) {
		return b, nil
	}
}

func eofRead() ([]byte, error) {
	return nil, io.EOF
}

func nextFrames(ctx context.Context, t *testing.T, s *FrameStream, n int) []Frame {
	t.Helper()

	var frames []Frame
	for i := 0; i < n; i++ {
		f, err := s.Next(ctx)
		assert.Success(t, err)
		frames = append(frames, f)
	}
	return frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second * 10)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %v", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFrameStream(t *testing.T) {
	t.Parallel()

	t.Run("ordered", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		b, exp := scenario(t)
		s.Readable(chunkRead(b[:7]))
		s.Readable(chunkRead(nil))
		s.Readable(chunkRead(b[7:20]))
		s.Readable(chunkRead(b[20:]))
		s.Readable(eofRead)

		frames := nextFrames(ctx, t, s, len(exp))
		assert.Equal(t, "frames", exp, frames)

		_, err := s.Next(ctx)
		assert.ErrorIs(t, io.EOF, err)
		_, err = s.Next(ctx)
		assert.ErrorIs(t, io.EOF, err)
	})

	t.Run("readsInOrder", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		var exp []Frame
		for i := 0; i < 100; i++ {
			p := xrand.Bytes(xrand.Int(200))
			exp = append(exp, Frame{Fin: true, Opcode: OpBinary, Payload: p})

			b := mustEncode(t, p)
			slow := xrand.Bool()
			s.Readable(func() ([]byte, error) {
				if slow {
					time.Sleep(time.Microsecond * 100)
				}
				return b, nil
			})
		}

		frames := nextFrames(ctx, t, s, len(exp))
		assert.Equal(t, "frames", exp, frames)
		assert.Equal(t, "reads", int64(100), s.Stats().Reads)
		assert.Equal(t, "frames read", int64(100), s.Stats().Frames)
	})

	t.Run("consumerFirst", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		got := make(chan Frame, 1)
		go func() {
			f, err := s.Next(ctx)
			if err == nil {
				got <- f
			}
		}()

		time.Sleep(time.Millisecond * 10)
		s.Readable(chunkRead(mustEncode(t, []byte("late"), Text())))

		select {
		case f := <-got:
			assert.Equal(t, "frame", Frame{Fin: true, Opcode: OpText, Payload: []byte("late")}, f)
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		}
	})

	t.Run("lag", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		for i := 0; i < 3; i++ {
			s.Readable(chunkRead(mustEncode(t, []byte{byte(i)})))
		}
		waitFor(t, "three pending batches", func() bool {
			return s.Stats().PendingBatches == 3
		})
		st := s.Stats()
		assert.Equal(t, "reads", int64(3), st.Reads)
		assert.Equal(t, "pending reads", 0, st.PendingReads)

		nextFrames(ctx, t, s, 3)
		assert.Equal(t, "pending batches", 0, s.Stats().PendingBatches)
	})

	t.Run("readError", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		readErr := errors.New("connection reset")
		s.Readable(chunkRead(mustEncode(t, []byte("first"))))
		s.Readable(func() ([]byte, error) {
			return nil, readErr
		})
		s.Readable(chunkRead(mustEncode(t, []byte("never"))))

		nextFrames(ctx, t, s, 1)
		_, err := s.Next(ctx)
		assert.ErrorIs(t, readErr, err)
	})

	t.Run("decodeError", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)
		defer s.Close()

		s.Readable(chunkRead([]byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1}))
		s.Readable(chunkRead(mustEncode(t, []byte("after"))))

		_, err := s.Next(ctx)
		assert.ErrorIs(t, ErrLengthMSB, err)
		_, err = s.Next(ctx)
		assert.ErrorIs(t, ErrLengthMSB, err)
	})

	t.Run("contextDone", func(t *testing.T) {
		t.Parallel()

		s := NewFrameStream(nil)
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
		defer cancel()
		_, err := s.Next(ctx)
		assert.ErrorIs(t, context.DeadlineExceeded, err)

		// The stream survives the caller giving up.
		ctx, cancel = context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		s.Readable(chunkRead(mustEncode(t, []byte("still here"))))
		f, err := s.Next(ctx)
		assert.Success(t, err)
		assert.Equal(t, "payload", "still here", string(f.Payload))
	})

	t.Run("closeUnblocksNext", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewFrameStream(nil)

		errs := make(chan error, 1)
		go func() {
			_, err := s.Next(ctx)
			errs <- err
		}()

		time.Sleep(time.Millisecond * 10)
		assert.Success(t, s.Close())
		assert.Success(t, s.Close())

		select {
		case err := <-errs:
			assert.ErrorIs(t, ErrStreamClosed, err)
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		}

		s.Readable(chunkRead(mustEncode(t, []byte("dropped"))))
		_, err := s.Next(ctx)
		assert.ErrorIs(t, ErrStreamClosed, err)
	})
}

func TestMessageStream(t *testing.T) {
	t.Parallel()

	t.Run("fragmentsAcrossReads", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewMessageStream(nil)
		defer s.Close()

		var b []byte
		b = append(b, mustEncode(t, bytes.Repeat([]byte{1}, 10), WithFin(0))...)
		b = append(b, mustEncode(t, []byte("p"), WithOpcode(int(OpPing)))...)
		b = append(b, mustEncode(t, bytes.Repeat([]byte{2}, 10), WithOpcode(0), WithFin(0))...)
		b = append(b, mustEncode(t, bytes.Repeat([]byte{3}, 10), WithOpcode(0))...)
		b = append(b, mustEncode(t, []byte("solo"), Text())...)

		for len(b) > 0 {
			n := 7
			if n > len(b) {
				n = len(b)
			}
			s.Readable(chunkRead(b[:n]))
			b = b[n:]
		}
		s.Readable(eofRead)

		m, err := s.Next(ctx)
		assert.Success(t, err)
		assert.Equal(t, "ping", Message{Opcode: OpPing, Payload: []byte("p")}, m)

		m, err = s.Next(ctx)
		assert.Success(t, err)
		var exp []byte
		exp = append(exp, bytes.Repeat([]byte{1}, 10)...)
		exp = append(exp, bytes.Repeat([]byte{2}, 10)...)
		exp = append(exp, bytes.Repeat([]byte{3}, 10)...)
		assert.Equal(t, "message", Message{Opcode: OpBinary, Payload: exp}, m)

		m, err = s.Next(ctx)
		assert.Success(t, err)
		assert.Equal(t, "message", Message{Opcode: OpText, Payload: []byte("solo")}, m)

		_, err = s.Next(ctx)
		assert.ErrorIs(t, io.EOF, err)

		st := s.Stats()
		assert.Equal(t, "messages", int64(3), st.Messages)
		assert.Equal(t, "frames", int64(5), st.Frames)
	})

	t.Run("sequencingError", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewMessageStream(nil)
		defer s.Close()

		s.Readable(chunkRead(mustEncode(t, []byte("x"), WithOpcode(0))))
		_, err := s.Next(ctx)
		assert.ErrorIs(t, ErrContinuationWithoutStart, err)
	})

	t.Run("pump", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		s := NewMessageStream(nil)
		defer s.Close()

		c1, c2 := net.Pipe()
		pumpErr := make(chan error, 1)
		go func() {
			pumpErr <- Pump(ctx, c2, s)
		}()

		var exp []Message
		for i := 0; i < 20; i++ {
			p := xrand.Bytes(xrand.Int(1 << 16))
			exp = append(exp, Message{Opcode: OpBinary, Masked: true, Payload: p})
			_, err := c1.Write(maskedFrame(t, OpBinary, true, p))
			assert.Success(t, err)
		}
		assert.Success(t, c1.Close())

		for _, m := range exp {
			got, err := s.Next(ctx)
			assert.Success(t, err)
			assert.Equal(t, "message", m, got)
		}

		_, err := s.Next(ctx)
		assert.ErrorIs(t, io.EOF, err)
		assert.Success(t, <-pumpErr)
	})
}

func TestPump(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFrameStream(nil)
	defer s.Close()

	err := Pump(ctx, bytes.NewReader(mustEncode(t, []byte("hi"))), s)
	assert.ErrorIs(t, context.Canceled, err)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	f, err := s.Next(ctx)
	assert.Success(t, err)
	assert.Equal(t, "payload", "hi", string(f.Payload))

	_, err = s.Next(ctx)
	assert.ErrorIs(t, context.Canceled, err)
}
