package websocket

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/framewire/websocket/internal/errd"
)

// Sender writes framed bytes to a transport.
// Sends are serialized so frames are never interleaved.
type Sender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSender returns a Sender writing to w.
func NewSender(w io.Writer) *Sender {
	return &Sender{
		w: w,
	}
}

// Send writes frame verbatim. frame must already be framed,
// see EncodeFrame.
func (s *Sender) Send(frame []byte) (err error) {
	defer errd.Wrap(&err, "failed to send frame")

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.w.Write(frame)
	return err
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// SendContext is like Send but when the writer supports write
// deadlines, such as a net.Conn, the write is bounded by ctx's
// deadline. The deadline is set under the same lock as the write.
func (s *Sender) SendContext(ctx context.Context, frame []byte) (err error) {
	defer errd.Wrap(&err, "failed to send frame")

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.w.(writeDeadliner); ok {
		deadline, _ := ctx.Deadline()
		err = d.SetWriteDeadline(deadline)
		if err != nil {
			return err
		}
	}

	_, err = s.w.Write(frame)
	return err
}

// SendMessage frames p as a single message of type typ and sends it.
func (s *Sender) SendMessage(typ MessageType, p []byte) error {
	frame, err := EncodeFrame(p, WithOpcode(int(typ)))
	if err != nil {
		return err
	}
	return s.Send(frame)
}

// SendFragmented sends p as a message of type typ split into
// fragments of at most size bytes.
func (s *Sender) SendFragmented(typ MessageType, p []byte, size int) (err error) {
	defer errd.Wrap(&err, "failed to send fragmented message")

	if size <= 0 {
		size = len(p)
	}

	op := int(typ)
	for {
		n := size
		fin := 0
		if n >= len(p) {
			n = len(p)
			fin = 1
		}

		frame, err := EncodeFrame(p[:n], WithOpcode(op), WithFin(fin))
		if err != nil {
			return err
		}
		err = s.Send(frame)
		if err != nil {
			return err
		}

		p = p[n:]
		op = int(OpContinuation)
		if fin == 1 {
			return nil
		}
	}
}

// SendClose sends a close frame with the given status code and reason.
func (s *Sender) SendClose(code StatusCode, reason string) error {
	p, err := ClosePayload(code, reason, nil)
	if err != nil {
		return err
	}
	if len(p) > maxControlPayload {
		return xerrors.Errorf("close payload of %v bytes exceeds the %v byte control frame limit", len(p), maxControlPayload)
	}
	frame, err := EncodeFrame(p, WithOpcode(int(OpClose)))
	if err != nil {
		return err
	}
	return s.Send(frame)
}
