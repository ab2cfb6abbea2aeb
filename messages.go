package websocket

import (
	"context"

	"github.com/framewire/websocket/internal/atomicint"
)

// MessageStream is a FrameStream whose frames are merged into
// complete messages. Unfragmented frames become messages as they are,
// fragments are held until the final continuation arrives.
type MessageStream struct {
	frames      *FrameStream
	reassembler *Reassembler

	readMu     mu
	messages64 atomicint.Int64
}

// NewMessageStream starts a MessageStream. opts may be nil.
// Close must be called to stop its goroutine.
func NewMessageStream(opts *StreamOptions) *MessageStream {
	if opts == nil {
		opts = &StreamOptions{}
	}
	return &MessageStream{
		frames: NewFrameStream(opts),
		reassembler: NewReassembler(&ReassemblerOptions{
			PermissiveInterleave: opts.PermissiveInterleave,
		}),
	}
}

// Readable queues read, see FrameStream.Readable.
func (s *MessageStream) Readable(read ReadFunc) {
	s.frames.Readable(read)
}

// Next returns the next complete message.
//
// Errors follow FrameStream.Next. Sequencing errors from reassembly
// are also permanent.
func (s *MessageStream) Next(ctx context.Context) (_ Message, err error) {
	err = s.readMu.Lock(ctx)
	if err != nil {
		return Message{}, err
	}
	defer s.readMu.Unlock()

	for {
		f, err := s.frames.Next(ctx)
		if err != nil {
			return Message{}, err
		}

		m, ok, err := s.reassembler.Push(f)
		if err != nil {
			return Message{}, err
		}
		if ok {
			s.messages64.Increment(1)
			return m, nil
		}
	}
}

// Close stops the stream, see FrameStream.Close.
func (s *MessageStream) Close() error {
	return s.frames.Close()
}

// Stats returns the stream's counters.
func (s *MessageStream) Stats() StreamStats {
	st := s.frames.Stats()
	st.Messages = s.messages64.Load()
	return st
}

var _ Notifier = (*MessageStream)(nil)
