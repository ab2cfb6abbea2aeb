package websocket

import (
	"golang.org/x/xerrors"

	"github.com/framewire/websocket/internal/bufpool"
)

// fragmentStore accumulates the payloads of one fragmented message.
type fragmentStore struct {
	first    Frame
	started  bool
	payloads [][]byte
}

func (s *fragmentStore) start(f Frame) error {
	if s.started {
		return ErrFragmentStarted
	}
	if !f.Opcode.valid() {
		return xerrors.Errorf("opcode %v is not between 0x0 and 0xF: %w", int(f.Opcode), ErrInvalidFrameOption)
	}
	s.first = f
	s.started = true
	s.payloads = append(s.payloads[:0], f.Payload)
	return nil
}

func (s *fragmentStore) addPayload(p []byte) {
	s.payloads = append(s.payloads, p)
}

func (s *fragmentStore) isStarted() bool {
	return s.started
}

// finish joins the accumulated payloads in arrival order and resets s.
func (s *fragmentStore) finish() (Message, error) {
	if !s.started {
		return Message{}, ErrNoFragment
	}

	m := s.first.message()
	m.Payload = bufpool.Concat(s.payloads)

	for i := range s.payloads {
		s.payloads[i] = nil
	}
	s.payloads = s.payloads[:0]
	s.first = Frame{}
	s.started = false
	return m, nil
}

// ReassemblerOptions represents the options available to NewReassembler.
type ReassemblerOptions struct {
	// PermissiveInterleave lets any final non-continuation frame pass
	// through as its own message while a fragmented message is pending.
	// By default only control frames may interleave with fragments,
	// a data frame arriving mid message fails with ErrFragmentPending.
	PermissiveInterleave bool
}

// Reassembler merges fragmented messages into single Messages.
// See https://tools.ietf.org/html/rfc6455#section-5.4
//
// A Reassembler belongs to a single stream and is not safe for
// concurrent use.
type Reassembler struct {
	opts      ReassemblerOptions
	fragments fragmentStore

	err error
}

// NewReassembler returns a Reassembler. opts may be nil.
func NewReassembler(opts *ReassemblerOptions) *Reassembler {
	r := &Reassembler{}
	if opts != nil {
		r.opts = *opts
	}
	return r
}

// Pending reports whether a fragmented message is being accumulated.
func (r *Reassembler) Pending() bool {
	return r.fragments.isStarted()
}

// Push feeds the next frame of the stream. When f completes a message,
// the message is returned with ok set.
//
// Any error is fatal, every later Push returns it.
func (r *Reassembler) Push(f Frame) (_ Message, ok bool, err error) {
	if r.err != nil {
		return Message{}, false, r.err
	}

	m, ok, err := r.push(f)
	if err != nil {
		r.err = xerrors.Errorf("failed to reassemble %v frame: %w", f.Opcode, err)
		return Message{}, false, r.err
	}
	return m, ok, nil
}

func (r *Reassembler) push(f Frame) (Message, bool, error) {
	if f.Fin && f.Opcode != OpContinuation {
		if r.fragments.isStarted() && !r.opts.PermissiveInterleave && !f.Opcode.Control() {
			return Message{}, false, ErrFragmentPending
		}
		// Unfragmented.
		return f.message(), true, nil
	}

	if !r.fragments.isStarted() {
		if f.Opcode == OpContinuation {
			return Message{}, false, ErrContinuationWithoutStart
		}
		return Message{}, false, r.fragments.start(f)
	}

	if f.Opcode != OpContinuation {
		return Message{}, false, ErrFragmentPending
	}

	r.fragments.addPayload(f.Payload)
	if !f.Fin {
		return Message{}, false, nil
	}
	m, err := r.fragments.finish()
	if err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}
