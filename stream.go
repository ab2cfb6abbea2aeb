package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/framewire/websocket/internal/atomicint"
	"github.com/framewire/websocket/internal/awaitq"
)

// ReadFunc performs one read from a transport that signalled it is
// readable. It returns the bytes read, or nil when nothing was
// available. A non nil error ends the stream once every earlier
// chunk has been consumed; io.EOF signals a clean end.
//
// The returned slice is owned by the stream from then on, frame
// payloads may alias it. The transport must not reuse it; Pump copies
// each chunk out of its read buffer.
type ReadFunc func() ([]byte, error)

// Notifier is told each time a transport has data to read.
type Notifier interface {
	Readable(read ReadFunc)
}

// StreamOptions represents the options available to NewFrameStream
// and NewMessageStream.
type StreamOptions struct {
	// MaxBufferedPayload is passed to the stream's Decoder.
	// See DecoderOptions.
	MaxBufferedPayload int64

	// PermissiveInterleave is passed to the MessageStream's
	// Reassembler. See ReassemblerOptions.
	PermissiveInterleave bool

	// Logger receives stream lifecycle events.
	// Defaults to zerolog.Nop().
	Logger *zerolog.Logger
}

// StreamStats is a snapshot of a stream's counters.
//
// Reads are decoded eagerly no matter how far behind the consumer
// is, PendingBatches shows how far that is.
type StreamStats struct {
	Reads    int64
	Frames   int64
	Messages int64

	PendingReads   int
	PendingBatches int
}

// batch is the result of one read: the lazily decoded frames
// of the chunk or the error that ended the transport.
type batch struct {
	frames *Frames
	err    error
}

// FrameStream turns readable notifications into an ordered stream
// of frames.
//
// Notifications are queued as they arrive and a single goroutine
// performs the reads in order, queueing each chunk's frames for Next.
// Frames are therefore returned in the order their bytes were read
// no matter when notifications arrive or how slow the consumer is.
type FrameStream struct {
	log     zerolog.Logger
	decoder *Decoder

	reads   *awaitq.Queue[ReadFunc]
	batches *awaitq.Queue[batch]

	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	readMu mu
	cur    *Frames
	err    error

	closeOnce sync.Once

	reads64  atomicint.Int64
	frames64 atomicint.Int64
}

// NewFrameStream starts a FrameStream. opts may be nil.
// Close must be called to stop its goroutine.
func NewFrameStream(opts *StreamOptions) *FrameStream {
	if opts == nil {
		opts = &StreamOptions{}
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FrameStream{
		log: log,
		decoder: NewDecoder(&DecoderOptions{
			MaxBufferedPayload: opts.MaxBufferedPayload,
		}),
		reads:    awaitq.New[ReadFunc](),
		batches:  awaitq.New[batch](),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Readable queues read to be performed after every earlier one.
// It never blocks and is safe to call from any goroutine.
func (s *FrameStream) Readable(read ReadFunc) {
	if s.ctx.Err() != nil {
		return
	}
	s.reads.Push(read)
}

func (s *FrameStream) loop() {
	defer close(s.loopDone)

	for {
		read, err := s.reads.Shift(s.ctx)
		if err != nil {
			return
		}
		s.reads64.Increment(1)

		chunk, err := read()
		if err != nil {
			s.batches.Push(batch{err: err})
			return
		}
		s.batches.Push(batch{frames: s.decoder.Decode(chunk)})
	}
}

// Next returns the next frame, waiting for one to be read if needed.
//
// Decode errors and the error that ended the transport are returned
// once every frame before them has been returned, and from then on by
// every call. If ctx is done first, ctx.Err() is returned and the
// stream is left intact.
func (s *FrameStream) Next(ctx context.Context) (_ Frame, err error) {
	err = s.readMu.Lock(ctx)
	if err != nil {
		return Frame{}, err
	}
	defer s.readMu.Unlock()

	return s.next(ctx)
}

func (s *FrameStream) next(ctx context.Context) (Frame, error) {
	if s.err != nil {
		return Frame{}, s.err
	}
	if s.ctx.Err() != nil {
		return Frame{}, s.fail(ErrStreamClosed)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	for {
		if s.cur != nil {
			if s.cur.Next() {
				s.frames64.Increment(1)
				return s.cur.Frame(), nil
			}
			err := s.cur.Err()
			s.cur = nil
			if err != nil {
				return Frame{}, s.fail(err)
			}
		}

		b, err := s.batches.Shift(ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return Frame{}, s.fail(ErrStreamClosed)
			}
			return Frame{}, err
		}
		if b.err != nil {
			return Frame{}, s.fail(b.err)
		}
		s.cur = b.frames
	}
}

func (s *FrameStream) fail(err error) error {
	s.err = err
	s.log.Debug().Err(err).Int64("frames", s.frames64.Load()).Msg("frame stream stopped")
	return err
}

// Close stops the stream's goroutine. Queued reads are discarded and
// Next returns ErrStreamClosed.
func (s *FrameStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.loopDone
	})
	return nil
}

// Stats returns the stream's counters.
func (s *FrameStream) Stats() StreamStats {
	return StreamStats{
		Reads:          s.reads64.Load(),
		Frames:         s.frames64.Load(),
		PendingReads:   s.reads.Len(),
		PendingBatches: s.batches.Len(),
	}
}

type mu struct {
	once sync.Once
	ch   chan struct{}
}

func (m *mu) init() {
	m.once.Do(func() {
		m.ch = make(chan struct{}, 1)
	})
}

func (m *mu) Lock(ctx context.Context) error {
	m.init()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.ch <- struct{}{}:
		return nil
	}
}

func (m *mu) Unlock() {
	<-m.ch
}

var _ Notifier = (*FrameStream)(nil)
