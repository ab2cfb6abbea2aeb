package websocket

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/framewire/websocket/internal/atomicint"
	"github.com/framewire/websocket/internal/errd"
)

// Conn represents an accepted WebSocket connection.
//
// Incoming bytes are pumped into a FrameStream by a goroutine
// started at Accept. Read checks every frame against the rules for
// client frames, reassembles data messages and answers control
// messages. Write frames and sends data messages.
//
// Only one Read may run at a time. Writes may be concurrent.
type Conn struct {
	netConn net.Conn
	log     zerolog.Logger

	frames      *FrameStream
	reassembler *Reassembler
	messages64  atomicint.Int64
	sender      *Sender

	pumpDone chan struct{}
	pumpErr  error

	closeOnce sync.Once
	closeErr  error
}

type connConfig struct {
	netConn net.Conn
	br      io.Reader
	stream  StreamOptions
	logger  *zerolog.Logger
}

func newConn(cfg connConfig) *Conn {
	log := zerolog.Nop()
	if cfg.logger != nil {
		log = *cfg.logger
	}
	log = log.With().Str("remote", cfg.netConn.RemoteAddr().String()).Logger()

	if cfg.stream.Logger == nil {
		cfg.stream.Logger = &log
	}
	if cfg.br == nil {
		cfg.br = cfg.netConn
	}

	c := &Conn{
		netConn: cfg.netConn,
		log:     log,
		frames:  NewFrameStream(&cfg.stream),
		reassembler: NewReassembler(&ReassemblerOptions{
			PermissiveInterleave: cfg.stream.PermissiveInterleave,
		}),
		sender:   NewSender(cfg.netConn),
		pumpDone: make(chan struct{}),
	}

	go func() {
		defer close(c.pumpDone)
		c.pumpErr = Pump(context.Background(), cfg.br, c.frames)
	}()

	log.Debug().Msg("connection accepted")
	return c
}

// Read returns the next data message.
//
// Pings are answered with pongs and pongs are discarded. When a close
// message arrives it is echoed and Read returns a CloseError.
// Protocol violations close the connection with StatusProtocolError.
//
// Only one Read may run at a time.
func (c *Conn) Read(ctx context.Context) (_ Message, err error) {
	defer errd.Wrap(&err, "failed to read")

	for {
		f, err := c.frames.Next(ctx)
		if err != nil {
			if xerrors.Is(err, ErrStreamClosed) || ctx.Err() != nil {
				return Message{}, err
			}
			if xerrors.Is(err, io.EOF) {
				return Message{}, xerrors.Errorf("connection ended without close message: %w", err)
			}
			c.Close(StatusProtocolError, "")
			return Message{}, err
		}

		err = verifyClientFrame(f)
		if err != nil {
			c.Close(StatusProtocolError, "")
			return Message{}, err
		}

		m, ok, err := c.reassembler.Push(f)
		if err != nil {
			c.Close(StatusProtocolError, "")
			return Message{}, err
		}
		if !ok {
			continue
		}
		c.messages64.Increment(1)

		switch m.Opcode {
		case OpText, OpBinary:
			return m, nil
		case OpPing:
			err = c.writeControl(ctx, OpPong, m.Payload)
			if err != nil {
				return Message{}, err
			}
		case OpPong:
		case OpClose:
			return Message{}, c.handleClose(m.Payload)
		default:
			err = xerrors.Errorf("received message with unknown opcode %v", m.Opcode)
			c.Close(StatusProtocolError, "")
			return Message{}, err
		}
	}
}

// verifyClientFrame checks the per frame rules of RFC 6455 for frames
// sent by a client: every frame is masked, no extension is negotiated
// so the reserved bits are clear, and control frames are final with
// at most 125 bytes of payload.
// See https://tools.ietf.org/html/rfc6455#section-5.1
// and https://tools.ietf.org/html/rfc6455#section-5.5
func verifyClientFrame(f Frame) error {
	if !f.Masked {
		return xerrors.Errorf("received unmasked %v frame from client", f.Opcode)
	}
	if f.RSV1 || f.RSV2 || f.RSV3 {
		return xerrors.Errorf("received %v frame with reserved bits set", f.Opcode)
	}
	if f.Opcode.Control() {
		if !f.Fin {
			return xerrors.Errorf("received fragmented %v control frame", f.Opcode)
		}
		if len(f.Payload) > maxControlPayload {
			return xerrors.Errorf("received %v control frame with %v byte payload, more than %v bytes", f.Opcode, len(f.Payload), maxControlPayload)
		}
	}
	return nil
}

func (c *Conn) handleClose(p []byte) error {
	ce, err := ParseClosePayload(p)
	if err != nil {
		err = xerrors.Errorf("received invalid close payload: %w", err)
		c.Close(StatusProtocolError, "")
		return err
	}

	code := ce.Code
	if code == StatusNoStatusRcvd {
		code = StatusNormalClosure
	}
	c.Close(code, "")
	return xerrors.Errorf("received close message: %w", ce)
}

// Write sends p as a single message of type typ.
// ctx bounds the write through the connection's write deadline.
func (c *Conn) Write(ctx context.Context, typ MessageType, p []byte) (err error) {
	defer errd.Wrap(&err, "failed to write %v message", typ)

	if typ != MessageText && typ != MessageBinary {
		return xerrors.Errorf("cannot write message of type %v", typ)
	}

	frame, err := EncodeFrame(p, WithOpcode(int(typ)))
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

func (c *Conn) writeControl(ctx context.Context, op Opcode, p []byte) error {
	if len(p) > maxControlPayload {
		return xerrors.Errorf("control frame payload of %v bytes exceeds %v bytes", len(p), maxControlPayload)
	}
	frame, err := EncodeFrame(p, WithOpcode(int(op)))
	if err != nil {
		return err
	}
	return c.send(ctx, frame)
}

func (c *Conn) send(ctx context.Context, frame []byte) error {
	return c.sender.SendContext(ctx, frame)
}

// Close sends a close message with the given status code and reason,
// stops the connection's stream and closes the underlying connection.
// Only the first call has any effect, later calls return its error.
func (c *Conn) Close(code StatusCode, reason string) error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		var err error
		p, perr := ClosePayload(code, reason, nil)
		if perr == nil {
			perr = c.writeControl(ctx, OpClose, p)
		}
		err = multierr.Append(err, perr)
		err = multierr.Append(err, c.netConn.Close())
		<-c.pumpDone
		err = multierr.Append(err, c.frames.Close())

		if err != nil {
			c.closeErr = xerrors.Errorf("failed to close WebSocket: %w", err)
		}
		c.log.Debug().Int("code", int(code)).Err(c.closeErr).AnErr("transport", c.pumpErr).Msg("connection closed")
	})
	return c.closeErr
}

// Stats returns the connection's stream counters.
func (c *Conn) Stats() StreamStats {
	st := c.frames.Stats()
	st.Messages = c.messages64.Load()
	return st
}
