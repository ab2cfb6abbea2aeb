package websocket

import (
	"errors"
)

// Format violations. Fatal for the decode or encode call that hit them.
var (
	// ErrLengthMSB is returned when the most significant bit of a
	// 64 bit extended payload length is set.
	ErrLengthMSB = errors.New("websocket: most significant bit of 64 bit extended payload length must be zero")

	// ErrInvalidFrameOption is returned by EncodeFrame when a flag
	// is out of range.
	ErrInvalidFrameOption = errors.New("websocket: invalid frame option")

	// ErrInvalidStatusCode is returned by ClosePayload when the
	// status code is outside 1000 <= code < 65536.
	ErrInvalidStatusCode = errors.New("websocket: status code is not in the acceptable range 1000 <= x < 65536")
)

// Sequencing violations. Fatal for the stream.
var (
	ErrPartialFrameSet    = errors.New("websocket: partial frame is already set")
	ErrPartialFrameNotSet = errors.New("websocket: partial frame has not been set")

	ErrFragmentStarted = errors.New("websocket: fragmented message already started")
	ErrNoFragment      = errors.New("websocket: no fragmented message")

	ErrContinuationWithoutStart = errors.New("websocket: continuation frame without initial message fragment")
	ErrFragmentPending          = errors.New("websocket: initial message fragment while fragmented message already pending")
)

// Resource limits. Fatal for the stream.
var (
	// ErrBufferedPayloadTooLarge is returned when a frame payload that
	// must be buffered across reads exceeds the configured limit.
	ErrBufferedPayloadTooLarge = errors.New("websocket: message max in-memory store size exceeded")
)

// ErrStreamClosed is returned by streams after Close.
var ErrStreamClosed = errors.New("websocket: stream closed")
