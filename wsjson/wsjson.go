// Package wsjson provides helpers for JSON messages.
package wsjson

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/framewire/websocket"
)

// maxMessageSize bounds the messages Read will decode.
const maxMessageSize = 32768

// Read reads a json message from c into v.
// It will read a message up to 32768 bytes in length.
func Read(ctx context.Context, c *websocket.Conn, v interface{}) error {
	err := read(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to read json: %w", err)
	}
	return nil
}

func read(ctx context.Context, c *websocket.Conn, v interface{}) error {
	m, err := c.Read(ctx)
	if err != nil {
		return err
	}

	if m.Type() != websocket.MessageText {
		return xerrors.Errorf("unexpected frame type for json (expected %v): %v", websocket.MessageText, m.Type())
	}

	if len(m.Payload) > maxMessageSize {
		return xerrors.Errorf("json message of %v bytes exceeds %v bytes", len(m.Payload), maxMessageSize)
	}

	err = json.Unmarshal(m.Payload, v)
	if err != nil {
		return xerrors.Errorf("failed to decode json: %w", err)
	}

	return nil
}

// Write writes the json message v to c.
func Write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	err := write(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to write json: %w", err)
	}
	return nil
}

func write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("failed to encode json: %w", err)
	}

	return c.Write(ctx, websocket.MessageText, b)
}
