package wstest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/framewire/websocket"
	"github.com/framewire/websocket/internal/test/xrand"
)

// EchoLoop echos every msg received from c until an error
// occurs or the context expires.
func EchoLoop(ctx context.Context, c *ws.Conn) error {
	defer c.Close(ws.StatusInternalError, "")

	ctx, cancel := context.WithTimeout(ctx, time.Minute*5)
	defer cancel()

	for {
		m, err := c.Read(ctx)
		if err != nil {
			return err
		}

		err = c.Write(ctx, m.Type(), m.Payload)
		if err != nil {
			return err
		}
	}
}

// Echo writes a random message of up to max bytes with the client c
// and ensures the same is sent back.
func Echo(ctx context.Context, c *websocket.Conn, max int) error {
	expType := websocket.BinaryMessage
	if xrand.Bool() {
		expType = websocket.TextMessage
	}

	msg := randMessage(expType, xrand.Int(max))

	deadline, ok := ctx.Deadline()
	if ok {
		c.SetWriteDeadline(deadline)
		c.SetReadDeadline(deadline)
	}

	err := c.WriteMessage(expType, msg)
	if err != nil {
		return err
	}

	actType, act, err := c.ReadMessage()
	if err != nil {
		return err
	}

	if expType != actType {
		return fmt.Errorf("unexpected message typ (%v): %v", expType, actType)
	}

	if !bytes.Equal(msg, act) {
		return fmt.Errorf("unexpected msg read: %#v", act)
	}

	return nil
}

func randMessage(typ int, n int) []byte {
	if typ == websocket.BinaryMessage {
		return xrand.Bytes(n)
	}
	return []byte(xrand.String(n))
}
