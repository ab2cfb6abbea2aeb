package wstest

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"

	ws "github.com/framewire/websocket"
	"github.com/framewire/websocket/internal/errd"
)

// Pipe starts a server that accepts a single WebSocket connection and
// dials it with a gorilla/websocket client. It returns both ends and
// a func that closes the client and the server.
func Pipe(ctx context.Context, dialer *websocket.Dialer, acceptOpts *ws.AcceptOptions) (_ *websocket.Conn, _ *ws.Conn, _ func(), err error) {
	defer errd.Wrap(&err, "failed to create ws pipe")

	accepted := make(chan *ws.Conn, 1)
	acceptErr := make(chan error, 1)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.Accept(w, r, acceptOpts)
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- c
	}))

	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clientConn, _, err := dialer.DialContext(ctx, URL(s), nil)
	if err != nil {
		s.Close()
		return nil, nil, nil, xerrors.Errorf("failed to dial: %w", err)
	}

	select {
	case serverConn := <-accepted:
		closeFn := func() {
			clientConn.Close()
			serverConn.Close(ws.StatusNormalClosure, "")
			s.Close()
		}
		return clientConn, serverConn, closeFn, nil
	case err := <-acceptErr:
		clientConn.Close()
		s.Close()
		return nil, nil, nil, err
	case <-ctx.Done():
		clientConn.Close()
		s.Close()
		return nil, nil, nil, ctx.Err()
	}
}
