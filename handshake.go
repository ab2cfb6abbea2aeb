package websocket

import (
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/xerrors"

	"github.com/framewire/websocket/internal/errd"
)

// AcceptOptions represents Accept's options.
type AcceptOptions struct {
	// Headers are extra header lines, such as "Sec-WebSocket-Protocol: chat",
	// appended to the handshake response.
	Headers []string

	// InsecureSkipVerify disables Accept's origin verification
	// behaviour. By default Accept only allows the handshake to
	// succeed if the Origin header is absent or matches the Host.
	InsecureSkipVerify bool

	// Stream configures the connection's FrameStream.
	Stream StreamOptions

	// Logger receives connection lifecycle events.
	// Defaults to zerolog.Nop().
	Logger *zerolog.Logger
}

var keyGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

// AcceptKey computes the Sec-WebSocket-Accept value for the
// client's Sec-WebSocket-Key.
// See https://tools.ietf.org/html/rfc6455#section-4.2.2
func AcceptKey(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write(keyGUID)

	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WriteHandshake writes the server's 101 response for the client's
// Sec-WebSocket-Key to w, followed by the given header lines.
func WriteHandshake(w io.Writer, secWebSocketKey string, headers ...string) (err error) {
	defer errd.Wrap(&err, "failed to write handshake")

	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocol\r\n")
	b.WriteString("Upgrade: WebSocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: ")
	b.WriteString(AcceptKey(secWebSocketKey))
	b.WriteString("\r\n")
	for _, h := range headers {
		if strings.ContainsAny(h, "\r\n") {
			return xerrors.Errorf("header line %q contains a line break", h)
		}
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	_, err = io.WriteString(w, b.String())
	return err
}

func verifyClientRequest(r *http.Request) error {
	if !headerContainsToken(r.Header, "Connection", "Upgrade") {
		return xerrors.Errorf("websocket: protocol violation: Connection header %q does not contain Upgrade", r.Header.Get("Connection"))
	}

	if !headerContainsToken(r.Header, "Upgrade", "WebSocket") {
		return xerrors.Errorf("websocket: protocol violation: Upgrade header %q does not contain websocket", r.Header.Get("Upgrade"))
	}

	if r.Method != http.MethodGet {
		return xerrors.Errorf("websocket: protocol violation: handshake request method is not GET but %q", r.Method)
	}

	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return xerrors.Errorf("websocket: unsupported protocol version: %q", r.Header.Get("Sec-WebSocket-Version"))
	}

	if r.Header.Get("Sec-WebSocket-Key") == "" {
		return xerrors.New("websocket: protocol violation: missing Sec-WebSocket-Key")
	}

	return nil
}

// Accept accepts a WebSocket handshake from a client and upgrades the
// the connection to WebSocket.
//
// Accept will reject the handshake if the Origin is not the same as
// the Host unless InsecureSkipVerify is set.
//
// The response is written directly to the hijacked connection.
func Accept(w http.ResponseWriter, r *http.Request, opts *AcceptOptions) (_ *Conn, err error) {
	defer errd.Wrap(&err, "failed to accept WebSocket connection")

	if opts == nil {
		opts = &AcceptOptions{}
	}

	err = verifyClientRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, err
	}

	if !opts.InsecureSkipVerify {
		err = authenticateOrigin(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return nil, err
		}
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		err = xerrors.New("http.ResponseWriter does not implement http.Hijacker")
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return nil, err
	}

	netConn, brw, err := hj.Hijack()
	if err != nil {
		err = xerrors.Errorf("failed to hijack connection: %w", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, err
	}

	err = WriteHandshake(brw.Writer, r.Header.Get("Sec-WebSocket-Key"), opts.Headers...)
	if err == nil {
		err = brw.Writer.Flush()
	}
	if err != nil {
		netConn.Close()
		return nil, err
	}

	return newConn(connConfig{
		netConn: netConn,
		br:      brw.Reader,
		stream:  opts.Stream,
		logger:  opts.Logger,
	}), nil
}

func headerContainsToken(h http.Header, key, token string) bool {
	key = textproto.CanonicalMIMEHeaderKey(key)
	return httpguts.HeaderValuesContainsToken(h[key], token)
}

func authenticateOrigin(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return xerrors.Errorf("failed to parse Origin header %q: %w", origin, err)
	}
	if strings.EqualFold(u.Host, r.Host) {
		return nil
	}
	return xerrors.Errorf("request Origin %q is not authorized for Host %q", origin, r.Host)
}
