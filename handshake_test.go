package websocket

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/framewire/websocket/internal/test/assert"
)

func TestAcceptKey(t *testing.T) {
	t.Parallel()

	// Example from https://tools.ietf.org/html/rfc6455#section-1.3
	assert.Equal(t, "accept key", "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", AcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestWriteHandshake(t *testing.T) {
	t.Parallel()

	t.Run("response", func(t *testing.T) {
		t.Parallel()

		var b bytes.Buffer
		err := WriteHandshake(&b, "dGhlIHNhbXBsZSBub25jZQ==", "Sec-WebSocket-Protocol: chat")
		assert.Success(t, err)

		exp := "HTTP/1.1 101 Switching Protocol\r\n" +
			"Upgrade: WebSocket\r\n" +
			"Connection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n" +
			"Sec-WebSocket-Protocol: chat\r\n" +
			"\r\n"
		assert.Equal(t, "handshake", exp, b.String())
	})

	t.Run("headerInjection", func(t *testing.T) {
		t.Parallel()

		var b bytes.Buffer
		err := WriteHandshake(&b, "key", "X-A: 1\r\nX-B: 2")
		assert.Contains(t, err, "line break")
		assert.Equal(t, "bytes written", 0, b.Len())
	})
}

func TestAccept(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		h       map[string]string
		method  string
		status  int
		errText string
	}{
		{
			name:    "badConnection",
			h:       map[string]string{"Connection": "keep-alive"},
			status:  http.StatusBadRequest,
			errText: "Connection header",
		},
		{
			name:    "badUpgrade",
			h:       map[string]string{"Upgrade": "h2c"},
			status:  http.StatusBadRequest,
			errText: "Upgrade header",
		},
		{
			name:    "badMethod",
			method:  http.MethodPost,
			status:  http.StatusBadRequest,
			errText: "not GET",
		},
		{
			name:    "badVersion",
			h:       map[string]string{"Sec-WebSocket-Version": "7"},
			status:  http.StatusBadRequest,
			errText: "unsupported protocol version",
		},
		{
			name:    "missingKey",
			h:       map[string]string{"Sec-WebSocket-Key": ""},
			status:  http.StatusBadRequest,
			errText: "missing Sec-WebSocket-Key",
		},
		{
			name:    "badOrigin",
			h:       map[string]string{"Origin": "https://evil.example"},
			status:  http.StatusForbidden,
			errText: "not authorized",
		},
		{
			name:    "notHijacker",
			status:  http.StatusNotImplemented,
			errText: "http.Hijacker",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			r := httptest.NewRequest(method, "http://example.com/", nil)
			r.Header.Set("Connection", "keep-alive, Upgrade")
			r.Header.Set("Upgrade", "websocket")
			r.Header.Set("Sec-WebSocket-Version", "13")
			r.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
			for k, v := range tc.h {
				r.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			_, err := Accept(w, r, nil)
			assert.Contains(t, err, tc.errText)
			assert.Equal(t, "status", tc.status, w.Code)
		})
	}
}

func TestAuthenticateOrigin(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		origin  string
		host    string
		success bool
	}{
		{"none", "", "example.com", true},
		{"same", "https://example.com", "example.com", true},
		{"caseInsensitive", "https://EXAMPLE.com", "example.com", true},
		{"other", "https://other.com", "example.com", false},
		{"unparsable", "://", "example.com", false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "http://"+tc.host+"/", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			err := authenticateOrigin(r)
			if tc.success {
				assert.Success(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHeaderContainsToken(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Add("Connection", "keep-alive")
	h.Add("Connection", "UPGRADE")
	assert.Equal(t, "contains", true, headerContainsToken(h, "connection", "upgrade"))
	assert.Equal(t, "contains", false, headerContainsToken(h, "connection", strings.Repeat("x", 3)))
}
