// Package websocket implements the RFC 6455 wire protocol as a
// streaming engine.
//
// A Decoder turns chunks read from a transport into frames no matter
// where the chunks split them. A Reassembler merges fragmented
// messages. FrameStream and MessageStream put both behind an ordered
// queue fed by readable notifications, so a transport that reports
// readiness from any goroutine still yields frames in byte order.
//
// EncodeFrame, Sender and ClosePayload cover the outgoing direction
// and Accept performs the server handshake, returning a Conn built
// from the pieces above.
//
// See https://tools.ietf.org/html/rfc6455
package websocket
