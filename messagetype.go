package websocket

// MessageType represents the type of a WebSocket data message.
// See https://tools.ietf.org/html/rfc6455#section-5.6
type MessageType int

// MessageType constants.
const (
	// MessageText is for UTF-8 encoded text messages like JSON.
	MessageText = MessageType(OpText)
	// MessageBinary is for binary messages like Protobufs.
	MessageBinary = MessageType(OpBinary)
)

func (t MessageType) String() string {
	return Opcode(t).String()
}
