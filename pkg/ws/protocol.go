package ws

// Client-to-server actions.
const (
	actionJoin = "join"
	actionPing = "ping"
)

// Server-to-client frame types that are not notification events.
const (
	typeJoined = "joined"
	typePong   = "pong"
)

// command is a frame sent by the client. Unknown actions are ignored so
// older clients keep working against newer servers.
type command struct {
	Action      string `json:"action"`
	RecipientID string `json:"recipientId"`
}

// ack is a protocol-level server frame (join confirmation, pong).
// Notification events go out as notify.Event and carry their own shape.
type ack struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipientId,omitempty"`
}
