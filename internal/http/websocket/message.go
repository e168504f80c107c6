package websocket

import "github.com/google/uuid"

type socketMessageType int

const (
	Update socketMessageType = iota
	Welcome
)

// SocketMessage is a single message pushed to connected clients. Target,
// when set, restricts delivery to the client with the matching ID.
type SocketMessage struct {
	Title  string            `json:"title"`
	Body   map[string]any    `json:"body"`
	Type   socketMessageType `json:"type"`
	Target *uuid.UUID        `json:"-"`
}
