package gateway

import (
	"teslo/internal/presence"

	"go.uber.org/zap"
)

// EmptyMessage replaces a missing or empty chat message.
const EmptyMessage = "Empty message"

// NewMessage is the payload of message-from-client.
type NewMessage struct {
	Message string `json:"message"`
}

// ChatMessage is the payload of message-from-server.
type ChatMessage struct {
	FullName string `json:"fullName"`
	Message  string `json:"message"`
}

// Relay fans a chat message out to every connected client, sender included.
type Relay struct {
	registry *presence.Registry
	log      *zap.Logger
}

func NewRelay(registry *presence.Registry, log *zap.Logger) *Relay {
	return &Relay{registry: registry, log: log}
}

// Handle broadcasts payload on behalf of connectionID. It fails with
// presence.ErrNotFound when the connection has no session.
func (r *Relay) Handle(connectionID string, payload NewMessage) error {
	name, err := r.registry.DisplayNameOf(connectionID)
	if err != nil {
		return err
	}

	msg := payload.Message
	if msg == "" {
		msg = EmptyMessage
	}
	broadcast(r.registry, r.log, EventMessageFromServer, ChatMessage{FullName: name, Message: msg})
	return nil
}
