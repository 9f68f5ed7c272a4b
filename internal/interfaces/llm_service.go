package interfaces

import (
	"context"
)

// Role identifies who authored a conversation turn
type Role string

const (
	// RoleSystem carries the standing instruction; only ever the first turn
	RoleSystem Role = "system"

	// RoleUser carries operator intent and injected market data
	RoleUser Role = "user"

	// RoleAssistant carries completion replies
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message represents a single turn in a chat conversation
type Message struct {
	// Role identifies the message sender
	Role Role `json:"role"`

	// Content contains the text content of the message
	Content string `json:"content"`
}

// ChatService turns an ordered message history into one completion.
// Implementations must send the messages in the order given and must not
// retain or modify the slice.
type ChatService interface {
	// Chat generates a completion response based on the conversation history.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - messages: Conversation history in chronological order
	//
	// Returns:
	//   - string: Generated assistant response
	//   - error: Error if chat completion fails
	Chat(ctx context.Context, messages []Message) (string, error)
}
