package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/gamemaster/internal/interfaces"
)

var (
	// ErrSystemTurn is returned when a caller tries to append a second system turn
	ErrSystemTurn = errors.New("system turn is fixed at conversation start")

	// ErrInvalidRole is returned for roles outside system/user/assistant
	ErrInvalidRole = errors.New("invalid conversation role")
)

// Conversation is the ordered, append-only transcript sent to the completion
// service. The first turn is always the system instruction supplied at
// construction. Turns are never edited, removed or reordered.
//
// A Conversation is owned by one caller and is not safe for concurrent use.
type Conversation struct {
	id        string
	createdAt time.Time
	turns     []interfaces.Message
}

// NewConversation starts a transcript holding a single system turn
func NewConversation(systemInstruction string) *Conversation {
	return &Conversation{
		id:        "conv_" + uuid.New().String(),
		createdAt: time.Now(),
		turns: []interfaces.Message{
			{Role: interfaces.RoleSystem, Content: systemInstruction},
		},
	}
}

// ID returns the conversation identifier used for log correlation
func (c *Conversation) ID() string {
	return c.id
}

// CreatedAt returns when the conversation was started
func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

// Append adds a user or assistant turn to the end of the transcript
func (c *Conversation) Append(role interfaces.Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == interfaces.RoleSystem {
		return ErrSystemTurn
	}
	c.turns = append(c.turns, interfaces.Message{Role: role, Content: content})
	return nil
}

// Messages returns a copy of every turn in order, system turn first
func (c *Conversation) Messages() []interfaces.Message {
	out := make([]interfaces.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns including the system turn
func (c *Conversation) Len() int {
	return len(c.turns)
}

// System returns the system instruction
func (c *Conversation) System() string {
	return c.turns[0].Content
}

// Last returns the most recent turn
func (c *Conversation) Last() interfaces.Message {
	return c.turns[len(c.turns)-1]
}
