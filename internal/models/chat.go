package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable entry in a conversation's append-only log.
type Message struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	Role           string    `json:"role"` // "user" or "assistant"
	Timestamp      time.Time `json:"timestamp"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// ChatMessage is the (role, content) pair handed to the inference backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConverseRequest is the payload sent to the converse endpoint.
type ConverseRequest struct {
	Content *string `json:"content" validate:"required"`
}

// ConverseResponse is the assistant reply returned by converse.
type ConverseResponse struct {
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}
