package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultConversationTitle = "New Conversation"

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UserID    int64     `json:"-"`
}

type CreateConversationRequest struct {
	Title *string `json:"title"`
}

type UpdateConversationRequest struct {
	Title *string `json:"title" validate:"required"`
}
