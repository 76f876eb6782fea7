package services

import (
	"context"
	"errors"

	"chatllm-backend/internal/models"
)

// Inferencer produces a single assistant reply for an ordered (oldest-first)
// conversation history.
type Inferencer interface {
	Infer(ctx context.Context, history []models.ChatMessage) (string, error)
}

var errEmptyHistory = errors.New("inference requires at least one message")

// DummyInferencer echoes the last message back. It stands in for a real model.
type DummyInferencer struct{}

func (DummyInferencer) Infer(ctx context.Context, history []models.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errEmptyHistory
	}
	return "This is a dummy response to: " + history[len(history)-1].Content, nil
}
