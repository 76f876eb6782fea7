package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"chatllm-backend/internal/models"
)

const DefaultMessageLimit = 10

type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
	GetForUser(ctx context.Context, id uuid.UUID, userID int64) (*models.Conversation, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, userID int64, title string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]*models.Message, error)
	History(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}

type ConversationService struct {
	repo       ConversationRepository
	inferencer Inferencer
	events     EventPublisher
	logger     *zap.Logger
}

func NewConversationService(repo ConversationRepository, inferencer Inferencer, events EventPublisher, logger *zap.Logger) *ConversationService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &ConversationService{
		repo:       repo,
		inferencer: inferencer,
		events:     events,
		logger:     logger,
	}
}

// Create starts a conversation owned by user. A nil title means the default.
func (s *ConversationService) Create(ctx context.Context, user *models.User, title *string) (*models.Conversation, error) {
	c := &models.Conversation{
		Title:  models.DefaultConversationTitle,
		UserID: user.ID,
	}
	if title != nil {
		c.Title = *title
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationService) List(ctx context.Context, user *models.User) ([]*models.Conversation, error) {
	conversations, err := s.repo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

func (s *ConversationService) Rename(ctx context.Context, user *models.User, id uuid.UUID, title string) (*models.Conversation, error) {
	c, err := s.repo.UpdateTitle(ctx, id, user.ID, title)
	if err != nil {
		return nil, conversationErr(err)
	}
	return c, nil
}

// GetMessages returns up to limit messages newest-first, strictly older than
// before when it is set.
func (s *ConversationService) GetMessages(ctx context.Context, user *models.User, id uuid.UUID, before *time.Time, limit int) ([]*models.Message, error) {
	if _, err := s.repo.GetForUser(ctx, id, user.ID); err != nil {
		return nil, conversationErr(err)
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	messages, err := s.repo.ListMessages(ctx, id, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Converse appends content as a user message, asks the inferencer for a
// reply over the full history and appends that reply. On inference failure
// the user message stays and no assistant message is written.
func (s *ConversationService) Converse(ctx context.Context, user *models.User, id uuid.UUID, content string) (*models.Message, error) {
	if _, err := s.repo.GetForUser(ctx, id, user.ID); err != nil {
		return nil, conversationErr(err)
	}

	userMsg := &models.Message{Content: content, Role: models.RoleUser, ConversationID: id}
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}
	s.events.PublishMessage(ctx, user.ID, userMsg)

	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	prompt := make([]models.ChatMessage, 0, len(history))
	for _, m := range history {
		prompt = append(prompt, models.ChatMessage{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	reply, err := s.inferencer.Infer(ctx, prompt)
	if err != nil {
		s.logger.Warn("inference failed",
			zap.String("conversation_id", id.String()),
			zap.Int("history_len", len(prompt)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &InferenceError{Err: err}
	}

	// A reply that arrived is kept even if the deadline expires while storing it.
	storeCtx := context.WithoutCancel(ctx)
	assistantMsg := &models.Message{Content: reply, Role: models.RoleAssistant, ConversationID: id}
	if err := s.repo.AppendMessage(storeCtx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	s.events.PublishMessage(storeCtx, user.ID, assistantMsg)

	return assistantMsg, nil
}

func conversationErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConversationNotFound
	}
	return fmt.Errorf("failed to load conversation: %w", err)
}
