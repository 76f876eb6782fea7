package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatllm-backend/internal/models"
)

type ConversationRepo struct {
	pool Querier
}

func NewConversationRepo(pool Querier) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, title, user_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	c.ID = uuid.New()
	if err := r.pool.QueryRow(ctx, query, c.ID, c.Title, c.UserID).Scan(&c.CreatedAt); err != nil {
		return err
	}
	c.CreatedAt = normalizeTime(c.CreatedAt)
	return nil
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, created_at, user_id
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UserID); err != nil {
			return nil, err
		}
		c.CreatedAt = normalizeTime(c.CreatedAt)
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetForUser returns pgx.ErrNoRows both for unknown ids and for ids owned by someone else.
func (r *ConversationRepo) GetForUser(ctx context.Context, id uuid.UUID, userID int64) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, created_at, user_id
		FROM conversations
		WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UserID)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = normalizeTime(c.CreatedAt)
	return c, nil
}

func (r *ConversationRepo) UpdateTitle(ctx context.Context, id uuid.UUID, userID int64, title string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.pool.QueryRow(ctx, `
		UPDATE conversations SET title = $1
		WHERE id = $2 AND user_id = $3
		RETURNING id, title, created_at, user_id`, title, id, userID,
	).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UserID)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = normalizeTime(c.CreatedAt)
	return c, nil
}

func (r *ConversationRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (content, role, conversation_id)
		VALUES ($1, $2, $3)
		RETURNING id, timestamp`

	if err := r.pool.QueryRow(ctx, query, m.Content, m.Role, m.ConversationID).Scan(&m.ID, &m.Timestamp); err != nil {
		return err
	}
	m.Timestamp = normalizeTime(m.Timestamp)
	return nil
}

// ListMessages returns up to limit messages newest-first, strictly older than before when set.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, content, role, timestamp, conversation_id
		FROM messages
		WHERE conversation_id = $1`
	args := []interface{}{conversationID}

	if before != nil {
		query += ` AND timestamp < $2 ORDER BY timestamp DESC, id DESC LIMIT $3`
		args = append(args, normalizeTime(*before), limit)
	} else {
		query += ` ORDER BY timestamp DESC, id DESC LIMIT $2`
		args = append(args, limit)
	}

	return r.queryMessages(ctx, query, args...)
}

// History returns the full log oldest-first.
func (r *ConversationRepo) History(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	return r.queryMessages(ctx, `
		SELECT id, content, role, timestamp, conversation_id
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp, id`, conversationID)
}

func (r *ConversationRepo) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.Content, &m.Role, &m.Timestamp, &m.ConversationID); err != nil {
			return nil, err
		}
		m.Timestamp = normalizeTime(m.Timestamp)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
