package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chatllm-backend/internal/models"
)

// MemoryStore holds users, conversations and messages in process memory.
// Records are kept in flat maps keyed by id and linked only through their
// foreign-key fields.
type MemoryStore struct {
	Users         *MemoryUserRepo
	Conversations *MemoryConversationRepo
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		Users: &MemoryUserRepo{
			byID:    make(map[int64]*models.User),
			byEmail: make(map[string]int64),
		},
		Conversations: &MemoryConversationRepo{
			now:           now,
			conversations: make(map[uuid.UUID]*models.Conversation),
			messages:      make(map[int64]*models.Message),
			logs:          make(map[uuid.UUID][]int64),
		},
	}
}

type MemoryUserRepo struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}

	r.nextID++
	user.ID = r.nextID
	user.IsActive = true

	stored := *user
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	return nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	u := *stored
	return &u, nil
}

type MemoryConversationRepo struct {
	mu            sync.RWMutex
	now           func() time.Time
	nextMessageID int64
	conversations map[uuid.UUID]*models.Conversation
	messages      map[int64]*models.Message
	// logs holds message ids per conversation in append order.
	logs map[uuid.UUID][]int64
}

func (r *MemoryConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = uuid.New()
	c.CreatedAt = normalizeTime(r.now())

	stored := *c
	r.conversations[stored.ID] = &stored
	return nil
}

func (r *MemoryConversationRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Conversation, 0)
	for _, c := range r.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryConversationRepo) GetForUser(ctx context.Context, id uuid.UUID, userID int64) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok || c.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryConversationRepo) UpdateTitle(ctx context.Context, id uuid.UUID, userID int64, title string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok || c.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	c.Title = title
	cp := *c
	return &cp, nil
}

func (r *MemoryConversationRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := normalizeTime(r.now())
	// Never let a backwards clock step reorder the log.
	if ids := r.logs[m.ConversationID]; len(ids) > 0 {
		if last := r.messages[ids[len(ids)-1]].Timestamp; ts.Before(last) {
			ts = last
		}
	}

	r.nextMessageID++
	m.ID = r.nextMessageID
	m.Timestamp = ts

	stored := *m
	r.messages[stored.ID] = &stored
	r.logs[stored.ConversationID] = append(r.logs[stored.ConversationID], stored.ID)
	return nil
}

func (r *MemoryConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cutoff time.Time
	if before != nil {
		cutoff = normalizeTime(*before)
	}

	ids := r.logs[conversationID]
	out := make([]*models.Message, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.messages[ids[i]]
		if before != nil && !m.Timestamp.Before(cutoff) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryConversationRepo) History(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.logs[conversationID]
	out := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		cp := *r.messages[id]
		out = append(out, &cp)
	}
	return out, nil
}
