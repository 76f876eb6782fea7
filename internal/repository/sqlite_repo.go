package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mattn/go-sqlite3"

	"chatllm-backend/internal/models"
)

// SQLite keeps timestamps as unix microseconds and reports missing rows as
// pgx.ErrNoRows so callers handle a single sentinel regardless of backend.

func sqliteErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return pgx.ErrNoRows
	}
	return err
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

type SQLiteUserRepo struct {
	db *sql.DB
}

func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db}
}

func (r *SQLiteUserRepo) Create(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, hashed_password, is_active) VALUES (?, ?, 1)`,
		user.Email, user.PasswordHash,
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrEmailTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	user.IsActive = true
	return nil
}

func (r *SQLiteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, is_active FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive)
	if err != nil {
		return nil, sqliteErr(err)
	}
	return user, nil
}

func (r *SQLiteUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, is_active FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.IsActive)
	if err != nil {
		return nil, sqliteErr(err)
	}
	return user, nil
}

type SQLiteConversationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteConversationRepo(db *sql.DB) *SQLiteConversationRepo {
	return &SQLiteConversationRepo{db: db, now: time.Now}
}

func (r *SQLiteConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	createdAt := normalizeTime(r.now())
	id := uuid.New()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, user_id) VALUES (?, ?, ?, ?)`,
		id.String(), c.Title, createdAt.UnixMicro(), c.UserID,
	)
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = createdAt
	return nil
}

func (r *SQLiteConversationRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, created_at, user_id
		FROM conversations
		WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		c, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *SQLiteConversationRepo) GetForUser(ctx context.Context, id uuid.UUID, userID int64) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, user_id
		FROM conversations
		WHERE id = ? AND user_id = ?`, id.String(), userID)
	c, err := scanSQLiteConversation(row)
	if err != nil {
		return nil, sqliteErr(err)
	}
	return c, nil
}

func (r *SQLiteConversationRepo) UpdateTitle(ctx context.Context, id uuid.UUID, userID int64, title string) (*models.Conversation, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ? AND user_id = ?`,
		title, id.String(), userID,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetForUser(ctx, id, userID)
}

// AppendMessage never stamps a message earlier than the conversation's
// latest one, so a clock step backwards cannot reorder the log.
func (r *SQLiteConversationRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	ts := normalizeTime(r.now()).UnixMicro()
	var stored int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (content, role, timestamp, conversation_id)
		SELECT ?, ?, MAX(?, COALESCE(MAX(timestamp), 0)), ?
		FROM messages WHERE conversation_id = ?
		RETURNING id, timestamp`,
		m.Content, m.Role, ts, m.ConversationID.String(), m.ConversationID.String(),
	).Scan(&m.ID, &stored)
	if err != nil {
		return err
	}
	m.Timestamp = fromMicros(stored)
	return nil
}

func (r *SQLiteConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, content, role, timestamp, conversation_id
		FROM messages
		WHERE conversation_id = ?`
	args := []any{conversationID.String()}

	if before != nil {
		query += ` AND timestamp < ?`
		args = append(args, normalizeTime(*before).UnixMicro())
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return r.queryMessages(ctx, query, args...)
}

func (r *SQLiteConversationRepo) History(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	return r.queryMessages(ctx, `
		SELECT id, content, role, timestamp, conversation_id
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp, id`, conversationID.String())
}

func (r *SQLiteConversationRepo) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var (
			m      models.Message
			ts     int64
			rawCID string
		)
		if err := rows.Scan(&m.ID, &m.Content, &m.Role, &ts, &rawCID); err != nil {
			return nil, err
		}
		cid, err := uuid.Parse(rawCID)
		if err != nil {
			return nil, err
		}
		m.ConversationID = cid
		m.Timestamp = fromMicros(ts)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c       models.Conversation
		rawID   string
		created int64
	)
	if err := row.Scan(&rawID, &c.Title, &created, &c.UserID); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}
	c.ID = id
	c.CreatedAt = fromMicros(created)
	return &c, nil
}
