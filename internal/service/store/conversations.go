package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chathub/internal/models"
)

// CreateConversation inserts a new conversation owned by the user.
func (s *Service) CreateConversation(ctx context.Context, userID int64, title string) (*models.Conversation, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	now := time.Now().UTC()
	id, err := s.db.InsertID(ctx,
		`INSERT INTO conversations (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		userID, title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &models.Conversation{ID: id, UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// ListConversations returns the user's conversations ordered by last
// activity.
func (s *Service) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
}

// ListAllConversations returns every conversation in the system.
// Admin surface only; handlers gate access.
func (s *Service) ListAllConversations(ctx context.Context) ([]models.Conversation, error) {
	return s.queryConversations(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations ORDER BY id`)
}

// ListUserConversations pages another user's conversations, newest
// first. Fails ErrNotFound when the target user does not exist.
func (s *Service) ListUserConversations(ctx context.Context, targetUserID int64, skip, limit int) ([]models.Conversation, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, targetUserID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return s.queryConversations(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, targetUserID, limit, skip)
}

func (s *Service) queryConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation looks the conversation up filtered by owner. A
// conversation owned by someone else is indistinguishable from a
// missing one.
func (s *Service) GetConversation(ctx context.Context, userID, conversationID int64) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListMessages returns the conversation history in canonical order:
// created_at ascending, insertion order breaking ties.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID int64) ([]*models.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at ASC, id ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MessageInput is one entry of a full message replacement.
type MessageInput struct {
	Role    models.MessageRole `json:"role"`
	Content string             `json:"content"`
}

// ReplaceMessages discards the conversation's messages and inserts the
// supplied ones in order, in a single transaction. This is a full
// overwrite, not an append.
func (s *Service) ReplaceMessages(ctx context.Context, userID, conversationID int64, inputs []MessageInput) error {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ?`, conversationID,
	); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	now := time.Now().UTC()
	for _, in := range inputs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			conversationID, in.Role, in.Content, now,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID,
	); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message replace: %w", err)
	}
	return nil
}

// AddMessage appends a message and touches the conversation's
// updated_at. Ownership is the caller's concern.
func (s *Service) AddMessage(ctx context.Context, conversationID int64, role models.MessageRole, content string) (*models.Message, error) {
	if conversationID <= 0 {
		return nil, errors.New("conversation_id is required")
	}
	now := time.Now().UTC()
	id, err := s.db.InsertID(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID,
	); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// UpdateConversationTitle sets the title for an owned conversation.
func (s *Service) UpdateConversationTitle(ctx context.Context, userID, conversationID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title cannot be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, time.Now().UTC(), conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
