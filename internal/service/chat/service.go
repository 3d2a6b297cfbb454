package chat

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"chathub/internal/models"
	"chathub/internal/service/ai"
	"chathub/internal/service/store"
)

const (
	summarizeMinMessages = 3
	summarizeWindow      = 5
)

// Service orchestrates chat turns between the conversation store and
// the completion gateway.
type Service struct {
	store *store.Service
	ai    *ai.Client
}

// NewService wires the store and the completion client together.
func NewService(st *store.Service, client *ai.Client) *Service {
	return &Service{store: st, ai: client}
}

// SendTurn persists the user message, forwards the full ordered history
// to the completion service, and persists the reply. The user message
// is committed before the outbound call; no transaction is held across
// it. On upstream failure the user message remains in place.
func (s *Service) SendTurn(ctx context.Context, user *models.User, conversationID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("content cannot be empty")
	}
	if _, err := s.store.GetConversation(ctx, user.ID, conversationID); err != nil {
		return nil, err
	}
	if _, err := s.store.AddMessage(ctx, conversationID, models.RoleUser, content); err != nil {
		return nil, err
	}
	history, err := s.store.ListMessages(ctx, user.ID, conversationID)
	if err != nil {
		return nil, err
	}
	reply, err := s.ai.Complete(ctx, history)
	if err != nil {
		log.WithField("username", user.Username).WithError(err).Error("completion failed")
		return nil, err
	}
	return s.store.AddMessage(ctx, conversationID, models.RoleAssistant, reply)
}

// Summarize regenerates the conversation title from its opening
// messages. Conversations with fewer than three messages keep their
// current title; on upstream failure the title is left unchanged.
func (s *Service) Summarize(ctx context.Context, user *models.User, conversationID int64) (string, error) {
	conversation, err := s.store.GetConversation(ctx, user.ID, conversationID)
	if err != nil {
		return "", err
	}
	messages, err := s.store.ListMessages(ctx, user.ID, conversationID)
	if err != nil {
		return "", err
	}
	if len(messages) < summarizeMinMessages {
		return conversation.Title, nil
	}
	window := messages
	if len(window) > summarizeWindow {
		window = window[:summarizeWindow]
	}
	title, err := s.ai.GenerateTitle(ctx, window)
	if err != nil {
		log.WithField("username", user.Username).WithError(err).Error("summarize failed")
		return "", err
	}
	title = strings.TrimSpace(title)
	if err := s.store.UpdateConversationTitle(ctx, user.ID, conversationID, title); err != nil {
		return "", err
	}
	return title, nil
}
