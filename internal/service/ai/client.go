package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"chathub/internal/config"
	"chathub/internal/models"
)

// ErrUpstream marks failures of the external completion service.
var ErrUpstream = errors.New("completion service error")

// Mode selects between calling the configured provider and answering
// with deterministic placeholders.
type Mode int

const (
	ModeMock Mode = iota
	ModeLive
)

const titleSystemPrompt = "You are a conversation title generator. " +
	"Based on the dialogue between the user and the AI, generate a concise and accurate title for the conversation. " +
	"The title should be within 10 words and summarize the main topic of the conversation. " +
	"Output only the title; do not include any additional content."

// Client is the gateway to the external completion service. Without an
// API key it runs in mock mode and never calls out.
type Client struct {
	mode      Mode
	chatModel model.ToolCallingChatModel
}

// NewClient builds the completion client from configuration. An empty
// API key yields a mock-mode client rather than an error.
func NewClient(ctx context.Context, cfg config.CompletionConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return &Client{mode: ModeMock}, nil
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch cfg.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}
	return &Client{mode: ModeLive, chatModel: chatModel}, nil
}

// Mode reports whether the client calls the live provider.
func (c *Client) Mode() Mode { return c.mode }

// Complete sends the ordered conversation history and returns the
// reply text. Mock mode wraps the latest user message instead.
func (c *Client) Complete(ctx context.Context, history []*models.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("history cannot be empty")
	}
	if c.mode == ModeMock {
		return fmt.Sprintf("Mock response: %s", latestUserContent(history)), nil
	}
	resp, err := c.chatModel.Generate(ctx, convertMessages(history))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp.Content, nil
}

// GenerateTitle asks the provider for a short title summarizing the
// given messages. Mock mode derives one from the first user message.
func (c *Client) GenerateTitle(ctx context.Context, history []*models.Message) (string, error) {
	if c.mode == ModeMock {
		return truncateTitle(firstUserContent(history)), nil
	}

	conversationText := ""
	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser:
			conversationText += fmt.Sprintf("User: %s\n", msg.Content)
		case models.RoleAssistant:
			conversationText += fmt.Sprintf("Assistant: %s\n", msg.Content)
		}
	}
	messages := []*schema.Message{
		{Role: schema.System, Content: titleSystemPrompt},
		{Role: schema.User, Content: fmt.Sprintf("Please generate a title for the following conversation:\n\n%s", conversationText)},
	}
	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.Content == "" {
		return "New Conversation", nil
	}
	return resp.Content, nil
}

func convertMessages(history []*models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	return messages
}

func latestUserContent(history []*models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			return history[i].Content
		}
	}
	return history[len(history)-1].Content
}

func firstUserContent(history []*models.Message) string {
	for _, msg := range history {
		if msg.Role == models.RoleUser {
			return msg.Content
		}
	}
	return "New Conversation"
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= 40 {
		return text
	}
	return string(runes[:40])
}
