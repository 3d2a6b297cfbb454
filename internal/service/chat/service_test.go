package chat

import (
	"context"
	"errors"
	"testing"

	"chathub/internal/config"
	"chathub/internal/models"
	"chathub/internal/service/ai"
	"chathub/internal/service/store"
	"chathub/internal/storage"
)

func newTestService(t *testing.T) (*Service, *store.Service) {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.NewService(db)
	client, err := ai.NewClient(context.Background(), config.CompletionConfig{Provider: "openai"})
	if err != nil {
		t.Fatalf("ai client: %v", err)
	}
	return NewService(st, client), st
}

func TestSendTurn(t *testing.T) {
	chat, st := newTestService(t)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	conversation, err := st.CreateConversation(ctx, alice.ID, "greetings")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	reply, err := chat.SendTurn(ctx, alice, conversation.ID, "hello")
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if reply.Role != models.RoleAssistant || reply.Content != "Mock response: hello" {
		t.Fatalf("reply = %s/%q", reply.Role, reply.Content)
	}

	messages, err := st.ListMessages(ctx, alice.ID, conversation.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len = %d, want user message plus reply", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[0].Content != "hello" {
		t.Errorf("messages[0] = %s/%q", messages[0].Role, messages[0].Content)
	}
	if messages[1].ID != reply.ID {
		t.Errorf("messages[1].ID = %d, want %d", messages[1].ID, reply.ID)
	}
}

func TestSendTurnValidation(t *testing.T) {
	chat, st := newTestService(t)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", "", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	conversation, err := st.CreateConversation(ctx, alice.ID, "private")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if _, err := chat.SendTurn(ctx, alice, conversation.ID, "   "); err == nil {
		t.Error("blank content must be rejected")
	}
	if _, err := chat.SendTurn(ctx, bob, conversation.ID, "hi"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign conversation: err = %v, want ErrNotFound", err)
	}
	if _, err := chat.SendTurn(ctx, alice, 9999, "hi"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing conversation: err = %v, want ErrNotFound", err)
	}
}

func TestSummarize(t *testing.T) {
	chat, st := newTestService(t)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "", "pw", false)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	conversation, err := st.CreateConversation(ctx, alice.ID, "New Conversation")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	// Too few messages: the current title is kept.
	if _, err := st.AddMessage(ctx, conversation.ID, models.RoleUser, "hi"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	title, err := chat.Summarize(ctx, alice, conversation.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if title != "New Conversation" {
		t.Errorf("title = %q, want unchanged", title)
	}

	inputs := []store.MessageInput{
		{Role: models.RoleUser, Content: "Plan a trip to Kyoto"},
		{Role: models.RoleAssistant, Content: "Sure, spring is lovely there"},
		{Role: models.RoleUser, Content: "Three days in April"},
	}
	if err := st.ReplaceMessages(ctx, alice.ID, conversation.ID, inputs); err != nil {
		t.Fatalf("ReplaceMessages: %v", err)
	}
	title, err = chat.Summarize(ctx, alice, conversation.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if title != "Plan a trip to Kyoto" {
		t.Errorf("title = %q", title)
	}

	// The new title is persisted.
	got, err := st.GetConversation(ctx, alice.ID, conversation.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.Title != title {
		t.Errorf("stored title = %q, want %q", got.Title, title)
	}

	if _, err := chat.Summarize(ctx, alice, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing conversation: err = %v, want ErrNotFound", err)
	}
}
