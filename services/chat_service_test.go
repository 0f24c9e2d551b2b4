package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backend/models"

	"github.com/tmc/langchaingo/llms"
)

type fakeChatModel struct {
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeChatModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if part, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.lastPrompt = part.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.reply}},
	}, nil
}

func (f *fakeChatModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newChatService(t *testing.T, model llms.Model) (*ChatService, *RAGService) {
	t.Helper()
	db := newTestDB(t)
	rag := NewRAGService(db)
	return NewChatService(db, model, rag), rag
}

func TestSendMessageCreatesConversation(t *testing.T) {
	model := &fakeChatModel{reply: "You are doing great."}
	svc, _ := newChatService(t, model)

	reply, err := svc.SendMessage(context.Background(), 1, 0, "how is my sleep lately")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.ConversationID == 0 {
		t.Fatal("no conversation created")
	}
	if reply.Reply.Content != "You are doing great." {
		t.Errorf("reply = %q", reply.Reply.Content)
	}
	if reply.UserMessage.Role != "user" || reply.Reply.Role != "assistant" {
		t.Errorf("roles = %s/%s", reply.UserMessage.Role, reply.Reply.Role)
	}

	var conv models.Conversation
	if err := svc.db.First(&conv, reply.ConversationID).Error; err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if conv.Title != "how is my sleep lately" {
		t.Errorf("derived title = %q", conv.Title)
	}
}

func TestSendMessageRejectsEmptyAndForeignConversation(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	svc, _ := newChatService(t, model)

	if _, err := svc.SendMessage(context.Background(), 1, 0, "   "); !IsValidation(err) {
		t.Errorf("empty content error = %v, want validation", err)
	}

	// conversation owned by another user
	conv := &models.Conversation{UserID: 2, Title: "theirs"}
	mustCreate(t, svc.db, conv)
	if _, err := svc.SendMessage(context.Background(), 1, conv.ID, "hi"); !IsNotFound(err) {
		t.Errorf("foreign conversation error = %v, want not found", err)
	}
}

// A model failure must not lose the user's message; the conversation keeps it
// so a retry has the full history.
func TestSendMessageModelFailureKeepsUserMessage(t *testing.T) {
	model := &fakeChatModel{err: errors.New("upstream 503")}
	svc, _ := newChatService(t, model)

	_, err := svc.SendMessage(context.Background(), 1, 0, "how far did I run")
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) || extErr.Service != "model" {
		t.Fatalf("SendMessage() error = %v, want model ExternalServiceError", err)
	}

	var msgs []models.Message
	if err := svc.db.Find(&msgs).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Errorf("messages = %+v, want the single persisted user message", msgs)
	}
}

func TestSendMessagePromptCarriesHealthContext(t *testing.T) {
	model := &fakeChatModel{reply: "Your weight is trending down."}
	svc, _ := newChatService(t, model)

	mustCreate(t, svc.db, &models.HealthRecord{
		UserID: 1, MetricType: MetricWeight, Value: 82.5, Unit: "kg",
		RecordedAt: time.Now().UTC().Add(-24 * time.Hour), SourceApp: "apple_health",
		QualityScore: 1.0, IsCanonical: true,
	})

	reply, err := svc.SendMessage(context.Background(), 1, 0, "what is my weight this week")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if !strings.Contains(model.lastPrompt, "82.5") {
		t.Errorf("prompt missing retrieved data:\n%s", model.lastPrompt)
	}
	if !reply.Context.HasHealthData {
		t.Error("Context.HasHealthData = false")
	}
	if got := reply.Reply.Metadata["hasHealthData"]; got != true {
		t.Errorf("reply metadata hasHealthData = %v", got)
	}
}

func TestSendMessagePromptNotesMissingData(t *testing.T) {
	model := &fakeChatModel{reply: "I have no glucose data for you."}
	svc, _ := newChatService(t, model)

	reply, err := svc.SendMessage(context.Background(), 1, 0, "what was my glucose yesterday")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.Context.HasHealthData {
		t.Error("HasHealthData = true for empty database")
	}
	if !strings.Contains(model.lastPrompt, "No matching health data") {
		t.Errorf("prompt does not flag missing data:\n%s", model.lastPrompt)
	}
}

func TestSendMessageIncludesHistory(t *testing.T) {
	model := &fakeChatModel{reply: "second answer"}
	svc, _ := newChatService(t, model)

	first, err := svc.SendMessage(context.Background(), 1, 0, "hello there")
	if err != nil {
		t.Fatalf("first SendMessage() error = %v", err)
	}
	if _, err := svc.SendMessage(context.Background(), 1, first.ConversationID, "and another thing"); err != nil {
		t.Fatalf("second SendMessage() error = %v", err)
	}
	if !strings.Contains(model.lastPrompt, "user: hello there") {
		t.Errorf("prompt missing earlier turn:\n%s", model.lastPrompt)
	}
}

func TestDeriveTitle(t *testing.T) {
	if got := deriveTitle("  how   is\nmy sleep  "); got != "how is my sleep" {
		t.Errorf("deriveTitle() = %q", got)
	}
	long := strings.Repeat("sleep ", 20)
	got := deriveTitle(long)
	if !strings.HasSuffix(got, "…") || len([]rune(got)) != 61 {
		t.Errorf("long title not truncated: %q", got)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	svc, _ := newChatService(t, model)

	a, err := svc.SendMessage(context.Background(), 1, 0, "first topic")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.SendMessage(context.Background(), 1, 0, "second topic")
	if err != nil {
		t.Fatal(err)
	}
	// touch the first conversation again so it becomes the most recent
	time.Sleep(10 * time.Millisecond)
	if _, err := svc.SendMessage(context.Background(), 1, a.ConversationID, "follow up"); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListConversations(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("conversations = %d, want 2", len(list))
	}
	if list[0].ID != a.ConversationID || list[1].ID != b.ConversationID {
		t.Errorf("order = [%d, %d], want [%d, %d]", list[0].ID, list[1].ID, a.ConversationID, b.ConversationID)
	}
	if list[0].MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", list[0].MessageCount)
	}
}

func TestUpdateTitle(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	svc, _ := newChatService(t, model)

	reply, err := svc.SendMessage(context.Background(), 1, 0, "rename me")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateTitle(context.Background(), 1, reply.ConversationID, "Sleep tracking"); err != nil {
		t.Fatalf("UpdateTitle() error = %v", err)
	}
	var conv models.Conversation
	svc.db.First(&conv, reply.ConversationID)
	if conv.Title != "Sleep tracking" {
		t.Errorf("title = %q", conv.Title)
	}

	if err := svc.UpdateTitle(context.Background(), 1, reply.ConversationID, ""); !IsValidation(err) {
		t.Errorf("blank title error = %v, want validation", err)
	}
	if err := svc.UpdateTitle(context.Background(), 2, reply.ConversationID, "hijack"); !IsNotFound(err) {
		t.Errorf("foreign update error = %v, want not found", err)
	}
}

func TestGetMessagesOwnershipAndOrder(t *testing.T) {
	model := &fakeChatModel{reply: "ok"}
	svc, _ := newChatService(t, model)

	reply, err := svc.SendMessage(context.Background(), 1, 0, "hello")
	if err != nil {
		t.Fatal(err)
	}

	msgs, err := svc.GetMessages(context.Background(), 1, reply.ConversationID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("messages = %+v, want user then assistant", msgs)
	}

	if _, err := svc.GetMessages(context.Background(), 2, reply.ConversationID); !IsNotFound(err) {
		t.Errorf("foreign read error = %v, want not found", err)
	}
}
