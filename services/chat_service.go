package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"backend/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/gorm"
)

const (
	historyWindowMessages = 20
	historyTokenBudget    = 2000
	modelCallTimeout      = 30 * time.Second
)

const systemPrompt = `You are a supportive wellness assistant. You help users understand their own health data: weight, activity, sleep, vitals, and lab results they have synced or uploaded.

Ground every answer in the health data provided below when it is relevant. If the data does not cover the question, say so plainly. Never invent measurements. You are not a doctor; for medical concerns, suggest talking to a professional.`

// ChatService assembles system prompt + retrieved health context +
// conversation history + the new message, calls the model, and persists the
// exchange.
type ChatService struct {
	db  *gorm.DB
	llm llms.Model
	rag *RAGService
}

func NewChatService(db *gorm.DB, llm llms.Model, rag *RAGService) *ChatService {
	return &ChatService{db: db, llm: llm, rag: rag}
}

// NewChatModel builds the configured OpenAI-compatible completion client.
func NewChatModel() (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(os.Getenv("OPENAI_API_KEY")),
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	return openai.New(opts...)
}

type ChatReply struct {
	ConversationID uint            `json:"conversation_id"`
	UserMessage    *models.Message `json:"user_message"`
	Reply          *models.Message `json:"reply"`
	Context        *HealthContext  `json:"context,omitempty"`
}

// SendMessage persists the user's message first; a later failure (model call
// or reply save) reports an error but never rolls the user message back.
func (s *ChatService) SendMessage(ctx context.Context, userID, conversationID uint, content string) (*ChatReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "message is empty"}
	}

	conv, err := s.resolveConversation(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}

	userMsg := &models.Message{ConversationID: conv.ID, Role: "user", Content: content}
	if err := s.db.WithContext(ctx).Create(userMsg).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "save message", Err: err}
	}

	healthCtx, err := s.rag.RetrieveContext(ctx, userID, content)
	if err != nil {
		// chat still works without retrieval; answer from history alone
		log.Printf("chat: context retrieval failed for user %d: %v", userID, err)
		healthCtx = &HealthContext{}
	}

	prompt, err := s.buildPrompt(ctx, conv.ID, userMsg.ID, healthCtx, content)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, modelCallTimeout)
	defer cancel()
	completion, err := llms.GenerateFromSinglePrompt(callCtx, s.llm, prompt)
	if err != nil {
		return nil, &ExternalServiceError{Service: "model", Op: "generate reply", Err: err}
	}

	reply := &models.Message{
		ConversationID: conv.ID,
		Role:           "assistant",
		Content:        strings.TrimSpace(completion),
		Metadata: models.JSONMap{
			"hasHealthData": healthCtx.HasHealthData,
			"dataTypes":     healthCtx.DataTypes,
		},
	}
	if err := s.db.WithContext(ctx).Create(reply).Error; err != nil {
		// user message stays; the caller learns the reply was lost
		return nil, &ExternalServiceError{Service: "database", Op: "save reply", Err: err}
	}

	return &ChatReply{
		ConversationID: conv.ID,
		UserMessage:    userMsg,
		Reply:          reply,
		Context:        healthCtx,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, userID, conversationID uint, firstMessage string) (*models.Conversation, error) {
	if conversationID == 0 {
		conv := &models.Conversation{UserID: userID, Title: deriveTitle(firstMessage)}
		if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
			return nil, &ExternalServiceError{Service: "database", Op: "create conversation", Err: err}
		}
		return conv, nil
	}
	var conv models.Conversation
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error; err != nil {
		return nil, &NotFoundError{Resource: "conversation"}
	}
	return &conv, nil
}

func (s *ChatService) buildPrompt(ctx context.Context, conversationID, excludeMsgID uint, healthCtx *HealthContext, content string) (string, error) {
	var history []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND id <> ?", conversationID, excludeMsgID).
		Order("created_at DESC").
		Limit(historyWindowMessages).
		Find(&history).Error; err != nil {
		return "", &ExternalServiceError{Service: "database", Op: "load history", Err: err}
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	if healthCtx.HasHealthData {
		b.WriteString(healthCtx.Summary)
		b.WriteString("\n")
	} else {
		b.WriteString("No matching health data was found for this question.\n")
	}

	// history comes back newest-first; emit oldest-first within the budget
	budget := historyTokenBudget
	var kept []models.Message
	for _, m := range history {
		cost := tokenCount(m.Content)
		if cost > budget {
			break
		}
		kept = append(kept, m)
		budget -= cost
	}
	b.WriteString("\nConversation so far:\n")
	for i := len(kept) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%s: %s\n", kept[i].Role, kept[i].Content)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", content)
	return b.String(), nil
}

func deriveTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if len(title) > 60 {
		title = title[:60] + "…"
	}
	return title
}

// ConversationSummary carries the derived last-updated time for list views.
type ConversationSummary struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int64     `json:"message_count"`
}

func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	var convs []models.Conversation
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&convs).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "list conversations", Err: err}
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := ConversationSummary{ID: c.ID, Title: c.Title, LastUpdated: c.UpdatedAt}
		var newest models.Message
		err := s.db.WithContext(ctx).
			Where("conversation_id = ?", c.ID).
			Order("created_at DESC").
			First(&newest).Error
		if err == nil {
			summary.LastUpdated = newest.CreatedAt
		}
		s.db.WithContext(ctx).Model(&models.Message{}).
			Where("conversation_id = ?", c.ID).
			Count(&summary.MessageCount)
		out = append(out, summary)
	}
	sortSummariesByLastUpdated(out)
	return out, nil
}

func sortSummariesByLastUpdated(s []ConversationSummary) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].LastUpdated.After(s[j-1].LastUpdated); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID uint) ([]models.Message, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error; err != nil {
		return nil, &NotFoundError{Resource: "conversation"}
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "load messages", Err: err}
	}
	return msgs, nil
}

// UpdateTitle is the only mutation conversations allow.
func (s *ChatService) UpdateTitle(ctx context.Context, userID, conversationID uint, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Reason: "title is empty"}
	}
	res := s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Update("title", title)
	if res.Error != nil {
		return &ExternalServiceError{Service: "database", Op: "update title", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "conversation"}
	}
	return nil
}
