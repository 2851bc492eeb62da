package facts

import (
	"context"

	"github.com/google/uuid"
)

// FactChat glues the store to an LLM conversation: every request carries a
// freshly generated fact-aware system prompt, and every user turn is fed back
// through the ingest pipeline. The core never depends on it; callers that
// bring their own transport can ignore it.
type FactChat struct {
	UserID     string
	BasePrompt string
	Model      string

	s      *Store
	client *ChatClient
}

func (s *Store) Chat(client *ChatClient, userID, basePrompt, model string) *FactChat {
	if client == nil {
		client = NewChatClientFromEnv()
	}
	return &FactChat{
		UserID:     userID,
		BasePrompt: basePrompt,
		Model:      model,
		s:          s,
		client:     client,
	}
}

func (c *FactChat) Complete(ctx context.Context, messages []ChatMessage) (ChatResponse, error) {
	resp, err := c.client.Complete(ctx, c.buildRequest(ctx, messages))
	if err != nil {
		return resp, err
	}
	c.ingestUserTurns(messages)
	return resp, nil
}

func (c *FactChat) Stream(ctx context.Context, messages []ChatMessage) (<-chan StreamEvent, <-chan error) {
	events, errs := c.client.Stream(ctx, c.buildRequest(ctx, messages))
	// User turns are facts regardless of how the response ends.
	c.ingestUserTurns(messages)
	return events, errs
}

func (c *FactChat) buildRequest(ctx context.Context, messages []ChatMessage) ChatRequest {
	prompt := c.s.GenerateSystemPromptWithFacts(ctx, c.UserID, c.BasePrompt, nil)
	msgs := make([]ChatMessage, 0, len(messages)+1)
	msgs = append(msgs, ChatMessage{Role: "system", Content: prompt.EnhancedPrompt})
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, m)
	}
	return ChatRequest{Model: c.Model, Messages: msgs}
}

func (c *FactChat) ingestUserTurns(messages []ChatMessage) {
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		c.s.Ingest.Enqueue(IngestJob{
			UserID:    c.UserID,
			MessageID: uuid.New().String(),
			Text:      m.Content,
		})
	}
}
