package recommender

import (
	"context"

	"github.com/vadiminshakov/autotrader/internal/clients"
)

// ChatSource asks a chat model, OpenAI-compatible or Gemini.
type ChatSource struct {
	client clients.ChatClient
}

func NewChatSource(client clients.ChatClient) *ChatSource {
	return &ChatSource{client: client}
}

func (s *ChatSource) Recommend(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	return s.client.Complete(ctx, SystemPrompt, prompt)
}
