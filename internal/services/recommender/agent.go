package recommender

import (
	"context"
	"strings"
)

// asker is satisfied by clients.AgentClient.
type asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// AgentSource queries a hosted agent through its CLI. The agent reads the
// prompt as a single interactive line.
type AgentSource struct {
	agent asker
}

func NewAgentSource(agent asker) *AgentSource {
	return &AgentSource{agent: agent}
}

func (s *AgentSource) Recommend(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	return s.agent.Ask(ctx, strings.Join(strings.Fields(prompt), " "))
}
