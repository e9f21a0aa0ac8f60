package clients

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient is a ChatClient backed by the Google GenAI SDK.
// The API key is read by the SDK from GEMINI_API_KEY or GOOGLE_API_KEY.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates the SDK client.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(domain.ErrConfiguration, "initialize gemini client: %v", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete implements ChatClient.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var temperature float32
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       &temperature,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", pkgerrors.Wrap(domain.ErrRecommendationUnavailable, "no response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return &domain.APIError{Kind: domain.ErrNetwork, Message: "gemini request failed", Err: err}
	}

	return &domain.APIError{Kind: classifyHTTPStatus(code), HTTPStatus: code, Message: "gemini request failed", Err: err}
}
