package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider uses the Google GenAI SDK against the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	Model  string
}

func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client, nil
}

func NewGeminiProvider(client *genai.Client, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, Model: model}
}

// toGenAIContents splits out system messages as the system instruction and maps
// assistant turns onto the "model" role.
func toGenAIContents(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, m.Content)
			}
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var cfg *genai.GenerateContentConfig
	if len(system) > 0 {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser),
		}
	}
	return contents, cfg
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.client == nil {
		return "", errors.New("gemini: client is nil")
	}
	contents, cfg := toGenAIContents(messages)
	resp, err := p.client.Models.GenerateContent(ctx, p.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.client == nil {
			errs <- errors.New("gemini: client is nil")
			return
		}
		contents, cfg := toGenAIContents(messages)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.Model, contents, cfg) {
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("gemini: %w", err)
				}
				return
			}
			if text := resp.Text(); text != "" {
				if !send(ctx, chunks, text) {
					return
				}
			}
		}
	}()

	return chunks, errs
}

func (p *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.client == nil {
		return nil, errors.New("gemini: client is nil")
	}
	var out []string
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		out = append(out, strings.TrimPrefix(m.Name, "models/"))
	}
	return out, nil
}
