package sculptor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// GenAIOption configures a GenAITransport.
type GenAIOption func(*GenAITransport)

// WithGenAIParameters sets generation parameters by name: temperature, topK,
// topP, maxTokens / maxOutputTokens. Values are validated on every call.
func WithGenAIParameters(params map[string]string) GenAIOption {
	return func(t *GenAITransport) {
		t.params = make(map[string]string, len(params))
		for k, v := range params {
			t.params[k] = v
		}
	}
}

func WithGenAILogger(log *slog.Logger) GenAIOption {
	return func(t *GenAITransport) { t.log = log }
}

// GenAITransport sends requests to Gemini models through the Google GenAI
// client, using the contract as the response schema.
type GenAITransport struct {
	client *genai.Client
	params map[string]string
	log    *slog.Logger
}

// NewGenAITransport wraps an existing client.
func NewGenAITransport(client *genai.Client, opts ...GenAIOption) *GenAITransport {
	t := &GenAITransport{client: client, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	return t
}

// NewGenAITransportFromKey builds a Gemini API client from an API key and an
// optional base URL.
func NewGenAITransportFromKey(ctx context.Context, apiKey, baseURL string, opts ...GenAIOption) (*GenAITransport, error) {
	cfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGenAITransport(client, opts...), nil
}

// Complete implements Transport.
func (t *GenAITransport) Complete(ctx context.Context, req *Request) (*Completion, error) {
	if t.client == nil {
		return nil, fmt.Errorf("client not initialized")
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.ResponseFormat != nil {
		config.ResponseSchema = req.ResponseFormat.GenAISchema()
	}
	if err := applyGenAIParameters(config, t.params); err != nil {
		return nil, err
	}

	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("no valid content provided")
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	t.log.Debug("Generating content", "model", req.Model, "content_count", len(contents), "attempt", req.Attempt)
	resp, err := t.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in candidate content")
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text in response")
	}
	t.log.Debug("Generated content successfully", "response_length", text.Len())
	return &Completion{Text: text.String(), Model: req.Model}, nil
}

func applyGenAIParameters(config *genai.GenerateContentConfig, params map[string]string) error {
	if temp, ok := params["temperature"]; ok {
		f, err := strconv.ParseFloat(temp, 32)
		if err != nil {
			return fmt.Errorf("invalid temperature parameter '%s': %w", temp, err)
		}
		if f < 0 || f > 2 {
			return fmt.Errorf("temperature parameter '%v' must be between 0.0 and 2.0", f)
		}
		v := float32(f)
		config.Temperature = &v
	}
	if topK, ok := params["topK"]; ok {
		f, err := strconv.ParseFloat(topK, 32)
		if err != nil {
			return fmt.Errorf("invalid topK parameter '%s': %w", topK, err)
		}
		if f <= 0 {
			return fmt.Errorf("topK parameter '%v' must be greater than 0", f)
		}
		v := float32(f)
		config.TopK = &v
	}
	if topP, ok := params["topP"]; ok {
		f, err := strconv.ParseFloat(topP, 32)
		if err != nil {
			return fmt.Errorf("invalid topP parameter '%s': %w", topP, err)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("topP parameter '%v' must be between 0.0 and 1.0", f)
		}
		v := float32(f)
		config.TopP = &v
	}
	for _, key := range []string{"maxTokens", "maxOutputTokens"} {
		raw, ok := params[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s parameter '%s': %w", key, raw, err)
		}
		if n <= 0 {
			return fmt.Errorf("%s parameter '%d' must be greater than 0", key, n)
		}
		config.MaxOutputTokens = int32(n)
	}
	return nil
}
