package sculptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL is used when OpenAIConfig.BaseURL is empty.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig is passed through unmodified to the chat completions endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string       // "" → DefaultOpenAIBaseURL
	HTTPClient *http.Client // nil → client with a 60s timeout
	Headers    map[string]string
	Logger     *slog.Logger
}

// OpenAITransport talks to any OpenAI-compatible chat completions endpoint
// and requests json_schema structured output.
type OpenAITransport struct {
	url     string
	apiKey  string
	hc      *http.Client
	headers map[string]string
	log     *slog.Logger
}

// NewOpenAITransport returns a transport for cfg.
func NewOpenAITransport(cfg OpenAIConfig) *OpenAITransport {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OpenAITransport{
		url:     strings.TrimRight(base, "/") + "/chat/completions",
		apiKey:  cfg.APIKey,
		hc:      hc,
		headers: cfg.Headers,
		log:     log,
	}
}

// UpstreamError is a non-2xx response from the completion endpoint.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai upstream %d: %s", e.Status, e.Message)
}

// Temporary reports whether the status is a rate limit, timeout or server error.
func (e *UpstreamError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout || e.Status/100 == 5
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaJSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type oaResponseFormat struct {
	Type       string        `json:"type"`
	JSONSchema *oaJSONSchema `json:"json_schema,omitempty"`
}

type oaRequest struct {
	Model          string            `json:"model"`
	Messages       []oaMessage       `json:"messages"`
	ResponseFormat *oaResponseFormat `json:"response_format,omitempty"`
}

type oaResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete implements Transport.
func (t *OpenAITransport) Complete(ctx context.Context, req *Request) (*Completion, error) {
	body := oaRequest{Model: req.Model, Messages: make([]oaMessage, 0, len(req.Messages))}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, oaMessage{Role: m.Role, Content: m.Content})
	}
	if req.ResponseFormat != nil {
		body.ResponseFormat = &oaResponseFormat{
			Type:       "json_schema",
			JSONSchema: &oaJSONSchema{Name: req.ResponseFormat.Name, Schema: req.ResponseFormat.JSON()},
		}
	}
	payload, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	t.log.Debug("Sending chat completion", "url", t.url, "model", req.Model, "attempt", req.Attempt)
	resp, err := t.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(data))
		var decoded oaResponse
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != nil {
			msg = decoded.Error.Message
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	var decoded oaResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	msg := decoded.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", msg.Refusal)
	}
	t.log.Debug("Received chat completion", "model", decoded.Model, "response_length", len(msg.Content))
	return &Completion{Text: msg.Content, Model: decoded.Model}, nil
}
