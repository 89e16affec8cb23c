package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ai-sqlnotebook-be/pkg/llm"
)

const maxResponseBytes = 1 << 20

// Reasoning models (qwen3, deepseek-r1) prefix answers with a think block.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StatusError is returned when Ollama answers with a non-200 status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama error: status %d, body: %s", e.Status, e.Body)
}

type OllamaProvider struct {
	baseURL  string
	model    string
	client   *http.Client
	defaults []llm.Option
}

var _ llm.LLMProvider = &OllamaProvider{}

// NewOllamaProvider builds a provider whose defaults apply before per-call options.
func NewOllamaProvider(baseURL, model string, defaults ...llm.Option) *OllamaProvider {
	return &OllamaProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		defaults: defaults,
	}
}

type requestOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  requestOptions `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options requestOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaProvider) resolve(opts []llm.Option) (string, requestOptions) {
	options := &llm.Options{}
	for _, opt := range o.defaults {
		opt(options)
	}
	for _, opt := range opts {
		opt(options)
	}

	model := o.model
	if options.Model != "" {
		model = options.Model
	}
	return model, requestOptions{Temperature: options.Temperature, NumPredict: options.MaxTokens}
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	model, options := o.resolve(opts)

	messages := make([]chatMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages[i] = chatMessage{Role: role, Content: msg.Content}
	}

	var resp chatResponse
	if err := o.post(ctx, "/api/chat", chatRequest{Model: model, Messages: messages, Options: options}, &resp); err != nil {
		return "", err
	}
	return cleanAnswer(resp.Message.Content), nil
}

// Generate uses the single-prompt endpoint; no chat template history is involved.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	model, options := o.resolve(opts)

	var resp generateResponse
	if err := o.post(ctx, "/api/generate", generateRequest{Model: model, Prompt: prompt, Options: options}, &resp); err != nil {
		return "", err
	}
	return cleanAnswer(resp.Response), nil
}

func (o *OllamaProvider) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func cleanAnswer(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
