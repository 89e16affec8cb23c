package querystream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one prior notebook entry sent as conversational context.
type HistoryEntry struct {
	UserPrompt string          `json:"userPrompt"`
	SqlQueries []string        `json:"sqlQueries"`
	Outputs    []HistoryOutput `json:"outputs"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type HistoryOutput struct {
	Version int            `json:"version"`
	Chunks  []HistoryChunk `json:"chunks"`
}

type HistoryChunk struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Request is the submit payload of the query backend.
type Request struct {
	ProjectId       uuid.UUID      `json:"projectId"`
	ChatHistory     []HistoryEntry `json:"chatHistory"`
	NotebookId      uuid.UUID      `json:"notebookId"`
	NotebookEntryId uuid.UUID      `json:"notebookEntryId"`
	Version         int            `json:"version"`
}

// Opener opens one streamed response. The caller owns the returned body and
// must close it.
type Opener interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query backend error: status %d, body: %s", e.StatusCode, e.Body)
}

type Client struct {
	BaseURL string
	Client  *http.Client
}

var _ Opener = &Client{}

// NewClient builds a client for the query backend. The timeout bounds the
// response headers only; the body may stream for as long as ctx allows.
func NewClient(baseURL string, headerTimeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Transport: transport},
	}
}

func (c *Client) Open(ctx context.Context, r Request) (io.ReadCloser, error) {
	if r.ChatHistory == nil {
		r.ChatHistory = []HistoryEntry{}
	}

	payloadBytes, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.BaseURL + "/api/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query backend request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp.Body, nil
}
